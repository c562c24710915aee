package recon

import "github.com/mkelleher/buywrite/internal/models"

// PriorLedger is yesterday's finalized ledger keyed by ticker. It is a
// read-only basis source; the reconciliation pass never mutates it. A ticker
// maps to two rows only after a rollover day.
type PriorLedger map[string][]models.LedgerRow

// Rows returns yesterday's rows for a ticker, nil when it held no position.
func (p PriorLedger) Rows(ticker string) []models.LedgerRow {
	return p[ticker]
}

// Single returns the ticker's row when yesterday held exactly one.
func (p PriorLedger) Single(ticker string) (models.LedgerRow, bool) {
	rows := p[ticker]
	if len(rows) != 1 {
		return models.LedgerRow{}, false
	}
	return rows[0], true
}

// maxOf takes the maximum of one column across the ticker's rows, skipping
// nulls. Duplicate rows occur only after a rollover, where the maximum picks
// the surviving write leg's value.
func (p PriorLedger) maxOf(ticker string, col func(*models.LedgerRow) models.NullFloat64) (float64, bool) {
	best := 0.0
	found := false
	for i := range p[ticker] {
		v := col(&p[ticker][i])
		if !v.Valid {
			continue
		}
		if !found || v.Float64 > best {
			best = v.Float64
			found = true
		}
	}
	return best, found
}

// MaxTradePrice returns the carried-forward underlying entry price.
func (p PriorLedger) MaxTradePrice(ticker string) (float64, bool) {
	return p.maxOf(ticker, func(r *models.LedgerRow) models.NullFloat64 { return r.TradePrice })
}

// MaxLegPrice returns the carried-forward underlying leg reference price.
func (p PriorLedger) MaxLegPrice(ticker string) (float64, bool) {
	return p.maxOf(ticker, func(r *models.LedgerRow) models.NullFloat64 { return r.LegPrice })
}

// MaxOptionTradePrice returns the carried-forward option entry price.
func (p PriorLedger) MaxOptionTradePrice(ticker string) (float64, bool) {
	return p.maxOf(ticker, func(r *models.LedgerRow) models.NullFloat64 { return r.OptionTradePrice })
}

// StockBasis is the resolved entry pricing for a stock leg.
type StockBasis struct {
	TradePrice float64
	LegPrice   float64
	// Unmatched marks a sale with no prior position to close. The row is
	// still recorded, with zero basis and an error-prefixed action, so the
	// run completes and the row surfaces for manual review.
	Unmatched bool
}

// ResolveStockBasis recovers trade price and leg price for a stock fill.
//
// Buys open or extend a position at today's execution price unless the buy
// exactly offsets yesterday's short, in which case yesterday's basis carries
// forward. Sales always carry yesterday's basis; a sale with no prior
// position is the unmatched case.
//
// runningSize is the ticker's accumulated signed share delta for today
// including this fill, which is what the short-cover comparison needs when
// an order fills in pieces.
func ResolveStockBasis(prior PriorLedger, ticker string, side models.FillSide, runningSize, price float64) StockBasis {
	rows := prior.Rows(ticker)

	if side == models.SideBot {
		if len(rows) == 0 {
			return StockBasis{TradePrice: price, LegPrice: price}
		}
		prevSize := rows[0].UnderlyingSize.Or(0)
		if runningSize == -prevSize { // closing a short
			return carriedBasis(prior, ticker, price)
		}
		return StockBasis{TradePrice: price, LegPrice: price}
	}

	if len(rows) >= 1 {
		return carriedBasis(prior, ticker, price)
	}
	return StockBasis{Unmatched: true}
}

func carriedBasis(prior PriorLedger, ticker string, fallback float64) StockBasis {
	trade, ok := prior.MaxTradePrice(ticker)
	if !ok {
		trade = fallback
	}
	leg, ok := prior.MaxLegPrice(ticker)
	if !ok {
		leg = fallback
	}
	return StockBasis{TradePrice: trade, LegPrice: leg}
}
