package recon

import (
	"context"
	"strings"
	"time"

	"github.com/mkelleher/buywrite/internal/models"
	"github.com/mkelleher/buywrite/internal/util"
)

// tickerBasis is the pricing context resolved once per portfolio ticker
// before its stock and option legs post.
type tickerBasis struct {
	action           string
	tradePrice       models.NullFloat64
	legPrice         models.NullFloat64
	optionTradePrice models.NullFloat64
	// refreshLegPrice marks tickers whose stock leg has no trade event
	// fixing a leg price today (rollover, SELL CC, CLOSE CC); the leg price
	// is taken from the current market instead.
	refreshLegPrice bool
}

// annotatePortfolio walks today's end-of-day portfolio grouped by ticker and
// produces the final position ledger: one row per ticker merging its stock
// and option legs, with basis cross-referenced from today's trade rows and
// yesterday's ledger.
func (e *Engine) annotatePortfolio(ctx context.Context, portfolio []models.PortfolioPosition,
	trades *RowBuilder, prior PriorLedger, accountValue float64, now time.Time) []models.LedgerRow {

	dateStr := now.Format("2006-01-02")
	timeStr := now.Format("15:04:05")

	// Explicit group-by so row order in the snapshot cannot change results.
	var order []string
	groups := make(map[string][]models.PortfolioPosition)
	for _, p := range portfolio {
		ticker := p.Contract.Symbol
		if _, ok := groups[ticker]; !ok {
			order = append(order, ticker)
		}
		groups[ticker] = append(groups[ticker], p)
	}

	rows := make([]models.LedgerRow, 0, len(order))
	for _, ticker := range order {
		basis := e.resolveTickerBasis(ticker, trades, prior)

		row := models.LedgerRow{
			Date:   dateStr,
			Time:   timeStr,
			Action: basis.action,
			Ticker: ticker,
			Key:    ticker,
		}
		row.PositionBalance.Set(0)
		row.AccountBalance.Set(accountValue)

		for _, p := range groups[ticker] {
			switch p.Contract.SecType {
			case models.SecTypeStock:
				legPrice := basis.legPrice.Or(0)
				if basis.refreshLegPrice {
					legPrice = p.MarketPrice
				}
				row.Price.Set(p.MarketPrice)
				row.TradePrice = basis.tradePrice
				row.LegPrice.Set(legPrice)
				row.UnderlyingSize.Set(p.Position)
				row.PositionBalance.Add(util.RoundToCent(p.MarketValue))
				row.PLUnderlying.Set(p.UnrealizedPNL)
				row.PLUnderlyingLeg.Set(util.RoundToCent(p.Position * (p.MarketPrice - legPrice)))
			case models.SecTypeOption:
				row.DOE = p.Contract.Expiration
				row.Strike.Set(p.Contract.Strike)
				row.OptionPrice.Set(p.MarketPrice)
				row.OptionTradePrice = basis.optionTradePrice
				row.OptionSize.Set(p.Position)
				row.PositionBalance.Add(util.RoundToCent(p.MarketValue))
				row.PLOption.Set(p.UnrealizedPNL)
				row.Delta.Set(e.lookupDelta(ctx, p.Contract))
			}
		}

		rows = append(rows, row)
	}

	if now.Hour() >= e.closeHour {
		e.applyPostClose(rows, now)
	}
	return rows
}

// resolveTickerBasis cross-references today's trade rows and yesterday's
// ledger to pick the basis rule for one ticker. The trade-row count drives
// the dispatch: one row selects by its action label, zero rows inherits from
// yesterday, two rows is the rollover case, and more is a consistency error.
func (e *Engine) resolveTickerBasis(ticker string, trades *RowBuilder, prior PriorLedger) tickerBasis {
	basis := tickerBasis{action: models.ActionObserve}
	todayRows := trades.TickerRows(ticker)
	priorRows := prior.Rows(ticker)

	switch len(todayRows) {
	case 1:
		basis.action = todayRows[0].Action
		e.resolveTradedBasis(&basis, ticker, todayRows[0], prior, len(priorRows))
	case 0:
		switch {
		case len(priorRows) == 0:
			// New observation with no history; zero basis is the entry state.
			basis.tradePrice.Set(0)
			basis.legPrice.Set(0)
			basis.optionTradePrice.Set(0)
		case len(priorRows) <= 2:
			trade, _ := prior.MaxTradePrice(ticker)
			leg, _ := prior.MaxLegPrice(ticker)
			opt, _ := prior.MaxOptionTradePrice(ticker)
			basis.tradePrice.Set(trade)
			basis.legPrice.Set(leg)
			basis.optionTradePrice.Set(opt)
		default:
			e.logger.Printf("Error: %d prior ledger rows for %s, marking basis ambiguous",
				len(priorRows), ticker)
			basis.tradePrice.Set(models.BasisAmbiguous)
			basis.legPrice.Set(models.BasisAmbiguous)
		}
	case 2:
		// Two trade rows for one ticker means a rollover: the underlying
		// entry carries from yesterday, the option entry comes from the
		// starred write row.
		basis.action = ComboRollover.String()
		basis.refreshLegPrice = true
		if trade, ok := prior.MaxTradePrice(ticker); ok {
			basis.tradePrice.Set(trade)
		}
		if starRow, ok := trades.Get(models.RolloverKey(ticker)); ok {
			basis.optionTradePrice = starRow.OptionTradePrice
		}
	default:
		e.logger.Printf("Error: %d trade rows for %s, marking basis ambiguous",
			len(todayRows), ticker)
		basis.action = models.ActionError
		basis.tradePrice.Set(models.BasisAmbiguous)
		basis.legPrice.Set(models.BasisAmbiguous)
	}

	return basis
}

// resolveTradedBasis handles the single-trade-row dispatch by action label.
func (e *Engine) resolveTradedBasis(basis *tickerBasis, ticker string,
	row *models.LedgerRow, prior PriorLedger, priorCount int) {

	switch {
	case row.Action == models.ActionSellCC:
		switch priorCount {
		case 1:
			basis.refreshLegPrice = true
			if trade, ok := prior.MaxTradePrice(ticker); ok {
				basis.tradePrice.Set(trade)
			}
			basis.optionTradePrice = row.OptionTradePrice
		case 0:
			// A write with nothing underneath should have been blocked at
			// order time; record it for review rather than fail.
			basis.tradePrice.Set(0)
			basis.optionTradePrice = row.OptionTradePrice
			basis.action = models.ActionUnmatchedSellCC
		default:
			basis.action = models.ActionError
			basis.tradePrice.Set(models.BasisAmbiguous)
			basis.legPrice.Set(models.BasisAmbiguous)
		}

	case row.Action == models.ActionCloseCC:
		switch priorCount {
		case 1:
			basis.refreshLegPrice = true
			if trade, ok := prior.MaxTradePrice(ticker); ok {
				basis.tradePrice.Set(trade)
			}
			basis.optionTradePrice = row.OptionTradePrice
		case 0:
			basis.tradePrice.Set(0)
			basis.legPrice.Set(0)
			basis.optionTradePrice = row.OptionTradePrice
			basis.action = models.ActionUnmatchedCloseCC
		default:
			basis.action = models.ActionError
			basis.tradePrice.Set(models.BasisAmbiguous)
			basis.legPrice.Set(models.BasisAmbiguous)
		}

	case row.Action == models.ActionBuyWrite || strings.HasPrefix(row.Action, string(models.SideBot)):
		basis.tradePrice = row.TradePrice
		basis.legPrice = row.LegPrice
		basis.optionTradePrice = row.OptionTradePrice

	case row.Action == string(models.SideSld):
		if priorCount >= 1 {
			e.logger.Printf("Warning: %s sold its underlying but a position remains, possible naked call", ticker)
			if trade, ok := prior.MaxTradePrice(ticker); ok {
				basis.tradePrice.Set(trade)
			}
			basis.legPrice = row.LegPrice
			if opt, ok := prior.MaxOptionTradePrice(ticker); ok {
				basis.optionTradePrice.Set(opt)
			}
		}

	default:
		// Error-prefixed, BUY CALL, and concatenated labels inherit whatever
		// history exists.
		if trade, ok := prior.MaxTradePrice(ticker); ok {
			basis.tradePrice.Set(trade)
		}
		if leg, ok := prior.MaxLegPrice(ticker); ok {
			basis.legPrice.Set(leg)
		}
		if row.OptionTradePrice.Valid {
			basis.optionTradePrice = row.OptionTradePrice
		} else if opt, ok := prior.MaxOptionTradePrice(ticker); ok {
			basis.optionTradePrice.Set(opt)
		}
	}
}

// applyPostClose rewrites actions for options at or past expiration: in the
// money means the shares were called away, out of the money means the call
// expired worthless. Only meaningful once the market has closed.
func (e *Engine) applyPostClose(rows []models.LedgerRow, now time.Time) {
	today := now.Format("20060102")
	for i := range rows {
		r := &rows[i]
		if r.DOE == "" || !r.Strike.Valid {
			continue
		}
		if _, err := time.Parse("20060102", r.DOE); err != nil {
			e.logger.Printf("Warning: unparseable expiration %q on %s", r.DOE, r.Ticker)
			continue
		}
		if r.DOE > today {
			continue
		}
		if r.Strike.Float64 <= r.Price.Or(0) {
			r.Action = models.ActionCalledAway
		} else {
			r.Action = models.ActionExpireCC
		}
	}
}

// lookupDelta fetches the option's model delta, absorbing lookup failure
// into the invalid-contract sentinel so one bad contract cannot stop the
// portfolio pass.
func (e *Engine) lookupDelta(ctx context.Context, c models.Contract) float64 {
	delta, err := e.gateway.GetOptionDelta(ctx, c.Symbol, c.Expiration, c.Strike)
	if err != nil {
		e.logger.Printf("Warning: delta lookup failed for %s %s %.2f: %v",
			c.Symbol, c.Expiration, c.Strike, err)
		return models.DeltaInvalidContract
	}
	return delta
}
