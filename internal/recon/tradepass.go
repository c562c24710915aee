package recon

import (
	"github.com/mkelleher/buywrite/internal/models"
	"github.com/mkelleher/buywrite/internal/util"
)

// reconcileTrades folds today's executed trades into ledger rows. One row
// per ticker, except rollovers, whose write leg posts under ticker+"*".
func (e *Engine) reconcileTrades(prior PriorLedger, trades []models.Trade, accountValue float64) *RowBuilder {
	b := NewRowBuilder()
	for i := range trades {
		t := &trades[i]
		switch t.Contract.SecType {
		case models.SecTypeOption:
			e.applyOptionTrade(b, prior, t, accountValue)
		case models.SecTypeStock:
			e.applyStockTrade(b, prior, t, accountValue)
		case models.SecTypeCombo:
			e.applyComboTrade(b, prior, t, accountValue)
		default:
			e.logger.Printf("Skipping trade with unsupported security type %q for %s",
				t.Contract.SecType, t.Contract.Symbol)
		}
	}
	return b
}

// applyOptionTrade handles standalone option orders: writes, closes, and
// plain call purchases. Buy-writes and rollovers arrive as combos instead.
func (e *Engine) applyOptionTrade(b *RowBuilder, prior PriorLedger, t *models.Trade, accountValue float64) {
	ticker := t.Contract.Symbol
	for _, fill := range t.Fills {
		pf := ProjectFill(fill, e.loc)
		row := b.Row(ticker, ticker)

		label, fromPrior := resolveOptionOnlyAction(prior, ticker, pf.Side)
		optionTradePrice := pf.Price
		if fromPrior {
			if prev, ok := prior.Single(ticker); ok {
				optionTradePrice = prev.OptionTradePrice.Or(pf.Price)
			}
		}

		row.Action = combineOptionAction(row, label)
		row.Date = pf.Date
		row.Time = pf.Time
		row.DOE = pf.Contract.Expiration
		row.Strike.Set(pf.Contract.Strike)
		row.OptionPrice.Set(pf.Price)
		row.OptionTradePrice.Set(optionTradePrice)
		row.OptionSize.Add(pf.SignedSize)
		row.PLOption.Add(pf.RealizedPNL)
		row.Commission.Add(pf.Commission)
		row.AccountBalance.Set(accountValue)

		e.logger.Printf("Option fill: %s %s %g @ %.2f (strike %.2f, exp %s), commission %.2f",
			ticker, pf.Side, fill.Shares, pf.Price, pf.Contract.Strike, pf.Contract.Expiration, pf.Commission)
	}
}

// applyStockTrade handles standalone stock orders. Broken-up executions for
// one ticker merge into a single row with summed size and commission.
func (e *Engine) applyStockTrade(b *RowBuilder, prior PriorLedger, t *models.Trade, accountValue float64) {
	ticker := t.Contract.Symbol
	for _, fill := range t.Fills {
		pf := ProjectFill(fill, e.loc)
		row := b.Row(ticker, ticker)

		row.UnderlyingSize.Add(pf.SignedSize)
		basis := ResolveStockBasis(prior, ticker, pf.Side, row.UnderlyingSize.Float64, pf.Price)

		action := combineStockAction(row, pf.Side)
		if basis.Unmatched {
			e.logger.Printf("Warning: sale of %s with no prior position, recording with zero basis", ticker)
			action = models.ActionError + " " + action
		}

		row.Action = action
		row.Date = pf.Date
		row.Time = pf.Time
		row.Price.Set(pf.Price)
		row.TradePrice.Set(basis.TradePrice)
		row.LegPrice.Set(basis.LegPrice)
		row.PLUnderlyingLeg.Add(util.RoundToCent((pf.Price - basis.LegPrice) * fill.Shares))
		row.PLUnderlying.Add(pf.RealizedPNL)
		row.Commission.Add(pf.Commission)
		row.PositionBalance.Add(util.RoundToCent(pf.Price * pf.SignedSize))
		row.AccountBalance.Set(accountValue)

		e.logger.Printf("Stock fill: %s %s %g @ %.2f, commission %.2f",
			ticker, pf.Side, fill.Shares, pf.Price, pf.Commission)
	}
}

// applyComboTrade handles two-leg bag orders. A rollover records as two rows,
// the buy-back on the ticker key and the new write on ticker+"*"; a
// buy-write merges both legs into one row. Unrecognized combos still record,
// labeled UNKNOWN.
func (e *Engine) applyComboTrade(b *RowBuilder, prior PriorLedger, t *models.Trade, accountValue float64) {
	ticker := t.Contract.Symbol
	kind := ClassifyCombo(t.Legs)
	if kind == ComboUnknown {
		e.logger.Printf("Warning: unrecognized combo structure for %s: %+v", ticker, t.Legs)
	}

	for _, fill := range t.Fills {
		pf := ProjectFill(fill, e.loc)
		switch pf.Contract.SecType {
		case models.SecTypeOption:
			e.applyComboOptionLeg(b, prior, kind, ticker, &fill, pf, accountValue)
		case models.SecTypeStock:
			e.applyComboStockLeg(b, prior, kind, ticker, &fill, pf, accountValue)
		default:
			e.logger.Printf("Skipping combo leg with unsupported security type %q for %s",
				pf.Contract.SecType, ticker)
		}
	}
}

func (e *Engine) applyComboOptionLeg(b *RowBuilder, prior PriorLedger, kind ComboKind,
	ticker string, fill *models.Fill, pf ProjectedFill, accountValue float64) {
	key := ticker
	action := kind.String()
	optionTradePrice := pf.Price

	if kind == ComboRollover {
		if pf.Side == models.SideSld {
			// The new write opens a fresh position under the starred key.
			action = models.ActionRolloverWrite
			key = models.RolloverKey(ticker)
		} else {
			// The buy-back closes a position whose entry price predates the
			// rollover, so it comes from yesterday's ledger.
			action = models.ActionRolloverClose
			if prev, ok := prior.Single(ticker); ok {
				optionTradePrice = prev.OptionTradePrice.Or(pf.Price)
			}
		}
	}

	multiplier := fill.Contract.Multiplier
	if multiplier == 0 {
		multiplier = 100
	}

	row := b.Row(key, ticker)
	row.Action = action
	row.Date = pf.Date
	row.Time = pf.Time
	row.DOE = pf.Contract.Expiration
	row.Strike.Set(pf.Contract.Strike)
	row.OptionPrice.Set(pf.Price)
	row.OptionTradePrice.Set(optionTradePrice)
	row.OptionSize.Add(pf.SignedSize)
	row.PLOption.Add(pf.RealizedPNL)
	row.Commission.Add(pf.Commission)
	row.PositionBalance.Add(util.RoundToCent(pf.Price * pf.SignedSize * float64(multiplier)))
	row.AccountBalance.Set(accountValue)

	e.logger.Printf("Combo option leg: %s %s %g @ %.2f (strike %.2f, exp %s)",
		ticker, action, fill.Shares, pf.Price, pf.Contract.Strike, pf.Contract.Expiration)
}

func (e *Engine) applyComboStockLeg(b *RowBuilder, prior PriorLedger, kind ComboKind,
	ticker string, fill *models.Fill, pf ProjectedFill, accountValue float64) {
	row := b.Row(ticker, ticker)
	row.UnderlyingSize.Add(pf.SignedSize)

	basis := ResolveStockBasis(prior, ticker, pf.Side, row.UnderlyingSize.Float64, pf.Price)
	action := kind.String()
	if basis.Unmatched {
		e.logger.Printf("Warning: combo sale of %s with no prior position, recording with zero basis", ticker)
		action = models.ActionError + " " + action
	}

	row.Action = action
	row.Date = pf.Date
	row.Time = pf.Time
	row.Price.Set(pf.Price)
	row.TradePrice.Set(basis.TradePrice)
	row.LegPrice.Set(basis.LegPrice)
	row.PLUnderlyingLeg.Add(util.RoundToCent((pf.Price - basis.LegPrice) * fill.Shares))
	row.PLUnderlying.Add(pf.RealizedPNL)
	row.Commission.Add(pf.Commission)
	row.PositionBalance.Add(util.RoundToCent(pf.Price * pf.SignedSize))
	row.AccountBalance.Set(accountValue)

	e.logger.Printf("Combo stock leg: %s %s %g @ %.2f", ticker, action, fill.Shares, pf.Price)
}
