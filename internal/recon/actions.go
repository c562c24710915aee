package recon

import "github.com/mkelleher/buywrite/internal/models"

// resolveOptionOnlyAction labels a standalone option fill. A sale is a
// covered-call write. A buy closes the call when yesterday's row shows both
// an option and an underlying price for the ticker; otherwise it is a plain
// call purchase. The second return value says whether the option trade price
// must come from yesterday's ledger instead of today's execution.
func resolveOptionOnlyAction(prior PriorLedger, ticker string, side models.FillSide) (string, bool) {
	switch side {
	case models.SideSld:
		return models.ActionSellCC, false
	case models.SideBot:
		if row, ok := prior.Single(ticker); ok && row.OptionPrice.Valid && row.Price.Valid {
			return models.ActionCloseCC, true
		}
		return models.ActionBuyCall, false
	default:
		return models.ActionUnknown, false
	}
}

// combineOptionAction merges an option label into a row that may already
// carry a stock action. Legs of one day's activity arrive as independent
// fills in arbitrary order; the convention is stock side first, so a stock
// buy followed by a call write reads "BOT SELL CC".
func combineOptionAction(row *models.LedgerRow, optionLabel string) string {
	if row.UnderlyingSize.Valid && row.Action != "" {
		return row.Action + " " + optionLabel
	}
	return optionLabel
}

// combineStockAction merges a stock side into a row that may already carry
// an option label, keeping the same stock-side-first convention.
func combineStockAction(row *models.LedgerRow, side models.FillSide) string {
	if row.OptionSize.Valid && row.Action != "" {
		return string(side) + " " + row.Action
	}
	return string(side)
}
