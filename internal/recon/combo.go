// Package recon implements the trade reconciliation and position-ledger
// engine: it folds today's executed fills and the end-of-day portfolio
// snapshot together with yesterday's ledger into today's ledger and an
// append-only activity log.
package recon

import "github.com/mkelleher/buywrite/internal/models"

// ComboKind is the structural classification of a two-leg combo order.
type ComboKind int

const (
	// ComboUnknown is any leg structure the recorder does not specially handle.
	ComboUnknown ComboKind = iota
	// ComboRollover buys back an existing short call and writes a new one.
	ComboRollover
	// ComboBuyWrite buys underlying shares and writes covered calls in one order.
	ComboBuyWrite
)

func (k ComboKind) String() string {
	switch k {
	case ComboRollover:
		return "ROLLOVER"
	case ComboBuyWrite:
		return "BUY WRITE"
	default:
		return "UNKNOWN"
	}
}

// ClassifyCombo classifies a combo order purely from its leg metadata.
// Rules in priority order: two ratio-1 legs with opposite actions are a
// rollover; otherwise a ratio-100 BUY leg marks a buy-write; anything else
// is unknown.
func ClassifyCombo(legs []models.ComboLeg) ComboKind {
	if len(legs) != 2 {
		return ComboUnknown
	}
	if legs[0].Ratio == 1 && legs[1].Ratio == 1 && legs[0].Action != legs[1].Action {
		return ComboRollover
	}
	if (legs[0].Action == models.LegBuy && legs[0].Ratio == 100) ||
		(legs[1].Action == models.LegBuy && legs[1].Ratio == 100) {
		return ComboBuyWrite
	}
	return ComboUnknown
}
