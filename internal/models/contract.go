// Package models defines the trade, fill, and ledger row types shared by the
// reconciliation engine, the ledger store, and the execution gateway.
package models

import "time"

// SecType identifies the security type of a contract.
type SecType string

const (
	// SecTypeStock is a plain equity contract.
	SecTypeStock SecType = "STK"
	// SecTypeOption is a single option contract.
	SecTypeOption SecType = "OPT"
	// SecTypeCombo is a multi-leg (bag) order contract.
	SecTypeCombo SecType = "BAG"
)

// LegAction is the declared direction of one combo leg.
type LegAction string

const (
	LegBuy  LegAction = "BUY"
	LegSell LegAction = "SELL"
)

// FillSide is the executed direction reported on a fill.
type FillSide string

const (
	SideBot FillSide = "BOT"
	SideSld FillSide = "SLD"
)

// Contract describes the instrument a fill or portfolio position refers to.
// Strike, Expiration, and Multiplier are only populated for options.
type Contract struct {
	Symbol     string  `json:"symbol"`
	SecType    SecType `json:"sec_type"`
	Strike     float64 `json:"strike,omitempty"`
	Expiration string  `json:"expiration,omitempty"` // YYYYMMDD
	Multiplier int     `json:"multiplier,omitempty"`
}

// ComboLeg is the ratio/action descriptor of one leg of a combo order.
type ComboLeg struct {
	Ratio  int       `json:"ratio"`
	Action LegAction `json:"action"`
}

// Fill is one execution leg. Shares is unsigned as reported by the gateway;
// for options it counts contracts, not underlying shares. Time is UTC.
type Fill struct {
	Contract    Contract  `json:"contract"`
	Side        FillSide  `json:"side"`
	Shares      float64   `json:"shares"`
	Price       float64   `json:"price"`
	Commission  float64   `json:"commission"`
	RealizedPNL float64   `json:"realized_pnl"`
	Time        time.Time `json:"time"`
}

// Trade is one order's worth of executions. For combo orders the parent
// contract has SecType BAG and exactly two Legs; each fill then carries its
// own leg contract.
type Trade struct {
	Contract Contract   `json:"contract"`
	Legs     []ComboLeg `json:"legs,omitempty"`
	Fills    []Fill     `json:"fills"`
}

// IsCombo reports whether the trade is a multi-leg bag order.
func (t *Trade) IsCombo() bool {
	return t.Contract.SecType == SecTypeCombo
}

// PortfolioPosition is one end-of-day position record. Combo orders are never
// reported here; each stock or option leg arrives as its own record.
type PortfolioPosition struct {
	Contract      Contract `json:"contract"`
	Position      float64  `json:"position"`
	MarketPrice   float64  `json:"market_price"`
	MarketValue   float64  `json:"market_value"`
	AverageCost   float64  `json:"average_cost"`
	UnrealizedPNL float64  `json:"unrealized_pnl"`
}
