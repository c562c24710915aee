package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Action labels assigned by the reconciliation passes. Stock-only trades use
// the raw fill side (BOT/SLD); combined stock+option activity concatenates
// the stock side in front of the option label, e.g. "BOT SELL CC".
const (
	ActionObserve          = "OBSERVE"
	ActionSellCC           = "SELL CC"
	ActionCloseCC          = "CLOSE CC"
	ActionBuyCall          = "BUY CALL"
	ActionBuyWrite         = "BUY WRITE"
	ActionRolloverWrite    = "ROLLOVER WRITE"
	ActionRolloverClose    = "ROLLOVER CLOSE"
	ActionUnmatchedSellCC  = "UNMATCHED SELL CC"
	ActionUnmatchedCloseCC = "UNMATCHED CLOSE CC"
	ActionCalledAway       = "Called Away"
	ActionExpireCC         = "Expire CC"
	ActionUnknown          = "UNKNOWN"
	ActionError            = "ERROR"
)

// Sentinel column values. They are deliberately impossible prices/greeks so a
// reviewer scanning the ledger can spot degraded rows at a glance.
const (
	// DeltaNoModel means the contract resolved but the quote carried no model greek.
	DeltaNoModel = -99
	// DeltaInvalidContract means the expiration/strike did not resolve to a tradable call.
	DeltaInvalidContract = -999
	// BasisAmbiguous marks basis columns when the prior ledger held conflicting rows.
	BasisAmbiguous = -9999
)

// NullFloat64 is a nullable ledger column value. Unpopulated columns persist
// as SQL NULL and marshal as JSON null, so a zero price and an absent price
// stay distinguishable across runs.
type NullFloat64 struct {
	Float64 float64
	Valid   bool
}

// NF wraps a value into a valid NullFloat64.
func NF(v float64) NullFloat64 {
	return NullFloat64{Float64: v, Valid: true}
}

// Set overwrites the value. Used for scalar columns where the most recent
// leg wins.
func (n *NullFloat64) Set(v float64) {
	n.Float64 = v
	n.Valid = true
}

// Add accumulates into the value, treating null as zero. Used for
// accumulator columns (commission, position balance, P/L legs).
func (n *NullFloat64) Add(v float64) {
	n.Float64 += v
	n.Valid = true
}

// Or returns the value, or def when the column is null.
func (n NullFloat64) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Float64
}

// Value implements driver.Valuer.
func (n NullFloat64) Value() (driver.Value, error) {
	if !n.Valid {
		return nil, nil
	}
	return n.Float64, nil
}

// Scan implements sql.Scanner.
func (n *NullFloat64) Scan(src any) error {
	if src == nil {
		*n = NullFloat64{}
		return nil
	}
	switch v := src.(type) {
	case float64:
		*n = NF(v)
	case int64:
		*n = NF(float64(v))
	default:
		return fmt.Errorf("cannot scan %T into NullFloat64", src)
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (n NullFloat64) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *NullFloat64) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*n = NullFloat64{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NF(v)
	return nil
}

// LedgerRow is one ledger record. Rows are keyed by Key, which is the ticker
// symbol except for the write leg of a rollover, which posts under
// ticker+"*" so the close and the new write occupy separate rows. Ticker
// always holds the plain symbol for both rows.
//
// All numeric columns are declared up front and nullable; the trade and
// portfolio passes populate only the columns their action touches. The
// position balance invariant: PositionBalance equals the summed dollar value
// of whichever legs have posted to the row so far. Later legs accumulate
// into it, never overwrite it.
type LedgerRow struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Action string `json:"action"`
	Ticker string `json:"ticker"`
	Key    string `json:"key"`

	Price            NullFloat64 `json:"price"`
	TradePrice       NullFloat64 `json:"trade_price"`
	LegPrice         NullFloat64 `json:"leg_price"`
	Strike           NullFloat64 `json:"strike"`
	DOE              string      `json:"doe,omitempty"` // YYYYMMDD
	OptionPrice      NullFloat64 `json:"option_price"`
	OptionTradePrice NullFloat64 `json:"option_trade_price"`
	Commission       NullFloat64 `json:"commission"`
	OptionSize       NullFloat64 `json:"option_size"`
	UnderlyingSize   NullFloat64 `json:"underlying_size"`
	PositionBalance  NullFloat64 `json:"position_bal"`
	AccountBalance   NullFloat64 `json:"acct_bal"`
	PLUnderlying     NullFloat64 `json:"pl_underlying"`
	PLUnderlyingLeg  NullFloat64 `json:"pl_underlying_leg"`
	PLOption         NullFloat64 `json:"pl_option"`
	Delta            NullFloat64 `json:"delta"`
}

// RolloverKey returns the synthetic row key used by the write leg of a
// rollover for the given ticker.
func RolloverKey(ticker string) string {
	return ticker + "*"
}
