package recon

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/mkelleher/buywrite/internal/models"
)

// builderWith seeds a RowBuilder with pre-built trade rows, keeping the
// builder's first-seen order.
func builderWith(rows ...models.LedgerRow) *RowBuilder {
	b := NewRowBuilder()
	for _, r := range rows {
		*b.Row(r.Key, r.Ticker) = r
	}
	return b
}

func tradeRow(ticker, action string) models.LedgerRow {
	return models.LedgerRow{Key: ticker, Ticker: ticker, Action: action}
}

func TestResolveTickerBasis_UnmatchedWrite(t *testing.T) {
	e := testEngine()
	row := tradeRow("IBM", models.ActionSellCC)
	row.OptionTradePrice.Set(3.50)

	basis := e.resolveTickerBasis("IBM", builderWith(row), PriorLedger{})

	if basis.action != models.ActionUnmatchedSellCC {
		t.Errorf("action = %q, want UNMATCHED SELL CC", basis.action)
	}
	if !basis.tradePrice.Valid || basis.tradePrice.Float64 != 0 {
		t.Errorf("trade price = %+v, want valid zero", basis.tradePrice)
	}
	if basis.optionTradePrice.Or(0) != 3.50 {
		t.Errorf("option trade price = %v, want today's 3.50", basis.optionTradePrice.Or(0))
	}
}

func TestResolveTickerBasis_UnmatchedClose(t *testing.T) {
	e := testEngine()
	row := tradeRow("IBM", models.ActionCloseCC)
	row.OptionTradePrice.Set(1.25)

	basis := e.resolveTickerBasis("IBM", builderWith(row), PriorLedger{})

	if basis.action != models.ActionUnmatchedCloseCC {
		t.Errorf("action = %q, want UNMATCHED CLOSE CC", basis.action)
	}
	if !basis.tradePrice.Valid || basis.tradePrice.Float64 != 0 {
		t.Errorf("trade price = %+v, want valid zero", basis.tradePrice)
	}
	if !basis.legPrice.Valid || basis.legPrice.Float64 != 0 {
		t.Errorf("leg price = %+v, want valid zero", basis.legPrice)
	}
	if basis.optionTradePrice.Or(0) != 1.25 {
		t.Errorf("option trade price = %v, want today's 1.25", basis.optionTradePrice.Or(0))
	}
}

func TestResolveTickerBasis_TooManyTradeRows(t *testing.T) {
	e := testEngine()
	b := builderWith(
		tradeRow("IBM", models.ActionRolloverClose),
		models.LedgerRow{Key: models.RolloverKey("IBM"), Ticker: "IBM", Action: models.ActionRolloverWrite},
		models.LedgerRow{Key: "IBM**", Ticker: "IBM", Action: models.ActionSellCC},
	)

	basis := e.resolveTickerBasis("IBM", b, PriorLedger{})

	if basis.action != models.ActionError {
		t.Errorf("action = %q, want ERROR", basis.action)
	}
	if basis.tradePrice.Or(0) != models.BasisAmbiguous {
		t.Errorf("trade price = %v, want %v", basis.tradePrice.Or(0), models.BasisAmbiguous)
	}
	if basis.legPrice.Or(0) != models.BasisAmbiguous {
		t.Errorf("leg price = %v, want %v", basis.legPrice.Or(0), models.BasisAmbiguous)
	}
}

func TestResolveTickerBasis_TooManyPriorRows(t *testing.T) {
	e := testEngine()
	priorRow := models.LedgerRow{Ticker: "IBM", Key: "IBM"}
	priorRow.TradePrice.Set(140.00)
	prior := PriorLedger{"IBM": {priorRow, priorRow, priorRow}}

	basis := e.resolveTickerBasis("IBM", NewRowBuilder(), prior)

	if basis.action != models.ActionObserve {
		t.Errorf("action = %q, want OBSERVE", basis.action)
	}
	if basis.tradePrice.Or(0) != models.BasisAmbiguous {
		t.Errorf("trade price = %v, want %v", basis.tradePrice.Or(0), models.BasisAmbiguous)
	}
	if basis.legPrice.Or(0) != models.BasisAmbiguous {
		t.Errorf("leg price = %v, want %v", basis.legPrice.Or(0), models.BasisAmbiguous)
	}
}

func TestResolveTickerBasis_WriteAgainstAmbiguousHistory(t *testing.T) {
	e := testEngine()
	priorRow := models.LedgerRow{Ticker: "IBM", Key: "IBM"}
	priorRow.TradePrice.Set(140.00)
	prior := PriorLedger{"IBM": {priorRow, priorRow, priorRow}}

	for _, action := range []string{models.ActionSellCC, models.ActionCloseCC} {
		t.Run(action, func(t *testing.T) {
			row := tradeRow("IBM", action)
			row.OptionTradePrice.Set(3.50)

			basis := e.resolveTickerBasis("IBM", builderWith(row), prior)

			if basis.action != models.ActionError {
				t.Errorf("action = %q, want ERROR", basis.action)
			}
			if basis.tradePrice.Or(0) != models.BasisAmbiguous {
				t.Errorf("trade price = %v, want %v", basis.tradePrice.Or(0), models.BasisAmbiguous)
			}
		})
	}
}

func TestResolveTickerBasis_NakedCallWarning(t *testing.T) {
	var logs bytes.Buffer
	e := testEngine()
	e.logger = log.New(&logs, "", 0)

	priorRow := models.LedgerRow{Ticker: "IBM", Key: "IBM"}
	priorRow.TradePrice.Set(140.00)
	priorRow.OptionTradePrice.Set(2.00)
	prior := PriorLedger{"IBM": {priorRow}}

	row := tradeRow("IBM", string(models.SideSld))
	row.LegPrice.Set(155.00)

	basis := e.resolveTickerBasis("IBM", builderWith(row), prior)

	if basis.tradePrice.Or(0) != 140.00 {
		t.Errorf("trade price = %v, want yesterday's 140.00", basis.tradePrice.Or(0))
	}
	if basis.legPrice.Or(0) != 155.00 {
		t.Errorf("leg price = %v, want today's sale 155.00", basis.legPrice.Or(0))
	}
	if basis.optionTradePrice.Or(0) != 2.00 {
		t.Errorf("option trade price = %v, want yesterday's 2.00", basis.optionTradePrice.Or(0))
	}
	if !strings.Contains(logs.String(), "naked call") {
		t.Errorf("expected a naked-call warning, logs: %q", logs.String())
	}
}
