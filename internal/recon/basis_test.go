package recon

import (
	"testing"

	"github.com/mkelleher/buywrite/internal/models"
)

func priorWith(rows ...models.LedgerRow) PriorLedger {
	prior := make(PriorLedger)
	for _, r := range rows {
		prior[r.Ticker] = append(prior[r.Ticker], r)
	}
	return prior
}

func priorRow(ticker string, tradePrice, legPrice, underlyingSize float64) models.LedgerRow {
	row := models.LedgerRow{Ticker: ticker, Key: ticker}
	row.TradePrice.Set(tradePrice)
	row.LegPrice.Set(legPrice)
	row.UnderlyingSize.Set(underlyingSize)
	return row
}

func TestResolveStockBasis_Buy(t *testing.T) {
	t.Run("new position uses execution price", func(t *testing.T) {
		basis := ResolveStockBasis(PriorLedger{}, "IBM", models.SideBot, 100, 150.00)
		if basis.Unmatched {
			t.Fatal("buy should never be unmatched")
		}
		if basis.TradePrice != 150.00 || basis.LegPrice != 150.00 {
			t.Errorf("basis = %+v, want 150.00/150.00", basis)
		}
	})

	t.Run("extending a position uses execution price", func(t *testing.T) {
		prior := priorWith(priorRow("IBM", 140.00, 141.00, 100))
		basis := ResolveStockBasis(prior, "IBM", models.SideBot, 50, 150.00)
		if basis.TradePrice != 150.00 {
			t.Errorf("trade price = %v, want today's 150.00", basis.TradePrice)
		}
	})

	t.Run("covering a short carries yesterday's basis", func(t *testing.T) {
		prior := priorWith(priorRow("IBM", 140.00, 141.00, -100))
		basis := ResolveStockBasis(prior, "IBM", models.SideBot, 100, 150.00)
		if basis.TradePrice != 140.00 || basis.LegPrice != 141.00 {
			t.Errorf("basis = %+v, want carried 140.00/141.00", basis)
		}
	})
}

func TestResolveStockBasis_Sell(t *testing.T) {
	t.Run("with prior position carries basis", func(t *testing.T) {
		prior := priorWith(priorRow("IBM", 140.00, 141.00, 100))
		basis := ResolveStockBasis(prior, "IBM", models.SideSld, -100, 150.00)
		if basis.Unmatched {
			t.Fatal("sale with prior position should match")
		}
		if basis.TradePrice != 140.00 || basis.LegPrice != 141.00 {
			t.Errorf("basis = %+v, want carried 140.00/141.00", basis)
		}
	})

	t.Run("without prior position is unmatched", func(t *testing.T) {
		basis := ResolveStockBasis(PriorLedger{}, "IBM", models.SideSld, -100, 150.00)
		if !basis.Unmatched {
			t.Fatal("sale with no prior position should be unmatched")
		}
		if basis.TradePrice != 0 || basis.LegPrice != 0 {
			t.Errorf("unmatched basis = %+v, want zeros", basis)
		}
	})

	t.Run("null prior columns fall back to execution price", func(t *testing.T) {
		row := models.LedgerRow{Ticker: "IBM", Key: "IBM"}
		row.UnderlyingSize.Set(100)
		prior := priorWith(row)
		basis := ResolveStockBasis(prior, "IBM", models.SideSld, -100, 150.00)
		if basis.TradePrice != 150.00 || basis.LegPrice != 150.00 {
			t.Errorf("basis = %+v, want fallback 150.00/150.00", basis)
		}
	})
}

func TestPriorLedgerMaxColumns(t *testing.T) {
	// After a rollover day the ticker holds two rows; the surviving write
	// leg's values win via max.
	closeRow := models.LedgerRow{Ticker: "IBM", Key: "IBM"}
	closeRow.TradePrice.Set(140.00)
	closeRow.OptionTradePrice.Set(2.00)

	writeRow := models.LedgerRow{Ticker: "IBM", Key: models.RolloverKey("IBM")}
	writeRow.TradePrice.Set(140.00)
	writeRow.OptionTradePrice.Set(3.25)

	prior := PriorLedger{"IBM": {closeRow, writeRow}}

	if got, ok := prior.MaxOptionTradePrice("IBM"); !ok || got != 3.25 {
		t.Errorf("MaxOptionTradePrice = %v, %v; want 3.25, true", got, ok)
	}
	if got, ok := prior.MaxTradePrice("IBM"); !ok || got != 140.00 {
		t.Errorf("MaxTradePrice = %v, %v; want 140.00, true", got, ok)
	}
	if _, ok := prior.MaxLegPrice("IBM"); ok {
		t.Error("MaxLegPrice over all-null column should report not found")
	}
	if _, ok := prior.MaxTradePrice("MSFT"); ok {
		t.Error("unknown ticker should report not found")
	}
}

func TestPriorLedgerSingle(t *testing.T) {
	one := priorWith(priorRow("IBM", 140.00, 141.00, 100))
	if _, ok := one.Single("IBM"); !ok {
		t.Error("Single should find the only row")
	}

	two := PriorLedger{"IBM": {priorRow("IBM", 1, 1, 1), priorRow("IBM", 2, 2, 2)}}
	if _, ok := two.Single("IBM"); ok {
		t.Error("Single should reject a two-row ticker")
	}
	if _, ok := one.Single("MSFT"); ok {
		t.Error("Single should reject an absent ticker")
	}
}
