package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mkelleher/buywrite/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithBaseURL("test-key", "ACC123", true, server.URL).
		WithLocation(time.UTC).
		WithClock(func() time.Time { return time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC) })
}

func TestGetAccountValue(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/ACC123/balances" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"balances": {"total_equity": 125000.50}}`)
	}))

	value, err := client.GetAccountValue(context.Background())
	if err != nil {
		t.Fatalf("GetAccountValue: %v", err)
	}
	if value != 125000.50 {
		t.Errorf("account value = %v, want 125000.50", value)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want Bearer test-key", gotAuth)
	}
}

func TestGetAccountValue_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid token", http.StatusUnauthorized)
	}))

	_, err := client.GetAccountValue(context.Background())
	if err == nil {
		t.Fatal("expected error for 401")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.Status)
	}
}

func TestGetPortfolio(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts/ACC123/positions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"positions": {"position": [
			{"symbol": "IBM", "cost_basis": 15000.00, "quantity": 100},
			{"symbol": "IBM260116C00150000", "cost_basis": -250.00, "quantity": -1}
		]}}`)
	})
	mux.HandleFunc("/markets/quotes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quotes": {"quote": [
			{"symbol": "IBM", "last": 155.00},
			{"symbol": "IBM260116C00150000", "last": 6.50}
		]}}`)
	})

	portfolio, err := newTestClient(t, mux).GetPortfolio(context.Background())
	if err != nil {
		t.Fatalf("GetPortfolio: %v", err)
	}
	if len(portfolio) != 2 {
		t.Fatalf("got %d positions, want 2", len(portfolio))
	}

	stock := portfolio[0]
	if stock.Contract.SecType != models.SecTypeStock || stock.Contract.Symbol != "IBM" {
		t.Errorf("stock contract = %+v", stock.Contract)
	}
	if stock.MarketValue != 15500.00 {
		t.Errorf("stock market value = %v, want 15500.00", stock.MarketValue)
	}
	if stock.AverageCost != 150.00 {
		t.Errorf("stock average cost = %v, want 150.00", stock.AverageCost)
	}
	if stock.UnrealizedPNL != 500.00 {
		t.Errorf("stock unrealized P/L = %v, want 500.00", stock.UnrealizedPNL)
	}

	option := portfolio[1]
	if option.Contract.SecType != models.SecTypeOption {
		t.Fatalf("option contract = %+v", option.Contract)
	}
	if option.Contract.Symbol != "IBM" || option.Contract.Strike != 150.0 || option.Contract.Expiration != "20260116" {
		t.Errorf("decoded option contract = %+v", option.Contract)
	}
	if option.Position != -1 {
		t.Errorf("option position = %v, want -1", option.Position)
	}
	if option.MarketValue != -650.00 {
		t.Errorf("option market value = %v, want -650.00 (1 contract short at 6.50)", option.MarketValue)
	}
}

func TestGetPortfolio_NullPositions(t *testing.T) {
	for _, body := range []string{`{"positions": null}`, `{"positions": "null"}`} {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		portfolio, err := client.GetPortfolio(context.Background())
		if err != nil {
			t.Fatalf("GetPortfolio with %s: %v", body, err)
		}
		if len(portfolio) != 0 {
			t.Errorf("portfolio for %s = %d positions, want 0", body, len(portfolio))
		}
	}
}

func TestGetFillsForToday(t *testing.T) {
	const (
		today     = "2026-01-05T15:30:00Z"
		yesterday = "2026-01-02T15:30:00Z"
	)

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"orders": {"order": [
			{"id": 1, "class": "combo", "symbol": "IBM", "status": "filled",
			 "transaction_date": %q,
			 "leg": [
				{"id": 2, "class": "equity", "symbol": "IBM", "side": "buy", "status": "filled",
				 "ratio": 100, "exec_quantity": 100, "avg_fill_price": 150.00,
				 "commission": 1.00, "transaction_date": %q},
				{"id": 3, "class": "option", "symbol": "IBM", "option_symbol": "IBM260116C00150000",
				 "side": "sell_to_open", "status": "filled", "ratio": 1, "exec_quantity": 1,
				 "avg_fill_price": 3.50, "commission": 0.65, "transaction_date": %q}
			 ]},
			{"id": 4, "class": "equity", "symbol": "MSFT", "side": "buy", "status": "filled",
			 "exec_quantity": 50, "avg_fill_price": 400.00, "transaction_date": %q},
			{"id": 5, "class": "equity", "symbol": "AAPL", "side": "buy", "status": "pending",
			 "exec_quantity": 0, "avg_fill_price": 0, "transaction_date": %q}
		]}}`, today, today, today, yesterday, today)
	}))

	trades, err := client.GetFillsForToday(context.Background())
	if err != nil {
		t.Fatalf("GetFillsForToday: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1 (yesterday's and pending orders excluded)", len(trades))
	}

	combo := trades[0]
	if !combo.IsCombo() {
		t.Fatalf("trade should be a combo: %+v", combo.Contract)
	}
	if len(combo.Legs) != 2 || len(combo.Fills) != 2 {
		t.Fatalf("combo has %d legs / %d fills, want 2 / 2", len(combo.Legs), len(combo.Fills))
	}
	if combo.Legs[0].Ratio != 100 || combo.Legs[0].Action != models.LegBuy {
		t.Errorf("stock leg = %+v, want ratio 100 BUY", combo.Legs[0])
	}
	if combo.Legs[1].Ratio != 1 || combo.Legs[1].Action != models.LegSell {
		t.Errorf("option leg = %+v, want ratio 1 SELL", combo.Legs[1])
	}

	stockFill := combo.Fills[0]
	if stockFill.Side != models.SideBot || stockFill.Shares != 100 || stockFill.Price != 150.00 {
		t.Errorf("stock fill = %+v", stockFill)
	}
	optionFill := combo.Fills[1]
	if optionFill.Side != models.SideSld {
		t.Errorf("sell_to_open should map to SLD, got %s", optionFill.Side)
	}
	if optionFill.Contract.SecType != models.SecTypeOption || optionFill.Contract.Strike != 150.0 {
		t.Errorf("option fill contract = %+v", optionFill.Contract)
	}
}

func TestGetFillsForToday_SingleOrderObject(t *testing.T) {
	const today = "2026-01-05T15:30:00Z"
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A lone order arrives as an object, not an array.
		fmt.Fprintf(w, `{"orders": {"order":
			{"id": 1, "class": "equity", "symbol": "IBM", "side": "sell", "status": "filled",
			 "exec_quantity": 100, "avg_fill_price": 151.00, "transaction_date": %q}}}`, today)
	}))

	trades, err := client.GetFillsForToday(context.Background())
	if err != nil {
		t.Fatalf("GetFillsForToday: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades, want 1", len(trades))
	}
	if trades[0].Fills[0].Side != models.SideSld {
		t.Errorf("side = %s, want SLD", trades[0].Fills[0].Side)
	}
}

func TestGetOptionDelta(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("expiration"); got != "2026-01-16" {
			t.Errorf("expiration param = %q, want 2026-01-16", got)
		}
		fmt.Fprint(w, `{"options": {"option": [
			{"symbol": "IBM260116C00150000", "option_type": "call", "strike": 150.0,
			 "greeks": {"delta": 0.42}},
			{"symbol": "IBM260116C00155000", "option_type": "call", "strike": 155.0},
			{"symbol": "IBM260116P00150000", "option_type": "put", "strike": 150.0,
			 "greeks": {"delta": -0.58}}
		]}}`)
	}))

	t.Run("model delta", func(t *testing.T) {
		delta, err := client.GetOptionDelta(context.Background(), "IBM", "20260116", 150.0)
		if err != nil {
			t.Fatalf("GetOptionDelta: %v", err)
		}
		if delta != 0.42 {
			t.Errorf("delta = %v, want 0.42", delta)
		}
	})

	t.Run("no greeks on contract", func(t *testing.T) {
		delta, err := client.GetOptionDelta(context.Background(), "IBM", "20260116", 155.0)
		if err != nil {
			t.Fatalf("GetOptionDelta: %v", err)
		}
		if delta != models.DeltaNoModel {
			t.Errorf("delta = %v, want %v", delta, models.DeltaNoModel)
		}
	})

	t.Run("strike not in chain", func(t *testing.T) {
		delta, err := client.GetOptionDelta(context.Background(), "IBM", "20260116", 160.0)
		if err != nil {
			t.Fatalf("GetOptionDelta: %v", err)
		}
		if delta != models.DeltaInvalidContract {
			t.Errorf("delta = %v, want %v", delta, models.DeltaInvalidContract)
		}
	})

	t.Run("bad expiration short-circuits", func(t *testing.T) {
		delta, err := client.GetOptionDelta(context.Background(), "IBM", "not-a-date", 150.0)
		if err != nil {
			t.Fatalf("GetOptionDelta: %v", err)
		}
		if delta != models.DeltaInvalidContract {
			t.Errorf("delta = %v, want %v", delta, models.DeltaInvalidContract)
		}
	})
}
