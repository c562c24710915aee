package retry

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/mkelleher/buywrite/internal/gateway"
	"github.com/mkelleher/buywrite/internal/models"
)

// scriptedGateway fails a fixed number of times before succeeding.
type scriptedGateway struct {
	gateway.MockGateway
	failures int
	failErr  error
	calls    int
}

func (s *scriptedGateway) GetAccountValue(ctx context.Context) (float64, error) {
	s.calls++
	if s.calls <= s.failures {
		return 0, s.failErr
	}
	return s.AccountValue, nil
}

func makeClient(t *testing.T, gw gateway.Gateway, cfg Config) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	return NewClient(gw, logger, cfg), &buf
}

func fastConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Timeout:        time.Second,
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	gw := &scriptedGateway{failures: 2, failErr: errors.New("connection refused")}
	gw.AccountValue = 50000

	client, logs := makeClient(t, gw, fastConfig())
	value, err := client.GetAccountValue(context.Background())
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if value != 50000 {
		t.Errorf("account value = %v, want 50000", value)
	}
	if gw.calls != 3 {
		t.Errorf("gateway called %d times, want 3", gw.calls)
	}
	if !strings.Contains(logs.String(), "retrying") {
		t.Errorf("expected retry log lines, got: %s", logs.String())
	}
}

func TestRetry_PermanentErrorNoRetry(t *testing.T) {
	gw := &scriptedGateway{failures: 10, failErr: errors.New("invalid credentials")}

	client, _ := makeClient(t, gw, fastConfig())
	_, err := client.GetAccountValue(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if gw.calls != 1 {
		t.Errorf("permanent error should not retry, gateway called %d times", gw.calls)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	gw := &scriptedGateway{failures: 10, failErr: errors.New("503 service unavailable")}

	client, _ := makeClient(t, gw, fastConfig())
	_, err := client.GetAccountValue(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if gw.calls != 4 {
		t.Errorf("gateway called %d times, want 4 (initial + 3 retries)", gw.calls)
	}
	if !strings.Contains(err.Error(), "after 4 attempts") {
		t.Errorf("error should report attempt count: %v", err)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	gw := &scriptedGateway{failures: 10, failErr: errors.New("timeout")}

	cfg := fastConfig()
	cfg.InitialBackoff = time.Minute // force cancellation during backoff

	client, _ := makeClient(t, gw, cfg)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.GetAccountValue(ctx)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if !strings.Contains(err.Error(), "canceled") {
		t.Errorf("error = %v, want cancellation", err)
	}
}

func TestRetry_DelegatesAllOperations(t *testing.T) {
	mock := gateway.NewMockGateway()
	mock.AccountValue = 1000
	mock.Trades = []models.Trade{{Contract: models.Contract{Symbol: "IBM", SecType: models.SecTypeStock}}}
	mock.Portfolio = []models.PortfolioPosition{{Contract: models.Contract{Symbol: "IBM", SecType: models.SecTypeStock}}}
	mock.SetDelta("IBM", "20260116", 150.0, 0.35)

	client, _ := makeClient(t, mock, fastConfig())
	ctx := context.Background()

	if v, err := client.GetAccountValue(ctx); err != nil || v != 1000 {
		t.Errorf("GetAccountValue = %v, %v", v, err)
	}
	if trades, err := client.GetFillsForToday(ctx); err != nil || len(trades) != 1 {
		t.Errorf("GetFillsForToday = %v, %v", trades, err)
	}
	if portfolio, err := client.GetPortfolio(ctx); err != nil || len(portfolio) != 1 {
		t.Errorf("GetPortfolio = %v, %v", portfolio, err)
	}
	if delta, err := client.GetOptionDelta(ctx, "IBM", "20260116", 150.0); err != nil || delta != 0.35 {
		t.Errorf("GetOptionDelta = %v, %v", delta, err)
	}
}

func TestIsTransientError(t *testing.T) {
	client, _ := makeClient(t, gateway.NewMockGateway(), fastConfig())

	tests := []struct {
		err       error
		transient bool
	}{
		{errors.New("request timeout"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("API error 429: rate limited"), true},
		{errors.New("502 bad gateway"), true},
		{errors.New("dns lookup failed"), true},
		{errors.New("invalid credentials"), false},
		{errors.New("account not found"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := client.isTransientError(tt.err); got != tt.transient {
			t.Errorf("isTransientError(%v) = %v, want %v", tt.err, got, tt.transient)
		}
	}
}

func TestCalculateNextBackoff(t *testing.T) {
	client, _ := makeClient(t, gateway.NewMockGateway(), Config{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     2 * time.Second,
		Timeout:        time.Minute,
	})

	next := client.calculateNextBackoff(time.Second)
	if next < 1500*time.Millisecond {
		t.Errorf("backoff %v should grow by at least 1.5x", next)
	}

	capped := client.calculateNextBackoff(10 * time.Second)
	// Jitter may add up to a quarter on top of the cap.
	if capped > 2*time.Second+500*time.Millisecond {
		t.Errorf("backoff %v exceeds cap plus jitter", capped)
	}
}
