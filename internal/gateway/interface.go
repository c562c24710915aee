// Package gateway consumes post-trade data from the brokerage execution API:
// today's fills, the end-of-day portfolio, account value, and per-contract
// option deltas. The recorder never places orders.
package gateway

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"

	"github.com/mkelleher/buywrite/internal/models"
)

// Gateway defines the post-trade surface of the execution API.
type Gateway interface {
	// GetFillsForToday returns today's executed trades, combo orders included.
	GetFillsForToday(ctx context.Context) ([]models.Trade, error)

	// GetPortfolio returns the current portfolio, one record per stock or
	// option leg. Combo parents are never reported here.
	GetPortfolio(ctx context.Context) ([]models.PortfolioPosition, error)

	// GetAccountValue returns the account's net liquidation value.
	GetAccountValue(ctx context.Context) (float64, error)

	// GetOptionDelta returns the model delta of the call identified by
	// symbol, expiration (YYYYMMDD), and strike. When the contract resolves
	// but no model greek is available it returns models.DeltaNoModel; when
	// the contract does not resolve to a tradable call it returns
	// models.DeltaInvalidContract. Both sentinels come with a nil error.
	GetOptionDelta(ctx context.Context, symbol, expiration string, strike float64) (float64, error)
}

// CircuitBreakerGateway wraps a Gateway with circuit breaker functionality
type CircuitBreakerGateway struct {
	gateway Gateway
	breaker *gobreaker.CircuitBreaker
}

// exec is a generic helper for circuit breaker wrapper methods
func execCircuitBreaker[T any](
	breaker *gobreaker.CircuitBreaker,
	gw Gateway,
	fn func(Gateway) (T, error),
) (T, error) {
	var zero T
	res, err := breaker.Execute(func() (interface{}, error) { return fn(gw) })
	if err != nil {
		return zero, err
	}
	if res == nil {
		return zero, nil
	}
	v, ok := res.(T)
	if !ok {
		return zero, errors.New("circuit breaker: type assertion failed")
	}
	return v, nil
}

// NewCircuitBreakerGateway creates a new CircuitBreakerGateway with sensible defaults
func NewCircuitBreakerGateway(gw Gateway) *CircuitBreakerGateway {
	return NewCircuitBreakerGatewayWithSettings(gw, CircuitBreakerSettings{
		MaxRequests:  3,                // Allow 3 requests when half-open
		Interval:     60 * time.Second, // Reset counts every minute
		Timeout:      30 * time.Second, // Open circuit for 30 seconds
		MinRequests:  5,                // Minimum requests before tripping
		FailureRatio: 0.6,              // Trip if 60% failure rate
	})
}

// CircuitBreakerSettings configures circuit breaker behavior
type CircuitBreakerSettings struct {
	MaxRequests  uint32        // Max requests when half-open
	Interval     time.Duration // Reset counts interval
	Timeout      time.Duration // Open circuit duration
	MinRequests  uint32        // Min requests before tripping
	FailureRatio float64       // Failure ratio threshold
}

// NewCircuitBreakerGatewayWithSettings creates a CircuitBreakerGateway with custom settings
func NewCircuitBreakerGatewayWithSettings(gw Gateway, settings CircuitBreakerSettings) *CircuitBreakerGateway {
	gbSettings := gobreaker.Settings{
		Name:        "GatewayCircuitBreaker",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 || counts.Requests < settings.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= settings.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s state changed from %s to %s", name, from, to)
		},
	}

	return &CircuitBreakerGateway{
		gateway: gw,
		breaker: gobreaker.NewCircuitBreaker(gbSettings),
	}
}

// GetFillsForToday wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) GetFillsForToday(ctx context.Context) ([]models.Trade, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]models.Trade, error) {
		return g.GetFillsForToday(ctx)
	})
}

// GetPortfolio wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) GetPortfolio(ctx context.Context) ([]models.PortfolioPosition, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) ([]models.PortfolioPosition, error) {
		return g.GetPortfolio(ctx)
	})
}

// GetAccountValue wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) GetAccountValue(ctx context.Context) (float64, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (float64, error) {
		return g.GetAccountValue(ctx)
	})
}

// GetOptionDelta wraps the underlying gateway call with circuit breaker
func (c *CircuitBreakerGateway) GetOptionDelta(ctx context.Context, symbol, expiration string, strike float64) (float64, error) {
	return execCircuitBreaker(c.breaker, c.gateway, func(g Gateway) (float64, error) {
		return g.GetOptionDelta(ctx, symbol, expiration, strike)
	})
}

// Ensure implementations satisfy Gateway
var (
	_ Gateway = (*Client)(nil)
	_ Gateway = (*CircuitBreakerGateway)(nil)
)
