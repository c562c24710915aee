// Package retry wraps the execution gateway with bounded retries and jittered
// backoff for transient API failures.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"github.com/mkelleher/buywrite/internal/gateway"
	"github.com/mkelleher/buywrite/internal/models"
)

type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        2 * time.Minute,
}

// Client implements gateway.Gateway, retrying transient failures of the
// wrapped gateway.
type Client struct {
	gateway gateway.Gateway
	logger  *log.Logger
	config  Config
}

func NewClient(gw gateway.Gateway, logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	return &Client{
		gateway: gw,
		logger:  logger,
		config:  cfg,
	}
}

// GetFillsForToday implements gateway.Gateway.
func (c *Client) GetFillsForToday(ctx context.Context) ([]models.Trade, error) {
	return withRetry(ctx, c, "fills", func(ctx context.Context) ([]models.Trade, error) {
		return c.gateway.GetFillsForToday(ctx)
	})
}

// GetPortfolio implements gateway.Gateway.
func (c *Client) GetPortfolio(ctx context.Context) ([]models.PortfolioPosition, error) {
	return withRetry(ctx, c, "portfolio", func(ctx context.Context) ([]models.PortfolioPosition, error) {
		return c.gateway.GetPortfolio(ctx)
	})
}

// GetAccountValue implements gateway.Gateway.
func (c *Client) GetAccountValue(ctx context.Context) (float64, error) {
	return withRetry(ctx, c, "account value", func(ctx context.Context) (float64, error) {
		return c.gateway.GetAccountValue(ctx)
	})
}

// GetOptionDelta implements gateway.Gateway.
func (c *Client) GetOptionDelta(ctx context.Context, symbol, expiration string, strike float64) (float64, error) {
	return withRetry(ctx, c, "option delta", func(ctx context.Context) (float64, error) {
		return c.gateway.GetOptionDelta(ctx, symbol, expiration, strike)
	})
}

func withRetry[T any](
	ctx context.Context,
	c *Client,
	what string,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T

	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		select {
		case <-callCtx.Done():
			return zero, fmt.Errorf("%s timed out after %v: %w", what, c.config.Timeout, callCtx.Err())
		default:
		}

		if ctx.Err() != nil {
			return zero, fmt.Errorf("operation canceled: %w", ctx.Err())
		}

		result, err := fn(callCtx)
		if err == nil {
			return result, nil
		}

		lastErr = err
		c.logger.Printf("Fetching %s: attempt %d/%d failed: %v", what, attempt+1, c.config.MaxRetries+1, err)

		if c.isTransientError(err) && attempt < c.config.MaxRetries {
			c.logger.Printf("Transient error detected, retrying in %v", backoff)
			select {
			case <-time.After(backoff):
				backoff = c.calculateNextBackoff(backoff)
			case <-callCtx.Done():
				return zero, fmt.Errorf("%s timed out during backoff: %w", what, callCtx.Err())
			case <-ctx.Done():
				return zero, fmt.Errorf("operation canceled during backoff: %w", ctx.Err())
			}
		} else {
			break
		}
	}

	return zero, fmt.Errorf("failed to fetch %s after %d attempts: %w", what, c.config.MaxRetries+1, lastErr)
}

func (c *Client) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			log.Printf("Failed to generate jitter: %v", err)
		} else {
			jitter := time.Duration(jitterVal.Int64())
			backoff += jitter
		}
	}

	return backoff
}

func (c *Client) isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"server error",
		"rate limit",
		"429", // HTTP 429 Too Many Requests
		"502", // HTTP 502 Bad Gateway
		"503", // HTTP 503 Service Unavailable
		"504", // HTTP 504 Gateway Timeout
		"network",
		"dns",
		"tcp",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// Ensure Client implements gateway.Gateway
var _ gateway.Gateway = (*Client)(nil)
