package gateway

import (
	"context"
	"fmt"

	"github.com/mkelleher/buywrite/internal/models"
)

// MockGateway implements Gateway for testing
type MockGateway struct {
	Trades       []models.Trade
	Portfolio    []models.PortfolioPosition
	AccountValue float64
	Deltas       map[string]float64

	FillsErr     error
	PortfolioErr error
	AccountErr   error
	DeltaErr     error

	FillsCalls int
}

// NewMockGateway creates a new mock gateway for testing
func NewMockGateway() *MockGateway {
	return &MockGateway{Deltas: make(map[string]float64)}
}

// DeltaKey builds the lookup key used by SetDelta and GetOptionDelta.
func DeltaKey(symbol, expiration string, strike float64) string {
	return fmt.Sprintf("%s|%s|%g", symbol, expiration, strike)
}

// SetDelta stubs the delta for one contract.
func (m *MockGateway) SetDelta(symbol, expiration string, strike, delta float64) {
	m.Deltas[DeltaKey(symbol, expiration, strike)] = delta
}

// GetFillsForToday implements Gateway.
func (m *MockGateway) GetFillsForToday(_ context.Context) ([]models.Trade, error) {
	m.FillsCalls++
	if m.FillsErr != nil {
		return nil, m.FillsErr
	}
	return m.Trades, nil
}

// GetPortfolio implements Gateway.
func (m *MockGateway) GetPortfolio(_ context.Context) ([]models.PortfolioPosition, error) {
	if m.PortfolioErr != nil {
		return nil, m.PortfolioErr
	}
	return m.Portfolio, nil
}

// GetAccountValue implements Gateway.
func (m *MockGateway) GetAccountValue(_ context.Context) (float64, error) {
	if m.AccountErr != nil {
		return 0, m.AccountErr
	}
	return m.AccountValue, nil
}

// GetOptionDelta implements Gateway.
func (m *MockGateway) GetOptionDelta(_ context.Context, symbol, expiration string, strike float64) (float64, error) {
	if m.DeltaErr != nil {
		return 0, m.DeltaErr
	}
	if delta, ok := m.Deltas[DeltaKey(symbol, expiration, strike)]; ok {
		return delta, nil
	}
	return models.DeltaInvalidContract, nil
}

// Ensure MockGateway implements Gateway
var _ Gateway = (*MockGateway)(nil)
