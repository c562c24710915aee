package ledger

import (
	"context"
	"time"

	"github.com/mkelleher/buywrite/internal/models"
)

// MockStore implements Store in memory for testing
type MockStore struct {
	ledgers   map[string][]models.LedgerRow // keyed by date
	activity  []ActivityRecord
	loadError error
	saveError error
	nextSeq   int64
}

// NewMockStore creates a new mock ledger store for testing
func NewMockStore() *MockStore {
	return &MockStore{ledgers: make(map[string][]models.LedgerRow)}
}

// SetLedger seeds a prior ledger for a date.
func (m *MockStore) SetLedger(date string, rows []models.LedgerRow) {
	m.ledgers[date] = rows
}

// SetLoadError makes read operations fail.
func (m *MockStore) SetLoadError(err error) { m.loadError = err }

// SetSaveError makes write operations fail.
func (m *MockStore) SetSaveError(err error) { m.saveError = err }

// Activity returns everything appended so far, oldest first.
func (m *MockStore) Activity() []ActivityRecord { return m.activity }

// LoadPriorLedger implements Store.
func (m *MockStore) LoadPriorLedger(_ context.Context, asOf string) (map[string][]models.LedgerRow, error) {
	if m.loadError != nil {
		return nil, m.loadError
	}
	priorDate := ""
	for date := range m.ledgers {
		if date < asOf && date > priorDate {
			priorDate = date
		}
	}
	prior := make(map[string][]models.LedgerRow)
	for _, r := range m.ledgers[priorDate] {
		prior[r.Ticker] = append(prior[r.Ticker], r)
	}
	return prior, nil
}

// SaveLedger implements Store.
func (m *MockStore) SaveLedger(_ context.Context, date string, rows []models.LedgerRow) error {
	if m.saveError != nil {
		return m.saveError
	}
	saved := make([]models.LedgerRow, len(rows))
	copy(saved, rows)
	for i := range saved {
		saved[i].Date = date
	}
	m.ledgers[date] = saved
	return nil
}

// AppendActivity implements Store.
func (m *MockStore) AppendActivity(_ context.Context, runID string, rows []models.LedgerRow) error {
	if m.saveError != nil {
		return m.saveError
	}
	for _, r := range rows {
		m.nextSeq++
		m.activity = append(m.activity, ActivityRecord{
			Seq:        m.nextSeq,
			RunID:      runID,
			RecordedAt: time.Now().UTC(),
			Row:        r,
		})
	}
	return nil
}

// LatestLedger implements Store.
func (m *MockStore) LatestLedger(_ context.Context) (string, []models.LedgerRow, error) {
	if m.loadError != nil {
		return "", nil, m.loadError
	}
	latest := ""
	for date := range m.ledgers {
		if date > latest {
			latest = date
		}
	}
	return latest, m.ledgers[latest], nil
}

// RecentActivity implements Store.
func (m *MockStore) RecentActivity(_ context.Context, limit int) ([]ActivityRecord, error) {
	if m.loadError != nil {
		return nil, m.loadError
	}
	var results []ActivityRecord
	for i := len(m.activity) - 1; i >= 0 && len(results) < limit; i-- {
		results = append(results, m.activity[i])
	}
	return results, nil
}

// Close implements Store.
func (m *MockStore) Close() error { return nil }

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
