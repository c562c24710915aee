// Package ledger persists the daily position ledger and the append-only
// activity log.
package ledger

import (
	"context"
	"time"

	"github.com/mkelleher/buywrite/internal/models"
)

// Store defines the contract for ledger persistence.
//
// The reconciliation engine is the single writer: it reads the prior ledger
// once at the start of a run and writes the new ledger and activity rows once
// at the end. Concurrent runs against the same store must be serialized
// externally.
type Store interface {
	// LoadPriorLedger returns the rows of the most recent ledger date
	// strictly before asOf (YYYY-MM-DD), keyed by ticker. A ticker maps to
	// more than one row only after a rollover day. Returns an empty map when
	// no prior ledger exists.
	LoadPriorLedger(ctx context.Context, asOf string) (map[string][]models.LedgerRow, error)

	// SaveLedger replaces the ledger for the given date. The saved set
	// supersedes the prior day's ledger for the next run.
	SaveLedger(ctx context.Context, date string, rows []models.LedgerRow) error

	// AppendActivity appends rows to the activity log under one run ID.
	// The log only grows; rows are never rewritten.
	AppendActivity(ctx context.Context, runID string, rows []models.LedgerRow) error

	// LatestLedger returns the most recent ledger date and its rows.
	LatestLedger(ctx context.Context) (string, []models.LedgerRow, error)

	// RecentActivity returns the newest activity records, newest first.
	RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error)

	Close() error
}

// ActivityRecord is one persisted activity log entry.
type ActivityRecord struct {
	Seq        int64            `json:"seq"`
	RunID      string           `json:"run_id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Row        models.LedgerRow `json:"row"`
}

// NewStore creates a new ledger store (currently SQLite-based).
func NewStore(path string) (Store, error) {
	return OpenSQLite(path)
}

// Ensure SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
