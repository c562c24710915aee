package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mkelleher/buywrite/internal/models"
)

// SQLiteStore is the SQLite-backed ledger store.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if necessary) the ledger database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema migration: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const rowColumns = `date, key, ticker, time, action, price, trade_price, leg_price,
	strike, doe, option_price, option_trade_price, commission, option_size,
	underlying_size, position_bal, acct_bal, pl_underlying, pl_underlying_leg,
	pl_option, delta`

func rowArgs(r *models.LedgerRow) []any {
	return []any{
		r.Date, r.Key, r.Ticker, r.Time, r.Action, r.Price, r.TradePrice,
		r.LegPrice, r.Strike, r.DOE, r.OptionPrice, r.OptionTradePrice,
		r.Commission, r.OptionSize, r.UnderlyingSize, r.PositionBalance,
		r.AccountBalance, r.PLUnderlying, r.PLUnderlyingLeg, r.PLOption, r.Delta,
	}
}

func scanRow(scan func(...any) error, r *models.LedgerRow) error {
	return scan(
		&r.Date, &r.Key, &r.Ticker, &r.Time, &r.Action, &r.Price, &r.TradePrice,
		&r.LegPrice, &r.Strike, &r.DOE, &r.OptionPrice, &r.OptionTradePrice,
		&r.Commission, &r.OptionSize, &r.UnderlyingSize, &r.PositionBalance,
		&r.AccountBalance, &r.PLUnderlying, &r.PLUnderlyingLeg, &r.PLOption,
		&r.Delta,
	)
}

// LoadPriorLedger implements Store.
func (s *SQLiteStore) LoadPriorLedger(ctx context.Context, asOf string) (map[string][]models.LedgerRow, error) {
	var priorDate sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM ledger WHERE date < ?`, asOf).Scan(&priorDate)
	if err != nil {
		return nil, fmt.Errorf("finding prior ledger date: %w", err)
	}
	if !priorDate.Valid {
		return map[string][]models.LedgerRow{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM ledger WHERE date = ? ORDER BY key`, priorDate.String)
	if err != nil {
		return nil, fmt.Errorf("loading prior ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	prior := make(map[string][]models.LedgerRow)
	for rows.Next() {
		var r models.LedgerRow
		if err := scanRow(rows.Scan, &r); err != nil {
			return nil, err
		}
		prior[r.Ticker] = append(prior[r.Ticker], r)
	}
	return prior, rows.Err()
}

// SaveLedger implements Store.
func (s *SQLiteStore) SaveLedger(ctx context.Context, date string, ledgerRows []models.LedgerRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ledger save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger WHERE date = ?`, date); err != nil {
		return fmt.Errorf("clearing ledger for %s: %w", date, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ledger (`+rowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing ledger insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range ledgerRows {
		r := ledgerRows[i]
		r.Date = date
		if _, err := stmt.ExecContext(ctx, rowArgs(&r)...); err != nil {
			return fmt.Errorf("inserting ledger row %s: %w", r.Key, err)
		}
	}

	return tx.Commit()
}

// AppendActivity implements Store.
func (s *SQLiteStore) AppendActivity(ctx context.Context, runID string, activityRows []models.LedgerRow) error {
	if len(activityRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning activity append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activity (run_id, recorded_at, `+rowColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing activity insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC()
	for i := range activityRows {
		args := append([]any{runID, now}, rowArgs(&activityRows[i])...)
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("appending activity row %s: %w", activityRows[i].Key, err)
		}
	}

	return tx.Commit()
}

// LatestLedger implements Store.
func (s *SQLiteStore) LatestLedger(ctx context.Context) (string, []models.LedgerRow, error) {
	var date sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(date) FROM ledger`).Scan(&date); err != nil {
		return "", nil, fmt.Errorf("finding latest ledger date: %w", err)
	}
	if !date.Valid {
		return "", nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rowColumns+` FROM ledger WHERE date = ? ORDER BY key`, date.String)
	if err != nil {
		return "", nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []models.LedgerRow
	for rows.Next() {
		var r models.LedgerRow
		if err := scanRow(rows.Scan, &r); err != nil {
			return "", nil, err
		}
		result = append(result, r)
	}
	return date.String, result, rows.Err()
}

// RecentActivity implements Store.
func (s *SQLiteStore) RecentActivity(ctx context.Context, limit int) ([]ActivityRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, run_id, recorded_at, `+rowColumns+`
		FROM activity ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []ActivityRecord
	for rows.Next() {
		var rec ActivityRecord
		scan := func(dest ...any) error {
			args := append([]any{&rec.Seq, &rec.RunID, &rec.RecordedAt}, dest...)
			return rows.Scan(args...)
		}
		if err := scanRow(scan, &rec.Row); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}
