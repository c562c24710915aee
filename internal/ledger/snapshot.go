package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mkelleher/buywrite/internal/models"
)

// ErrNoSnapshot is returned when no fill snapshot exists for the requested date.
var ErrNoSnapshot = errors.New("no fill snapshot for date")

// SnapshotStore persists the raw fills of each live run so a recovery run can
// replay a day whose trades were fetched but never reconciled.
type SnapshotStore struct {
	dir string
}

// NewSnapshotStore creates the snapshot directory if needed.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	return &SnapshotStore{dir: dir}, nil
}

// Path returns the snapshot file for a YYYY-MM-DD date.
func (s *SnapshotStore) Path(date string) string {
	return filepath.Join(s.dir, "trades-"+date+".json")
}

// SaveFills writes the day's raw trades atomically.
func (s *SnapshotStore) SaveFills(date string, trades []models.Trade) error {
	data, err := json.MarshalIndent(trades, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling fill snapshot: %w", err)
	}

	path := s.Path(date)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil { // #nosec G306 -- snapshot is operator-readable data
		return fmt.Errorf("writing fill snapshot: %w", err)
	}
	return os.Rename(tmpFile, path)
}

// LoadFills reads a previously saved day's trades.
func (s *SnapshotStore) LoadFills(date string) ([]models.Trade, error) {
	data, err := os.ReadFile(s.Path(date)) // #nosec G304 -- path is built from the configured snapshot dir
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, date)
		}
		return nil, fmt.Errorf("reading fill snapshot: %w", err)
	}

	var trades []models.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		return nil, fmt.Errorf("parsing fill snapshot: %w", err)
	}
	return trades, nil
}
