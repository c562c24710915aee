package recon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mkelleher/buywrite/internal/calendar"
	"github.com/mkelleher/buywrite/internal/gateway"
	"github.com/mkelleher/buywrite/internal/ledger"
	"github.com/mkelleher/buywrite/internal/models"
)

// Engine runs one reconciliation pass per invocation: trade rows first, then
// the annotated portfolio, then one append to the activity log and one
// ledger save. It is single-threaded over already-fetched inputs; the only
// blocking operations are the gateway and store boundary calls.
type Engine struct {
	store     ledger.Store
	snapshots *ledger.SnapshotStore
	gateway   gateway.Gateway
	cal       *calendar.Calendar
	logger    *log.Logger
	loc       *time.Location
	closeHour int
	now       func() time.Time
}

// Params configures an Engine. Store, Gateway, and Calendar are required.
type Params struct {
	Store     ledger.Store
	Snapshots *ledger.SnapshotStore
	Gateway   gateway.Gateway
	Calendar  *calendar.Calendar
	Logger    *log.Logger
	Location  *time.Location
	CloseHour int
	Now       func() time.Time
}

// New creates an Engine.
func New(p Params) (*Engine, error) {
	if p.Store == nil {
		return nil, errors.New("recon: store is required")
	}
	if p.Gateway == nil {
		return nil, errors.New("recon: gateway is required")
	}
	if p.Calendar == nil {
		return nil, errors.New("recon: calendar is required")
	}

	logger := p.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[recorder] ", log.LstdFlags)
	}
	loc := p.Location
	if loc == nil {
		var err error
		loc, err = time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.FixedZone("ET", -5*60*60)
		}
	}
	closeHour := p.CloseHour
	if closeHour == 0 {
		closeHour = 16
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		store:     p.Store,
		snapshots: p.Snapshots,
		gateway:   p.Gateway,
		cal:       p.Calendar,
		logger:    logger,
		loc:       loc,
		closeHour: closeHour,
		now:       now,
	}, nil
}

// Run executes one reconciliation. recoverFills replays the day's persisted
// fill snapshot instead of querying the gateway; the driver resolves a
// live-and-recover conflict in favor of live before calling here.
//
// It returns (false, nil) on non-trading days: a clean no-op, not an error.
// Only gateway and store I/O failures surface as errors; malformed trades
// and positions are absorbed into sentinel values and diagnostic labels.
func (e *Engine) Run(ctx context.Context, recoverFills bool) (bool, error) {
	now := e.now().In(e.loc)
	today := now.Format("2006-01-02")

	if !e.cal.IsTradingDay(now) {
		e.logger.Printf("Not a trading day, nothing to record: %s", today)
		return false, nil
	}

	runID := uuid.NewString()
	e.logger.Printf("Run %s starting for %s (recover=%t)", shortID(runID), today, recoverFills)

	accountValue, err := e.gateway.GetAccountValue(ctx)
	if err != nil {
		return false, fmt.Errorf("fetching account value: %w", err)
	}

	trades, err := e.loadTrades(ctx, today, recoverFills)
	if err != nil {
		return false, err
	}

	prior, err := e.store.LoadPriorLedger(ctx, today)
	if err != nil {
		return false, fmt.Errorf("loading prior ledger: %w", err)
	}

	builder := e.reconcileTrades(PriorLedger(prior), trades, accountValue)
	tradeRows := builder.Rows()

	portfolio, err := e.gateway.GetPortfolio(ctx)
	if err != nil {
		return false, fmt.Errorf("fetching portfolio: %w", err)
	}

	positionRows := e.annotatePortfolio(ctx, portfolio, builder, PriorLedger(prior), accountValue, now)

	// Trade rows first, then portfolio rows, appended exactly once per run.
	activity := make([]models.LedgerRow, 0, len(tradeRows)+len(positionRows))
	activity = append(activity, tradeRows...)
	activity = append(activity, positionRows...)
	if err := e.store.AppendActivity(ctx, runID, activity); err != nil {
		return false, fmt.Errorf("appending activity: %w", err)
	}

	if err := e.store.SaveLedger(ctx, today, positionRows); err != nil {
		return false, fmt.Errorf("saving ledger: %w", err)
	}

	e.logger.Printf("Run %s complete: %d trade rows, %d position rows",
		shortID(runID), len(tradeRows), len(positionRows))
	return true, nil
}

// loadTrades fetches today's trades live, or replays the persisted snapshot
// on a recovery run. Live fetches are snapshotted so the day stays
// recoverable if a later stage fails.
func (e *Engine) loadTrades(ctx context.Context, today string, recoverFills bool) ([]models.Trade, error) {
	if recoverFills {
		if e.snapshots == nil {
			return nil, errors.New("recovery requested but no snapshot store configured")
		}
		trades, err := e.snapshots.LoadFills(today)
		if err != nil {
			return nil, fmt.Errorf("recovering fills: %w", err)
		}
		e.logger.Printf("Recovered %d trades from snapshot for %s", len(trades), today)
		return trades, nil
	}

	trades, err := e.gateway.GetFillsForToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching fills: %w", err)
	}
	if len(trades) > 0 && e.snapshots != nil {
		if err := e.snapshots.SaveFills(today, trades); err != nil {
			e.logger.Printf("Warning: saving fill snapshot failed: %v", err)
		}
	}
	return trades, nil
}

// shortID returns a truncated ID string, safely handling IDs shorter than 8 characters
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
