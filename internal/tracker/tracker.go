// Package tracker implements the position lifecycle state machine: a
// Signal accepted by the user becomes an Opened position, which closes
// exactly once as profit-taken, stopped out, or expired.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spread-scanner/internal/config"
	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/logging"
	"spread-scanner/internal/models"
	"spread-scanner/internal/store"
)

// Profit target as a share of max profit, per the exit rules.
const targetProfitShare = 0.5

// contractMultiplier converts per-share spread economics into dollars.
const contractMultiplier = 100

// Tracker manages open positions and archives closed ones. All transitions
// are one-way; a closed position is immutable thereafter.
type Tracker struct {
	store  store.PositionStore
	logger zerolog.Logger
	cfg    config.RiskConfig
	clock  func() time.Time

	mu   sync.Mutex
	open map[string]*models.Position
}

// New creates a tracker. A nil clock falls back to time.Now.
func New(st store.PositionStore, logger zerolog.Logger, cfg config.RiskConfig, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		store:  st,
		logger: logger,
		cfg:    cfg,
		clock:  clock,
		open:   make(map[string]*models.Position),
	}
}

// Open promotes an accepted Signal to an Opened position, deriving the
// profit target (50% of max profit) and the stop level (configured multiple
// of max loss) from the spread economics. Admission is refused when the
// book is at its position cap or the signal's sector is at its cap; limits
// of zero are treated as unlimited.
func (t *Tracker) Open(ctx context.Context, signal models.Signal, entryPrice float64) (*models.Position, error) {
	if err := t.admit(signal); err != nil {
		return nil, err
	}

	pos := &models.Position{
		ID:           uuid.NewString(),
		Signal:       signal,
		State:        models.PositionOpened,
		EntryPrice:   entryPrice,
		TargetProfit: signal.Spread.MaxProfit() * targetProfitShare * contractMultiplier,
		StopLoss:     signal.Spread.MaxLoss() * t.cfg.StopLossMultiple * contractMultiplier,
		OpenedAt:     t.clock(),
	}

	if t.store != nil {
		if err := t.store.SavePosition(ctx, pos); err != nil {
			return nil, scanerrors.Wrap(err, "saving opened position")
		}
	}

	t.mu.Lock()
	t.open[pos.ID] = pos
	t.mu.Unlock()

	logging.LogTransition(t.logger, pos.ID, string(models.PositionCandidate), string(pos.State), 0)
	return pos, nil
}

// admit checks the concentration limits against the current open set.
func (t *Tracker) admit(signal models.Signal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cfg.MaxPositions > 0 && len(t.open) >= t.cfg.MaxPositions {
		return scanerrors.Wrapf(scanerrors.ErrPortfolioLimit, "%d positions open", len(t.open))
	}
	if t.cfg.MaxSectorPositions > 0 {
		inSector := 0
		for _, pos := range t.open {
			if pos.Signal.Sector == signal.Sector {
				inSector++
			}
		}
		if inSector >= t.cfg.MaxSectorPositions {
			return scanerrors.Wrapf(scanerrors.ErrPortfolioLimit, "%d positions open in %s", inSector, signal.Sector)
		}
	}
	return nil
}

// MarkToMarket updates an open position with the current P&L in dollars and
// the remaining DTE, applying the exit rules in order: profit target, stop
// loss, expiry. Returns the resulting state.
func (t *Tracker) MarkToMarket(ctx context.Context, positionID string, pnl float64, dte int) (models.PositionState, error) {
	t.mu.Lock()
	pos, ok := t.open[positionID]
	t.mu.Unlock()
	if !ok {
		return "", scanerrors.Wrapf(scanerrors.ErrNotFound, "position %s", positionID)
	}
	if pos.State != models.PositionOpened {
		return pos.State, scanerrors.NewTransitionError(positionID, string(pos.State), "mark")
	}

	pos.UnrealizedPnL = pnl

	switch {
	case pnl >= pos.TargetProfit:
		err := t.close(ctx, pos, models.PositionClosedProfit, pnl)
		return pos.State, err
	case -pnl >= pos.StopLoss:
		err := t.close(ctx, pos, models.PositionClosedStopLoss, pnl)
		return pos.State, err
	case dte <= 0:
		err := t.close(ctx, pos, models.PositionClosedExpired, pnl)
		return pos.State, err
	}

	if t.store != nil {
		if err := t.store.SavePosition(ctx, pos); err != nil {
			return pos.State, scanerrors.Wrap(err, "updating position")
		}
	}
	return pos.State, nil
}

// close performs the one-way transition to a terminal state and archives
// the position.
func (t *Tracker) close(ctx context.Context, pos *models.Position, state models.PositionState, pnl float64) error {
	from := pos.State
	pos.State = state
	pos.RealizedPnL = pnl
	pos.UnrealizedPnL = 0
	pos.ClosedAt = t.clock()

	if t.store != nil {
		if err := t.store.ArchivePosition(ctx, pos); err != nil {
			return scanerrors.Wrap(err, "archiving closed position")
		}
	}

	t.mu.Lock()
	delete(t.open, pos.ID)
	t.mu.Unlock()

	logging.LogTransition(t.logger, pos.ID, string(from), string(state), pnl)
	return nil
}

// Get returns an open position by ID.
func (t *Tracker) Get(positionID string) (*models.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.open[positionID]
	return pos, ok
}

// OpenPositions returns a snapshot of all open positions.
func (t *Tracker) OpenPositions() []models.Position {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Position, 0, len(t.open))
	for _, pos := range t.open {
		out = append(out, *pos)
	}
	return out
}

// Restore loads previously opened positions from the store, typically at
// process start.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	positions, err := t.store.GetPositions(ctx, store.PositionFilter{State: string(models.PositionOpened)})
	if err != nil {
		return scanerrors.Wrap(err, "restoring open positions")
	}
	t.mu.Lock()
	for i := range positions {
		pos := positions[i]
		t.open[pos.ID] = &pos
	}
	t.mu.Unlock()
	return nil
}
