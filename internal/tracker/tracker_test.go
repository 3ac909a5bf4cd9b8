package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-scanner/internal/config"
	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/models"
	"spread-scanner/internal/store"
)

// memStore is an in-memory PositionStore for lifecycle tests.
type memStore struct {
	mu        sync.Mutex
	saved     map[string]models.Position
	archived  map[string]models.Position
	saveCalls int
}

func newMemStore() *memStore {
	return &memStore{saved: map[string]models.Position{}, archived: map[string]models.Position{}}
}

func (s *memStore) SavePosition(_ context.Context, pos *models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved[pos.ID] = *pos
	s.saveCalls++
	return nil
}

func (s *memStore) ArchivePosition(_ context.Context, pos *models.Position) error {
	if !pos.State.Closed() {
		return scanerrors.NewTransitionError(pos.ID, string(pos.State), "archive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived[pos.ID] = *pos
	delete(s.saved, pos.ID)
	return nil
}

func (s *memStore) GetPositions(_ context.Context, filter store.PositionFilter) ([]models.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Position
	for _, pos := range s.saved {
		if filter.State == "" || string(pos.State) == filter.State {
			out = append(out, pos)
		}
	}
	return out, nil
}

func testClock() time.Time {
	return time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC)
}

// testSignal carries a 5-wide put credit spread with a 3.00 credit: max
// profit 3.00/share, max loss 2.00/share.
func testSignal() models.Signal {
	expiry := testClock().Add(35 * 24 * time.Hour)
	return models.Signal{
		ID:     "sig-1",
		Symbol: "JPM",
		Spread: models.Spread{
			Kind:  models.SpreadPut,
			Short: models.OptionContract{Type: models.OptionPut, Strike: 95, Expiry: expiry, Delta: -0.16},
			Long:  models.OptionContract{Type: models.OptionPut, Strike: 90, Expiry: expiry},
			Net:   3.0,
			DTE:   35,
		},
		POP:       0.84,
		EVPercent: 0.40,
	}
}

func trackerConfig() config.RiskConfig {
	return config.RiskConfig{
		StopLossMultiple:   2.0,
		MaxPositions:       15,
		MaxSectorPositions: 3,
	}
}

func newTestTracker(st store.PositionStore) *Tracker {
	return New(st, zerolog.Nop(), trackerConfig(), testClock)
}

func TestOpenDerivesExitLevels(t *testing.T) {
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	assert.Equal(t, models.PositionOpened, pos.State)
	// 50% of the 3.00 max profit, per contract.
	assert.Equal(t, 150.0, pos.TargetProfit)
	// 2x the 2.00 max loss, per contract.
	assert.Equal(t, 400.0, pos.StopLoss)
	assert.Equal(t, testClock(), pos.OpenedAt)

	got, ok := tr.Get(pos.ID)
	assert.True(t, ok)
	assert.Equal(t, pos.ID, got.ID)
}

func TestMarkToMarketProfitTarget(t *testing.T) {
	st := newMemStore()
	tr := newTestTracker(st)
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	state, err := tr.MarkToMarket(context.Background(), pos.ID, 160.0, 20)
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosedProfit, state)

	// Closed positions leave the open set and land in the archive.
	_, ok := tr.Get(pos.ID)
	assert.False(t, ok)
	archived := st.archived[pos.ID]
	assert.Equal(t, models.PositionClosedProfit, archived.State)
	assert.Equal(t, 160.0, archived.RealizedPnL)
	assert.False(t, archived.ClosedAt.IsZero())
}

func TestMarkToMarketStopLoss(t *testing.T) {
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	state, err := tr.MarkToMarket(context.Background(), pos.ID, -400.0, 20)
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosedStopLoss, state)
}

func TestMarkToMarketExpiry(t *testing.T) {
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	state, err := tr.MarkToMarket(context.Background(), pos.ID, 40.0, 0)
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosedExpired, state)
}

func TestMarkToMarketStaysOpen(t *testing.T) {
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	state, err := tr.MarkToMarket(context.Background(), pos.ID, 75.0, 20)
	require.NoError(t, err)
	assert.Equal(t, models.PositionOpened, state)

	got, _ := tr.Get(pos.ID)
	assert.Equal(t, 75.0, got.UnrealizedPnL)
}

func TestMarkToMarketExitPrecedence(t *testing.T) {
	// Profit target applies before the expiry check even at zero DTE.
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	state, err := tr.MarkToMarket(context.Background(), pos.ID, 200.0, 0)
	require.NoError(t, err)
	assert.Equal(t, models.PositionClosedProfit, state)
}

func TestClosedPositionIsImmutable(t *testing.T) {
	tr := newTestTracker(newMemStore())
	pos, err := tr.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	_, err = tr.MarkToMarket(context.Background(), pos.ID, 160.0, 20)
	require.NoError(t, err)

	// A closed position cannot be marked again.
	_, err = tr.MarkToMarket(context.Background(), pos.ID, -500.0, 20)
	assert.ErrorIs(t, err, scanerrors.ErrNotFound)
}

func TestMarkToMarketUnknownPosition(t *testing.T) {
	tr := newTestTracker(newMemStore())
	_, err := tr.MarkToMarket(context.Background(), "nope", 0, 20)
	assert.ErrorIs(t, err, scanerrors.ErrNotFound)
}

func TestOpenRejectsAtPositionCap(t *testing.T) {
	cfg := trackerConfig()
	cfg.MaxPositions = 2
	cfg.MaxSectorPositions = 5
	tr := New(newMemStore(), zerolog.Nop(), cfg, testClock)

	for i := 0; i < 2; i++ {
		sig := testSignal()
		sig.ID = sig.ID + string(rune('a'+i))
		_, err := tr.Open(context.Background(), sig, 3.0)
		require.NoError(t, err)
	}

	_, err := tr.Open(context.Background(), testSignal(), 3.0)
	assert.ErrorIs(t, err, scanerrors.ErrPortfolioLimit)
	assert.Len(t, tr.OpenPositions(), 2)
}

func TestOpenRejectsAtSectorCap(t *testing.T) {
	tr := newTestTracker(newMemStore())

	financial := testSignal()
	financial.Sector = models.SectorFinancials
	for i := 0; i < 3; i++ {
		_, err := tr.Open(context.Background(), financial, 3.0)
		require.NoError(t, err)
	}

	// Fourth Financials position breaches the per-sector cap; a different
	// sector is still admitted.
	_, err := tr.Open(context.Background(), financial, 3.0)
	assert.ErrorIs(t, err, scanerrors.ErrPortfolioLimit)

	utility := testSignal()
	utility.Sector = models.SectorUtilities
	_, err = tr.Open(context.Background(), utility, 3.0)
	require.NoError(t, err)
	assert.Len(t, tr.OpenPositions(), 4)
}

func TestRestoreLoadsOpenPositions(t *testing.T) {
	st := newMemStore()
	first := newTestTracker(st)
	pos, err := first.Open(context.Background(), testSignal(), 3.0)
	require.NoError(t, err)

	second := newTestTracker(st)
	require.NoError(t, second.Restore(context.Background()))

	restored, ok := second.Get(pos.ID)
	require.True(t, ok)
	assert.Equal(t, models.PositionOpened, restored.State)
	assert.Len(t, second.OpenPositions(), 1)
}
