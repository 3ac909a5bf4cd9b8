package scanner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"spread-scanner/internal/config"
	"spread-scanner/internal/models"
)

// contractMultiplier converts per-share spread economics into dollars.
const contractMultiplier = 100

// RiskEngine is Layer 4: it converts surviving (instrument, spread) pairs
// into scored Signals and applies the expected-value threshold. Signals are
// created here and nowhere else.
type RiskEngine struct {
	cfg   config.RiskConfig
	clock func() time.Time
}

// NewRiskEngine creates the Layer 4 engine.
func NewRiskEngine(cfg config.RiskConfig, clock func() time.Time) *RiskEngine {
	if clock == nil {
		clock = time.Now
	}
	return &RiskEngine{cfg: cfg, clock: clock}
}

// POP returns the delta-based probability-of-profit approximation for a
// spread: 1 - |short leg delta|.
func POP(s models.Spread) float64 {
	return 1 - math.Abs(s.Short.Delta)
}

// ExpectedValue returns the expected value of the spread in premium terms
// and as a fraction of capital at risk:
// EV = POP*maxProfit - (1-POP)*maxLoss, EV% = EV/maxLoss.
func ExpectedValue(s models.Spread) (ev, evPercent float64) {
	pop := POP(s)
	maxProfit, maxLoss := s.MaxProfit(), s.MaxLoss()
	ev = pop*maxProfit - (1-pop)*maxLoss
	if maxLoss > 0 {
		evPercent = ev / maxLoss
	}
	return ev, evPercent
}

// CapitalAtRisk returns the dollars one contract of the spread puts at
// risk: max loss per share times the contract multiplier.
func CapitalAtRisk(s models.Spread) float64 {
	return s.MaxLoss() * contractMultiplier
}

// Evaluate scores a single candidate against the expected-value floor and
// the per-position capital budget. An empty failure list means the signal
// passed.
func (e *RiskEngine) Evaluate(inst models.Instrument, spread models.Spread, trigger models.TriggerState) (models.Signal, []string) {
	_, evPercent := ExpectedValue(spread)
	pop := POP(spread)

	var failures []string
	if evPercent < e.cfg.MinExpectedValue {
		failures = append(failures, fmt.Sprintf("expected value %.1f%% below %.1f%% floor", evPercent*100, e.cfg.MinExpectedValue*100))
	}
	if risk := CapitalAtRisk(spread); risk > e.MaxCapitalPerTrade() {
		failures = append(failures, fmt.Sprintf("capital at risk $%.0f exceeds $%.0f per-position budget", risk, e.MaxCapitalPerTrade()))
	}

	signal := models.Signal{
		ID:            uuid.NewString(),
		Symbol:        inst.Symbol,
		Sector:        inst.Fundamentals.Sector,
		Spread:        spread,
		POP:           pop,
		EVPercent:     evPercent,
		RiskReward:    spread.RiskReward(),
		PositionSize:  e.PositionSize(),
		TriggerSpread: trigger.Spread,
		EmittedAt:     e.clock(),
	}

	return signal, failures
}

// PositionSize returns the dollars allocated per trade: the smaller of the
// max-position and per-trade-risk fractions of the portfolio.
func (e *RiskEngine) PositionSize() float64 {
	byPosition := e.MaxCapitalPerTrade()
	byRisk := e.cfg.PortfolioSize * e.cfg.PerTradeRiskPct / 100
	return math.Min(byPosition, byRisk)
}

// MaxCapitalPerTrade returns the largest capital at risk a single position
// may carry, the max-position fraction of the portfolio.
func (e *RiskEngine) MaxCapitalPerTrade() float64 {
	return e.cfg.PortfolioSize * e.cfg.MaxPositionPct / 100
}

// ApplyPortfolioLimits admits ranked signals in order against the book's
// concentration limits: at most MaxPositions open positions in total and at
// most MaxSectorPositions per sector. Admitted signals count against both
// limits for the remainder of the walk. Kept signals are re-ranked 1..n;
// limits of zero are treated as unlimited.
func ApplyPortfolioLimits(ranked []models.Signal, open []models.Position, cfg config.RiskConfig) (kept, dropped []models.Signal) {
	total := len(open)
	bySector := make(map[models.Sector]int)
	for _, pos := range open {
		bySector[pos.Signal.Sector]++
	}

	for _, sig := range ranked {
		atCapacity := cfg.MaxPositions > 0 && total >= cfg.MaxPositions
		sectorFull := cfg.MaxSectorPositions > 0 && bySector[sig.Sector] >= cfg.MaxSectorPositions
		if atCapacity || sectorFull {
			dropped = append(dropped, sig)
			continue
		}
		sig.Rank = len(kept) + 1
		kept = append(kept, sig)
		total++
		bySector[sig.Sector]++
	}
	return kept, dropped
}

// Rank orders signals descending by EV%, ties broken by higher POP, then by
// DTE nearer the midpoint of the kind's target window, then by symbol so
// identical snapshots always yield the same sequence. Rank fields are
// assigned 1-based.
func Rank(signals []models.Signal) []models.Signal {
	out := make([]models.Signal, len(signals))
	copy(out, signals)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EVPercent != out[j].EVPercent {
			return out[i].EVPercent > out[j].EVPercent
		}
		if out[i].POP != out[j].POP {
			return out[i].POP > out[j].POP
		}
		di := dteMidpointDistance(out[i].Spread)
		dj := dteMidpointDistance(out[j].Spread)
		if di != dj {
			return di < dj
		}
		return out[i].Symbol < out[j].Symbol
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func dteMidpointDistance(s models.Spread) float64 {
	mid := float64(PutDTEMin+PutDTEMax) / 2
	if s.Kind == models.SpreadCall {
		mid = float64(CallDTEMin+CallDTEMax) / 2
	}
	return math.Abs(float64(s.DTE) - mid)
}
