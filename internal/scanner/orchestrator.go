package scanner

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spread-scanner/internal/config"
	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/logging"
	"spread-scanner/internal/marketdata"
	"spread-scanner/internal/models"
)

// Outcome classifies what happened to one instrument during a cycle.
type Outcome string

const (
	OutcomePassed    Outcome = "passed"
	OutcomeLayer1    Outcome = "layer1"
	OutcomeLayer2    Outcome = "layer2"
	OutcomeLayer3    Outcome = "layer3"
	OutcomeLayer4    Outcome = "layer4"
	OutcomeDataError Outcome = "data_error"
)

// Diagnostic records the fate of one instrument: which layer eliminated it,
// or that it passed, or that its data could not be fetched.
type Diagnostic struct {
	Symbol  string
	Outcome Outcome
	Reason  string
}

// Result is the output of one scan cycle. NoTrigger distinguishes "the
// strategy is not live" from "the strategy is live but found nothing".
type Result struct {
	Trigger     models.TriggerState
	NoTrigger   bool
	Signals     []models.Signal
	Diagnostics []Diagnostic
	StartedAt   time.Time
	FinishedAt  time.Time
}

// quickModeLimit caps the universe in quick scan mode.
const quickModeLimit = 25

// Orchestrator drives one scan cycle: trigger barrier, then the universe
// streamed through Layers 1-4 by a fixed-size worker pool.
type Orchestrator struct {
	provider marketdata.Provider
	cfg      config.Config
	logger   zerolog.Logger
	clock    marketdata.Clock
	open     []models.Position
}

// NewOrchestrator creates a cycle orchestrator. The provider is expected to
// be the cached, rate-limited composite; the orchestrator adds only the
// per-request timeout.
func NewOrchestrator(provider marketdata.Provider, cfg config.Config, logger zerolog.Logger, clock marketdata.Clock) *Orchestrator {
	if clock == nil {
		clock = time.Now
	}
	return &Orchestrator{provider: provider, cfg: cfg, logger: logger, clock: clock}
}

// SetOpenPositions supplies the current book so the cycle's concentration
// limits count existing positions. Call before RunCycle.
func (o *Orchestrator) SetOpenPositions(positions []models.Position) {
	o.open = positions
}

// RunCycle executes one scan cycle over the given universe. Instrument-local
// data failures are recorded as eliminations and never abort the cycle; the
// cycle fails only on invalid configuration or a trigger computation error.
func (o *Orchestrator) RunCycle(ctx context.Context, universe []string) (*Result, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	result := &Result{StartedAt: o.clock()}

	monitor := NewTriggerMonitor(o.provider, o.cfg.Trigger, o.clock)
	trigger, err := monitor.Compute(ctx)
	if err != nil {
		return nil, scanerrors.NewCycleError("trigger", err)
	}
	result.Trigger = trigger

	o.logger.Info().
		Float64("spread", trigger.Spread).
		Bool("active", trigger.Active).
		Msg("Trigger computed")

	// Hard barrier: no layer work happens while the strategy is not live.
	if !trigger.Active {
		result.NoTrigger = true
		result.FinishedAt = o.clock()
		return result, nil
	}

	symbols := o.applyMode(universe)

	workChan := make(chan string, len(symbols))
	type symbolResult struct {
		diag    Diagnostic
		signals []models.Signal
	}
	resultChan := make(chan symbolResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Scan.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range workChan {
				select {
				case <-ctx.Done():
					return
				default:
					diag, signals := o.scanSymbol(ctx, symbol, trigger)
					resultChan <- symbolResult{diag: diag, signals: signals}
				}
			}
		}()
	}

	for _, symbol := range symbols {
		workChan <- symbol
	}
	close(workChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var signals []models.Signal
	for r := range resultChan {
		result.Diagnostics = append(result.Diagnostics, r.diag)
		signals = append(signals, r.signals...)
	}

	// Stable output independent of worker completion order.
	sort.Slice(result.Diagnostics, func(i, j int) bool {
		return result.Diagnostics[i].Symbol < result.Diagnostics[j].Symbol
	})
	kept, dropped := ApplyPortfolioLimits(Rank(signals), o.open, o.cfg.Risk)
	if len(dropped) > 0 {
		o.markPortfolioLimited(result, kept, dropped)
	}
	result.Signals = kept
	result.FinishedAt = o.clock()

	o.logger.Info().
		Int("scanned", len(symbols)).
		Int("signals", len(result.Signals)).
		Msg("Scan cycle complete")

	return result, nil
}

// applyMode narrows the universe according to the configured scan mode.
func (o *Orchestrator) applyMode(universe []string) []string {
	if o.cfg.Scan.Mode == config.ModeQuick && len(universe) > quickModeLimit {
		return universe[:quickModeLimit]
	}
	return universe
}

// scanSymbol pushes one instrument through Layers 1-4. Each traversal is
// independent of every other instrument's.
func (o *Orchestrator) scanSymbol(ctx context.Context, symbol string, trigger models.TriggerState) (Diagnostic, []models.Signal) {
	logger := logging.WithSymbol(o.logger, symbol)

	fundamentals, err := o.fetchFundamentals(ctx, symbol)
	if err != nil {
		return o.dataError(logger, symbol, err), nil
	}

	inst := models.Instrument{Symbol: symbol, Fundamentals: fundamentals, AsOf: o.clock()}

	layer1 := NewFundamentalsFilter(o.cfg.Fundamentals)
	if ok, failures := layer1.Evaluate(inst); !ok {
		logging.LogElimination(logger, symbol, string(OutcomeLayer1), failures[0])
		return Diagnostic{Symbol: symbol, Outcome: OutcomeLayer1, Reason: strings.Join(failures, "; ")}, nil
	}

	technicals, err := o.fetchQuote(ctx, symbol)
	if err != nil {
		return o.dataError(logger, symbol, err), nil
	}
	inst.Technicals = technicals

	layer2 := NewMeanReversionFilter(trigger)
	if ok, failures := layer2.Evaluate(inst); !ok {
		logging.LogElimination(logger, symbol, string(OutcomeLayer2), failures[0])
		return Diagnostic{Symbol: symbol, Outcome: OutcomeLayer2, Reason: strings.Join(failures, "; ")}, nil
	}

	chain, err := o.fetchChain(ctx, symbol)
	if err != nil {
		return o.dataError(logger, symbol, err), nil
	}

	layer3 := NewGreeksSelector(o.cfg.Scan.SpreadType, o.clock)
	candidates := layer3.Select(inst, chain)
	if len(candidates) == 0 {
		logging.LogElimination(logger, symbol, string(OutcomeLayer3), "no conforming spread")
		return Diagnostic{Symbol: symbol, Outcome: OutcomeLayer3, Reason: "no conforming spread"}, nil
	}

	layer4 := NewRiskEngine(o.cfg.Risk, o.clock)
	var signals []models.Signal
	var rejected []string
	for _, spread := range candidates {
		signal, failures := layer4.Evaluate(inst, spread, trigger)
		if len(failures) > 0 {
			rejected = append(rejected, string(spread.Kind)+": "+strings.Join(failures, ", "))
			continue
		}
		logging.LogSignal(logger, symbol, string(spread.Kind), signal.EVPercent, signal.POP)
		signals = append(signals, signal)
	}
	if len(signals) == 0 {
		reason := strings.Join(rejected, "; ")
		logging.LogElimination(logger, symbol, string(OutcomeLayer4), reason)
		return Diagnostic{Symbol: symbol, Outcome: OutcomeLayer4, Reason: reason}, nil
	}

	return Diagnostic{Symbol: symbol, Outcome: OutcomePassed}, signals
}

func (o *Orchestrator) fetchFundamentals(ctx context.Context, symbol string) (models.Fundamentals, error) {
	reqCtx, cancel := marketdata.Timeout(ctx, o.cfg.Data.RequestTimeout())
	defer cancel()
	return o.provider.FetchFundamentals(reqCtx, symbol)
}

func (o *Orchestrator) fetchQuote(ctx context.Context, symbol string) (models.Technicals, error) {
	reqCtx, cancel := marketdata.Timeout(ctx, o.cfg.Data.RequestTimeout())
	defer cancel()
	return o.provider.FetchQuote(reqCtx, symbol)
}

// fetchChain requests the expiry window for each configured spread kind.
func (o *Orchestrator) fetchChain(ctx context.Context, symbol string) ([]models.OptionContract, error) {
	var chain []models.OptionContract

	if o.cfg.Scan.SpreadType == config.SpreadTypePut || o.cfg.Scan.SpreadType == config.SpreadTypeBoth {
		reqCtx, cancel := marketdata.Timeout(ctx, o.cfg.Data.RequestTimeout())
		contracts, err := o.provider.FetchOptionChain(reqCtx, symbol, marketdata.ExpiryRange{MinDTE: PutDTEWindow[0], MaxDTE: PutDTEWindow[1]})
		cancel()
		if err != nil {
			return nil, err
		}
		chain = append(chain, contracts...)
	}

	if o.cfg.Scan.SpreadType == config.SpreadTypeCall || o.cfg.Scan.SpreadType == config.SpreadTypeBoth {
		reqCtx, cancel := marketdata.Timeout(ctx, o.cfg.Data.RequestTimeout())
		contracts, err := o.provider.FetchOptionChain(reqCtx, symbol, marketdata.ExpiryRange{MinDTE: CallDTEWindow[0], MaxDTE: CallDTEWindow[1]})
		cancel()
		if err != nil {
			return nil, err
		}
		chain = append(chain, contracts...)
	}

	return chain, nil
}

// markPortfolioLimited logs signals the concentration limits rejected and
// rewrites the diagnostic for any symbol whose every signal was dropped.
func (o *Orchestrator) markPortfolioLimited(result *Result, kept, dropped []models.Signal) {
	keptSymbols := make(map[string]bool, len(kept))
	for _, sig := range kept {
		keptSymbols[sig.Symbol] = true
	}

	limited := make(map[string]bool)
	for _, sig := range dropped {
		o.logger.Info().
			Str("symbol", sig.Symbol).
			Str("sector", string(sig.Sector)).
			Msg("Signal dropped by portfolio limits")
		if !keptSymbols[sig.Symbol] {
			limited[sig.Symbol] = true
		}
	}

	for i := range result.Diagnostics {
		d := &result.Diagnostics[i]
		if d.Outcome == OutcomePassed && limited[d.Symbol] {
			d.Outcome = OutcomeLayer4
			d.Reason = "portfolio concentration limit"
		}
	}
}

// dataError records an instrument-local fetch failure. Timeouts and
// provider failures eliminate the instrument; they never abort the cycle.
func (o *Orchestrator) dataError(logger zerolog.Logger, symbol string, err error) Diagnostic {
	logging.LogElimination(logger, symbol, string(OutcomeDataError), err.Error())
	return Diagnostic{Symbol: symbol, Outcome: OutcomeDataError, Reason: err.Error()}
}
