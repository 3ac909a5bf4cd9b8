// Package scanner implements the four-layer screening pipeline: the macro
// trigger gate, the fundamentals and mean-reversion filters, the Greeks
// spread selector and the expected-value engine, driven by the cycle
// orchestrator.
package scanner

import (
	"context"

	"spread-scanner/internal/analysis"
	"spread-scanner/internal/config"
	scanerrors "spread-scanner/internal/errors"
	"spread-scanner/internal/marketdata"
	"spread-scanner/internal/models"
)

// TriggerMonitor computes the equal-weight vs cap-weight divergence that
// gates the whole strategy. It is the only component that reads index data.
type TriggerMonitor struct {
	provider marketdata.Provider
	cfg      config.TriggerConfig
	clock    marketdata.Clock
}

// NewTriggerMonitor creates a trigger monitor.
func NewTriggerMonitor(provider marketdata.Provider, cfg config.TriggerConfig, clock marketdata.Clock) *TriggerMonitor {
	return &TriggerMonitor{provider: provider, cfg: cfg, clock: clock}
}

// Compute fetches both index series and recomputes the trigger state.
// Returns ErrInsufficientHistory (wrapped) when either series cannot fill
// the lookback window.
func (m *TriggerMonitor) Compute(ctx context.Context) (models.TriggerState, error) {
	equal, err := m.provider.FetchIndexSeries(ctx, m.cfg.EqualWeightIndex, m.cfg.LookbackDays)
	if err != nil {
		return models.TriggerState{}, scanerrors.Wrapf(err, "fetching %s series", m.cfg.EqualWeightIndex)
	}
	cap, err := m.provider.FetchIndexSeries(ctx, m.cfg.CapWeightIndex, m.cfg.LookbackDays)
	if err != nil {
		return models.TriggerState{}, scanerrors.Wrapf(err, "fetching %s series", m.cfg.CapWeightIndex)
	}

	pair := models.IndexPair{EqualWeight: equal, CapWeight: cap}
	spread, err := ComputeSpread(pair, m.cfg.LookbackDays)
	if err != nil {
		return models.TriggerState{}, err
	}

	return models.TriggerState{
		Spread:     spread,
		Active:     spread >= m.cfg.Threshold,
		ComputedAt: m.clock(),
	}, nil
}

// ComputeSpread returns the divergence between the two normalized index
// performances over the lookback window, in percentage points:
// pctChange(equalWeight) - pctChange(capWeight). Positive values mean the
// equal-weight index has outperformed.
func ComputeSpread(pair models.IndexPair, lookback int) (float64, error) {
	equalWindow, err := window(pair.EqualWeight, lookback)
	if err != nil {
		return 0, err
	}
	capWindow, err := window(pair.CapWeight, lookback)
	if err != nil {
		return 0, err
	}
	return analysis.PctChange(equalWindow) - analysis.PctChange(capWindow), nil
}

// window returns the trailing lookback+1 closes needed for a lookback-day
// return, or ErrInsufficientHistory when the series is too short.
func window(series models.IndexSeries, lookback int) ([]float64, error) {
	need := lookback + 1
	if len(series.Closes) < need {
		return nil, scanerrors.Wrapf(scanerrors.ErrInsufficientHistory,
			"index %s has %d closes, need %d", series.IndexID, len(series.Closes), need)
	}
	return series.Closes[len(series.Closes)-need:], nil
}
