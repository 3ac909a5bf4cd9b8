package scanner

import (
	"fmt"

	"spread-scanner/internal/config"
	"spread-scanner/internal/models"
)

// Layer 1 screening bounds.
const (
	MinPERatio      = 8.0
	MaxPERatio      = 15.0
	MinMarketCap    = 10e9
	MinROE          = 12.0 // percent
	MaxDebtToEquity = 1.5
)

// FundamentalsFilter is Layer 1: a pure predicate over instrument
// fundamentals. It never mutates the snapshot, so two runs over the same
// snapshot produce the same surviving set.
type FundamentalsFilter struct {
	cfg config.FundamentalsConfig
}

// NewFundamentalsFilter creates the Layer 1 filter.
func NewFundamentalsFilter(cfg config.FundamentalsConfig) *FundamentalsFilter {
	return &FundamentalsFilter{cfg: cfg}
}

// Evaluate returns whether the instrument survives Layer 1, with a reason
// for every failed criterion.
func (f *FundamentalsFilter) Evaluate(inst models.Instrument) (bool, []string) {
	fund := inst.Fundamentals
	var failures []string

	if fund.PERatio < MinPERatio || fund.PERatio > MaxPERatio {
		failures = append(failures, fmt.Sprintf("P/E %.1f outside [%.0f, %.0f]", fund.PERatio, MinPERatio, MaxPERatio))
	}
	if fund.MarketCap < MinMarketCap {
		failures = append(failures, fmt.Sprintf("market cap $%.1fB below $%.0fB", fund.MarketCap/1e9, MinMarketCap/1e9))
	}
	if fund.ROE < MinROE {
		failures = append(failures, fmt.Sprintf("ROE %.1f%% below %.0f%%", fund.ROE, MinROE))
	}
	if fund.DebtToEquity > MaxDebtToEquity {
		failures = append(failures, fmt.Sprintf("D/E %.2f above %.1f", fund.DebtToEquity, MaxDebtToEquity))
	}
	if fund.BasketCorrelation > f.cfg.MaxCorrelation {
		failures = append(failures, fmt.Sprintf("basket correlation %.2f above %.2f", fund.BasketCorrelation, f.cfg.MaxCorrelation))
	}
	if len(f.cfg.AllowedSectors) > 0 && !f.sectorAllowed(fund.Sector) {
		failures = append(failures, fmt.Sprintf("sector %q not in allow-list", fund.Sector))
	}

	return len(failures) == 0, failures
}

func (f *FundamentalsFilter) sectorAllowed(sector models.Sector) bool {
	for _, s := range f.cfg.AllowedSectors {
		if models.Sector(s) == sector {
			return true
		}
	}
	return false
}
