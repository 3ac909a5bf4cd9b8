package models

import "time"

// Signal is the pipeline output unit: one instrument paired with its best
// conforming spread, scored by the risk engine. Immutable once emitted.
type Signal struct {
	ID     string
	Symbol string
	Sector Sector
	Spread Spread

	POP          float64 // probability of profit, 0-1
	EVPercent    float64 // expected value as a fraction of capital at risk
	RiskReward   float64
	PositionSize float64 // dollars allocated
	Rank         int     // 1-based rank within the cycle, by EVPercent

	TriggerSpread float64 // index divergence at emission, percent
	EmittedAt     time.Time
}

// TriggerState is the macro gate recomputed at the start of every scan
// cycle and never mutated mid-cycle.
type TriggerState struct {
	Spread     float64 // equal-weight minus cap-weight return, percent
	Active     bool
	ComputedAt time.Time
}

// IndexSeries is a trailing series of daily closes for a reference index,
// oldest first. Only the trigger monitor reads index data.
type IndexSeries struct {
	IndexID string
	Closes  []float64
}

// IndexPair holds the two reference indices used to compute the trigger.
type IndexPair struct {
	EqualWeight IndexSeries
	CapWeight   IndexSeries
}
