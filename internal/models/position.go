package models

import "time"

// PositionState represents the lifecycle state of a tracked position.
type PositionState string

const (
	PositionCandidate      PositionState = "candidate"
	PositionOpened         PositionState = "opened"
	PositionClosedProfit   PositionState = "closed_profit"
	PositionClosedStopLoss PositionState = "closed_stop_loss"
	PositionClosedExpired  PositionState = "closed_expired"
)

// Closed reports whether the state is terminal.
func (s PositionState) Closed() bool {
	switch s {
	case PositionClosedProfit, PositionClosedStopLoss, PositionClosedExpired:
		return true
	}
	return false
}

// Position is a Signal promoted to an open trade. Mutated only by the
// lifecycle tracker; archived on close, never deleted.
type Position struct {
	ID     string
	Signal Signal
	State  PositionState

	EntryPrice   float64 // net credit or debit at entry, per share
	TargetProfit float64 // dollars; 50% of max profit
	StopLoss     float64 // dollars; configured multiple of max loss

	UnrealizedPnL float64
	RealizedPnL   float64

	OpenedAt time.Time
	ClosedAt time.Time
}
