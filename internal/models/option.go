package models

import (
	"math"
	"time"
)

// OptionType represents the type of an option contract.
type OptionType string

const (
	OptionPut  OptionType = "put"
	OptionCall OptionType = "call"
)

// SpreadKind represents the kind of vertical spread.
type SpreadKind string

const (
	SpreadPut  SpreadKind = "put_spread"  // short put credit spread
	SpreadCall SpreadKind = "call_spread" // call debit spread
)

// OptionContract is a single listed option on an underlying instrument.
type OptionContract struct {
	Symbol       string // underlying symbol
	Strike       float64
	Expiry       time.Time
	Type         OptionType
	Bid          float64
	Ask          float64
	Delta        float64
	Theta        float64
	ImpliedVol   float64 // decimal, 0.25 = 25%
	IVPercentile float64 // 0-100 rank against trailing history
	OpenInterest int64
}

// Mid returns the bid/ask midpoint premium.
func (c OptionContract) Mid() float64 {
	return (c.Bid + c.Ask) / 2
}

// Quotable reports whether the contract carries a usable two-sided quote.
func (c OptionContract) Quotable() bool {
	return c.Bid > 0 && c.Ask > 0 && c.Ask >= c.Bid
}

// DTE returns calendar days to expiry as of the given time.
func (c OptionContract) DTE(asOf time.Time) int {
	return int(c.Expiry.Sub(asOf).Hours() / 24)
}

// Spread is a two-leg vertical: both legs share underlying, type and expiry.
// For a put spread the short leg is the higher strike (credit received);
// for a call spread the long leg is the lower strike (debit paid).
type Spread struct {
	Kind  SpreadKind
	Short OptionContract
	Long  OptionContract

	// Net is the credit received (put spread) or debit paid (call spread),
	// always positive.
	Net float64
	DTE int
}

// Width returns the distance between the two strikes.
func (s Spread) Width() float64 {
	return math.Abs(s.Short.Strike - s.Long.Strike)
}

// MaxProfit returns the best-case outcome per share.
func (s Spread) MaxProfit() float64 {
	if s.Kind == SpreadPut {
		return s.Net
	}
	return s.Width() - s.Net
}

// MaxLoss returns the worst-case outcome per share. Always positive for a
// well-formed vertical.
func (s Spread) MaxLoss() float64 {
	if s.Kind == SpreadPut {
		return s.Width() - s.Net
	}
	return s.Net
}

// RiskReward returns max profit divided by max loss, or zero when max loss
// is not positive.
func (s Spread) RiskReward() float64 {
	loss := s.MaxLoss()
	if loss <= 0 {
		return 0
	}
	return s.MaxProfit() / loss
}

// Theta returns the net time decay of the position: short leg collected,
// long leg paid.
func (s Spread) Theta() float64 {
	return -s.Short.Theta + s.Long.Theta
}

// Valid reports whether the spread is a well-formed vertical: matching leg
// type and expiry, positive net premium and positive max loss.
func (s Spread) Valid() bool {
	if s.Short.Type != s.Long.Type || !s.Short.Expiry.Equal(s.Long.Expiry) {
		return false
	}
	return s.Net > 0 && s.MaxLoss() > 0 && s.Width() > 0
}
