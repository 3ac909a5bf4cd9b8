// Package models provides domain models for the screening pipeline.
package models

import "time"

// Sector represents a market sector classification.
type Sector string

const (
	SectorFinancials      Sector = "Financials"
	SectorHealthcare      Sector = "Healthcare"
	SectorConsumerStaples Sector = "Consumer Staples"
	SectorUtilities       Sector = "Utilities"
	SectorIndustrials     Sector = "Industrials"
)

// Fundamentals holds valuation and quality metrics for an instrument.
type Fundamentals struct {
	PERatio           float64
	MarketCap         float64 // dollars
	ROE               float64 // percent, e.g. 14.2
	DebtToEquity      float64
	BasketCorrelation float64 // trailing correlation to the mega-cap reference basket
	Sector            Sector
}

// Technicals holds the price-action snapshot used by the mean-reversion filter.
// Closes and Volumes are trailing daily series, oldest first, with the most
// recent bar last.
type Technicals struct {
	Price      float64
	Week52Low  float64
	Week52High float64
	Closes     []float64
	Volumes    []int64
}

// Instrument is an immutable per-cycle snapshot of a tradable equity.
type Instrument struct {
	Symbol       string
	Fundamentals Fundamentals
	Technicals   Technicals
	AsOf         time.Time
}

// CurrentVolume returns the most recent daily volume, or zero when the
// series is empty.
func (t Technicals) CurrentVolume() int64 {
	if len(t.Volumes) == 0 {
		return 0
	}
	return t.Volumes[len(t.Volumes)-1]
}

// AverageVolume returns the mean volume over the trailing period bars,
// excluding the current bar. Returns zero when history is too short.
func (t Technicals) AverageVolume(period int) float64 {
	n := len(t.Volumes)
	if period <= 0 || n < period+1 {
		return 0
	}
	var sum float64
	for i := n - period - 1; i < n-1; i++ {
		sum += float64(t.Volumes[i])
	}
	return sum / float64(period)
}

// DistanceFrom52WeekLow returns how far the current price sits above the
// 52-week low, in percent.
func (t Technicals) DistanceFrom52WeekLow() float64 {
	if t.Week52Low <= 0 {
		return 0
	}
	return (t.Price - t.Week52Low) / t.Week52Low * 100
}
