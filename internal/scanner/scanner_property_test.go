package scanner

import (
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"spread-scanner/internal/config"
	"spread-scanner/internal/models"
)

// Property: every instrument the fundamentals filter accepts satisfies all
// screening bounds; every rejection carries at least one reason.
func TestProperty_FundamentalsFilterBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	filter := NewFundamentalsFilter(config.FundamentalsConfig{MaxCorrelation: -0.3})

	properties.Property("survivors satisfy every bound, rejections carry reasons", prop.ForAll(
		func(pe, mcap, roe, de, corr float64) bool {
			fund := models.Fundamentals{
				PERatio:           pe,
				MarketCap:         mcap,
				ROE:               roe,
				DebtToEquity:      de,
				BasketCorrelation: corr,
			}
			ok, failures := filter.Evaluate(models.Instrument{Fundamentals: fund})
			if ok {
				return pe >= MinPERatio && pe <= MaxPERatio &&
					mcap >= MinMarketCap && roe >= MinROE &&
					de <= MaxDebtToEquity && corr <= -0.3 &&
					len(failures) == 0
			}
			return len(failures) > 0
		},
		gen.Float64Range(0, 40),
		gen.Float64Range(1e9, 100e9),
		gen.Float64Range(-10, 40),
		gen.Float64Range(0, 4),
		gen.Float64Range(-1, 1),
	))

	properties.TestingRun(t)
}

// Property: the risk engine accepts a spread exactly when its expected value
// fraction clears the configured floor, and the emitted signal carries
// internally consistent economics.
func TestProperty_RiskEngineThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	engine := NewRiskEngine(riskConfig(), testClock)

	properties.Property("acceptance matches the expected-value floor", prop.ForAll(
		func(shortDelta, net float64, dte int) bool {
			s := putSpread(-shortDelta, net, dte)
			signal, failures := engine.Evaluate(riskInstrument("TEST"), s, activeTrigger())

			// Capital at risk tops out at $475 on a 5-wide, inside the
			// $2,500 budget, so acceptance is the EV floor alone.
			_, evPercent := ExpectedValue(s)
			if (len(failures) == 0) != (evPercent >= 0.20) {
				return false
			}
			return math.Abs(signal.POP-(1-shortDelta)) < 1e-9 &&
				signal.PositionSize == 2500.0
		},
		gen.Float64Range(0.10, 0.30),
		gen.Float64Range(0.25, 4.75), // keeps max loss positive on a 5-wide
		gen.IntRange(30, 45),
	))

	properties.TestingRun(t)
}

// Property: ranking yields 1..n ranks and never orders a lower expected
// value above a higher one.
func TestProperty_RankOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("ranks are 1..n and EV% is non-increasing", prop.ForAll(
		func(evs []float64) bool {
			signals := make([]models.Signal, len(evs))
			for i, ev := range evs {
				signals[i] = models.Signal{Symbol: "S", EVPercent: ev, Spread: putSpread(-0.15, 2.0, 35)}
			}

			ranked := Rank(signals)
			if len(ranked) != len(signals) {
				return false
			}
			for i := range ranked {
				if ranked[i].Rank != i+1 {
					return false
				}
				if i > 0 && ranked[i].EVPercent > ranked[i-1].EVPercent {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
