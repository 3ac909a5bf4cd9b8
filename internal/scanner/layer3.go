package scanner

import (
	"math"
	"sort"
	"time"

	"spread-scanner/internal/analysis"
	"spread-scanner/internal/config"
	"spread-scanner/internal/models"
)

// Layer 3 selection bounds.
const (
	PutShortDeltaMin = 0.15
	PutShortDeltaMax = 0.20
	PutMinTheta      = 0.05
	PutMinIVRank     = 67.0
	PutDTEMin        = 30
	PutDTEMax        = 45

	// Minimum net credit as a fraction of strike width for put spreads.
	PutMinPremiumWidth = 0.15

	CallShortDeltaMin = 0.60
	CallShortDeltaMax = 0.70
	CallMinRiskReward = 2.0
	CallDTEMin        = 60
	CallDTEMax        = 90

	// Strike width bounds for both kinds, in dollars.
	MinStrikeWidth = 5.0
	MaxStrikeWidth = 10.0

	defaultRiskFreeRate = 0.05
)

// PutDTEWindow and CallDTEWindow are the expiry ranges Layer 3 requests
// from the provider for each spread kind.
var (
	PutDTEWindow  = [2]int{PutDTEMin, PutDTEMax}
	CallDTEWindow = [2]int{CallDTEMin, CallDTEMax}
)

// GreeksSelector is Layer 3: it constructs candidate vertical spreads from
// an instrument's option chain and carries forward at most one conforming
// candidate per spread kind.
type GreeksSelector struct {
	mode         config.SpreadType
	riskFreeRate float64
	clock        func() time.Time
}

// NewGreeksSelector creates the Layer 3 selector.
func NewGreeksSelector(mode config.SpreadType, clock func() time.Time) *GreeksSelector {
	if clock == nil {
		clock = time.Now
	}
	return &GreeksSelector{mode: mode, riskFreeRate: defaultRiskFreeRate, clock: clock}
}

// Select builds and ranks candidate spreads for one instrument. The chain
// may mix expiries and types; non-conforming contracts are ignored. An
// instrument with no conforming spread returns an empty slice.
func (g *GreeksSelector) Select(inst models.Instrument, chain []models.OptionContract) []models.Spread {
	spot := inst.Technicals.Price
	asOf := g.clock()
	chain = g.backfillGreeks(chain, spot, asOf)

	var out []models.Spread
	if g.mode == config.SpreadTypePut || g.mode == config.SpreadTypeBoth {
		if best, ok := g.bestPutSpread(chain, spot, asOf); ok {
			out = append(out, best)
		}
	}
	if g.mode == config.SpreadTypeCall || g.mode == config.SpreadTypeBoth {
		if best, ok := g.bestCallSpread(chain, spot, asOf); ok {
			out = append(out, best)
		}
	}
	return out
}

// backfillGreeks fills missing per-contract Greeks from implied volatility.
// Some chains ship quotes without sensitivities.
func (g *GreeksSelector) backfillGreeks(chain []models.OptionContract, spot float64, asOf time.Time) []models.OptionContract {
	out := make([]models.OptionContract, len(chain))
	copy(out, chain)
	for i := range out {
		c := &out[i]
		if c.Delta != 0 || c.ImpliedVol <= 0 {
			continue
		}
		greeks := analysis.BlackScholesGreeks(spot, c.Strike, c.DTE(asOf), g.riskFreeRate, c.ImpliedVol, c.Type == models.OptionPut)
		c.Delta = greeks.Delta
		c.Theta = greeks.Theta
	}
	return out
}

// bestPutSpread returns the highest risk/reward conforming put credit
// spread: short leg |delta| in [0.15, 0.20], spread theta magnitude above
// 0.05, short-leg IV percentile above 67, DTE in [30, 45], net credit at
// least 15% of strike width.
func (g *GreeksSelector) bestPutSpread(chain []models.OptionContract, spot float64, asOf time.Time) (models.Spread, bool) {
	puts := contractsOf(chain, models.OptionPut)

	var candidates []models.Spread
	for _, short := range puts {
		mag := math.Abs(short.Delta)
		if mag < PutShortDeltaMin || mag > PutShortDeltaMax {
			continue
		}
		if !short.Quotable() || short.Strike >= spot {
			continue
		}
		dte := short.DTE(asOf)
		if dte < PutDTEMin || dte > PutDTEMax {
			continue
		}
		if short.IVPercentile <= PutMinIVRank {
			continue
		}

		for _, long := range puts {
			if !long.Expiry.Equal(short.Expiry) || !long.Quotable() {
				continue
			}
			width := short.Strike - long.Strike
			if width < MinStrikeWidth || width > MaxStrikeWidth {
				continue
			}
			net := short.Mid() - long.Mid()
			if net <= 0 || net/width < PutMinPremiumWidth {
				continue
			}

			spread := models.Spread{Kind: models.SpreadPut, Short: short, Long: long, Net: net, DTE: dte}
			if !spread.Valid() || math.Abs(spread.Theta()) <= PutMinTheta {
				continue
			}
			candidates = append(candidates, spread)
		}
	}

	return pickBest(candidates, spot)
}

// bestCallSpread returns the highest risk/reward conforming call spread:
// short leg |delta| in [0.60, 0.70], risk/reward above 2.0, DTE in [60, 90].
func (g *GreeksSelector) bestCallSpread(chain []models.OptionContract, spot float64, asOf time.Time) (models.Spread, bool) {
	calls := contractsOf(chain, models.OptionCall)

	var candidates []models.Spread
	for _, short := range calls {
		mag := math.Abs(short.Delta)
		if mag < CallShortDeltaMin || mag > CallShortDeltaMax {
			continue
		}
		if !short.Quotable() {
			continue
		}
		dte := short.DTE(asOf)
		if dte < CallDTEMin || dte > CallDTEMax {
			continue
		}

		for _, long := range calls {
			if !long.Expiry.Equal(short.Expiry) || !long.Quotable() {
				continue
			}
			// Debit vertical: long the lower strike, short the upper.
			width := short.Strike - long.Strike
			if width < MinStrikeWidth || width > MaxStrikeWidth {
				continue
			}
			net := long.Mid() - short.Mid()
			if net <= 0 {
				continue
			}

			spread := models.Spread{Kind: models.SpreadCall, Short: short, Long: long, Net: net, DTE: dte}
			if !spread.Valid() || spread.RiskReward() <= CallMinRiskReward {
				continue
			}
			candidates = append(candidates, spread)
		}
	}

	return pickBest(candidates, spot)
}

// pickBest selects the carried candidate: highest risk/reward, tie broken
// by the nearer-the-money short strike.
func pickBest(candidates []models.Spread, spot float64) (models.Spread, bool) {
	if len(candidates) == 0 {
		return models.Spread{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := candidates[i].RiskReward(), candidates[j].RiskReward()
		if ri != rj {
			return ri > rj
		}
		return math.Abs(candidates[i].Short.Strike-spot) < math.Abs(candidates[j].Short.Strike-spot)
	})
	return candidates[0], true
}

func contractsOf(chain []models.OptionContract, t models.OptionType) []models.OptionContract {
	var out []models.OptionContract
	for _, c := range chain {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}
