package analysis

import "math"

// Black-Scholes sensitivities. Chains from some providers ship without
// per-contract Greeks; the Greeks selector backfills them from implied
// volatility before building spreads.

const calendarDaysPerYear = 365.0

// Greeks holds the option sensitivities the pipeline consumes.
type Greeks struct {
	Delta float64
	Theta float64 // per calendar day
}

// BlackScholesGreeks computes delta and theta for a European option.
// spot and strike in dollars, dte in calendar days, rate and iv as decimals.
func BlackScholesGreeks(spot, strike float64, dte int, rate, iv float64, put bool) Greeks {
	if spot <= 0 || strike <= 0 || dte <= 0 || iv <= 0 {
		return Greeks{}
	}

	t := float64(dte) / calendarDaysPerYear
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(spot/strike) + (rate+iv*iv/2)*t) / (iv * sqrtT)
	d2 := d1 - iv*sqrtT

	var delta float64
	if put {
		delta = normCDF(d1) - 1
	} else {
		delta = normCDF(d1)
	}

	// Annualized theta, then scaled to per-day decay.
	common := -spot * normPDF(d1) * iv / (2 * sqrtT)
	var theta float64
	if put {
		theta = common + rate*strike*math.Exp(-rate*t)*normCDF(-d2)
	} else {
		theta = common - rate*strike*math.Exp(-rate*t)*normCDF(d2)
	}
	theta /= calendarDaysPerYear

	return Greeks{Delta: delta, Theta: theta}
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}
