// Package analysis provides the numeric building blocks for the screening
// layers: the relative-strength oscillator and Black-Scholes sensitivities
// used to backfill missing chain Greeks.
package analysis

// RSI computes the Wilder-smoothed relative strength index over the given
// period from a series of closes (oldest first). Returns zero when the
// series is shorter than period+1 bars.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 0
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the remainder of the series.
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		var gain, loss float64
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// PctChange returns the percentage change from the first to the last value
// of the series. Returns zero when the series is too short or starts at zero.
func PctChange(series []float64) float64 {
	if len(series) < 2 || series[0] == 0 {
		return 0
	}
	return (series[len(series)-1] - series[0]) / series[0] * 100
}
