package scanner

import (
	"fmt"

	"spread-scanner/internal/analysis"
	"spread-scanner/internal/models"
)

// Layer 2 screening bounds: oversold but stabilizing, with volume
// conviction, near the 52-week low.
const (
	RSIPeriod          = 14
	MinRSI             = 30.0
	MaxRSI             = 45.0
	VolumePeriod       = 20
	MaxDistanceFromLow = 10.0 // percent above the 52-week low
)

// MeanReversionFilter is Layer 2. It evaluates candidates only while the
// macro trigger is active; with an inactive trigger nothing is inspected.
type MeanReversionFilter struct {
	trigger models.TriggerState
}

// NewMeanReversionFilter creates the Layer 2 filter bound to this cycle's
// trigger state.
func NewMeanReversionFilter(trigger models.TriggerState) *MeanReversionFilter {
	return &MeanReversionFilter{trigger: trigger}
}

// Apply filters a survivor set. With an inactive trigger it returns the
// empty set without inspecting any instrument.
func (f *MeanReversionFilter) Apply(survivors []models.Instrument) []models.Instrument {
	if !f.trigger.Active {
		return nil
	}
	var out []models.Instrument
	for _, inst := range survivors {
		if ok, _ := f.Evaluate(inst); ok {
			out = append(out, inst)
		}
	}
	return out
}

// Evaluate returns whether the instrument shows a mean-reversion entry
// setup, with a reason for every failed criterion. All checks are
// independent predicates; any failure eliminates the instrument.
func (f *MeanReversionFilter) Evaluate(inst models.Instrument) (bool, []string) {
	if !f.trigger.Active {
		return false, []string{"trigger inactive"}
	}

	tech := inst.Technicals
	var failures []string

	rsi := analysis.RSI(tech.Closes, RSIPeriod)
	if rsi < MinRSI || rsi > MaxRSI {
		failures = append(failures, fmt.Sprintf("RSI %.1f outside [%.0f, %.0f]", rsi, MinRSI, MaxRSI))
	}

	avgVolume := tech.AverageVolume(VolumePeriod)
	if avgVolume <= 0 || float64(tech.CurrentVolume()) < avgVolume {
		failures = append(failures, fmt.Sprintf("volume %d below %d-period average %.0f", tech.CurrentVolume(), VolumePeriod, avgVolume))
	}

	distance := tech.DistanceFrom52WeekLow()
	if tech.Week52Low <= 0 || distance < 0 || distance > MaxDistanceFromLow {
		failures = append(failures, fmt.Sprintf("price %.1f%% above 52-week low, limit %.0f%%", distance, MaxDistanceFromLow))
	}

	return len(failures) == 0, failures
}
