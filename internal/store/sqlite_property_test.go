package store

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"spread-scanner/internal/models"
)

// Property: saving a cycle's signals and reading the cycle back produces
// equivalent signals in rank order.
func TestProperty_SignalRoundTripConsistency(t *testing.T) {
	st, err := NewSQLiteStore(t.TempDir() + "/signals_property.db")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer st.Close()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	symbols := []string{"JPM", "BAC", "WFC", "C", "USB", "PNC", "GS", "MS"}

	properties.Property("signal round-trip: save then retrieve preserves the cycle", prop.ForAll(
		func(count int, evBase float64, popBase float64, seq int64) bool {
			ctx := context.Background()
			// Unique per run so leftovers from earlier iterations never collide.
			cycleID := fmt.Sprintf("cycle-%d-%d", seq, time.Now().UnixNano())

			signals := make([]models.Signal, count)
			for i := 0; i < count; i++ {
				sig := storedSignal(fmt.Sprintf("%s-%d", cycleID, i), symbols[i%len(symbols)], i+1, evBase-float64(i)*0.01)
				sig.POP = popBase
				signals[i] = sig
			}

			if err := st.SaveSignals(ctx, cycleID, signals); err != nil {
				t.Logf("Failed to save signals: %v", err)
				return false
			}

			retrieved, err := st.GetSignals(ctx, SignalFilter{CycleID: cycleID})
			if err != nil {
				t.Logf("Failed to get signals: %v", err)
				return false
			}
			if len(retrieved) != len(signals) {
				t.Logf("Count mismatch: expected %d, got %d", len(signals), len(retrieved))
				return false
			}

			for i, orig := range signals {
				ret := retrieved[i]
				if ret.ID != orig.ID || ret.Symbol != orig.Symbol || ret.Rank != orig.Rank {
					t.Logf("Identity mismatch at %d: %+v vs %+v", i, orig, ret)
					return false
				}
				if math.Abs(ret.EVPercent-orig.EVPercent) > 1e-9 || math.Abs(ret.POP-orig.POP) > 1e-9 {
					t.Logf("Economics mismatch at %d", i)
					return false
				}
				if ret.Spread.Short.Strike != orig.Spread.Short.Strike {
					t.Logf("Payload mismatch at %d", i)
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 10),
		gen.Float64Range(0.20, 0.60),
		gen.Float64Range(0.70, 0.90),
		gen.Int64Range(1, 1<<60),
	))

	properties.TestingRun(t)
}
