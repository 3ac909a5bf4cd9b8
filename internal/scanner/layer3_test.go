package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-scanner/internal/config"
	"spread-scanner/internal/models"
)

func expiryIn(days int) time.Time {
	return testClock().Add(time.Duration(days) * 24 * time.Hour)
}

// conformingPutChain holds a put spread that clears every Layer 3 gate:
// short 95 delta -0.16 / long 90, net credit 2.00, theta 0.07, IV rank 80,
// 35 DTE.
func conformingPutChain() []models.OptionContract {
	expiry := expiryIn(35)
	return []models.OptionContract{
		{Strike: 95, Expiry: expiry, Type: models.OptionPut, Bid: 2.45, Ask: 2.55, Delta: -0.16, Theta: -0.09, IVPercentile: 80},
		{Strike: 90, Expiry: expiry, Type: models.OptionPut, Bid: 0.45, Ask: 0.55, Delta: -0.08, Theta: -0.02, IVPercentile: 80},
	}
}

// conformingCallChain holds a call debit spread with risk/reward 2.57:
// long 85 / short 90 delta 0.65, net debit 1.40, 75 DTE.
func conformingCallChain() []models.OptionContract {
	expiry := expiryIn(75)
	return []models.OptionContract{
		{Strike: 90, Expiry: expiry, Type: models.OptionCall, Bid: 10.5, Ask: 10.7, Delta: 0.65, Theta: -0.04},
		{Strike: 85, Expiry: expiry, Type: models.OptionCall, Bid: 11.9, Ask: 12.1, Delta: 0.80, Theta: -0.03},
	}
}

func testInstrument() models.Instrument {
	return models.Instrument{Symbol: "JPM", Technicals: models.Technicals{Price: 100}}
}

func TestSelectPutSpread(t *testing.T) {
	selector := NewGreeksSelector(config.SpreadTypePut, testClock)
	spreads := selector.Select(testInstrument(), conformingPutChain())
	require.Len(t, spreads, 1)

	s := spreads[0]
	assert.Equal(t, models.SpreadPut, s.Kind)
	assert.Equal(t, 95.0, s.Short.Strike)
	assert.Equal(t, 90.0, s.Long.Strike)
	assert.InDelta(t, 2.0, s.Net, 1e-9)
	assert.Equal(t, 35, s.DTE)
}

func TestSelectCallSpread(t *testing.T) {
	selector := NewGreeksSelector(config.SpreadTypeCall, testClock)
	spreads := selector.Select(testInstrument(), conformingCallChain())
	require.Len(t, spreads, 1)

	s := spreads[0]
	assert.Equal(t, models.SpreadCall, s.Kind)
	assert.Equal(t, 90.0, s.Short.Strike)
	assert.Equal(t, 85.0, s.Long.Strike)
	assert.InDelta(t, 1.4, s.Net, 1e-9)
	assert.Greater(t, s.RiskReward(), 2.0)
}

func TestSelectBothKinds(t *testing.T) {
	chain := append(conformingPutChain(), conformingCallChain()...)
	selector := NewGreeksSelector(config.SpreadTypeBoth, testClock)
	spreads := selector.Select(testInstrument(), chain)
	require.Len(t, spreads, 2)
	assert.Equal(t, models.SpreadPut, spreads[0].Kind)
	assert.Equal(t, models.SpreadCall, spreads[1].Kind)
}

func TestSelectPutGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]models.OptionContract)
	}{
		{"delta below band", func(c []models.OptionContract) { c[0].Delta = -0.10 }},
		{"delta above band", func(c []models.OptionContract) { c[0].Delta = -0.25 }},
		{"IV rank at threshold", func(c []models.OptionContract) { c[0].IVPercentile = 67 }},
		{"theta at threshold", func(c []models.OptionContract) { c[0].Theta = -0.07; c[1].Theta = -0.02 }},
		{"expiry too near", func(c []models.OptionContract) { c[0].Expiry = expiryIn(20); c[1].Expiry = expiryIn(20) }},
		{"expiry too far", func(c []models.OptionContract) { c[0].Expiry = expiryIn(50); c[1].Expiry = expiryIn(50) }},
		{"short not quotable", func(c []models.OptionContract) { c[0].Bid = 0 }},
		{"no net credit", func(c []models.OptionContract) { c[1].Bid = 2.45; c[1].Ask = 2.55 }},
		// Credit 0.625 on a 5-wide is 12.5% of width, under the 15% floor.
		{"credit under 15% of width", func(c []models.OptionContract) {
			c[0].Bid, c[0].Ask = 1.0, 1.5
			c[1].Bid, c[1].Ask = 0.5, 0.75
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := conformingPutChain()
			tc.mutate(chain)
			selector := NewGreeksSelector(config.SpreadTypePut, testClock)
			assert.Empty(t, selector.Select(testInstrument(), chain))
		})
	}
}

func TestSelectCallGates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func([]models.OptionContract)
	}{
		{"short delta below band", func(c []models.OptionContract) { c[0].Delta = 0.55 }},
		{"short delta above band", func(c []models.OptionContract) { c[0].Delta = 0.75 }},
		{"risk reward too low", func(c []models.OptionContract) { c[1].Bid = 12.5; c[1].Ask = 12.7 }},
		{"expiry too near", func(c []models.OptionContract) { c[0].Expiry = expiryIn(45); c[1].Expiry = expiryIn(45) }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chain := conformingCallChain()
			tc.mutate(chain)
			selector := NewGreeksSelector(config.SpreadTypeCall, testClock)
			assert.Empty(t, selector.Select(testInstrument(), chain))
		})
	}
}

func TestSelectStrikeWidthBounds(t *testing.T) {
	chain := conformingPutChain()
	chain[1].Strike = 92 // width 3, below the minimum
	selector := NewGreeksSelector(config.SpreadTypePut, testClock)
	assert.Empty(t, selector.Select(testInstrument(), chain))

	chain = conformingPutChain()
	chain[1].Strike = 83 // width 12, above the maximum
	assert.Empty(t, selector.Select(testInstrument(), chain))
}

func TestSelectPicksHighestRiskReward(t *testing.T) {
	expiry := expiryIn(35)
	chain := []models.OptionContract{
		{Strike: 95, Expiry: expiry, Type: models.OptionPut, Bid: 2.45, Ask: 2.55, Delta: -0.16, Theta: -0.09, IVPercentile: 80},
		{Strike: 90, Expiry: expiry, Type: models.OptionPut, Bid: 0.45, Ask: 0.55, Delta: -0.08, Theta: -0.02, IVPercentile: 80},
		// Wider pairing with the same short: smaller credit per dollar of risk.
		{Strike: 85, Expiry: expiry, Type: models.OptionPut, Bid: 0.15, Ask: 0.25, Delta: -0.04, Theta: -0.01, IVPercentile: 80},
	}

	selector := NewGreeksSelector(config.SpreadTypePut, testClock)
	spreads := selector.Select(testInstrument(), chain)
	require.Len(t, spreads, 1)
	assert.Equal(t, 90.0, spreads[0].Long.Strike)
}

func TestSelectTieBreaksNearerTheMoney(t *testing.T) {
	expiry := expiryIn(35)
	// Two conforming spreads with identical risk/reward (credit 2.00 on a
	// 5-wide); the short strike nearer spot wins.
	chain := []models.OptionContract{
		{Strike: 95, Expiry: expiry, Type: models.OptionPut, Bid: 2.25, Ask: 2.75, Delta: -0.17, Theta: -0.09, IVPercentile: 80},
		{Strike: 93, Expiry: expiry, Type: models.OptionPut, Bid: 2.25, Ask: 2.75, Delta: -0.16, Theta: -0.09, IVPercentile: 80},
		{Strike: 90, Expiry: expiry, Type: models.OptionPut, Bid: 0.25, Ask: 0.75, Delta: -0.08, Theta: -0.02, IVPercentile: 80},
		{Strike: 88, Expiry: expiry, Type: models.OptionPut, Bid: 0.25, Ask: 0.75, Delta: -0.05, Theta: -0.01, IVPercentile: 80},
	}

	selector := NewGreeksSelector(config.SpreadTypePut, testClock)
	spreads := selector.Select(testInstrument(), chain)
	require.Len(t, spreads, 1)
	assert.Equal(t, 95.0, spreads[0].Short.Strike)
	assert.Equal(t, 90.0, spreads[0].Long.Strike)
}

func TestSelectEmptyChain(t *testing.T) {
	selector := NewGreeksSelector(config.SpreadTypeBoth, testClock)
	assert.Empty(t, selector.Select(testInstrument(), nil))
}
