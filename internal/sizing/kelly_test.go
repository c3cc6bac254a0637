package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/types"
)

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Kelly.Fractional = 0.5
	cfg.Kelly.MaxKellyFraction = 0.25
	cfg.Kelly.MaxPositionPct = 0.20
	cfg.Kelly.MinPositionPct = 0.01
	cfg.Kelly.MinEdgeToBet = 0.01
	cfg.Kelly.LowConfluenceShrink = 0.7
	cfg.Kelly.MinTradeDollars = 5
	return cfg
}

func TestFractionFailsClosed(t *testing.T) {
	assert.Zero(t, Fraction(0.5, 2.0), "coin flip has no edge")
	assert.Zero(t, Fraction(0.3, 2.0), "losing probability has no edge")
	assert.Zero(t, Fraction(0.6, 0), "zero payoff has no edge")
	assert.Zero(t, Fraction(0.6, -1), "negative payoff has no edge")
	assert.Zero(t, Fraction(0.55, 0.5), "negative expected value has no edge")
}

func TestFractionKnownValue(t *testing.T) {
	// f* = (B*p - q) / B with p=0.6, B=1 -> 0.2
	assert.InDelta(t, 0.2, Fraction(0.6, 1.0), 1e-9)

	// p=0.55, B=2 -> (1.10 - 0.45) / 2 = 0.325
	assert.InDelta(t, 0.325, Fraction(0.55, 2.0), 1e-9)
}

func TestSizeHalfKelly(t *testing.T) {
	s := New(testConfig())

	edge := types.EdgeEstimate{WinProb: 0.6, Payoff: 1.0, Confluence: 0.8}
	res := s.Size(edge, 1000, 0)

	require.True(t, res.Approved, res.Reason)
	assert.InDelta(t, 0.10, res.Fraction, 1e-9) // half of raw 0.20
	assert.InDelta(t, 100, res.Dollars, 1e-6)
}

func TestSizeLowConfluenceShrinks(t *testing.T) {
	s := New(testConfig())

	edge := types.EdgeEstimate{WinProb: 0.6, Payoff: 1.0, Confluence: 0.3}
	res := s.Size(edge, 1000, 0)

	require.True(t, res.Approved, res.Reason)
	assert.InDelta(t, 0.07, res.Fraction, 1e-9)
}

func TestSizeActivePositionsDerisk(t *testing.T) {
	s := New(testConfig())
	edge := types.EdgeEstimate{WinProb: 0.6, Payoff: 1.0, Confluence: 0.8}

	alone := s.Size(edge, 1000, 0)
	crowded := s.Size(edge, 1000, 2)

	require.True(t, crowded.Approved, crowded.Reason)
	assert.InDelta(t, alone.Fraction/1.2, crowded.Fraction, 1e-9)
}

func TestSizeRejectsNoEdge(t *testing.T) {
	s := New(testConfig())

	res := s.Size(types.EdgeEstimate{WinProb: 0.45, Payoff: 1.0, Confluence: 1}, 1000, 0)
	assert.False(t, res.Approved)
	assert.Zero(t, res.Dollars)
}

func TestSizeRejectsBelowMinDollars(t *testing.T) {
	s := New(testConfig())

	// 10% of a $30 account is $3, under the $5 floor.
	res := s.Size(types.EdgeEstimate{WinProb: 0.6, Payoff: 1.0, Confluence: 0.8}, 30, 0)
	assert.False(t, res.Approved)
	assert.Contains(t, res.Reason, "too small")
}

func TestSizeCapsAtMaxFraction(t *testing.T) {
	cfg := testConfig()
	cfg.Kelly.Fractional = 1.0
	s := New(cfg)

	// raw Kelly (p=0.7, B=3) = (2.1 - 0.3) / 3 = 0.6, far above the cap
	res := s.Size(types.EdgeEstimate{WinProb: 0.7, Payoff: 3.0, Confluence: 1}, 1000, 0)
	require.True(t, res.Approved, res.Reason)
	assert.InDelta(t, 0.20, res.Fraction, 1e-9) // MaxPositionPct binds below MaxKellyFraction
}
