package montecarlo

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conviction-trading-bot/internal/store"
)

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.MonteCarlo.Simulations = 2000
	cfg.MonteCarlo.HorizonDays = 60
	cfg.MonteCarlo.MinReturns = 20
	cfg.MonteCarlo.DrawdownTolerance = 0.25
	return cfg
}

// sampleReturns is a mildly positive-drift daily series, enough history to
// clear the minimum.
func sampleReturns(n int) []float64 {
	rng := rand.New(rand.NewSource(7))
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.0005 + rng.NormFloat64()*0.02
	}
	return out
}

func TestPercentileOrdering(t *testing.T) {
	e := New(testConfig(), rand.NewSource(42))
	rep := e.Estimate(sampleReturns(120), 0.2, 0.1)

	dd := rep.Drawdowns
	require.LessOrEqual(t, dd.P50, 0.0, "drawdowns are never positive")

	// Deeper tails must be at least as negative.
	assert.GreaterOrEqual(t, dd.P50, dd.P90)
	assert.GreaterOrEqual(t, dd.P90, dd.P95)
	assert.GreaterOrEqual(t, dd.P95, dd.P99)
	assert.GreaterOrEqual(t, dd.P99, dd.Worst)
}

func TestNoEdgeWithoutKelly(t *testing.T) {
	e := New(testConfig(), rand.NewSource(1))

	rep := e.Estimate(sampleReturns(120), 0, 0.1)
	assert.Equal(t, VerdictNoEdge, rep.Verdict)
	assert.Zero(t, rep.RecommendedSize)
}

func TestInsufficientHistory(t *testing.T) {
	e := New(testConfig(), rand.NewSource(1))

	rep := e.Estimate([]float64{0.01, -0.01, 0.02}, 0.2, 0.1)
	assert.Equal(t, VerdictNoEdge, rep.Verdict)
	assert.NotEmpty(t, rep.Warning)
	assert.Equal(t, 0.1, rep.CurrentSize)
}

func TestDeterministicWithSeed(t *testing.T) {
	returns := sampleReturns(120)

	a := New(testConfig(), rand.NewSource(99)).Estimate(returns, 0.2, 0.1)
	b := New(testConfig(), rand.NewSource(99)).Estimate(returns, 0.2, 0.1)

	assert.Equal(t, a, b)
}

func TestInstabilityShrinksKelly(t *testing.T) {
	e := New(testConfig(), rand.NewSource(5))

	rep := e.Estimate(sampleReturns(120), 0.2, 0.1)

	// Noisy returns force the coefficient-of-variation haircut, so the
	// empirical Kelly always lands below the raw input.
	assert.Less(t, rep.EmpiricalKelly, 0.2)
	assert.GreaterOrEqual(t, rep.EmpiricalKelly, 0.0)
	assert.LessOrEqual(t, rep.RecommendedSize, rep.EmpiricalKelly)
}

func TestVerdictBands(t *testing.T) {
	cases := []struct {
		current, recommended float64
		want                 Verdict
	}{
		{0.20, 0.10, VerdictOversized},
		{0.12, 0.10, VerdictSlightlyOversized},
		{0.10, 0.10, VerdictOptimal},
		{0.083, 0.10, VerdictSlightlyUndersized},
		{0.05, 0.10, VerdictUndersized},
		{0.10, 0, VerdictNoEdge},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, verdict(c.current, c.recommended),
			"current=%v recommended=%v", c.current, c.recommended)
	}
}
