package montecarlo

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"conviction-trading-bot/internal/store"
)

// Estimator bootstraps historical daily returns into synthetic paths and
// reports the drawdown tail. The rand source is injected so tests are
// deterministic.
type Estimator struct {
	cfg *store.Config
	rng *rand.Rand
}

func New(cfg *store.Config, src rand.Source) *Estimator {
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	return &Estimator{cfg: cfg, rng: rand.New(src)}
}

// DrawdownDistribution holds percentile drawdowns across simulated paths.
// All values are negative or zero (a drawdown of -0.25 means -25%).
type DrawdownDistribution struct {
	P50   float64 `json:"p50"`
	P90   float64 `json:"p90"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Worst float64 `json:"worst"`
}

type Verdict string

const (
	VerdictOversized          Verdict = "OVERSIZED"
	VerdictSlightlyOversized  Verdict = "SLIGHTLY_OVERSIZED"
	VerdictOptimal            Verdict = "OPTIMAL"
	VerdictSlightlyUndersized Verdict = "SLIGHTLY_UNDERSIZED"
	VerdictUndersized         Verdict = "UNDERSIZED"
	VerdictNoEdge             Verdict = "NO_EDGE"
)

type Report struct {
	Drawdowns       DrawdownDistribution `json:"drawdowns"`
	EmpiricalKelly  float64              `json:"empirical_kelly"`
	RecommendedSize float64              `json:"recommended_size"`
	CurrentSize     float64              `json:"current_size"`
	Verdict         Verdict              `json:"verdict"`
	Warning         string               `json:"warning,omitempty"`
}

// Estimate resamples returns with replacement into simulated cumulative
// paths, measures per-path maximum drawdown and adjusts the raw Kelly
// fraction for return instability and tail risk.
func (e *Estimator) Estimate(returns []float64, rawKelly, currentSize float64) Report {
	mc := e.cfg.MonteCarlo

	if len(returns) < mc.MinReturns {
		return Report{
			CurrentSize: currentSize,
			Verdict:     VerdictNoEdge,
			Warning:     "insufficient return history",
		}
	}

	dd := e.simulate(returns, mc.Simulations, mc.HorizonDays)

	mean := stat.Mean(returns, nil)
	sd := stat.StdDev(returns, nil)
	cv := 0.9
	if math.Abs(mean) >= 1e-4 {
		cv = math.Min(math.Abs(sd/mean), 0.9)
	}

	empirical := rawKelly * (1 - cv)

	recommended := empirical
	if math.Abs(dd.P95) > mc.DrawdownTolerance && dd.P95 != 0 {
		recommended *= mc.DrawdownTolerance / math.Abs(dd.P95)
	}
	if recommended < 0 {
		recommended = 0
	}

	return Report{
		Drawdowns:       dd,
		EmpiricalKelly:  empirical,
		RecommendedSize: recommended,
		CurrentSize:     currentSize,
		Verdict:         verdict(currentSize, recommended),
	}
}

// simulate builds n bootstrap paths of cumulative returns and returns the
// drawdown percentiles across paths.
func (e *Estimator) simulate(returns []float64, n, horizon int) DrawdownDistribution {
	maxDDs := make([]float64, n)
	for i := 0; i < n; i++ {
		maxDDs[i] = e.pathMaxDrawdown(returns, horizon)
	}
	sort.Float64s(maxDDs)

	// maxDDs is ascending: worst (most negative) first. Quantile wants
	// ascending data; the p-th percentile of the drawdown magnitude is the
	// (1-p) quantile of the signed values.
	return DrawdownDistribution{
		P50:   stat.Quantile(0.50, stat.Empirical, maxDDs, nil),
		P90:   stat.Quantile(0.10, stat.Empirical, maxDDs, nil),
		P95:   stat.Quantile(0.05, stat.Empirical, maxDDs, nil),
		P99:   stat.Quantile(0.01, stat.Empirical, maxDDs, nil),
		Worst: maxDDs[0],
	}
}

// pathMaxDrawdown samples returns with replacement into one cumulative path
// and returns the deepest peak-to-trough decline along it.
func (e *Estimator) pathMaxDrawdown(returns []float64, horizon int) float64 {
	cum := 1.0
	peak := 1.0
	maxDD := 0.0
	for t := 0; t < horizon; t++ {
		r := returns[e.rng.Intn(len(returns))]
		cum *= 1 + r
		if cum > peak {
			peak = cum
		}
		dd := (cum - peak) / peak
		if dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func verdict(current, recommended float64) Verdict {
	if recommended == 0 {
		return VerdictNoEdge
	}
	diff := (current - recommended) / recommended
	switch {
	case diff > 0.30:
		return VerdictOversized
	case diff > 0.15:
		return VerdictSlightlyOversized
	case diff < -0.30:
		return VerdictUndersized
	case diff < -0.15:
		return VerdictSlightlyUndersized
	default:
		return VerdictOptimal
	}
}
