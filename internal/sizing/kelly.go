package sizing

import (
	"math"

	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/types"
)

// Sizer turns an edge estimate into a dollar position size using fractional
// Kelly with portfolio-level clamps.
type Sizer struct {
	cfg *store.Config
}

func New(cfg *store.Config) *Sizer {
	return &Sizer{cfg: cfg}
}

// Result describes one sizing decision. Rejections keep Dollars at zero and
// carry the reason.
type Result struct {
	Approved bool    `json:"approved"`
	Fraction float64 `json:"fraction"`
	Dollars  float64 `json:"dollars"`
	Reason   string  `json:"reason"`
}

// Fraction computes the raw Kelly fraction f* = (B*p - (1-p)) / B.
// Fails closed: zero whenever p <= 0.5 or B <= 0, or when expected value is
// not positive.
func Fraction(p, payoff float64) float64 {
	if p <= 0.5 || payoff <= 0 {
		return 0
	}
	ev := payoff*p - (1 - p)
	if ev <= 0 {
		return 0
	}
	return ev / payoff
}

// Size applies the half-Kelly convention and the portfolio clamps to an edge
// estimate. activePositions de-risks concurrent exposure: the final fraction
// is divided by (1 + 0.1 * activePositions).
func (s *Sizer) Size(edge types.EdgeEstimate, portfolioValue float64, activePositions int) Result {
	k := s.cfg.Kelly

	raw := Fraction(edge.WinProb, edge.Payoff)
	if raw == 0 {
		return Result{Reason: "no positive edge"}
	}

	f := raw * k.Fractional
	if f <= k.MinEdgeToBet {
		return Result{Fraction: f, Reason: "edge below minimum bet threshold"}
	}

	if edge.Confluence < 0.5 {
		f *= k.LowConfluenceShrink
	}

	f = math.Min(f, k.MaxKellyFraction)
	f = math.Min(f, k.MaxPositionPct)
	f = math.Max(f, k.MinPositionPct)

	if activePositions > 0 {
		f /= 1 + 0.1*float64(activePositions)
	}

	dollars := f * portfolioValue
	if dollars < k.MinTradeDollars {
		return Result{Fraction: f, Reason: "position too small to trade"}
	}

	return Result{Approved: true, Fraction: f, Dollars: dollars, Reason: "sized"}
}
