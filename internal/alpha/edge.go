package alpha

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"conviction-trading-bot/internal/ta"
	"conviction-trading-bot/internal/types"
)

func clamp(lo, hi, v float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Confluence measures how strongly the individual signals agree with the
// composite direction: the fraction of signals on the same side of neutral
// as the overall score.
func Confluence(score types.SymbolScore) float64 {
	if len(score.Signals) == 0 {
		return 0
	}
	bullish := score.Score >= 50
	agree := 0
	total := 0
	for name, v := range score.Signals {
		if name == "insufficient_history" {
			continue
		}
		total++
		if (v >= 50) == bullish {
			agree++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(agree) / float64(total)
}

// EstimateEdge converts a composite score into the win-probability /
// payoff-ratio pair the Kelly sizer consumes. The mapping is deliberately
// conservative: p is clamped to [0.48, 0.70] and blended 60/40 with the
// symbol's historical hit rate when enough bars exist.
func EstimateEdge(score types.SymbolScore, bars []types.Bar) types.EdgeEstimate {
	confluence := Confluence(score)

	p := clamp(0.48, 0.70, 0.50+(score.Score-50)*0.003)

	var reward, risk float64 = 0.05, 0.05
	if score.Price > 0 {
		if score.TakeProfit > score.Price {
			reward = score.TakeProfit/score.Price - 1
		}
		if score.StopLoss > 0 && score.StopLoss < score.Price {
			risk = 1 - score.StopLoss/score.Price
		}
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	if rets := ta.DailyReturns(closes); len(rets) >= ta.MinBars {
		hit := hitRate(rets)
		p = 0.6*p + 0.4*hit

		// A positive drift adds a small bump, capped so history never
		// dominates the signal.
		if mean := stat.Mean(rets, nil); mean > 0 {
			sd := stat.StdDev(rets, nil)
			if sd > 0 {
				ic := mean / sd
				p += math.Min(0.05, ic*0.3)
			}
		}
		p = clamp(0.48, 0.68, p)
	}

	// Weak agreement across signals drags the probability back toward coin
	// flip.
	p = 0.5 + (p-0.5)*(0.7+0.3*confluence)

	payoff := clamp(0.25, 4.0, reward/risk)

	return types.EdgeEstimate{
		WinProb:    p,
		Payoff:     payoff,
		Confluence: confluence,
		Strategy:   score.Action,
		Confidence: clamp(0, 1, score.Score/100),
	}
}

// hitRate is the fraction of up days in the return series.
func hitRate(rets []float64) float64 {
	if len(rets) == 0 {
		return 0.5
	}
	up := 0
	for _, r := range rets {
		if r > 0 {
			up++
		}
	}
	return float64(up) / float64(len(rets))
}
