package alpha

import (
	"math"
	"testing"

	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/types"
)

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Indicators.SMAWindows = []int{20, 50}
	cfg.Indicators.RSIPeriod = 14
	cfg.Indicators.ADXPeriod = 14
	cfg.Indicators.ATRPeriod = 14
	cfg.Indicators.VolWindow = 20
	cfg.Indicators.MinBars = 20
	cfg.Scoring.Weights.RSI = 0.20
	cfg.Scoring.Weights.MACD = 0.20
	cfg.Scoring.Weights.Trend = 0.15
	cfg.Scoring.Weights.Volume = 0.15
	cfg.Scoring.Weights.MeanReversion = 0.15
	cfg.Scoring.Weights.Momentum = 0.15
	cfg.Scoring.StopATRMult = 2.0
	cfg.Scoring.TargetATRMult = 3.0
	return cfg
}

// makeBars builds a synthetic daily series: close starts at base and moves by
// step each day, with a fixed 2-point range and flat volume.
func makeBars(n int, base, step float64) []types.Bar {
	bars := make([]types.Bar, n)
	for i := range bars {
		c := base + step*float64(i)
		bars[i] = types.Bar{
			Ts:    int64(i),
			Open:  c - step/2,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
			Vol:   1_000_000,
		}
	}
	return bars
}

func TestScoreSymbolNeutralOnShortHistory(t *testing.T) {
	cfg := testConfig()

	s := ScoreSymbol("AAPL", makeBars(5, 100, 0.5), cfg)
	if s.Score != 50 {
		t.Errorf("expected neutral score 50, got %.1f", s.Score)
	}
	if s.Action != "HOLD" {
		t.Errorf("expected HOLD, got %s", s.Action)
	}
	if s.Signals["insufficient_history"] != 1 {
		t.Error("expected insufficient_history marker in signals")
	}

	s = ScoreSymbol("AAPL", nil, cfg)
	if s.Score != 50 || s.Action != "HOLD" {
		t.Errorf("empty history must be neutral, got %.1f %s", s.Score, s.Action)
	}
}

func TestScoreSymbolBounds(t *testing.T) {
	cfg := testConfig()

	for _, step := range []float64{0.8, 0, -0.8} {
		s := ScoreSymbol("AAPL", makeBars(60, 100, step), cfg)
		if s.Score < 0 || s.Score > 100 {
			t.Errorf("step %.1f: score %.1f out of range", step, s.Score)
		}
		if len(s.Signals) != 6 {
			t.Errorf("step %.1f: expected 6 signals, got %d", step, len(s.Signals))
		}
	}
}

func TestStopAndTargetBracketPrice(t *testing.T) {
	cfg := testConfig()

	s := ScoreSymbol("AAPL", makeBars(60, 100, 0.5), cfg)
	if s.StopLoss >= s.Price {
		t.Errorf("stop %.2f must be below price %.2f", s.StopLoss, s.Price)
	}
	if s.TakeProfit <= s.Price {
		t.Errorf("target %.2f must be above price %.2f", s.TakeProfit, s.Price)
	}

	// 2 ATR down, 3 ATR up: the target is 1.5x as far as the stop.
	up := s.TakeProfit - s.Price
	down := s.Price - s.StopLoss
	if math.Abs(up/down-1.5) > 1e-6 {
		t.Errorf("expected 3:2 target/stop distances, got %.2f / %.2f", up, down)
	}
}

func TestActionBands(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{80, "STRONG_BUY"},
		{75, "STRONG_BUY"},
		{65, "BUY"},
		{50, "HOLD"},
		{41, "HOLD"},
		{35, "SELL"},
		{20, "STRONG_SELL"},
	}
	for _, c := range cases {
		if got := actionFor(c.score); got != c.want {
			t.Errorf("actionFor(%.0f) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestConfluence(t *testing.T) {
	all := types.SymbolScore{
		Score: 70,
		Signals: map[string]float64{
			"rsi": 80, "macd": 65, "trend": 85,
			"volume": 70, "mean_reversion": 60, "momentum": 75,
		},
	}
	if c := Confluence(all); c != 1.0 {
		t.Errorf("all-bullish signals should give confluence 1.0, got %.2f", c)
	}

	split := types.SymbolScore{
		Score: 60,
		Signals: map[string]float64{
			"rsi": 80, "macd": 65, "trend": 85,
			"volume": 30, "mean_reversion": 40, "momentum": 20,
		},
	}
	if c := Confluence(split); c != 0.5 {
		t.Errorf("half-agreeing signals should give confluence 0.5, got %.2f", c)
	}

	if c := Confluence(types.SymbolScore{Score: 50}); c != 0 {
		t.Errorf("no signals should give confluence 0, got %.2f", c)
	}
}

func TestEstimateEdgeBounds(t *testing.T) {
	cfg := testConfig()

	for _, step := range []float64{0.8, 0, -0.8} {
		bars := makeBars(60, 100, step)
		score := ScoreSymbol("AAPL", bars, cfg)
		edge := EstimateEdge(score, bars)

		if edge.WinProb < 0.4 || edge.WinProb > 0.75 {
			t.Errorf("step %.1f: win probability %.3f outside sane bounds", step, edge.WinProb)
		}
		if edge.Payoff < 0.25 || edge.Payoff > 4.0 {
			t.Errorf("step %.1f: payoff %.2f outside clamp", step, edge.Payoff)
		}
		if edge.Confluence < 0 || edge.Confluence > 1 {
			t.Errorf("step %.1f: confluence %.2f out of range", step, edge.Confluence)
		}
		if edge.Confidence < 0 || edge.Confidence > 1 {
			t.Errorf("step %.1f: confidence %.2f out of range", step, edge.Confidence)
		}
	}
}

func TestHitRate(t *testing.T) {
	if hr := hitRate([]float64{0.01, -0.01, 0.02, 0.03}); hr != 0.75 {
		t.Errorf("expected hit rate 0.75, got %.2f", hr)
	}
	if hr := hitRate(nil); hr != 0.5 {
		t.Errorf("expected neutral 0.5 for empty series, got %.2f", hr)
	}
}
