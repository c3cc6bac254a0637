package alpha

import (
	"math"

	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/ta"
	"conviction-trading-bot/internal/types"
)

// CalcIndicators derives the indicator set the scorer works from. Short
// histories produce neutral values, never errors.
func CalcIndicators(bars []types.Bar, cfg *store.Config) types.Indicators {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	vols := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		vols[i] = b.Vol
	}

	ind := types.Indicators{SMA: map[int]float64{}}
	for _, w := range cfg.Indicators.SMAWindows {
		ind.SMA[w] = ta.SMA(closes, w)
	}
	ind.RSI = ta.RSI(closes, cfg.Indicators.RSIPeriod)
	ind.ADX = ta.ADX(highs, lows, closes, cfg.Indicators.ADXPeriod)
	ind.MACD.Line, ind.MACD.Signal, ind.MACD.Hist = ta.MACD(closes)
	ind.ATR = ta.ATR(highs, lows, closes, cfg.Indicators.ATRPeriod)
	ind.VolRatio = ta.VolumeRatio(vols, cfg.Indicators.VolWindow)
	ind.DistSigma = ta.DistanceFromSMA(closes, 20)
	return ind
}

// ScoreSymbol produces the weighted composite score (0-100) and the
// resulting action for one symbol. Fewer than MinBars bars yields a neutral
// HOLD at 50.
func ScoreSymbol(symbol string, bars []types.Bar, cfg *store.Config) types.SymbolScore {
	if len(bars) == 0 {
		return types.SymbolScore{Symbol: symbol, Score: 50, Action: "HOLD", Signals: map[string]float64{}}
	}

	price := bars[len(bars)-1].Close
	ind := CalcIndicators(bars, cfg)

	if len(bars) < cfg.Indicators.MinBars {
		return types.SymbolScore{
			Symbol:  symbol,
			Score:   50,
			Action:  "HOLD",
			Price:   price,
			Signals: map[string]float64{"rsi": 50, "insufficient_history": 1},
		}
	}

	signals := map[string]float64{
		"rsi":            rsiScore(ind.RSI),
		"macd":           macdScore(ind.MACD.Line, ind.MACD.Signal, ind.MACD.Hist),
		"trend":          trendScore(price, ind.SMA[20], ind.SMA[50]),
		"volume":         volumeScore(ind.VolRatio),
		"mean_reversion": meanReversionScore(ind.DistSigma, ind.RSI, ind.VolRatio),
		"momentum":       momentumScore(price, ind.SMA[20], ind.SMA[50], ind.RSI, ind.VolRatio),
	}

	w := cfg.Scoring.Weights
	score := signals["rsi"]*w.RSI +
		signals["macd"]*w.MACD +
		signals["trend"]*w.Trend +
		signals["volume"]*w.Volume +
		signals["mean_reversion"]*w.MeanReversion +
		signals["momentum"]*w.Momentum

	return types.SymbolScore{
		Symbol:     symbol,
		Score:      score,
		Action:     actionFor(score),
		Signals:    signals,
		Price:      price,
		StopLoss:   price - cfg.Scoring.StopATRMult*ind.ATR,
		TakeProfit: price + cfg.Scoring.TargetATRMult*ind.ATR,
	}
}

func rsiScore(rsi float64) float64 {
	switch {
	case rsi < 30:
		return 90
	case rsi < 40:
		return 70
	case rsi > 70:
		return 15
	case rsi > 60:
		return 35
	default:
		return 50
	}
}

func macdScore(line, signal, hist float64) float64 {
	switch {
	case hist > 0 && line > signal:
		return 80
	case hist > 0:
		return 65
	case hist < 0 && line < signal:
		return 20
	default:
		return 40
	}
}

func trendScore(price, sma20, sma50 float64) float64 {
	switch {
	case price > sma20 && sma20 > sma50:
		return 85
	case price > sma20:
		return 65
	case price < sma20 && sma20 < sma50:
		return 15
	default:
		return 40
	}
}

func volumeScore(ratio float64) float64 {
	switch {
	case ratio > 2.0:
		return 85
	case ratio > 1.5:
		return 70
	case ratio < 0.5:
		return 30
	default:
		return 50
	}
}

// meanReversionScore fires only on a stretched move: deep below the mean,
// oversold RSI and volume confirmation.
func meanReversionScore(distSigma, rsi, volRatio float64) float64 {
	if distSigma < -2 && rsi < 35 && volRatio > 1.3 {
		return math.Min(95, 70+math.Abs(distSigma)*10)
	}
	return 50
}

func momentumScore(price, sma20, sma50, rsi, volRatio float64) float64 {
	if price > sma20 && sma20 > sma50 && rsi >= 40 && rsi <= 65 && volRatio > 1.0 {
		return 60 + math.Min(30, rsi-40)
	}
	return 50
}

func actionFor(score float64) string {
	switch {
	case score >= 75:
		return "STRONG_BUY"
	case score >= 60:
		return "BUY"
	case score <= 25:
		return "STRONG_SELL"
	case score <= 40:
		return "SELL"
	default:
		return "HOLD"
	}
}
