package ta

import (
	"math"

	"github.com/markcheno/go-talib"
)

// MinBars is the minimum close count below which every indicator returns its
// neutral default instead of an error. Thinly-traded or newly-listed symbols
// must not blow up the scoring pipeline.
const MinBars = 20

const (
	NeutralRSI  = 50.0
	NeutralADX  = 0.0
	NeutralMACD = 0.0
)

func last(vals []float64) (float64, bool) {
	if len(vals) == 0 {
		return 0, false
	}
	v := vals[len(vals)-1]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func RSI(closes []float64, period int) float64 {
	if len(closes) < MinBars || len(closes) < period+1 || period <= 0 {
		return NeutralRSI
	}
	if v, ok := last(talib.Rsi(closes, period)); ok {
		return v
	}
	return NeutralRSI
}

// SMA falls back to the last close when there is not enough history, so
// trend comparisons degrade to "flat" rather than erroring.
func SMA(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) < n || n <= 0 {
		return closes[len(closes)-1]
	}
	if v, ok := last(talib.Sma(closes, n)); ok {
		return v
	}
	return closes[len(closes)-1]
}

func EMA(closes []float64, n int) float64 {
	if len(closes) == 0 {
		return 0
	}
	if len(closes) < n || n <= 0 {
		return closes[len(closes)-1]
	}
	if v, ok := last(talib.Ema(closes, n)); ok {
		return v
	}
	return closes[len(closes)-1]
}

// MACD returns the latest MACD line, signal line and histogram (12/26/9).
func MACD(closes []float64) (line, signal, hist float64) {
	if len(closes) < 35 {
		return NeutralMACD, NeutralMACD, NeutralMACD
	}
	m, s, h := talib.Macd(closes, 12, 26, 9)
	lv, ok1 := last(m)
	sv, ok2 := last(s)
	hv, ok3 := last(h)
	if !ok1 || !ok2 || !ok3 {
		return NeutralMACD, NeutralMACD, NeutralMACD
	}
	return lv, sv, hv
}

func ADX(highs, lows, closes []float64, period int) float64 {
	if len(closes) < MinBars || len(closes) < 2*period || period <= 0 {
		return NeutralADX
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return NeutralADX
	}
	if v, ok := last(talib.Adx(highs, lows, closes, period)); ok {
		return v
	}
	return NeutralADX
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return 0
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return 0
	}
	if v, ok := last(talib.Atr(highs, lows, closes, period)); ok {
		return v
	}
	return 0
}

// VolumeRatio compares the latest volume against the average of the
// preceding window. Returns 1.0 (no signal) when history is short.
func VolumeRatio(vols []float64, window int) float64 {
	if len(vols) < window+1 || window <= 0 {
		return 1.0
	}
	sum := 0.0
	for i := len(vols) - window - 1; i < len(vols)-1; i++ {
		sum += vols[i]
	}
	avg := sum / float64(window)
	if avg <= 0 {
		return 1.0
	}
	return vols[len(vols)-1] / avg
}

// DistanceFromSMA reports how far the last close sits from the n-period SMA,
// in standard deviations of the same window. Zero when history is short or
// the window is flat.
func DistanceFromSMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 1 {
		return 0
	}
	mean := SMA(closes, n)
	s := 0.0
	for i := len(closes) - n; i < len(closes); i++ {
		d := closes[i] - mean
		s += d * d
	}
	sd := math.Sqrt(s / float64(n))
	if sd <= 0 {
		return 0
	}
	return (closes[len(closes)-1] - mean) / sd
}

// DailyReturns converts a close series into simple day-over-day returns.
func DailyReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] <= 0 {
			continue
		}
		rets = append(rets, closes[i]/closes[i-1]-1)
	}
	return rets
}
