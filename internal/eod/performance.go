package eod

import (
	"time"

	"conviction-trading-bot/internal/store"
)

// PerformanceSnapshot is one row of daily account history, appended after
// each summary run.
type PerformanceSnapshot struct {
	Date     string  `json:"date"`
	Equity   float64 `json:"equity"`
	Cash     float64 `json:"cash"`
	Invested float64 `json:"invested"`
	Heat     float64 `json:"heat"`
}

const performanceFile = "state/performance_history.json"

// AppendPerformanceSnapshot records today's account values. One entry per
// date; a re-run on the same day replaces the earlier row.
func AppendPerformanceSnapshot(equity, cash, invested, heat float64) error {
	var history []PerformanceSnapshot
	if _, err := store.LoadJSON(performanceFile, &history); err != nil {
		return err
	}

	today := time.Now().In(eastern).Format("2006-01-02")
	snap := PerformanceSnapshot{Date: today, Equity: equity, Cash: cash, Invested: invested, Heat: heat}

	replaced := false
	for i := range history {
		if history[i].Date == today {
			history[i] = snap
			replaced = true
			break
		}
	}
	if !replaced {
		history = append(history, snap)
	}

	return store.SaveJSON(performanceFile, history)
}
