package risk

import (
	"time"

	"conviction-trading-bot/internal/store"
)

// TradeRecord is one executed trade for the current day.
type TradeRecord struct {
	Symbol  string  `json:"symbol"`
	Side    string  `json:"side"`
	Dollars float64 `json:"dollars"`
	Time    string  `json:"time"`
}

// State is the persisted mutable risk record. Owned exclusively by the Gate;
// mutated only when trades are recorded or the calendar date changes.
type State struct {
	Date              string        `json:"date"`
	DayTrades         []string      `json:"day_trades"` // dates (YYYY-MM-DD) of round trips, rolling PDT window
	ConsecutiveLosses int           `json:"consecutive_losses"`
	DayStartEquity    float64       `json:"day_start_equity"`
	HighWaterMark     float64       `json:"high_water_mark"`
	TradesToday       []TradeRecord `json:"trades_today"`
}

func loadState(path string) (*State, error) {
	st := &State{}
	if _, err := store.LoadJSON(path, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *State) save(path string) error {
	return store.SaveJSON(path, s)
}

// pruneDayTrades drops day-trade entries older than the rolling
// five-business-day PDT window.
func (s *State) pruneDayTrades(now time.Time) {
	cutoff := businessDaysAgo(now, 5)
	kept := s.DayTrades[:0]
	for _, d := range s.DayTrades {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		if !t.Before(cutoff) {
			kept = append(kept, d)
		}
	}
	s.DayTrades = kept
}

// businessDaysAgo walks back n business days from t (weekends skipped).
func businessDaysAgo(t time.Time, n int) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	for n > 0 {
		d = d.AddDate(0, 0, -1)
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return d
}
