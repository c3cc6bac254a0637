package engine

import (
	"context"

	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/store"
)

// stopEntry tracks one armed trailing stop. High ratchets up with price and
// never comes back down.
type stopEntry struct {
	High     float64 `json:"high"`
	TrailPct float64 `json:"trail_pct"`
}

// stopBook persists trailing stops between one-shot cycle runs.
type stopBook struct {
	path    string
	entries map[string]*stopEntry
}

func newStopBook(path string) *stopBook {
	b := &stopBook{path: path, entries: map[string]*stopEntry{}}
	if _, err := store.LoadJSON(path, &b.entries); err != nil {
		logger.Warn(context.Background(), "Failed to load trailing stops, starting empty", "error", err)
		b.entries = map[string]*stopEntry{}
	}
	return b
}

func (b *stopBook) save() {
	if err := store.SaveJSON(b.path, b.entries); err != nil {
		logger.Warn(context.Background(), "Failed to persist trailing stops", "error", err)
	}
}

// arm starts (or re-bases) a trailing stop at the given price.
func (b *stopBook) arm(symbol string, price, trailPct float64) {
	b.entries[symbol] = &stopEntry{High: price, TrailPct: trailPct}
	b.save()
}

func (b *stopBook) disarm(symbol string) {
	if _, ok := b.entries[symbol]; !ok {
		return
	}
	delete(b.entries, symbol)
	b.save()
}

// check ratchets the high-water price and reports whether the stop fired.
// Symbols without an armed stop never fire.
func (b *stopBook) check(symbol string, price float64) (fired bool, stopPrice float64) {
	e, ok := b.entries[symbol]
	if !ok || price <= 0 {
		return false, 0
	}
	if price > e.High {
		e.High = price
		b.save()
	}
	stopPrice = e.High * (1 - e.TrailPct/100)
	return price <= stopPrice, stopPrice
}
