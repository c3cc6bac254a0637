package alpaca

import (
	"sync"
	"time"

	"conviction-trading-bot/internal/types"
)

// barCache holds per-symbol daily bars behind a TTL so a cycle touching the
// same symbol several times (scoring, conviction update, exits) costs one
// API call.
type barCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	bars      []types.Bar
	days      int // day count the entry was fetched with
	fetchedAt time.Time
}

func newBarCache(ttl time.Duration) *barCache {
	return &barCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// get returns cached bars for a symbol when fresh and fetched with at least
// as many days as requested. An entry from a narrower fetch is a miss, or a
// short benchmark lookup would starve later full-history requests.
func (bc *barCache) get(symbol string, n int) ([]types.Bar, bool) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()

	e, ok := bc.entries[symbol]
	if !ok {
		return nil, false
	}
	if bc.now().Sub(e.fetchedAt) > bc.ttl {
		return nil, false
	}
	if e.days < n {
		return nil, false
	}
	if len(e.bars) > n {
		return e.bars[len(e.bars)-n:], true
	}
	return e.bars, true
}

func (bc *barCache) put(symbol string, bars []types.Bar, days int) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.entries[symbol] = &cacheEntry{bars: bars, days: days, fetchedAt: bc.now()}
}
