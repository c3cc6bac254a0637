package alpaca

import (
	"testing"
	"time"

	"conviction-trading-bot/internal/types"
)

func TestBarCacheHitAndExpiry(t *testing.T) {
	clock := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	bc := newBarCache(5 * time.Minute)
	bc.now = func() time.Time { return clock }

	bars := []types.Bar{{Ts: 1, Close: 100}, {Ts: 2, Close: 101}}
	bc.put("AAPL", bars, 10)

	got, ok := bc.get("AAPL", 10)
	if !ok {
		t.Fatal("expected cache hit right after put")
	}
	if len(got) != 2 {
		t.Errorf("expected 2 bars, got %d", len(got))
	}

	clock = clock.Add(6 * time.Minute)
	if _, ok := bc.get("AAPL", 10); ok {
		t.Fatal("expected cache miss after TTL")
	}
}

func TestBarCacheMissUnknownSymbol(t *testing.T) {
	bc := newBarCache(5 * time.Minute)
	if _, ok := bc.get("MSFT", 10); ok {
		t.Fatal("expected miss for unknown symbol")
	}
}

func TestBarCacheMissOnBroaderRequest(t *testing.T) {
	bc := newBarCache(5 * time.Minute)

	// A narrow benchmark fetch must not satisfy a later full-history
	// request for the same symbol.
	bars := []types.Bar{{Ts: 1, Close: 100}}
	bc.put("SPY", bars, 10)

	if _, ok := bc.get("SPY", 100); ok {
		t.Fatal("expected miss when more days are requested than were fetched")
	}

	// The reverse direction still hits: a wide fetch serves narrower reads
	// even when the upstream returned fewer bars than requested.
	bc.put("SPY", bars, 100)
	if _, ok := bc.get("SPY", 10); !ok {
		t.Fatal("expected hit when the entry was fetched with more days")
	}
}

func TestBarCacheReturnsTail(t *testing.T) {
	bc := newBarCache(5 * time.Minute)

	bars := make([]types.Bar, 30)
	for i := range bars {
		bars[i] = types.Bar{Ts: int64(i), Close: float64(i)}
	}
	bc.put("AAPL", bars, 30)

	got, ok := bc.get("AAPL", 10)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 newest bars, got %d", len(got))
	}
	if got[0].Ts != 20 || got[9].Ts != 29 {
		t.Errorf("expected tail bars 20..29, got %d..%d", got[0].Ts, got[9].Ts)
	}
}
