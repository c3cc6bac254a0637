package risk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"conviction-trading-bot/internal/portfolio"
	"conviction-trading-bot/internal/store"
)

func testConfig(t *testing.T) *store.Config {
	t.Helper()
	cfg := &store.Config{}
	cfg.Risk.MaxPositionPct = 0.20
	cfg.Risk.MinCashReservePct = 0.10
	cfg.Risk.MaxPortfolioHeat = 0.90
	cfg.Risk.MinTradeDollars = 10
	cfg.Risk.MaxDailyTrades = 2
	cfg.Risk.CircuitBreakerDDPct = 0.03
	cfg.Risk.MaxConsecutiveLoss = 3
	cfg.Risk.PDTLimit = 3
	cfg.Risk.DrawdownShrinkPct = 0.10
	cfg.Risk.StateFile = filepath.Join(t.TempDir(), "risk_state.json")
	return cfg
}

func newTestGate(t *testing.T) *Gate {
	t.Helper()
	g, err := NewGate(testConfig(t))
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	return g
}

func snapshot(equity, cash, invested float64) *portfolio.Snapshot {
	s := &portfolio.Snapshot{
		Equity:   equity,
		Cash:     cash,
		Invested: invested,
		Weights:  map[string]float64{},
	}
	if equity > 0 {
		s.Heat = invested / equity
		s.CashReservePct = cash / equity
	}
	return s
}

func TestCanBuyApprovesWithinLimits(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	if err := g.NewDay(ctx, 1000); err != nil {
		t.Fatalf("NewDay: %v", err)
	}

	res := g.CanBuy(ctx, "AAPL", 100, snapshot(1000, 500, 500))
	if !res.Allowed {
		t.Fatalf("expected approval, got: %s", res.Reason)
	}
	if res.AdjustedSize != 100 {
		t.Errorf("expected full size 100, got %.2f", res.AdjustedSize)
	}
}

func TestCashReserveNeverBreached(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	// Reserve floor is $100; only $100 cash left means nothing to spend.
	res := g.CanBuy(ctx, "AAPL", 50, snapshot(1000, 100, 900))
	if res.Allowed {
		t.Fatal("expected rejection at the reserve floor")
	}

	// $150 cash leaves $50 above the floor; a $120 request is cut down.
	res = g.CanBuy(ctx, "AAPL", 120, snapshot(1000, 150, 700))
	if !res.Allowed {
		t.Fatalf("expected reduced approval, got: %s", res.Reason)
	}
	if res.AdjustedSize > 50 {
		t.Errorf("adjusted size %.2f breaches the cash reserve", res.AdjustedSize)
	}
}

func TestCircuitBreakerOnIntradayDrawdown(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	res := g.CanBuy(ctx, "AAPL", 50, snapshot(950, 500, 450))
	if res.Allowed {
		t.Fatal("expected circuit breaker on a 5% intraday drawdown")
	}
}

func TestCircuitBreakerOnLossStreak(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	for i := 0; i < 3; i++ {
		_ = g.RecordLoss(ctx)
	}
	res := g.CanBuy(ctx, "AAPL", 50, snapshot(1000, 500, 500))
	if res.Allowed {
		t.Fatal("expected circuit breaker after 3 consecutive losses")
	}

	_ = g.RecordWin(ctx)
	res = g.CanBuy(ctx, "AAPL", 50, snapshot(1000, 500, 500))
	if !res.Allowed {
		t.Fatalf("expected reset after a win, got: %s", res.Reason)
	}
}

func TestPDTGuardBlocksBeforeLimit(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	// PDT limit 3: the gate must refuse once 2 day trades sit in the window.
	_ = g.RecordTrade(ctx, "AAPL", "SELL", 50, true)
	res := g.CanBuy(ctx, "MSFT", 50, snapshot(1000, 500, 500))
	if res.Allowed {
		// one day trade recorded; limit-1 = 2, so this should still pass
		_ = g.RecordTrade(ctx, "MSFT", "SELL", 50, true)
		res = g.CanBuy(ctx, "NVDA", 50, snapshot(1000, 500, 500))
	}
	if res.Allowed {
		t.Fatal("expected PDT guard to block at limit-1 day trades")
	}
}

func TestDailyTradeCap(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	_ = g.RecordTrade(ctx, "AAPL", "BUY", 50, false)
	_ = g.RecordTrade(ctx, "MSFT", "BUY", 50, false)

	res := g.CanBuy(ctx, "NVDA", 50, snapshot(1000, 500, 500))
	if res.Allowed {
		t.Fatal("expected rejection at the daily buy cap")
	}
}

func TestDrawdownShrinkHalvesSize(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	g.SetClock(func() time.Time { return time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC) })
	_ = g.NewDay(ctx, 1000) // HWM 1000

	// Next day equity is 15% off the high-water mark.
	g.SetClock(func() time.Time { return time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC) })
	_ = g.NewDay(ctx, 850)

	res := g.CanBuy(ctx, "AAPL", 100, snapshot(850, 600, 250))
	if !res.Allowed {
		t.Fatalf("expected approval, got: %s", res.Reason)
	}
	if res.AdjustedSize != 50 {
		t.Errorf("expected halved size 50, got %.2f", res.AdjustedSize)
	}
}

func TestConcentrationRoomReducesSize(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	snap := snapshot(1000, 500, 500)
	snap.Weights["AAPL"] = 0.15 // $150 held, $50 of room under the 20% cap

	res := g.CanBuy(ctx, "AAPL", 120, snap)
	if !res.Allowed {
		t.Fatalf("expected reduced approval, got: %s", res.Reason)
	}
	if res.AdjustedSize != 50 {
		t.Errorf("expected size reduced to room 50, got %.2f", res.AdjustedSize)
	}

	snap.Weights["AAPL"] = 0.20
	res = g.CanBuy(ctx, "AAPL", 50, snap)
	if res.Allowed {
		t.Fatal("expected rejection at the concentration cap")
	}
}

func TestHeatCeiling(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()
	_ = g.NewDay(ctx, 1000)

	// 88% invested, ceiling 90%: only $20 of headroom.
	res := g.CanBuy(ctx, "AAPL", 100, snapshot(1000, 300, 880))
	if !res.Allowed {
		t.Fatalf("expected capped approval, got: %s", res.Reason)
	}
	if res.AdjustedSize != 20 {
		t.Errorf("expected heat-capped size 20, got %.2f", res.AdjustedSize)
	}
}

func TestNewDayResetsCounters(t *testing.T) {
	g := newTestGate(t)
	ctx := context.Background()

	g.SetClock(func() time.Time { return time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC) })
	_ = g.NewDay(ctx, 1000)
	_ = g.RecordTrade(ctx, "AAPL", "BUY", 50, false)
	_ = g.RecordTrade(ctx, "MSFT", "BUY", 50, false)

	g.SetClock(func() time.Time { return time.Date(2026, 8, 21, 10, 0, 0, 0, time.UTC) })
	_ = g.NewDay(ctx, 1000)

	res := g.CanBuy(ctx, "NVDA", 50, snapshot(1000, 500, 500))
	if !res.Allowed {
		t.Fatalf("expected fresh daily counters, got: %s", res.Reason)
	}
}

func TestPruneDayTrades(t *testing.T) {
	now := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC) // a Monday
	s := &State{DayTrades: []string{"2026-08-03", "2026-08-20", "2026-08-21"}}

	s.pruneDayTrades(now)

	if len(s.DayTrades) != 2 {
		t.Fatalf("expected 2 entries inside the window, got %v", s.DayTrades)
	}
}

func TestBusinessDaysAgoSkipsWeekends(t *testing.T) {
	mon := time.Date(2026, 8, 24, 15, 30, 0, 0, time.UTC)
	got := businessDaysAgo(mon, 5)
	want := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}
}
