package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/portfolio"
	"conviction-trading-bot/internal/store"
)

// Gate is the per-trade rule gate. Checks run in a fixed order and
// short-circuit on the first hard failure; soft caps (cash reserve,
// concentration) reduce the requested dollars instead of rejecting.
type Gate struct {
	cfg       *store.Config
	statePath string
	state     *State
	now       func() time.Time
}

// Result is the gate's answer for one proposed buy.
type Result struct {
	Allowed      bool    `json:"allowed"`
	Reason       string  `json:"reason"`
	AdjustedSize float64 `json:"adjusted_size"`
}

func NewGate(cfg *store.Config) (*Gate, error) {
	st, err := loadState(cfg.Risk.StateFile)
	if err != nil {
		return nil, fmt.Errorf("load risk state: %w", err)
	}
	return &Gate{cfg: cfg, statePath: cfg.Risk.StateFile, state: st, now: time.Now}, nil
}

// SetClock overrides the gate's clock. Used by tests.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// State exposes a copy of the current risk state for reporting.
func (g *Gate) State() State { return *g.state }

// NewDay resets the daily counters when the calendar date has changed and
// keeps the high-water mark current. Call once per cycle before any checks.
func (g *Gate) NewDay(ctx context.Context, equity float64) error {
	today := g.now().Format("2006-01-02")
	if g.state.Date != today {
		logger.Info(ctx, "Risk state daily reset",
			"previous_date", g.state.Date,
			"date", today,
			"day_start_equity", equity,
		)
		g.state.Date = today
		g.state.DayStartEquity = equity
		g.state.TradesToday = nil
	}
	if equity > g.state.HighWaterMark {
		g.state.HighWaterMark = equity
	}
	g.state.pruneDayTrades(g.now())
	return g.state.save(g.statePath)
}

// CanBuy runs the ordered checks against a proposed buy of requestedDollars.
func (g *Gate) CanBuy(ctx context.Context, symbol string, requestedDollars float64, snap *portfolio.Snapshot) Result {
	r := g.cfg.Risk

	// 1. Circuit breaker: intraday drawdown or a loss streak halts all
	// new entries for the day.
	if g.state.DayStartEquity > 0 {
		intradayDD := (g.state.DayStartEquity - snap.Equity) / g.state.DayStartEquity
		if intradayDD > r.CircuitBreakerDDPct {
			logger.Risk(ctx, symbol, "CIRCUIT_BREAKER", "intraday_dd", intradayDD)
			return Result{Reason: fmt.Sprintf("circuit breaker: intraday drawdown %.1f%%", intradayDD*100)}
		}
	}
	if g.state.ConsecutiveLosses >= r.MaxConsecutiveLoss {
		logger.Risk(ctx, symbol, "CIRCUIT_BREAKER", "consecutive_losses", g.state.ConsecutiveLosses)
		return Result{Reason: fmt.Sprintf("circuit breaker: %d consecutive losses", g.state.ConsecutiveLosses)}
	}

	// 2. PDT guard: block at limit-1 inside the rolling window so the
	// regulatory limit itself is never reached.
	if len(g.state.DayTrades) >= r.PDTLimit-1 {
		logger.Risk(ctx, symbol, "PDT_BLOCK", "day_trades_in_window", len(g.state.DayTrades))
		return Result{Reason: fmt.Sprintf("PDT guard: %d day trades in rolling window", len(g.state.DayTrades))}
	}

	// 3. Daily trade cap.
	buys := 0
	for _, t := range g.state.TradesToday {
		if t.Side == "BUY" {
			buys++
		}
	}
	if buys >= r.MaxDailyTrades {
		return Result{Reason: fmt.Sprintf("daily trade cap reached (%d)", r.MaxDailyTrades)}
	}

	size := requestedDollars

	// Shrink everything while recovering from a drawdown off the
	// high-water mark.
	if g.state.HighWaterMark > 0 {
		dd := (g.state.HighWaterMark - snap.Equity) / g.state.HighWaterMark
		if dd > r.DrawdownShrinkPct {
			size *= 0.5
		}
	}

	// 4. Cash reserve floor: reduce to the largest size that keeps the
	// reserve intact.
	minReserve := snap.Equity * r.MinCashReservePct
	available := snap.Cash - minReserve
	if available <= 0 {
		return Result{Reason: "cash reserve floor reached"}
	}
	if size > available {
		size = available
	}

	// 5. Per-position concentration cap, counting what we already hold.
	maxPosition := snap.Equity * r.MaxPositionPct
	held := snap.Weight(symbol) * snap.Equity
	room := maxPosition - held
	if room <= 0 {
		return Result{Reason: fmt.Sprintf("position already at %.0f%% cap", r.MaxPositionPct*100)}
	}
	if size > room {
		size = room
	}

	// 6. Minimum trade size, applied after reductions.
	if size < r.MinTradeDollars {
		return Result{Reason: fmt.Sprintf("size $%.2f below minimum $%.2f", size, r.MinTradeDollars)}
	}

	// 7. Portfolio heat ceiling.
	newHeat := (snap.Invested + size) / snap.Equity
	if newHeat > r.MaxPortfolioHeat {
		capped := snap.Equity*r.MaxPortfolioHeat - snap.Invested
		if capped < r.MinTradeDollars {
			return Result{Reason: fmt.Sprintf("portfolio heat %.0f%% at ceiling", snap.Heat*100)}
		}
		size = capped
	}

	size = math.Floor(size*100) / 100

	return Result{Allowed: true, AdjustedSize: size, Reason: "approved"}
}

// RecordTrade appends a trade to today's record; dayTrade marks a same-day
// round trip that counts against the PDT window.
func (g *Gate) RecordTrade(ctx context.Context, symbol, side string, dollars float64, dayTrade bool) error {
	now := g.now()
	g.state.TradesToday = append(g.state.TradesToday, TradeRecord{
		Symbol:  symbol,
		Side:    side,
		Dollars: dollars,
		Time:    now.Format(time.RFC3339),
	})
	if dayTrade {
		g.state.DayTrades = append(g.state.DayTrades, now.Format("2006-01-02"))
		logger.Risk(ctx, symbol, "DAY_TRADE_RECORDED", "window_count", len(g.state.DayTrades))
	}
	return g.state.save(g.statePath)
}

// RecordLoss bumps the loss streak; RecordWin resets it.
func (g *Gate) RecordLoss(ctx context.Context) error {
	g.state.ConsecutiveLosses++
	if g.state.ConsecutiveLosses >= g.cfg.Risk.MaxConsecutiveLoss {
		logger.Risk(ctx, "", "LOSS_STREAK", "consecutive_losses", g.state.ConsecutiveLosses)
	}
	return g.state.save(g.statePath)
}

func (g *Gate) RecordWin(ctx context.Context) error {
	g.state.ConsecutiveLosses = 0
	return g.state.save(g.statePath)
}
