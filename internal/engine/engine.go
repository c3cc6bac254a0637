package engine

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"conviction-trading-bot/internal/alpha"
	"conviction-trading-bot/internal/conviction"
	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/montecarlo"
	"conviction-trading-bot/internal/portfolio"
	"conviction-trading-bot/internal/risk"
	"conviction-trading-bot/internal/sizing"
	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/ta"
	"conviction-trading-bot/internal/tradelog"
	"conviction-trading-bot/internal/types"
)

// Engine orchestrates one decision cycle:
// snapshot -> conviction updates -> exit scan -> screen -> edge -> Monte
// Carlo -> Kelly size -> risk gate -> order.
type Engine struct {
	cfg         *store.Config
	brk         interfaces.Broker
	gate        *risk.Gate
	convictions *conviction.Manager
	sizer       *sizing.Sizer
	mc          *montecarlo.Estimator
	stops       *stopBook
}

func New(cfg *store.Config, brk interfaces.Broker, gate *risk.Gate, cm *conviction.Manager, sizer *sizing.Sizer, mc *montecarlo.Estimator) *Engine {
	return &Engine{
		cfg:         cfg,
		brk:         brk,
		gate:        gate,
		convictions: cm,
		sizer:       sizer,
		mc:          mc,
		stops:       newStopBook("state/trailing_stops.json"),
	}
}

var _ interfaces.Engine = (*Engine)(nil)

// Cycle runs one full decision cycle against the current account state.
func (e *Engine) Cycle(ctx context.Context) (*types.CycleResult, error) {
	res := &types.CycleResult{Time: time.Now().Unix()}

	snap, err := portfolio.Build(ctx, e.brk)
	if err != nil {
		return nil, fmt.Errorf("build portfolio snapshot: %w", err)
	}
	metricPortfolioHeat.Set(snap.Heat)

	if err := e.gate.NewDay(ctx, snap.Equity); err != nil {
		logger.Warn(ctx, "Failed to persist risk state", "error", err)
	}

	benchChange := e.benchmarkChange(ctx)

	e.updateConvictions(ctx, snap, benchChange, res)

	exits := e.scanExits(ctx, snap, res)
	res.Exits = append(res.Exits, exits...)

	e.scanEntries(ctx, snap, res)

	logger.Info(ctx, "Cycle completed",
		"scanned", res.Scanned,
		"entries", len(res.Entries),
		"exits", len(res.Exits),
		"skipped", len(res.Skipped),
	)
	return res, nil
}

// Scan scores the configured universe and returns the ranked result without
// trading.
func (e *Engine) Scan(ctx context.Context) ([]types.SymbolScore, error) {
	scores := make([]types.SymbolScore, 0, len(e.cfg.Universe))
	for _, sym := range e.cfg.Universe {
		bars, err := e.brk.RecentBars(ctx, sym, e.barLookback())
		if err != nil || len(bars) == 0 {
			logger.Warn(ctx, "No bars for symbol, skipping", "symbol", sym)
			continue
		}
		scores = append(scores, alpha.ScoreSymbol(sym, bars, e.cfg))
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}

// ScanExits evaluates and executes the exit rules against open positions.
func (e *Engine) ScanExits(ctx context.Context) ([]string, error) {
	snap, err := portfolio.Build(ctx, e.brk)
	if err != nil {
		return nil, fmt.Errorf("build portfolio snapshot: %w", err)
	}
	res := &types.CycleResult{Time: time.Now().Unix()}
	return e.scanExits(ctx, snap, res), nil
}

// benchmarkChange returns the benchmark's last day-over-day move, zero on
// any failure.
func (e *Engine) benchmarkChange(ctx context.Context) float64 {
	bars, err := e.brk.RecentBars(ctx, e.cfg.Benchmark, 10)
	if err != nil || len(bars) < 2 {
		return 0
	}
	prev := bars[len(bars)-2].Close
	if prev <= 0 {
		return 0
	}
	return bars[len(bars)-1].Close/prev - 1
}

// updateConvictions runs the conviction state machine for every active
// record and executes the resulting actions.
func (e *Engine) updateConvictions(ctx context.Context, snap *portfolio.Snapshot, benchChange float64, res *types.CycleResult) {
	for _, rec := range e.convictions.List() {
		if rec.Phase.Terminal() {
			continue
		}

		bars, err := e.brk.RecentBars(ctx, rec.Symbol, e.barLookback())
		if err != nil || len(bars) == 0 {
			res.Skipped = append(res.Skipped, rec.Symbol+": no data")
			continue
		}

		obs := observationFrom(bars, benchChange)
		act, err := e.convictions.Update(ctx, rec.Symbol, obs)
		if err != nil {
			logger.ErrorWithErr(ctx, "Conviction update failed", err, "symbol", rec.Symbol)
			continue
		}

		switch act.Type {
		case conviction.ActionAbandon, conviction.ActionExit:
			if pos, held := snap.Positions[rec.Symbol]; held && pos.Qty > 0 {
				e.closePosition(ctx, snap, rec.Symbol, 100, act.Reason, res)
			}
		case conviction.ActionAdd:
			e.buyConvictionAdd(ctx, snap, rec.Symbol, act, res)
		}
	}
}

// buyConvictionAdd routes a dip-accumulation through the risk gate so adds
// can never breach the cash reserve.
func (e *Engine) buyConvictionAdd(ctx context.Context, snap *portfolio.Snapshot, symbol string, act conviction.Action, res *types.CycleResult) {
	gr := e.gate.CanBuy(ctx, symbol, act.Dollars, snap)
	if !gr.Allowed {
		metricOrdersBlocked.Inc()
		res.Skipped = append(res.Skipped, symbol+": add blocked: "+gr.Reason)
		return
	}
	e.placeBuy(ctx, snap, symbol, gr.AdjustedSize, 0, "CONVICTION_ADD", act.Reason, res)
}

// scanEntries screens the universe for new positions.
func (e *Engine) scanEntries(ctx context.Context, snap *portfolio.Snapshot, res *types.CycleResult) {
	// Portfolio-level preconditions mirror the gate's soft checks so we
	// skip the whole scan cheaply when nothing can be bought anyway.
	if snap.Cash < 15 || snap.CashReservePct < 0.08 {
		res.Notes = append(res.Notes, "entry scan skipped: cash or reserve too low")
		return
	}

	for _, sym := range e.cfg.Universe {
		if rec := e.convictions.Get(sym); rec != nil && !rec.Phase.Terminal() {
			continue // conviction symbols are managed by their own rules
		}

		bars, err := e.brk.RecentBars(ctx, sym, e.barLookback())
		if err != nil || len(bars) < e.cfg.Indicators.MinBars {
			res.Skipped = append(res.Skipped, sym+": insufficient data")
			continue
		}
		res.Scanned++

		score := alpha.ScoreSymbol(sym, bars, e.cfg)
		if score.Score < e.cfg.Scoring.MinEntryScore {
			continue
		}

		edge := alpha.EstimateEdge(score, bars)
		if edge.Confidence < e.cfg.Scoring.MinConfidence {
			res.Skipped = append(res.Skipped, sym+": confidence below gate")
			continue
		}

		_ = tradelog.AppendDecision(tradelog.DecisionEntry{
			Symbol:     sym,
			Action:     score.Action,
			Confidence: edge.Confidence,
			Reason:     "entry screen",
			Price:      score.Price,
			Score:      score.Score,
			Indicators: score.Signals,
		})

		rawKelly := sizing.Fraction(edge.WinProb, edge.Payoff)
		initialSize := math.Min(e.cfg.Kelly.MaxPositionPct, edge.Confidence*0.30)

		returns := recentReturns(bars, e.cfg.MonteCarlo.LookbackDays)
		report := e.mc.Estimate(returns, rawKelly, initialSize)
		if report.Verdict == montecarlo.VerdictNoEdge {
			res.Skipped = append(res.Skipped, sym+": no edge after simulation")
			continue
		}

		sized := e.sizer.Size(edge, snap.Equity, snap.ActiveCount())
		if !sized.Approved {
			res.Skipped = append(res.Skipped, sym+": "+sized.Reason)
			continue
		}

		dollars := sized.Dollars
		if report.RecommendedSize > 0 {
			dollars = math.Min(dollars, report.RecommendedSize*snap.Equity)
		}

		gr := e.gate.CanBuy(ctx, sym, dollars, snap)
		if !gr.Allowed {
			metricOrdersBlocked.Inc()
			res.Skipped = append(res.Skipped, sym+": "+gr.Reason)
			continue
		}

		atrPct := 0.0
		if score.Price > 0 {
			atrPct = (score.Price - score.StopLoss) / (e.cfg.Scoring.StopATRMult * score.Price)
		}
		e.placeBuy(ctx, snap, sym, gr.AdjustedSize, atrPct, "ENTRY", score.Action, res)
	}
}

// placeBuy submits a notional market buy, records it and arms the trailing
// stop.
func (e *Engine) placeBuy(ctx context.Context, snap *portfolio.Snapshot, symbol string, dollars, atrPct float64, tag, reason string, res *types.CycleResult) {
	metricOrdersAttempted.Inc()
	resp, err := e.brk.PlaceOrder(ctx, types.OrderReq{Symbol: symbol, Side: "BUY", Notional: dollars, Tag: tag})
	if err != nil {
		metricOrdersFailed.Inc()
		logger.ErrorWithErr(ctx, "Failed to place BUY order", err, "symbol", symbol, "dollars", dollars)
		return
	}
	metricOrdersPlaced.Inc()

	price := e.entryPrice(ctx, snap, symbol)
	logger.Trade(ctx, symbol, "BUY", 0, price, resp.OrderID, "dollars", dollars, "tag", tag)
	_ = tradelog.Append(tradelog.Entry{Symbol: symbol, Side: "BUY", Dollars: dollars, Price: price, OrderID: resp.OrderID, Reason: reason})
	_ = e.gate.RecordTrade(ctx, symbol, "BUY", dollars, false)

	if price > 0 {
		e.stops.arm(symbol, price, trailPct(atrPct))
	}

	res.Entries = append(res.Entries, symbol)
	res.Orders = append(res.Orders, resp)
}

// closePosition liquidates pct of a position and records the exit.
func (e *Engine) closePosition(ctx context.Context, snap *portfolio.Snapshot, symbol string, pct float64, reason string, res *types.CycleResult) {
	metricOrdersAttempted.Inc()
	resp, err := e.brk.ClosePosition(ctx, symbol, pct)
	if err != nil {
		metricOrdersFailed.Inc()
		logger.ErrorWithErr(ctx, "Failed to close position", err, "symbol", symbol, "pct", pct)
		return
	}
	metricOrdersPlaced.Inc()
	metricExitsExecuted.Inc()

	pos := snap.Positions[symbol]
	dollars := pos.MarketValue * pct / 100

	logger.Trade(ctx, symbol, "SELL", pos.Qty * pct / 100, pos.CurrentPrice, resp.OrderID, "reason", reason)
	_ = tradelog.Append(tradelog.Entry{Symbol: symbol, Side: "SELL", Qty: pos.Qty * pct / 100, Dollars: dollars, Price: pos.CurrentPrice, OrderID: resp.OrderID, Reason: reason})
	_ = e.gate.RecordTrade(ctx, symbol, "SELL", dollars, false)

	if pos.PLPct < 0 {
		_ = e.gate.RecordLoss(ctx)
	} else {
		_ = e.gate.RecordWin(ctx)
	}

	// Keep the cycle snapshot coherent so later stages don't act on a
	// position that was just liquidated.
	snap.Invested -= dollars
	if pct >= 100 {
		delete(snap.Positions, symbol)
		delete(snap.Weights, symbol)
		e.stops.disarm(symbol)
	}

	res.Orders = append(res.Orders, resp)
}

func (e *Engine) barLookback() int {
	// Enough calendar history for the longest SMA window plus the Monte
	// Carlo lookback.
	n := e.cfg.MonteCarlo.LookbackDays
	for _, w := range e.cfg.Indicators.SMAWindows {
		if w > n {
			n = w
		}
	}
	return n + 10
}

// trailPct converts an ATR percentage into a trailing stop distance,
// clamped to [3%, 10%].
func trailPct(atrPct float64) float64 {
	return math.Max(3, math.Min(10, atrPct*200))
}

// entryPrice resolves a fill-reference price for a buy: the held position's
// mark if we already own the symbol, otherwise the latest quote. A new entry
// has no position in the cycle snapshot yet.
func (e *Engine) entryPrice(ctx context.Context, snap *portfolio.Snapshot, symbol string) float64 {
	if pos, ok := snap.Positions[symbol]; ok {
		return pos.CurrentPrice
	}
	q, err := e.brk.LatestQuote(ctx, symbol)
	if err != nil {
		return 0
	}
	return q.Mid()
}

func observationFrom(bars []types.Bar, benchChange float64) conviction.Observation {
	obs := conviction.Observation{BenchChangePct: benchChange}
	if len(bars) == 0 {
		return obs
	}
	obs.Price = bars[len(bars)-1].Close
	if len(bars) >= 2 && bars[len(bars)-2].Close > 0 {
		obs.DayChangePct = bars[len(bars)-1].Close/bars[len(bars)-2].Close - 1
	}
	vols := make([]float64, len(bars))
	for i, b := range bars {
		vols[i] = b.Vol
	}
	obs.RelVolume = ta.VolumeRatio(vols, 20)
	return obs
}

func recentReturns(bars []types.Bar, lookback int) []float64 {
	if len(bars) > lookback+1 {
		bars = bars[len(bars)-lookback-1:]
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return ta.DailyReturns(closes)
}
