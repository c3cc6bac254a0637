package engine

import (
	"context"
	"fmt"
	"sort"

	"conviction-trading-bot/internal/portfolio"
	"conviction-trading-bot/internal/types"
)

// scanExits walks the open positions through the exit rules in priority
// order. Conviction symbols with a live thesis above max pain are exempt
// from every rule except their own state machine.
func (e *Engine) scanExits(ctx context.Context, snap *portfolio.Snapshot, res *types.CycleResult) []string {
	x := e.cfg.Exits

	symbols := make([]string, 0, len(snap.Positions))
	for sym := range snap.Positions {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	var executed []string
	for _, sym := range symbols {
		pos := snap.Positions[sym]

		if e.convictions.ShouldSkipExit(sym, pos.CurrentPrice) {
			res.Notes = append(res.Notes, sym+": exit rules overridden by conviction")
			continue
		}

		if fired, stop := e.stops.check(sym, pos.CurrentPrice); fired {
			reason := fmt.Sprintf("trailing stop hit at %.2f", stop)
			e.closePosition(ctx, snap, sym, 100, reason, res)
			executed = append(executed, sym+": "+reason)
			continue
		}

		// Zombie: a position down so far and worth so little that holding
		// it only clutters the book.
		if pos.PLPct <= -x.ZombieLossPct && pos.MarketValue < x.ZombieMaxDollars {
			reason := fmt.Sprintf("zombie position (%.0f%% down, $%.2f left)", pos.PLPct*100, pos.MarketValue)
			e.closePosition(ctx, snap, sym, 100, reason, res)
			executed = append(executed, sym+": "+reason)
			continue
		}

		if pos.PLPct <= -x.DeepLossPct {
			reason := fmt.Sprintf("deep loss %.0f%%", pos.PLPct*100)
			e.closePosition(ctx, snap, sym, 100, reason, res)
			executed = append(executed, sym+": "+reason)
			continue
		}

		// Concentration trim: cut an outsized winner back to the target
		// weight rather than dumping it.
		if w := snap.Weight(sym); w > x.ConcentrationPct && w > 0 {
			trimPct := (1 - x.ConcentrationTrim/w) * 100
			reason := fmt.Sprintf("concentration trim from %.0f%% weight", w*100)
			e.closePosition(ctx, snap, sym, trimPct, reason, res)
			executed = append(executed, sym+": "+reason)
			continue
		}

		if pos.PLPct >= x.TakeProfitPct {
			reason := fmt.Sprintf("take profit at +%.0f%%", pos.PLPct*100)
			e.closePosition(ctx, snap, sym, x.TakeProfitTrimPct*100, reason, res)
			executed = append(executed, sym+": "+reason)
		}
	}

	return executed
}
