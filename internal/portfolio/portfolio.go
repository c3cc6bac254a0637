package portfolio

import (
	"context"
	"fmt"

	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/types"
)

// Snapshot is the ephemeral per-cycle view of the account. It is rebuilt
// from the brokerage on every cycle and never persisted.
type Snapshot struct {
	Equity         float64
	Cash           float64
	Invested       float64
	Heat           float64 // invested / equity
	CashReservePct float64 // cash / equity
	HHI            float64 // concentration index over position weights
	Positions      map[string]types.Position
	Weights        map[string]float64 // market value / equity per symbol
}

// Build fetches account and positions and derives the portfolio measures the
// risk gate and exit scanner work from.
func Build(ctx context.Context, brk interfaces.Broker) (*Snapshot, error) {
	acct, err := brk.Account(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch account: %w", err)
	}
	positions, err := brk.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	s := &Snapshot{
		Equity:    acct.Equity,
		Cash:      acct.Cash,
		Positions: make(map[string]types.Position, len(positions)),
		Weights:   make(map[string]float64, len(positions)),
	}

	for _, p := range positions {
		s.Positions[p.Symbol] = p
		s.Invested += p.MarketValue
	}

	if s.Equity > 0 {
		s.Heat = s.Invested / s.Equity
		s.CashReservePct = s.Cash / s.Equity
		for sym, p := range s.Positions {
			w := p.MarketValue / s.Equity
			s.Weights[sym] = w
			s.HHI += w * w
		}
	}

	return s, nil
}

// ActiveCount returns the number of open positions.
func (s *Snapshot) ActiveCount() int { return len(s.Positions) }

// Weight returns the portfolio weight of a symbol, zero if not held.
func (s *Snapshot) Weight(symbol string) float64 { return s.Weights[symbol] }
