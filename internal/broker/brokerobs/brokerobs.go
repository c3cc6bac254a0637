package brokerobs

import (
	"context"

	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/trace"
	"conviction-trading-bot/internal/types"
)

// observableBroker wraps a Broker with observability (logging & tracing)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{
		broker: broker,
	}
}

// RecentBars fetches daily bars with observability
func (ob *observableBroker) RecentBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	ctx, span := trace.StartSpan(ctx, "broker.RecentBars")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching recent bars", "symbol", symbol, "days", days)

	bars, err := ob.broker.RecentBars(ctx, symbol, days)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch bars", err, "symbol", symbol, "days", days)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Bars fetched", "symbol", symbol, "count", len(bars))
	return bars, nil
}

// LatestQuote fetches the latest quote with observability
func (ob *observableBroker) LatestQuote(ctx context.Context, symbol string) (types.Quote, error) {
	ctx, span := trace.StartSpan(ctx, "broker.LatestQuote")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching latest quote", "symbol", symbol)

	q, err := ob.broker.LatestQuote(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quote", err, "symbol", symbol)
		return types.Quote{}, err
	}

	logger.DebugSkip(ctx, 1, "Quote fetched", "symbol", symbol, "bid", q.BidPrice, "ask", q.AskPrice)
	return q, nil
}

// Account fetches the account with observability
func (ob *observableBroker) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Account")
	defer span.End()

	acct, err := ob.broker.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.Account{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched", "equity", acct.Equity, "cash", acct.Cash)
	return acct, nil
}

// Positions fetches open positions with observability
func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, span := trace.StartSpan(ctx, "broker.Positions")
	defer span.End()

	positions, err := ob.broker.Positions(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Positions fetched", "count", len(positions))
	return positions, nil
}

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.PlaceOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Placing order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"notional", req.Notional,
		"tag", req.Tag,
	)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"symbol", req.Symbol,
			"side", req.Side,
		)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 1, "Order placed",
		"symbol", req.Symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
	)
	return resp, nil
}

// ClosePosition liquidates a position with observability
func (ob *observableBroker) ClosePosition(ctx context.Context, symbol string, pct float64) (types.OrderResp, error) {
	ctx, span := trace.StartSpan(ctx, "broker.ClosePosition")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Closing position", "symbol", symbol, "pct", pct)

	resp, err := ob.broker.ClosePosition(ctx, symbol, pct)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to close position", err, "symbol", symbol)
		return types.OrderResp{}, err
	}

	logger.InfoSkip(ctx, 1, "Position close submitted",
		"symbol", symbol,
		"order_id", resp.OrderID,
		"status", resp.Status,
	)
	return resp, nil
}
