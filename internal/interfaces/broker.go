package interfaces

import (
	"context"

	"conviction-trading-bot/internal/types"
)

type Broker interface {
	RecentBars(ctx context.Context, symbol string, days int) ([]types.Bar, error)
	LatestQuote(ctx context.Context, symbol string) (types.Quote, error)
	Account(ctx context.Context) (types.Account, error)
	Positions(ctx context.Context) ([]types.Position, error)
	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	ClosePosition(ctx context.Context, symbol string, pct float64) (types.OrderResp, error)
}
