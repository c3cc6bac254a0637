package interfaces

import (
	"context"

	"conviction-trading-bot/internal/types"
)

type Engine interface {
	Cycle(ctx context.Context) (*types.CycleResult, error)
	Scan(ctx context.Context) ([]types.SymbolScore, error)
	ScanExits(ctx context.Context) ([]string, error)
}
