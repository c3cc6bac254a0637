package engineobs

import (
	"context"
	"time"

	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/trace"
	"conviction-trading-bot/internal/types"
)

// observableEngine wraps an Engine with observability (logging & tracing)
type observableEngine struct {
	engine interfaces.Engine
}

// Compile-time interface check
var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap wraps an engine with observability middleware
func Wrap(engine interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: engine,
	}
}

// Cycle runs one decision cycle with observability
func (oe *observableEngine) Cycle(ctx context.Context) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Starting decision cycle")

	res, err := oe.engine.Cycle(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision cycle failed", err)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Decision cycle finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"scanned", res.Scanned,
		"entries", len(res.Entries),
		"exits", len(res.Exits),
		"orders", len(res.Orders),
	)
	return res, nil
}

// Scan scores the universe with observability
func (oe *observableEngine) Scan(ctx context.Context) ([]types.SymbolScore, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Scan")
	defer span.End()

	scores, err := oe.engine.Scan(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Universe scan failed", err)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Universe scan finished", "symbols", len(scores))
	return scores, nil
}

// ScanExits evaluates exit rules with observability
func (oe *observableEngine) ScanExits(ctx context.Context) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "engine.ScanExits")
	defer span.End()

	exits, err := oe.engine.ScanExits(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Exit scan failed", err)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Exit scan finished", "executed", len(exits))
	return exits, nil
}
