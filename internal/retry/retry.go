package retry

import (
	"context"
	"fmt"
	"time"

	"conviction-trading-bot/internal/logger"
)

// Config controls the fixed sleep-and-retry behavior used for brokerage
// calls. There is deliberately no backoff curve: attempts are cheap and the
// cycle cadence is minutes, not milliseconds.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 3, Delay: 2 * time.Second}
}

// Do runs op up to MaxAttempts times, sleeping Delay between attempts.
// Returns the last error if every attempt fails.
func Do(ctx context.Context, cfg Config, name string, op func(ctx context.Context) error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts {
			logger.Warn(ctx, "Operation failed, retrying",
				"operation", name,
				"attempt", attempt,
				"max_attempts", cfg.MaxAttempts,
				"error", lastErr,
			)
			select {
			case <-time.After(cfg.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxAttempts, lastErr)
}
