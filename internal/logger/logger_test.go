package logger

import (
	"context"
	"errors"
	"testing"
)

// Logging must be safe before Init runs: most packages log from constructors
// and tests that never touch Init.
func TestLogBeforeInit(t *testing.T) {
	ctx := context.Background()

	Info(ctx, "message before init", "key", "value")
	Warn(ctx, "warning before init")
	Error(ctx, "error before init")
	ErrorWithErr(ctx, "wrapped error before init", errors.New("boom"))
	Trade(ctx, "AAPL", "BUY", 1, 100, "ord-1")
	Risk(ctx, "AAPL", "test_event")
	InfoSkip(ctx, 1, "skip variant before init")
}

func TestInitReplacesDefaultLogger(t *testing.T) {
	if err := InitWithConfig(LogConfig{Level: "DEBUG", Format: "json", TracingEnabled: false}); err != nil {
		t.Fatalf("InitWithConfig: %v", err)
	}
	if globalLogger == nil {
		t.Fatal("expected a configured logger after init")
	}
	Info(context.Background(), "message after init")
}
