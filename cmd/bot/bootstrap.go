package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"conviction-trading-bot/internal/broker/alpaca"
	"conviction-trading-bot/internal/broker/brokerobs"
	"conviction-trading-bot/internal/conviction"
	"conviction-trading-bot/internal/engine"
	"conviction-trading-bot/internal/engine/engineobs"
	"conviction-trading-bot/internal/eod"
	"conviction-trading-bot/internal/eod/eodobs"
	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/montecarlo"
	"conviction-trading-bot/internal/retry"
	"conviction-trading-bot/internal/risk"
	"conviction-trading-bot/internal/sizing"
	"conviction-trading-bot/internal/store"
	"conviction-trading-bot/internal/trace"
	"conviction-trading-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// System holds the wired subsystems the commands operate on.
type System struct {
	Broker      interfaces.Broker
	Engine      interfaces.Engine
	Gate        *risk.Gate
	Convictions *conviction.Manager
}

// initializeSystem initializes logger, tracer, and EOD summarizer
func initializeSystem() error {
	// Load environment variables
	_ = godotenv.Load()

	// Initialize logger
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize tracer
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	// Initialize EOD summarizer with observability
	initializeEOD()

	return nil
}

func shutdownSystem() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = trace.Shutdown(ctx)
	_ = logger.Shutdown(ctx)
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("TRADER_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := tradelog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// buildSystem wires the broker, risk gate, conviction manager and engine.
func buildSystem(ctx context.Context, cfg *store.Config) (*System, error) {
	brk, err := initializeBroker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	gate, err := risk.NewGate(cfg)
	if err != nil {
		return nil, err
	}

	cm, err := conviction.NewManager(cfg)
	if err != nil {
		return nil, err
	}

	eng := initializeEngine(cfg, brk, gate, cm)

	return &System{Broker: brk, Engine: eng, Gate: gate, Convictions: cm}, nil
}

// alpacaCredentials resolves the API key pair from the environment, falling
// back to Alpaca's own variable names.
func alpacaCredentials() (keyID, secret string) {
	keyID = os.Getenv("ALPACA_API_LIVE_KEY")
	if keyID == "" {
		keyID = os.Getenv("APCA_API_KEY_ID")
	}
	secret = os.Getenv("ALPACA_API_SECRET")
	if secret == "" {
		secret = os.Getenv("APCA_API_SECRET_KEY")
	}
	return keyID, secret
}

// initializeBroker initializes and returns the broker instance with observability
func initializeBroker(ctx context.Context, cfg *store.Config) (interfaces.Broker, error) {
	keyID, secret := alpacaCredentials()

	// Create base broker
	brk := alpaca.New(alpaca.Params{
		Mode:       cfg.Mode,
		KeyID:      keyID,
		Secret:     secret,
		TradingURL: cfg.Alpaca.TradingURL,
		DataURL:    cfg.Alpaca.DataURL,
		Feed:       cfg.Alpaca.Feed,
		Timeout:    time.Duration(cfg.Alpaca.TimeoutSec) * time.Second,
		Retry: retry.Config{
			MaxAttempts: cfg.Alpaca.RetryAttempts,
			Delay:       time.Duration(cfg.Alpaca.RetryDelaySec) * time.Second,
		},
		BarCacheTTL: time.Duration(cfg.Alpaca.BarCacheTTLSec) * time.Second,
	})

	// Log initialization info
	if cfg.Mode == "DRY_RUN" {
		logger.Warn(ctx, "Running in DRY_RUN mode - orders will be simulated")
	} else if !brk.HasCredentials() {
		return nil, fmt.Errorf("LIVE mode requires ALPACA_API_LIVE_KEY and ALPACA_API_SECRET")
	}

	// Wrap with observability middleware
	return brokerobs.Wrap(brk), nil
}

// initializeEngine initializes and returns the trading engine with observability
func initializeEngine(cfg *store.Config, brk interfaces.Broker, gate *risk.Gate, cm *conviction.Manager) interfaces.Engine {
	// Create base engine
	eng := engine.New(cfg, brk, gate, cm, sizing.New(cfg), montecarlo.New(cfg, nil))

	// Wrap with observability middleware
	return engineobs.Wrap(eng)
}

// initializeEOD wraps the default EOD summarizer with observability
func initializeEOD() {
	// Create base summarizer
	baseSummarizer := eod.NewSummarizer()

	// Wrap with observability middleware
	observableSummarizer := eodobs.Wrap(baseSummarizer)

	// Set as default summarizer
	eod.SetDefaultSummarizer(observableSummarizer)
}
