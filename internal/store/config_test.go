package store

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	p := writeConfig(t, "mode: DRY_RUN\nuniverse: [AAPL, MSFT]\n")

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Benchmark != "SPY" {
		t.Errorf("default benchmark = %s, want SPY", cfg.Benchmark)
	}
	if cfg.Alpaca.TradingURL != "https://paper-api.alpaca.markets" {
		t.Errorf("default trading URL = %s", cfg.Alpaca.TradingURL)
	}
	if cfg.Kelly.Fractional != 0.5 {
		t.Errorf("default kelly fractional = %.2f, want 0.5", cfg.Kelly.Fractional)
	}
	if cfg.Risk.MinCashReservePct != 0.10 {
		t.Errorf("default cash reserve = %.2f, want 0.10", cfg.Risk.MinCashReservePct)
	}
	if cfg.Risk.StateFile == "" || cfg.Conviction.StateFile == "" {
		t.Error("state file defaults missing")
	}
	if cfg.MonteCarlo.Simulations != 10000 {
		t.Errorf("default simulations = %d, want 10000", cfg.MonteCarlo.Simulations)
	}
	w := cfg.Scoring.Weights
	sum := w.RSI + w.MACD + w.Trend + w.Volume + w.MeanReversion + w.Momentum
	if sum < 0.99 || sum > 1.01 {
		t.Errorf("default weights sum = %.3f, want 1.0", sum)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	p := writeConfig(t, `
mode: DRY_RUN
universe: [AAPL]
kelly:
  fractional: 0.25
risk:
  max_daily_trades: 5
`)

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Kelly.Fractional != 0.25 {
		t.Errorf("kelly fractional = %.2f, want override 0.25", cfg.Kelly.Fractional)
	}
	if cfg.Risk.MaxDailyTrades != 5 {
		t.Errorf("max daily trades = %d, want override 5", cfg.Risk.MaxDailyTrades)
	}
}

func TestLoadConfigRejectsBadMode(t *testing.T) {
	p := writeConfig(t, "mode: YOLO\nuniverse: [AAPL]\n")
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error for invalid mode")
	}
}

func TestLoadConfigRejectsEmptyUniverse(t *testing.T) {
	p := writeConfig(t, "mode: DRY_RUN\n")
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error for empty universe")
	}
}

func TestLoadConfigRejectsLopsidedWeights(t *testing.T) {
	p := writeConfig(t, `
mode: DRY_RUN
universe: [AAPL]
scoring:
  weights:
    rsi: 0.9
`)
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error when weights do not sum to 1")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
