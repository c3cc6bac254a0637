package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode        string   `yaml:"mode"`
	PollSeconds int      `yaml:"poll_seconds"`
	CycleCron   string   `yaml:"cycle_cron"`
	Universe    []string `yaml:"universe"`
	Benchmark   string   `yaml:"benchmark"`
	Alpaca      struct {
		TradingURL     string `yaml:"trading_url"`
		DataURL        string `yaml:"data_url"`
		Feed           string `yaml:"feed"`
		BarCacheTTLSec int    `yaml:"bar_cache_ttl_sec"`
		TimeoutSec     int    `yaml:"timeout_sec"`
		RetryAttempts  int    `yaml:"retry_attempts"`
		RetryDelaySec  int    `yaml:"retry_delay_sec"`
	} `yaml:"alpaca"`
	Indicators struct {
		SMAWindows []int `yaml:"sma_windows"`
		RSIPeriod  int   `yaml:"rsi_period"`
		ADXPeriod  int   `yaml:"adx_period"`
		ATRPeriod  int   `yaml:"atr_period"`
		VolWindow  int   `yaml:"vol_window"`
		MinBars    int   `yaml:"min_bars"`
	} `yaml:"indicators"`
	Scoring struct {
		Weights struct {
			RSI           float64 `yaml:"rsi"`
			MACD          float64 `yaml:"macd"`
			Trend         float64 `yaml:"trend"`
			Volume        float64 `yaml:"volume"`
			MeanReversion float64 `yaml:"mean_reversion"`
			Momentum      float64 `yaml:"momentum"`
		} `yaml:"weights"`
		MinEntryScore float64 `yaml:"min_entry_score"`
		MinConfidence float64 `yaml:"min_confidence"`
		StopATRMult   float64 `yaml:"stop_atr_mult"`
		TargetATRMult float64 `yaml:"target_atr_mult"`
	} `yaml:"scoring"`
	Kelly struct {
		Fractional          float64 `yaml:"fractional"`
		MaxKellyFraction    float64 `yaml:"max_kelly_fraction"`
		MaxPositionPct      float64 `yaml:"max_position_pct"`
		MinPositionPct      float64 `yaml:"min_position_pct"`
		MinEdgeToBet        float64 `yaml:"min_edge_to_bet"`
		LowConfluenceShrink float64 `yaml:"low_confluence_shrink"`
		MinTradeDollars     float64 `yaml:"min_trade_dollars"`
	} `yaml:"kelly"`
	MonteCarlo struct {
		Simulations       int     `yaml:"simulations"`
		HorizonDays       int     `yaml:"horizon_days"`
		MinReturns        int     `yaml:"min_returns"`
		DrawdownTolerance float64 `yaml:"drawdown_tolerance"`
		LookbackDays      int     `yaml:"lookback_days"`
	} `yaml:"montecarlo"`
	Risk struct {
		MaxPositionPct      float64 `yaml:"max_position_pct"`
		MinCashReservePct   float64 `yaml:"min_cash_reserve_pct"`
		MaxPortfolioHeat    float64 `yaml:"max_portfolio_heat"`
		MaxRiskPerTradePct  float64 `yaml:"max_risk_per_trade_pct"`
		MinTradeDollars     float64 `yaml:"min_trade_dollars"`
		MaxDailyTrades      int     `yaml:"max_daily_trades"`
		CircuitBreakerDDPct float64 `yaml:"circuit_breaker_dd_pct"`
		MaxConsecutiveLoss  int     `yaml:"max_consecutive_losses"`
		PDTLimit            int     `yaml:"pdt_limit"`
		DrawdownShrinkPct   float64 `yaml:"drawdown_shrink_pct"`
		StateFile           string  `yaml:"state_file"`
	} `yaml:"risk"`
	Conviction ConvictionConfig `yaml:"conviction"`
	Exits struct {
		ZombieLossPct     float64 `yaml:"zombie_loss_pct"`
		ZombieMaxDollars  float64 `yaml:"zombie_max_dollars"`
		DeepLossPct       float64 `yaml:"deep_loss_pct"`
		ConcentrationPct  float64 `yaml:"concentration_pct"`
		ConcentrationTrim float64 `yaml:"concentration_trim_to"`
		TakeProfitPct     float64 `yaml:"take_profit_pct"`
		TakeProfitTrimPct float64 `yaml:"take_profit_trim_pct"`
	} `yaml:"exits"`
}

// ConvictionConfig tunes the conviction state machine. The storm and
// confluence constants are empirically tuned; treat them as configuration,
// not contracts.
type ConvictionConfig struct {
	BaseScore           float64 `yaml:"base_score"`
	MaxHoldDays         int     `yaml:"max_hold_days"`
	HalfLifeDays        int     `yaml:"half_life_days"`
	BaseDecayPerDay     float64 `yaml:"base_decay_per_day"`
	AcceleratedDecayMul float64 `yaml:"accelerated_decay_mult"`
	DeadlineDecayMult   float64 `yaml:"deadline_decay_mult"`
	SentimentWeight     float64 `yaml:"sentiment_weight"`
	SentimentEMAAlpha   float64 `yaml:"sentiment_ema_alpha"`
	AccumulationBoost   float64 `yaml:"accumulation_boost"`
	DistributionPenalty float64 `yaml:"distribution_penalty"`
	PriceConfirmBoost   float64 `yaml:"price_confirm_boost"`
	PriceDenyPenalty    float64 `yaml:"price_deny_penalty"`
	StormThreshold      float64 `yaml:"storm_threshold"`
	StormDampening      float64 `yaml:"storm_dampening"`
	AutoCloseScore      float64 `yaml:"auto_close_score"`
	MaxConcurrent       int     `yaml:"max_concurrent"`
	DipAddPct           float64 `yaml:"dip_add_pct"`
	MinDaysBetweenAdds  int     `yaml:"min_days_between_adds"`
	StateFile           string  `yaml:"state_file"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if len(c.Universe) == 0 {
		return errors.New("universe cannot be empty")
	}
	if c.Kelly.Fractional <= 0 || c.Kelly.Fractional > 1 {
		return fmt.Errorf("kelly.fractional must be in (0,1], got %.2f", c.Kelly.Fractional)
	}
	if c.Risk.MinCashReservePct < 0 || c.Risk.MinCashReservePct >= 1 {
		return fmt.Errorf("risk.min_cash_reserve_pct must be in [0,1), got %.2f", c.Risk.MinCashReservePct)
	}
	if c.Risk.MaxPositionPct <= 0 || c.Risk.MaxPositionPct > 1 {
		return fmt.Errorf("risk.max_position_pct must be in (0,1], got %.2f", c.Risk.MaxPositionPct)
	}
	if c.MonteCarlo.MinReturns < 2 {
		return fmt.Errorf("montecarlo.min_returns must be at least 2, got %d", c.MonteCarlo.MinReturns)
	}
	w := c.Scoring.Weights
	sum := w.RSI + w.MACD + w.Trend + w.Volume + w.MeanReversion + w.Momentum
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.3f", sum)
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	applyDefaults(&c)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}

func applyDefaults(c *Config) {
	if c.PollSeconds == 0 {
		c.PollSeconds = 1800
	}
	if c.CycleCron == "" {
		// every 30 minutes during US regular trading hours, Mon-Fri
		c.CycleCron = "*/30 9-16 * * 1-5"
	}
	if c.Benchmark == "" {
		c.Benchmark = "SPY"
	}
	if c.Alpaca.TradingURL == "" {
		c.Alpaca.TradingURL = "https://paper-api.alpaca.markets"
	}
	if c.Alpaca.DataURL == "" {
		c.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if c.Alpaca.Feed == "" {
		c.Alpaca.Feed = "iex"
	}
	if c.Alpaca.BarCacheTTLSec == 0 {
		c.Alpaca.BarCacheTTLSec = 300
	}
	if c.Alpaca.TimeoutSec == 0 {
		c.Alpaca.TimeoutSec = 10
	}
	if c.Alpaca.RetryAttempts == 0 {
		c.Alpaca.RetryAttempts = 3
	}
	if c.Alpaca.RetryDelaySec == 0 {
		c.Alpaca.RetryDelaySec = 2
	}

	if len(c.Indicators.SMAWindows) == 0 {
		c.Indicators.SMAWindows = []int{20, 50}
	}
	if c.Indicators.RSIPeriod == 0 {
		c.Indicators.RSIPeriod = 14
	}
	if c.Indicators.ADXPeriod == 0 {
		c.Indicators.ADXPeriod = 14
	}
	if c.Indicators.ATRPeriod == 0 {
		c.Indicators.ATRPeriod = 14
	}
	if c.Indicators.VolWindow == 0 {
		c.Indicators.VolWindow = 20
	}
	if c.Indicators.MinBars == 0 {
		c.Indicators.MinBars = 20
	}

	w := &c.Scoring.Weights
	if w.RSI+w.MACD+w.Trend+w.Volume+w.MeanReversion+w.Momentum == 0 {
		w.RSI, w.MACD = 0.20, 0.20
		w.Trend, w.Volume = 0.15, 0.15
		w.MeanReversion, w.Momentum = 0.15, 0.15
	}
	if c.Scoring.MinEntryScore == 0 {
		c.Scoring.MinEntryScore = 55
	}
	if c.Scoring.MinConfidence == 0 {
		c.Scoring.MinConfidence = 0.55
	}
	if c.Scoring.StopATRMult == 0 {
		c.Scoring.StopATRMult = 2.0
	}
	if c.Scoring.TargetATRMult == 0 {
		c.Scoring.TargetATRMult = 3.0
	}

	if c.Kelly.Fractional == 0 {
		c.Kelly.Fractional = 0.5
	}
	if c.Kelly.MaxKellyFraction == 0 {
		c.Kelly.MaxKellyFraction = 0.25
	}
	if c.Kelly.MaxPositionPct == 0 {
		c.Kelly.MaxPositionPct = 0.20
	}
	if c.Kelly.MinPositionPct == 0 {
		c.Kelly.MinPositionPct = 0.01
	}
	if c.Kelly.MinEdgeToBet == 0 {
		c.Kelly.MinEdgeToBet = 0.01
	}
	if c.Kelly.LowConfluenceShrink == 0 {
		c.Kelly.LowConfluenceShrink = 0.7
	}
	if c.Kelly.MinTradeDollars == 0 {
		c.Kelly.MinTradeDollars = 5
	}

	if c.MonteCarlo.Simulations == 0 {
		c.MonteCarlo.Simulations = 10000
	}
	if c.MonteCarlo.HorizonDays == 0 {
		c.MonteCarlo.HorizonDays = 180
	}
	if c.MonteCarlo.MinReturns == 0 {
		c.MonteCarlo.MinReturns = 20
	}
	if c.MonteCarlo.DrawdownTolerance == 0 {
		c.MonteCarlo.DrawdownTolerance = 0.25
	}
	if c.MonteCarlo.LookbackDays == 0 {
		c.MonteCarlo.LookbackDays = 90
	}

	if c.Risk.MaxPositionPct == 0 {
		c.Risk.MaxPositionPct = 0.20
	}
	if c.Risk.MinCashReservePct == 0 {
		c.Risk.MinCashReservePct = 0.10
	}
	if c.Risk.MaxPortfolioHeat == 0 {
		c.Risk.MaxPortfolioHeat = 0.90
	}
	if c.Risk.MaxRiskPerTradePct == 0 {
		c.Risk.MaxRiskPerTradePct = 0.02
	}
	if c.Risk.MinTradeDollars == 0 {
		c.Risk.MinTradeDollars = 10
	}
	if c.Risk.MaxDailyTrades == 0 {
		c.Risk.MaxDailyTrades = 2
	}
	if c.Risk.CircuitBreakerDDPct == 0 {
		c.Risk.CircuitBreakerDDPct = 0.03
	}
	if c.Risk.MaxConsecutiveLoss == 0 {
		c.Risk.MaxConsecutiveLoss = 3
	}
	if c.Risk.PDTLimit == 0 {
		c.Risk.PDTLimit = 3
	}
	if c.Risk.DrawdownShrinkPct == 0 {
		c.Risk.DrawdownShrinkPct = 0.10
	}
	if c.Risk.StateFile == "" {
		c.Risk.StateFile = "state/risk_state.json"
	}

	if c.Conviction.BaseScore == 0 {
		c.Conviction.BaseScore = 75
	}
	if c.Conviction.MaxHoldDays == 0 {
		c.Conviction.MaxHoldDays = 90
	}
	if c.Conviction.HalfLifeDays == 0 {
		c.Conviction.HalfLifeDays = 30
	}
	if c.Conviction.BaseDecayPerDay == 0 {
		c.Conviction.BaseDecayPerDay = 0.5
	}
	if c.Conviction.AcceleratedDecayMul == 0 {
		c.Conviction.AcceleratedDecayMul = 2.5
	}
	if c.Conviction.DeadlineDecayMult == 0 {
		c.Conviction.DeadlineDecayMult = 5.0
	}
	if c.Conviction.SentimentWeight == 0 {
		c.Conviction.SentimentWeight = 12
	}
	if c.Conviction.SentimentEMAAlpha == 0 {
		c.Conviction.SentimentEMAAlpha = 0.3
	}
	if c.Conviction.AccumulationBoost == 0 {
		c.Conviction.AccumulationBoost = 5
	}
	if c.Conviction.DistributionPenalty == 0 {
		c.Conviction.DistributionPenalty = 8
	}
	if c.Conviction.PriceConfirmBoost == 0 {
		c.Conviction.PriceConfirmBoost = 3
	}
	if c.Conviction.PriceDenyPenalty == 0 {
		c.Conviction.PriceDenyPenalty = 4
	}
	if c.Conviction.StormThreshold == 0 {
		c.Conviction.StormThreshold = 0.6
	}
	if c.Conviction.StormDampening == 0 {
		c.Conviction.StormDampening = 0.3
	}
	if c.Conviction.AutoCloseScore == 0 {
		c.Conviction.AutoCloseScore = 10
	}
	if c.Conviction.MaxConcurrent == 0 {
		c.Conviction.MaxConcurrent = 3
	}
	if c.Conviction.DipAddPct == 0 {
		c.Conviction.DipAddPct = 0.05
	}
	if c.Conviction.MinDaysBetweenAdds == 0 {
		c.Conviction.MinDaysBetweenAdds = 2
	}
	if c.Conviction.StateFile == "" {
		c.Conviction.StateFile = "state/convictions.json"
	}

	if c.Exits.ZombieLossPct == 0 {
		c.Exits.ZombieLossPct = 0.60
	}
	if c.Exits.ZombieMaxDollars == 0 {
		c.Exits.ZombieMaxDollars = 5
	}
	if c.Exits.DeepLossPct == 0 {
		c.Exits.DeepLossPct = 0.40
	}
	if c.Exits.ConcentrationPct == 0 {
		c.Exits.ConcentrationPct = 0.25
	}
	if c.Exits.ConcentrationTrim == 0 {
		c.Exits.ConcentrationTrim = 0.20
	}
	if c.Exits.TakeProfitPct == 0 {
		c.Exits.TakeProfitPct = 0.30
	}
	if c.Exits.TakeProfitTrimPct == 0 {
		c.Exits.TakeProfitTrimPct = 0.25
	}
}
