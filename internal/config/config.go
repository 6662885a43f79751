// Package config exposes strongly typed application configuration structs
// loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes connectivity and the traded universe.
type Exchange struct {
	Name           string   `yaml:"name"`
	Symbols        []string `yaml:"symbols"`
	BasicCurrency  string   `yaml:"basic_currency"`
	APIKey         string   `yaml:"api_key"`
	APISecret      string   `yaml:"api_secret"`
	Testnet        bool     `yaml:"testnet"`
	HistoryDir     string   `yaml:"history_dir"`
	PollIntervalMs int      `yaml:"poll_interval_ms"`
}

// Sim holds the virtual account parameters.
type Sim struct {
	InitBalance      float64 `yaml:"init_balance"`
	LongFriction     float64 `yaml:"long_friction"`
	ShortFriction    float64 `yaml:"short_friction"`
	Slippage         float64 `yaml:"slippage"`
	InterestRate     float64 `yaml:"interest_rate"` // per year, on shorts
	DustValue        float64 `yaml:"dust_value"`
	CloseEpsilon     float64 `yaml:"close_epsilon"`
	MaxNotionalTrade float64 `yaml:"max_notional_per_trade"`
	MaxPortfolio     float64 `yaml:"max_portfolio_value"`
}

// Strategy groups the model and driver knobs.
type Strategy struct {
	VolumeBreakoutRatio float64 `yaml:"volume_breakout_ratio"`
	VolumeBreakoutFloor float64 `yaml:"volume_breakout_floor"`
	CrashDrop           float64 `yaml:"crash_drop"`
	MomentumRise        float64 `yaml:"momentum_rise"`
	PerAssetFraction    float64 `yaml:"per_asset_fraction"`
	TradeFloor          float64 `yaml:"trade_floor"`
	TakeProfitRatio     float64 `yaml:"take_profit_ratio"`
	StopLossRatio       float64 `yaml:"stop_loss_ratio"`
}

// Backtest controls the replay loop.
type Backtest struct {
	Start           string `yaml:"start"` // RFC3339
	End             string `yaml:"end"`
	TopN            int    `yaml:"top_n"`
	RerankHours     int    `yaml:"rerank_hours"`
	RecordHours     int    `yaml:"record_hours"`
	MaxHoldDays     int    `yaml:"max_hold_days"`
	CurvePath       string `yaml:"curve_path"`
	BenchmarkSymbol string `yaml:"benchmark_symbol"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App      App      `yaml:"app"`
	Exchange Exchange `yaml:"exchange"`
	Sim      Sim      `yaml:"sim"`
	Strategy Strategy `yaml:"strategy"`
	Backtest Backtest `yaml:"backtest"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
