package config

import (
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	path := filepath.Join("testdata", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.App.Name != "binance-monitor-test" {
		t.Fatalf("unexpected App.Name: %s", cfg.App.Name)
	}
	if len(cfg.Exchange.Symbols) != 2 || cfg.Exchange.Symbols[0] != "BTCUSDT" {
		t.Fatalf("unexpected symbols: %+v", cfg.Exchange.Symbols)
	}
	if cfg.Exchange.BasicCurrency != "USDT" {
		t.Fatalf("unexpected basic currency: %s", cfg.Exchange.BasicCurrency)
	}
	if cfg.Exchange.HistoryDir != ".backup/data" {
		t.Fatalf("unexpected history dir: %s", cfg.Exchange.HistoryDir)
	}
	if cfg.Sim.InitBalance != 10000 {
		t.Fatalf("unexpected init balance: %.2f", cfg.Sim.InitBalance)
	}
	if cfg.Sim.LongFriction != 0.001 || cfg.Sim.ShortFriction != 0.001 {
		t.Fatalf("unexpected frictions: %+v", cfg.Sim)
	}
	if cfg.Sim.InterestRate != 0.14 {
		t.Fatalf("unexpected interest rate: %.4f", cfg.Sim.InterestRate)
	}
	if cfg.Sim.MaxNotionalTrade != 5000 {
		t.Fatalf("unexpected max notional: %.2f", cfg.Sim.MaxNotionalTrade)
	}
	if cfg.Strategy.VolumeBreakoutRatio != 10 {
		t.Fatalf("unexpected breakout ratio: %.2f", cfg.Strategy.VolumeBreakoutRatio)
	}
	if cfg.Strategy.VolumeBreakoutFloor != 1000000 {
		t.Fatalf("unexpected breakout floor: %.2f", cfg.Strategy.VolumeBreakoutFloor)
	}
	if cfg.Strategy.PerAssetFraction != 0.1 {
		t.Fatalf("unexpected per-asset fraction: %.2f", cfg.Strategy.PerAssetFraction)
	}
	if cfg.Backtest.TopN != 50 {
		t.Fatalf("unexpected top N: %d", cfg.Backtest.TopN)
	}
	if cfg.Backtest.RerankHours != 3 || cfg.Backtest.RecordHours != 2 {
		t.Fatalf("unexpected intervals: %+v", cfg.Backtest)
	}
	if cfg.Backtest.MaxHoldDays != 3 {
		t.Fatalf("unexpected max hold: %d", cfg.Backtest.MaxHoldDays)
	}
	if cfg.Backtest.BenchmarkSymbol != "BTCUSDT" {
		t.Fatalf("unexpected benchmark: %s", cfg.Backtest.BenchmarkSymbol)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload returned error: %v", err)
	}
	if loaded.Sim.InitBalance != cfg.Sim.InitBalance || loaded.App.Name != cfg.App.Name {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
}

func TestSaveNil(t *testing.T) {
	if err := Save(filepath.Join(t.TempDir(), "x.yaml"), nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}
