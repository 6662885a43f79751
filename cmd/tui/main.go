package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/geyingli/binance-monitor/internal/config"
)

const defaultConfigPath = "internal/config/config.yaml"

func main() {
	reader := bufio.NewReader(os.Stdin)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	for {
		fmt.Println("\n=== Binance Monitor Control ===")
		fmt.Println("1) Show configuration summary")
		fmt.Println("2) Edit simulation knobs")
		fmt.Println("3) Edit strategy knobs")
		fmt.Println("4) Edit backtest window")
		fmt.Println("5) Save config")
		fmt.Println("6) Launch backtest")
		fmt.Println("7) Reload config from disk")
		fmt.Println("0) Exit")
		fmt.Print("Select option: ")

		input, _ := reader.ReadString('\n')
		choice := strings.TrimSpace(input)

		switch choice {
		case "1":
			printSummary(cfg)
		case "2":
			editSim(reader, cfg)
		case "3":
			editStrategy(reader, cfg)
		case "4":
			editBacktest(reader, cfg)
		case "5":
			if err := saveConfig(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			} else {
				fmt.Println("config saved")
			}
		case "6":
			launchBacktest(reader)
		case "7":
			reloaded, err := loadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "reload failed: %v\n", err)
			} else {
				cfg = reloaded
				fmt.Println("config reloaded")
			}
		case "0":
			return
		default:
			fmt.Println("unknown option")
		}
	}
}

func printSummary(cfg *config.Config) {
	fmt.Println("\n--- Configuration Summary ---")
	fmt.Printf("Symbols: %s (quote %s)\n", strings.Join(cfg.Exchange.Symbols, ", "), cfg.Exchange.BasicCurrency)
	fmt.Printf("Initial balance: $%.2f\n", cfg.Sim.InitBalance)
	fmt.Printf("Friction long/short: %.3f%% / %.3f%% | slippage %.3f%%\n",
		cfg.Sim.LongFriction*100, cfg.Sim.ShortFriction*100, cfg.Sim.Slippage*100)
	fmt.Printf("Short interest: %.1f%% APR\n", cfg.Sim.InterestRate*100)
	fmt.Printf("Volume breakout: %.0fx over $%.0f floor\n", cfg.Strategy.VolumeBreakoutRatio, cfg.Strategy.VolumeBreakoutFloor)
	fmt.Printf("Crash drop: %.1f%% | momentum rise: %.1f%%\n", cfg.Strategy.CrashDrop*100, cfg.Strategy.MomentumRise*100)
	fmt.Printf("Allocation: %.0f%% per asset (floor $%.0f)\n", cfg.Strategy.PerAssetFraction*100, cfg.Strategy.TradeFloor)
	fmt.Printf("Take profit / stop loss: %.1f%% / %.1f%%\n", cfg.Strategy.TakeProfitRatio*100, cfg.Strategy.StopLossRatio*100)
	fmt.Printf("Backtest: top %d, rerank %dh, record %dh, max hold %dd\n",
		cfg.Backtest.TopN, cfg.Backtest.RerankHours, cfg.Backtest.RecordHours, cfg.Backtest.MaxHoldDays)
	fmt.Printf("Equity curve: %s (benchmark %s)\n", cfg.Backtest.CurvePath, cfg.Backtest.BenchmarkSymbol)
}

func editSim(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Simulation ---")
	cfg.Sim.InitBalance = promptFloat(reader, "Initial balance", cfg.Sim.InitBalance)
	cfg.Sim.LongFriction = promptPercent(reader, "Long friction (%)", cfg.Sim.LongFriction)
	cfg.Sim.ShortFriction = promptPercent(reader, "Short friction (%)", cfg.Sim.ShortFriction)
	cfg.Sim.Slippage = promptPercent(reader, "Slippage (%)", cfg.Sim.Slippage)
	cfg.Sim.InterestRate = promptPercent(reader, "Short interest APR (%)", cfg.Sim.InterestRate)
	cfg.Sim.DustValue = promptFloat(reader, "Dust value (USD)", cfg.Sim.DustValue)
	cfg.Sim.MaxNotionalTrade = promptFloat(reader, "Max notional per trade (USD, 0 = off)", cfg.Sim.MaxNotionalTrade)
	cfg.Sim.MaxPortfolio = promptFloat(reader, "Max portfolio value (USD, 0 = off)", cfg.Sim.MaxPortfolio)
}

func editStrategy(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Strategy ---")
	cfg.Strategy.VolumeBreakoutRatio = promptFloat(reader, "Volume breakout ratio (x)", cfg.Strategy.VolumeBreakoutRatio)
	cfg.Strategy.VolumeBreakoutFloor = promptFloat(reader, "Volume breakout floor (USD)", cfg.Strategy.VolumeBreakoutFloor)
	cfg.Strategy.CrashDrop = promptPercent(reader, "Crash drop (%)", cfg.Strategy.CrashDrop)
	cfg.Strategy.MomentumRise = promptPercent(reader, "Momentum rise (%)", cfg.Strategy.MomentumRise)
	cfg.Strategy.PerAssetFraction = promptPercent(reader, "Per-asset allocation (%)", cfg.Strategy.PerAssetFraction)
	cfg.Strategy.TradeFloor = promptFloat(reader, "Trade floor (USD)", cfg.Strategy.TradeFloor)
	cfg.Strategy.TakeProfitRatio = promptPercent(reader, "Take profit (%)", cfg.Strategy.TakeProfitRatio)
	cfg.Strategy.StopLossRatio = promptPercent(reader, "Stop loss (%)", cfg.Strategy.StopLossRatio)
}

func editBacktest(reader *bufio.Reader, cfg *config.Config) {
	fmt.Println("\n--- Edit Backtest ---")
	cfg.Backtest.TopN = int(promptFloat(reader, "Top traded symbols", float64(cfg.Backtest.TopN)))
	cfg.Backtest.RerankHours = int(promptFloat(reader, "Rerank every (hours)", float64(cfg.Backtest.RerankHours)))
	cfg.Backtest.RecordHours = int(promptFloat(reader, "Record every (hours)", float64(cfg.Backtest.RecordHours)))
	cfg.Backtest.MaxHoldDays = int(promptFloat(reader, "Max hold (days)", float64(cfg.Backtest.MaxHoldDays)))
	fmt.Printf("Start [%s]: ", cfg.Backtest.Start)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Backtest.Start = strings.TrimSpace(line)
	}
	fmt.Printf("End [%s]: ", cfg.Backtest.End)
	if line, _ := reader.ReadString('\n'); strings.TrimSpace(line) != "" {
		cfg.Backtest.End = strings.TrimSpace(line)
	}
}

func launchBacktest(reader *bufio.Reader) {
	fmt.Println("Launching backtest (Ctrl+C to stop)...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "run", "./cmd/backtest")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start backtest: %v\n", err)
		return
	}

	go func() {
		_ = cmd.Wait()
		cancel()
	}()

	fmt.Print("\nPress ENTER to stop the run and return to menu...")
	_, _ = reader.ReadString('\n')
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func promptFloat(reader *bufio.Reader, label string, current float64) float64 {
	fmt.Printf("%s [%.2f]: ", label, current)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return current
	}
	val, err := strconv.ParseFloat(line, 64)
	if err != nil {
		fmt.Printf("invalid number, keeping %.2f\n", current)
		return current
	}
	return val
}

func promptPercent(reader *bufio.Reader, label string, current float64) float64 {
	pct := promptFloat(reader, label, current*100)
	return pct / 100
}

func loadConfig() (*config.Config, error) {
	return config.Load(locateConfig())
}

func saveConfig(cfg *config.Config) error {
	return config.Save(locateConfig(), cfg)
}

func locateConfig() string {
	if filepath.IsAbs(defaultConfigPath) {
		return defaultConfigPath
	}
	return filepath.Clean(defaultConfigPath)
}
