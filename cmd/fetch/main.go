package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/config"
	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "config file path")
	days := flag.Int("days", 14, "how many days of minute candles to download")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := util.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Kline downloads hit public endpoints, keys are optional here.
	client := exchange.NewClient(
		os.Getenv("BINANCE_API_KEY"),
		os.Getenv("BINANCE_API_SECRET"),
		cfg.Exchange.Testnet,
		log,
	)

	for _, sym := range cfg.Exchange.Symbols {
		if ctx.Err() != nil {
			break
		}
		if err := fetchSymbol(ctx, client, cfg.Exchange.HistoryDir, sym, *days, log); err != nil {
			log.Error().Err(err).Str("symbol", sym).Msg("fetch failed")
		}
	}
}

// fetchSymbol appends missing minute candles for one symbol, resuming from
// the last stored timestamp when a history file already exists.
func fetchSymbol(ctx context.Context, client *exchange.Client, dir, sym string, days int, log zerolog.Logger) error {
	existing, err := exchange.LoadHistory(dir, sym)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	ticks, err := client.HistoricalTicks(ctx, sym, days)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		lastTs := existing[len(existing)-1].Ts
		fresh := ticks[:0:0]
		for _, tick := range ticks {
			if tick.Ts.After(lastTs) {
				fresh = append(fresh, tick)
			}
		}
		ticks = fresh
	}
	if len(ticks) == 0 {
		log.Info().Str("symbol", sym).Msg("history already up to date")
		return nil
	}

	if err := exchange.WriteHistory(dir, sym, ticks); err != nil {
		return err
	}
	log.Info().Str("symbol", sym).Int("ticks", len(ticks)).
		Str("file", exchange.HistoryPath(dir, sym)).Msg("history written")
	return nil
}

