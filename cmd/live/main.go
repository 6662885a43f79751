package main

import (
	"context"
	"errors"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/config"
	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/execution"
	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/metrics"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/strategy"
	"github.com/geyingli/binance-monitor/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "config file path")
	live := flag.Bool("live", false, "route orders to the exchange instead of paper logging")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := util.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)
	log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := exchange.NewClient(
		os.Getenv("BINANCE_API_KEY"),
		os.Getenv("BINANCE_API_SECRET"),
		cfg.Exchange.Testnet,
		log,
	)

	var exec execution.Executor = execution.NewLogExecutor(log)
	if *live {
		if os.Getenv("BINANCE_API_KEY") == "" {
			log.Fatal().Msg("-live requires BINANCE_API_KEY / BINANCE_API_SECRET")
		}
		exec = exchange.NewTrader(client, log)
		log.Warn().Bool("testnet", cfg.Exchange.Testnet).Msg("LIVE order routing enabled")
	}

	models := seedModels(ctx, cfg, client, log)
	if len(models) == 0 {
		log.Fatal().Msg("no symbol could be seeded")
	}

	costs := ledger.Costs{
		LongFriction:  cfg.Sim.LongFriction,
		ShortFriction: cfg.Sim.ShortFriction,
		Slippage:      cfg.Sim.Slippage,
		CloseEpsilon:  cfg.Sim.CloseEpsilon,
	}
	account := ledger.NewAccount(cfg.Exchange.BasicCurrency, cfg.Sim.InitBalance, costs, log)
	driver := strategy.NewDriver(strategy.Params{
		PerAssetFraction: cfg.Strategy.PerAssetFraction,
		TradeFloor:       cfg.Strategy.TradeFloor,
		DustValue:        cfg.Sim.DustValue,
		TakeProfitRatio:  cfg.Strategy.TakeProfitRatio,
		StopLossRatio:    cfg.Strategy.StopLossRatio,
	}, risk.Limits{
		MaxNotionalPerTrade: cfg.Sim.MaxNotionalTrade,
		MaxPortfolioValue:   cfg.Sim.MaxPortfolio,
	}, log)

	symbols := make([]string, 0, len(models))
	for sym := range models {
		symbols = append(symbols, sym)
	}
	feed := exchange.NewFeed(exchange.ProviderBinance, symbols, log)
	ticks := make(chan signal.Tick, 1024)
	go func() {
		if err := feed.Run(ctx, ticks); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("feed stopped")
			cancel()
		}
	}()

	status := time.NewTicker(10 * time.Minute)
	defer status.Stop()

	log.Info().Int("symbols", len(symbols)).Msg("live engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Float64("final_value", account.TotalValue()).Msg("shutting down")
			return
		case <-status.C:
			log.Info().Float64("total", account.TotalValue()).
				Float64("cash", account.Balance()).
				Strs("assets", account.Assets()).Msg("status")
		case tk := <-ticks:
			m, ok := models[tk.Symbol]
			if !ok {
				continue
			}
			m.Update(tk)
			account.Update([]signal.Tick{tk}, cfg.Sim.InterestRate)

			s := m.Evaluate()
			if s == nil {
				continue
			}
			orders := mirrorOrders(s, account, driver, cfg.Exchange.BasicCurrency)
			if !driver.Apply(s, account) {
				continue
			}
			for _, order := range orders {
				if _, err := exec.Submit(ctx, order); err != nil {
					log.Error().Err(err).Str("symbol", order.Symbol).Msg("order routing failed")
				}
			}
		}
	}
}

// seedModels builds one momentum model per configured symbol, preferring
// on-disk history and falling back to a fresh kline download.
func seedModels(ctx context.Context, cfg *config.Config, client *exchange.Client, log zerolog.Logger) map[string]*model.Momentum {
	const seedDays = 8 // one long window plus slack

	models := make(map[string]*model.Momentum)
	for _, sym := range cfg.Exchange.Symbols {
		ticks, err := exchange.LoadHistory(cfg.Exchange.HistoryDir, sym)
		if err != nil || len(ticks) < model.SeedLength {
			ticks, err = client.HistoricalTicks(ctx, sym, seedDays)
			if err != nil {
				log.Warn().Err(err).Str("symbol", sym).Msg("seed download failed, excluded")
				continue
			}
		}
		if len(ticks) > model.SeedLength {
			ticks = ticks[len(ticks)-model.SeedLength:]
		}
		m, err := model.New(sym, sym == cfg.Backtest.BenchmarkSymbol, model.Params{
			VolumeBreakoutRatio: cfg.Strategy.VolumeBreakoutRatio,
			VolumeBreakoutFloor: cfg.Strategy.VolumeBreakoutFloor,
			CrashDrop:           cfg.Strategy.CrashDrop,
			MomentumRise:        cfg.Strategy.MomentumRise,
		}, ticks)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("model excluded")
			continue
		}
		models[sym] = m
		log.Info().Str("symbol", sym).Msg("model seeded")
	}
	return models
}

// mirrorOrders translates a signal into the venue orders that reproduce
// what the simulated account is about to do, captured before the ledger
// mutates.
func mirrorOrders(s *signal.Signal, account *ledger.Account, driver *strategy.Driver, basic string) []execution.Order {
	switch s.Action {
	case signal.ActionLong:
		return []execution.Order{{
			Symbol:     s.Symbol,
			Side:       execution.Buy,
			QuoteValue: driver.Sizing(account),
		}}
	case signal.ActionCloseAll:
		var orders []execution.Order
		for _, asset := range account.Assets() {
			pos, ok := account.Position(asset)
			if !ok || pos.Side != ledger.SideLong {
				continue
			}
			orders = append(orders, execution.Order{
				Symbol:     signal.Pair(asset, basic),
				Side:       execution.Sell,
				QuoteValue: pos.Value,
			})
		}
		return orders
	default:
		return nil
	}
}
