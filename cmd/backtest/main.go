package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/backtest"
	"github.com/geyingli/binance-monitor/internal/config"
	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/strategy"
	"github.com/geyingli/binance-monitor/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "config file path")
	optimize := flag.Int("optimize", 0, "random-search trials over strategy parameters (0 = single run)")
	seed := flag.Int64("seed", 1, "random seed for -optimize")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback := util.NewLogger("info")
		fallback.Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	series, err := loadSeries(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load history")
	}
	if len(series) == 0 {
		log.Fatal().Str("dir", cfg.Exchange.HistoryDir).Msg("no usable history, run cmd/fetch first")
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *optimize > 0 {
		runOptimize(ctx, cfg, series, *optimize, *seed, log)
		return
	}
	runOnce(ctx, cfg, series, log)
}

// loadSeries reads every configured symbol's minute history, skipping
// symbols whose files are missing or too short to seed a model. When a
// backtest start is configured, earlier ticks are dropped.
func loadSeries(cfg *config.Config) (map[string][]signal.Tick, error) {
	log := util.NewLogger(cfg.App.LogLevel)

	var start time.Time
	if cfg.Backtest.Start != "" {
		parsed, err := time.Parse(time.RFC3339, cfg.Backtest.Start)
		if err != nil {
			return nil, err
		}
		start = parsed
	}

	series := make(map[string][]signal.Tick)
	for _, sym := range cfg.Exchange.Symbols {
		ticks, err := exchange.LoadHistory(cfg.Exchange.HistoryDir, sym)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				log.Warn().Str("symbol", sym).Msg("no history file, skipped")
				continue
			}
			return nil, err
		}
		if !start.IsZero() {
			for len(ticks) > 0 && ticks[0].Ts.Before(start) {
				ticks = ticks[1:]
			}
		}
		if len(ticks) <= model.SeedLength {
			log.Warn().Str("symbol", sym).Int("ticks", len(ticks)).Msg("history too short, skipped")
			continue
		}
		series[sym] = ticks
	}
	return series, nil
}

func runOnce(ctx context.Context, cfg *config.Config, series map[string][]signal.Tick, log zerolog.Logger) {
	account := ledger.NewAccount(cfg.Exchange.BasicCurrency, cfg.Sim.InitBalance, simCosts(cfg), log)
	driver := strategy.NewDriver(driverParams(cfg), limits(cfg), log)

	models := make(map[string]*model.Momentum)
	iters := make(map[string]*exchange.Iterator)
	for sym, ticks := range series {
		m, err := model.New(sym, sym == cfg.Backtest.BenchmarkSymbol, modelParams(cfg), ticks[:model.SeedLength])
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("model rejected")
			continue
		}
		models[sym] = m
		iters[sym] = exchange.NewIterator(ticks[model.SeedLength:])
	}

	rec, err := backtest.NewJSONLRecorder(cfg.Backtest.CurvePath)
	if err != nil {
		log.Fatal().Err(err).Msg("open curve recorder")
	}
	defer rec.Close()

	loop := backtest.NewLoop(account, driver, models, iters, rec, loopOptions(cfg, log), log)
	res, err := loop.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("replay aborted")
	}
	log.Info().
		Int("steps", res.Steps).
		Time("start", res.Start).
		Time("end", res.End).
		Float64("init_balance", cfg.Sim.InitBalance).
		Float64("final_value", res.FinalValue).
		Float64("return_pct", (res.FinalValue/cfg.Sim.InitBalance-1)*100).
		Msg("backtest done")
}

// runOptimize random-searches the model/driver knobs around the configured
// values and reports the best-scoring candidate.
func runOptimize(ctx context.Context, cfg *config.Config, series map[string][]signal.Tick, trials int, seed int64, log zerolog.Logger) {
	rng := rand.New(rand.NewSource(seed))
	opts := loopOptions(cfg, log)

	best := backtest.ScoreInput{
		Ticks:       series,
		Benchmark:   cfg.Backtest.BenchmarkSymbol,
		BasicAsset:  cfg.Exchange.BasicCurrency,
		InitBalance: cfg.Sim.InitBalance,
		Costs:       simCosts(cfg),
		Model:       modelParams(cfg),
		Driver:      driverParams(cfg),
		Limits:      limits(cfg),
		Options:     opts,
	}
	bestScore := backtest.Score(best)
	log.Info().Float64("score", bestScore).Msg("baseline")

	for i := 0; i < trials; i++ {
		if ctx.Err() != nil {
			break
		}
		candidate := best
		candidate.Model.VolumeBreakoutRatio = jitter(rng, cfg.Strategy.VolumeBreakoutRatio)
		candidate.Model.MomentumRise = jitter(rng, cfg.Strategy.MomentumRise)
		candidate.Model.CrashDrop = jitter(rng, cfg.Strategy.CrashDrop)
		candidate.Driver.PerAssetFraction = jitter(rng, cfg.Strategy.PerAssetFraction)
		candidate.Driver.TakeProfitRatio = jitter(rng, cfg.Strategy.TakeProfitRatio)
		candidate.Driver.StopLossRatio = jitter(rng, cfg.Strategy.StopLossRatio)

		score := backtest.Score(candidate)
		log.Info().Int("trial", i+1).Float64("score", score).
			Float64("breakout_ratio", candidate.Model.VolumeBreakoutRatio).
			Float64("momentum_rise", candidate.Model.MomentumRise).
			Float64("tp", candidate.Driver.TakeProfitRatio).
			Float64("sl", candidate.Driver.StopLossRatio).
			Msg("trial done")
		if score > bestScore {
			bestScore = score
			best = candidate
		}
	}

	log.Info().Float64("score", bestScore).
		Float64("breakout_ratio", best.Model.VolumeBreakoutRatio).
		Float64("momentum_rise", best.Model.MomentumRise).
		Float64("crash_drop", best.Model.CrashDrop).
		Float64("fraction", best.Driver.PerAssetFraction).
		Float64("tp", best.Driver.TakeProfitRatio).
		Float64("sl", best.Driver.StopLossRatio).
		Msg("best candidate")
}

// jitter scales a base value by a uniform factor in [0.5, 1.5).
func jitter(rng *rand.Rand, base float64) float64 {
	return base * (0.5 + rng.Float64())
}

func simCosts(cfg *config.Config) ledger.Costs {
	return ledger.Costs{
		LongFriction:  cfg.Sim.LongFriction,
		ShortFriction: cfg.Sim.ShortFriction,
		Slippage:      cfg.Sim.Slippage,
		CloseEpsilon:  cfg.Sim.CloseEpsilon,
	}
}

func modelParams(cfg *config.Config) model.Params {
	return model.Params{
		VolumeBreakoutRatio: cfg.Strategy.VolumeBreakoutRatio,
		VolumeBreakoutFloor: cfg.Strategy.VolumeBreakoutFloor,
		CrashDrop:           cfg.Strategy.CrashDrop,
		MomentumRise:        cfg.Strategy.MomentumRise,
	}
}

func driverParams(cfg *config.Config) strategy.Params {
	return strategy.Params{
		PerAssetFraction: cfg.Strategy.PerAssetFraction,
		TradeFloor:       cfg.Strategy.TradeFloor,
		DustValue:        cfg.Sim.DustValue,
		TakeProfitRatio:  cfg.Strategy.TakeProfitRatio,
		StopLossRatio:    cfg.Strategy.StopLossRatio,
	}
}

func limits(cfg *config.Config) risk.Limits {
	return risk.Limits{
		MaxNotionalPerTrade: cfg.Sim.MaxNotionalTrade,
		MaxPortfolioValue:   cfg.Sim.MaxPortfolio,
	}
}

func loopOptions(cfg *config.Config, log zerolog.Logger) backtest.Options {
	opts := backtest.Options{
		BasicCurrency: cfg.Exchange.BasicCurrency,
		Benchmark:     cfg.Backtest.BenchmarkSymbol,
		TopN:          cfg.Backtest.TopN,
		RerankEvery:   time.Duration(cfg.Backtest.RerankHours) * time.Hour,
		RecordEvery:   time.Duration(cfg.Backtest.RecordHours) * time.Hour,
		MaxHold:       time.Duration(cfg.Backtest.MaxHoldDays) * 24 * time.Hour,
		InterestRate:  cfg.Sim.InterestRate,
	}
	if cfg.Backtest.End != "" {
		end, err := time.Parse(time.RFC3339, cfg.Backtest.End)
		if err != nil {
			log.Fatal().Err(err).Str("end", cfg.Backtest.End).Msg("bad backtest end")
		}
		opts.End = end
	}
	return opts
}
