package backtest

import (
	"context"
	"errors"

	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/strategy"
	"github.com/geyingli/binance-monitor/internal/util"
)

// ScoreInput is one candidate parameterization over a fixed data set.
// The tick series are shared across calls and never mutated.
type ScoreInput struct {
	Ticks       map[string][]signal.Tick
	Benchmark   string
	BasicAsset  string
	InitBalance float64
	Costs       ledger.Costs
	Model       model.Params
	Driver      strategy.Params
	Limits      risk.Limits
	Options     Options
}

// Score runs a full replay with the given parameters and returns the
// final account value. Every call builds fresh state, so repeated calls
// with the same input yield the same scalar; hyperparameter optimizers
// may call it concurrently.
func Score(in ScoreInput) float64 {
	log := util.NewLogger("disabled")
	account := ledger.NewAccount(in.BasicAsset, in.InitBalance, in.Costs, log)
	driver := strategy.NewDriver(in.Driver, in.Limits, log)

	models := make(map[string]*model.Momentum)
	iters := make(map[string]*exchange.Iterator)
	for sym, series := range in.Ticks {
		if len(series) <= model.SeedLength {
			continue
		}
		m, err := model.New(sym, sym == in.Benchmark, in.Model, series[:model.SeedLength])
		if err != nil {
			if !errors.Is(err, model.ErrShortHistory) {
				log.Warn().Err(err).Str("symbol", sym).Msg("model rejected")
			}
			continue
		}
		models[sym] = m
		iters[sym] = exchange.NewIterator(series[model.SeedLength:])
	}
	if len(models) == 0 {
		return in.InitBalance
	}

	opts := in.Options
	opts.Benchmark = in.Benchmark
	opts.BasicCurrency = in.BasicAsset

	loop := NewLoop(account, driver, models, iters, &MemoryRecorder{}, opts, log)
	res, err := loop.Run(context.Background())
	if err != nil {
		return account.TotalValue()
	}
	return res.FinalValue
}
