package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/strategy"
)

// Options bounds one replay run.
type Options struct {
	BasicCurrency string
	// Benchmark is the symbol sampled alongside account value on the
	// equity curve, typically the base pair.
	Benchmark string
	// TopN restricts trading to the most traded symbols by rolling
	// seven-day volume. Zero means no restriction.
	TopN int
	// RerankEvery is the cadence of the top-N recomputation.
	RerankEvery time.Duration
	// RecordEvery is the equity-curve sampling cadence.
	RecordEvery time.Duration
	// MaxHold force-closes any position older than this. Zero disables.
	MaxHold time.Duration
	// End stops the replay once tick timestamps pass it. Zero means
	// run until every stream is exhausted.
	End time.Time
	// InterestRate is the annual short-borrow rate accrued per minute.
	InterestRate float64
}

// Result summarizes a finished run.
type Result struct {
	FinalValue float64
	Steps      int
	Start      time.Time
	End        time.Time
}

// Loop replays minute ticks through per-symbol models and the strategy
// driver against a simulated account.
type Loop struct {
	account *ledger.Account
	driver  *strategy.Driver
	models  map[string]*model.Momentum
	iters   map[string]*exchange.Iterator
	rec     Recorder
	opts    Options
	log     zerolog.Logger

	ranked   map[string]struct{}
	openedAt map[string]time.Time
}

// NewLoop wires a replay over the given models and tick streams. The
// models and iterators maps are consumed: symbols are removed as their
// streams run dry.
func NewLoop(account *ledger.Account, driver *strategy.Driver, models map[string]*model.Momentum, iters map[string]*exchange.Iterator, rec Recorder, opts Options, log zerolog.Logger) *Loop {
	return &Loop{
		account:  account,
		driver:   driver,
		models:   models,
		iters:    iters,
		rec:      rec,
		opts:     opts,
		log:      log.With().Str("component", "backtest").Logger(),
		ranked:   make(map[string]struct{}),
		openedAt: make(map[string]time.Time),
	}
}

func (l *Loop) symbols() []string {
	out := make([]string, 0, len(l.iters))
	for sym := range l.iters {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Run replays until every stream is exhausted, the End bound is passed,
// or the context is canceled.
func (l *Loop) Run(ctx context.Context) (Result, error) {
	var res Result
	var lastRerank, lastRecord time.Time

	for len(l.iters) > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		now, ticks, done := l.step()
		if done {
			break
		}
		if !l.opts.End.IsZero() && now.After(l.opts.End) {
			break
		}
		if res.Start.IsZero() {
			res.Start = now
		}
		res.End = now
		res.Steps++

		for _, tick := range ticks {
			if m, ok := l.models[tick.Symbol]; ok {
				m.Update(tick)
			}
		}

		l.account.Update(ticks, l.opts.InterestRate)
		l.expireHolds(now)

		if lastRerank.IsZero() || now.Sub(lastRerank) >= l.opts.RerankEvery {
			l.rerank()
			lastRerank = now
		}

		l.act(now)

		if l.rec != nil && l.opts.RecordEvery > 0 &&
			(lastRecord.IsZero() || now.Sub(lastRecord) >= l.opts.RecordEvery) {
			l.record(now)
			lastRecord = now
		}
	}

	res.FinalValue = l.account.TotalValue()
	l.log.Info().Int("steps", res.Steps).Float64("final_value", res.FinalValue).Msg("replay finished")
	return res, nil
}

// step pops one tick per live stream. Streams that run dry are dropped
// along with their models.
func (l *Loop) step() (now time.Time, ticks []signal.Tick, done bool) {
	for _, sym := range l.symbols() {
		tick, ok := l.iters[sym].Next()
		if !ok {
			delete(l.iters, sym)
			delete(l.models, sym)
			delete(l.ranked, sym)
			l.log.Debug().Str("symbol", sym).Msg("stream exhausted")
			continue
		}
		ticks = append(ticks, tick)
		if tick.Ts.After(now) {
			now = tick.Ts
		}
	}
	if len(ticks) == 0 {
		return time.Time{}, nil, true
	}
	return now, ticks, false
}

// expireHolds liquidates positions held longer than the configured bound.
func (l *Loop) expireHolds(now time.Time) {
	for asset := range l.openedAt {
		if _, ok := l.account.Position(asset); !ok {
			delete(l.openedAt, asset)
		}
	}
	for _, asset := range l.account.Assets() {
		if _, tracked := l.openedAt[asset]; !tracked {
			l.openedAt[asset] = now
		}
	}
	if l.opts.MaxHold <= 0 {
		return
	}
	for asset, opened := range l.openedAt {
		if now.Sub(opened) > l.opts.MaxHold {
			l.log.Info().Str("asset", asset).Time("opened", opened).Msg("max hold exceeded, closing")
			if err := l.account.Close(asset, 0, 1); err != nil {
				l.log.Warn().Err(err).Str("asset", asset).Msg("forced close failed")
			}
			delete(l.openedAt, asset)
		}
	}
}

func (l *Loop) rerank() {
	l.ranked = make(map[string]struct{})
	if l.opts.TopN <= 0 {
		for sym := range l.models {
			l.ranked[sym] = struct{}{}
		}
		return
	}
	for _, sym := range strategy.TopTraded(l.models, l.opts.TopN) {
		l.ranked[sym] = struct{}{}
	}
}

// act evaluates every model but only trades the ranked set. Liquidation
// signals bypass the ranking: a base-pair crash closes everything even
// when the base pair itself is not ranked for trading.
func (l *Loop) act(now time.Time) {
	symbols := make([]string, 0, len(l.models))
	for sym := range l.models {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		sig := l.models[sym].Evaluate()
		if sig == nil {
			continue
		}
		if sig.Action != signal.ActionCloseAll {
			if _, ok := l.ranked[sym]; !ok {
				continue
			}
		}
		sig.Ts = now
		l.driver.Apply(sig, l.account)
	}
}

func (l *Loop) record(now time.Time) {
	var benchmark float64
	if px, ok := l.account.LastPrice(l.opts.Benchmark); ok {
		benchmark = px
	}
	p := Point{Ts: now, Benchmark: benchmark, Value: l.account.TotalValue()}
	if err := l.rec.Record(p); err != nil {
		l.log.Warn().Err(err).Msg("record equity point")
	}
}
