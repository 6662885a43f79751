package backtest

import (
	"context"
	"io"
	"math"
	"testing"
	"time"

	"github.com/geyingli/binance-monitor/internal/exchange"
	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/strategy"
	"github.com/geyingli/binance-monitor/internal/util"
)

var testStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// flatTicks yields n minute ticks at a constant price and volume.
func flatTicks(symbol string, n int, price, volume float64) []signal.Tick {
	ticks := make([]signal.Tick, n)
	for i := range ticks {
		ticks[i] = signal.Tick{
			Symbol: symbol,
			Price:  price,
			Volume: volume,
			Ts:     testStart.Add(time.Duration(i) * time.Minute),
		}
	}
	return ticks
}

// testModelParams lowers the absolute volume floor so synthetic series
// with small volumes can break out.
func testModelParams() model.Params {
	p := model.DefaultParams()
	p.VolumeBreakoutFloor = 1000
	return p
}

type run struct {
	account *ledger.Account
	loop    *Loop
	rec     *MemoryRecorder
}

func newRun(t *testing.T, series map[string][]signal.Tick, costs ledger.Costs, opts Options) *run {
	t.Helper()
	log := util.NewLoggerTo(io.Discard, "disabled")
	account := ledger.NewAccount("USDT", 10000, costs, log)
	driver := strategy.NewDriver(strategy.DefaultParams(), risk.Limits{}, log)

	models := make(map[string]*model.Momentum)
	iters := make(map[string]*exchange.Iterator)
	for sym, ticks := range series {
		m, err := model.New(sym, sym == opts.Benchmark, testModelParams(), ticks[:model.SeedLength])
		if err != nil {
			t.Fatalf("model %s: %v", sym, err)
		}
		models[sym] = m
		iters[sym] = exchange.NewIterator(ticks[model.SeedLength:])
	}

	rec := &MemoryRecorder{}
	return &run{
		account: account,
		loop:    NewLoop(account, driver, models, iters, rec, opts, log),
		rec:     rec,
	}
}

func TestLoopQuietMarketHoldsCash(t *testing.T) {
	series := map[string][]signal.Tick{
		"BTCUSDT": flatTicks("BTCUSDT", model.SeedLength+120, 100, 1000),
	}
	r := newRun(t, series, ledger.Costs{}, Options{Benchmark: "BTCUSDT"})

	res, err := r.loop.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Steps != 120 {
		t.Fatalf("steps = %d, want 120", res.Steps)
	}
	if res.FinalValue != 10000 {
		t.Fatalf("final value = %v, want 10000", res.FinalValue)
	}
	if assets := r.account.Assets(); len(assets) != 0 {
		t.Fatalf("unexpected positions %v", assets)
	}
}

func TestLoopOpensLongOnBreakout(t *testing.T) {
	ticks := flatTicks("BTCUSDT", model.SeedLength+60, 100, 1000)
	// Volume spike on the first replayed minute, then calm at the new price.
	ticks[model.SeedLength] = signal.Tick{
		Symbol: "BTCUSDT", Price: 105, Volume: 50000, Ts: ticks[model.SeedLength].Ts,
	}
	for i := model.SeedLength + 1; i < len(ticks); i++ {
		ticks[i].Price = 105
	}
	r := newRun(t, map[string][]signal.Tick{"BTCUSDT": ticks}, ledger.Costs{}, Options{Benchmark: "BTCUSDT"})

	if _, err := r.loop.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	pos, ok := r.account.Position("BTC")
	if !ok {
		t.Fatal("no BTC position after volume breakout")
	}
	if pos.Side != ledger.SideLong {
		t.Fatalf("side = %v, want LONG", pos.Side)
	}
	if pos.Value <= 0 {
		t.Fatalf("position value = %v", pos.Value)
	}
	if r.account.Balance() >= 10000 {
		t.Fatalf("balance %v did not fund the position", r.account.Balance())
	}
}

func TestLoopStopsAtEndBound(t *testing.T) {
	series := map[string][]signal.Tick{
		"BTCUSDT": flatTicks("BTCUSDT", model.SeedLength+500, 100, 1000),
	}
	end := testStart.Add(time.Duration(model.SeedLength+99) * time.Minute)
	r := newRun(t, series, ledger.Costs{}, Options{Benchmark: "BTCUSDT", End: end})

	res, err := r.loop.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Steps != 100 {
		t.Fatalf("steps = %d, want 100", res.Steps)
	}
}

func TestLoopForcesCloseAfterMaxHold(t *testing.T) {
	ticks := flatTicks("BTCUSDT", model.SeedLength+200, 100, 1000)
	ticks[model.SeedLength] = signal.Tick{
		Symbol: "BTCUSDT", Price: 105, Volume: 50000, Ts: ticks[model.SeedLength].Ts,
	}
	for i := model.SeedLength + 1; i < len(ticks); i++ {
		ticks[i].Price = 105
	}
	r := newRun(t, map[string][]signal.Tick{"BTCUSDT": ticks}, ledger.Costs{}, Options{
		Benchmark: "BTCUSDT",
		MaxHold:   30 * time.Minute,
	})

	res, err := r.loop.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok := r.account.Position("BTC"); ok {
		t.Fatal("position survived past max hold")
	}
	// Open and close both at 105 with zero costs: nothing lost.
	if math.Abs(res.FinalValue-10000) > 1e-6 {
		t.Fatalf("final value = %v, want 10000", res.FinalValue)
	}
}

func TestLoopRecordsCurve(t *testing.T) {
	series := map[string][]signal.Tick{
		"BTCUSDT": flatTicks("BTCUSDT", model.SeedLength+240, 100, 1000),
	}
	r := newRun(t, series, ledger.Costs{}, Options{
		Benchmark:   "BTCUSDT",
		RecordEvery: time.Hour,
	})

	if _, err := r.loop.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	points := r.rec.Points()
	if len(points) != 4 {
		t.Fatalf("recorded %d points, want 4", len(points))
	}
	for i, p := range points {
		if p.Benchmark != 100 {
			t.Errorf("point %d benchmark = %v", i, p.Benchmark)
		}
		if p.Value != 10000 {
			t.Errorf("point %d value = %v", i, p.Value)
		}
	}
}

func TestLoopDropsExhaustedStreams(t *testing.T) {
	series := map[string][]signal.Tick{
		"BTCUSDT": flatTicks("BTCUSDT", model.SeedLength+100, 100, 1000),
		"ETHUSDT": flatTicks("ETHUSDT", model.SeedLength+40, 10, 1000),
	}
	r := newRun(t, series, ledger.Costs{}, Options{Benchmark: "BTCUSDT"})

	res, err := r.loop.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Steps != 100 {
		t.Fatalf("steps = %d, want 100", res.Steps)
	}
}

func TestScoreIsRepeatable(t *testing.T) {
	ticks := flatTicks("BTCUSDT", model.SeedLength+120, 100, 1000)
	ticks[model.SeedLength] = signal.Tick{
		Symbol: "BTCUSDT", Price: 105, Volume: 50000, Ts: ticks[model.SeedLength].Ts,
	}
	for i := model.SeedLength + 1; i < len(ticks); i++ {
		ticks[i].Price = 105
	}
	in := ScoreInput{
		Ticks:       map[string][]signal.Tick{"BTCUSDT": ticks},
		Benchmark:   "BTCUSDT",
		BasicAsset:  "USDT",
		InitBalance: 10000,
		Costs:       ledger.Costs{LongFriction: 0.001, ShortFriction: 0.001, Slippage: 0.001},
		Model:       testModelParams(),
		Driver:      strategy.DefaultParams(),
	}

	first := Score(in)
	second := Score(in)
	if first != second {
		t.Fatalf("score not repeatable: %v vs %v", first, second)
	}
	if first <= 0 {
		t.Fatalf("score = %v", first)
	}
}

func TestScoreSkipsShortHistory(t *testing.T) {
	in := ScoreInput{
		Ticks:       map[string][]signal.Tick{"BTCUSDT": flatTicks("BTCUSDT", 100, 100, 1000)},
		Benchmark:   "BTCUSDT",
		BasicAsset:  "USDT",
		InitBalance: 10000,
		Model:       testModelParams(),
		Driver:      strategy.DefaultParams(),
	}
	if got := Score(in); got != 10000 {
		t.Fatalf("score = %v, want untouched balance 10000", got)
	}
}
