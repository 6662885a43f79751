package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
)

var testCosts = ledger.Costs{
	LongFriction:  0.001,
	ShortFriction: 0.001,
	Slippage:      0.001,
	CloseEpsilon:  1e-9,
}

func testAccount(balance float64) *ledger.Account {
	a := ledger.NewAccount("USDT", balance, testCosts, zerolog.Nop())
	a.Revalue([]signal.Tick{{Symbol: "ETHUSDT", Price: 10}})
	return a
}

func longSignal(symbol string) *signal.Signal {
	return &signal.Signal{Symbol: symbol, Action: signal.ActionLong, Reason: "test", Ts: time.Now()}
}

func TestApplyOpensLongWithSizing(t *testing.T) {
	account := testAccount(10000)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())

	if !driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("expected driver to act")
	}
	pos, ok := account.Position("ETH")
	if !ok || pos.Side != ledger.SideLong {
		t.Fatalf("expected long ETH position, got %+v", pos)
	}
	// 10% of 10000 meets the floor exactly.
	if math.Abs(pos.Value-1000*(1-testCosts.LongFriction)) > 1e-9 {
		t.Fatalf("unexpected position value %.6f", pos.Value)
	}
	if pos.TakeProfit <= pos.EntryPrice || pos.StopLoss >= pos.EntryPrice {
		t.Fatalf("expected brackets around entry, got tp=%.4f sl=%.4f", pos.TakeProfit, pos.StopLoss)
	}
}

func TestSizingUsesFloor(t *testing.T) {
	account := testAccount(3000)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())
	// 10% of 3000 is below the 1000 floor.
	if got := driver.Sizing(account); got != 1000 {
		t.Fatalf("expected floor sizing 1000, got %.2f", got)
	}
}

func TestApplySuppressedByLowBalance(t *testing.T) {
	account := testAccount(500)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())
	if driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("expected suppression when balance is below the allocation")
	}
}

func TestApplySuppressedByExistingPosition(t *testing.T) {
	account := testAccount(10000)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())
	if !driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("first signal should act")
	}
	if driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("second signal must be suppressed by the existing position")
	}
}

func TestApplySuppressedByTradeLimit(t *testing.T) {
	account := testAccount(10000)
	driver := NewDriver(DefaultParams(), risk.Limits{MaxNotionalPerTrade: 100}, zerolog.Nop())
	if driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("expected risk limit to suppress the trade")
	}
}

func TestApplyIgnoresUnsupportedPair(t *testing.T) {
	account := testAccount(10000)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())
	if driver.Apply(longSignal("ETHBUSD"), account) {
		t.Fatalf("expected unsupported pair to be ignored")
	}
}

func TestApplyCloseAll(t *testing.T) {
	account := testAccount(10000)
	driver := NewDriver(DefaultParams(), risk.Limits{}, zerolog.Nop())
	if !driver.Apply(longSignal("ETHUSDT"), account) {
		t.Fatalf("setup open failed")
	}
	sig := &signal.Signal{Symbol: "BTCUSDT", Action: signal.ActionCloseAll, Reason: "crash"}
	if !driver.Apply(sig, account) {
		t.Fatalf("expected close-all to act")
	}
	if len(account.Assets()) != 0 {
		t.Fatalf("expected flat account, got %v", account.Assets())
	}
}

func TestTopTradedRanksByVolume(t *testing.T) {
	params := model.DefaultParams()
	mk := func(symbol string, volume float64) *model.Momentum {
		seed := make([]signal.Tick, model.SeedLength)
		start := time.Date(2021, 2, 23, 18, 0, 0, 0, time.UTC)
		for i := range seed {
			seed[i] = signal.Tick{Symbol: symbol, Price: 100, Volume: volume, Ts: start.Add(time.Duration(i) * time.Minute)}
		}
		m, err := model.New(symbol, false, params, seed)
		if err != nil {
			t.Fatalf("model for %s: %v", symbol, err)
		}
		return m
	}
	models := map[string]*model.Momentum{
		"AUSDT": mk("AUSDT", 100),
		"BUSDT": mk("BUSDT", 300),
		"CUSDT": mk("CUSDT", 200),
	}

	top := TopTraded(models, 2)
	if len(top) != 2 || top[0] != "BUSDT" || top[1] != "CUSDT" {
		t.Fatalf("unexpected ranking: %v", top)
	}
	if got := TopTraded(models, 10); len(got) != 3 {
		t.Fatalf("expected clamped ranking, got %v", got)
	}
}
