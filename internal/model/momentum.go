// Package model maintains per-symbol rolling price/volume statistics and
// turns them into directional trading intents.
package model

import (
	"errors"
	"fmt"

	"github.com/geyingli/binance-monitor/internal/signal"
	"github.com/geyingli/binance-monitor/internal/window"
)

// Window lengths in minute ticks.
const (
	WindowShort  = 7      // 7 minutes
	WindowMedium = 7 * 60 // 7 hours
	WindowLong   = 7 * 24 * 60

	// lookbackDepth is how many recent samples the fast move scans walk,
	// comparing the latest price against each of the previous 1..9.
	lookbackDepth = 9

	// SeedLength is the minimum history needed before a model can trade:
	// a full long window plus the sample that will be compared against it.
	SeedLength = WindowLong + 1
)

// ErrShortHistory reports a seed series too short to fill the long window.
// Callers exclude the symbol from the tradable universe; it is not fatal.
var ErrShortHistory = errors.New("price history shorter than the long window")

// Params are the tunable knobs of the momentum model.
type Params struct {
	VolumeBreakoutRatio float64 // multiple of the 7d/7h volume means
	VolumeBreakoutFloor float64 // absolute quote-volume floor
	CrashDrop           float64 // fractional drop that liquidates (base pair)
	MomentumRise        float64 // fractional rise that opens a long
}

// DefaultParams mirror the production configuration of the strategy.
func DefaultParams() Params {
	return Params{
		VolumeBreakoutRatio: 10,
		VolumeBreakoutFloor: 1000000,
		CrashDrop:           0.01,
		MomentumRise:        0.05,
	}
}

// Momentum watches one symbol. All windows advance exactly one sample per
// tick; the moving averages are maintained incrementally. Callers only read
// from it between updates.
type Momentum struct {
	symbol   string
	basePair bool // the benchmark pair drives the fast-crash guard
	params   Params

	prices     *window.Ring[float64]
	priceShort *window.Rolling
	priceMed   *window.Rolling
	priceLong  *window.Rolling
	volMed     *window.Rolling
	volLong    *window.Rolling

	lastTick signal.Tick
}

// New builds a model seeded with at least SeedLength historical ticks.
// The seed must be ordered oldest first.
func New(symbol string, basePair bool, params Params, seed []signal.Tick) (*Momentum, error) {
	if len(seed) < SeedLength {
		return nil, fmt.Errorf("%w: %s has %d of %d samples", ErrShortHistory, symbol, len(seed), SeedLength)
	}
	m := &Momentum{
		symbol:     symbol,
		basePair:   basePair,
		params:     params,
		prices:     window.NewRing[float64](SeedLength),
		priceShort: window.NewRolling(WindowShort),
		priceMed:   window.NewRolling(WindowMedium),
		priceLong:  window.NewRolling(WindowLong),
		volMed:     window.NewRolling(WindowMedium),
		volLong:    window.NewRolling(WindowLong),
	}
	for _, tick := range seed {
		m.Update(tick)
	}
	return m, nil
}

// Symbol returns the traded pair this model watches.
func (m *Momentum) Symbol() string { return m.symbol }

// Update folds one tick into every window.
func (m *Momentum) Update(tick signal.Tick) {
	m.prices.Push(tick.Price)
	m.priceShort.Push(tick.Price)
	m.priceMed.Push(tick.Price)
	m.priceLong.Push(tick.Price)
	m.volMed.Push(tick.Volume)
	m.volLong.Push(tick.Volume)
	m.lastTick = tick
}

// SevenDayVolume is the long-window volume mean, used for universe ranking.
func (m *Momentum) SevenDayVolume() float64 { return m.volLong.Mean() }

// Evaluate inspects the current windows and returns a trading intent, or
// nil when nothing fires. Checks short-circuit in a fixed order: fast-crash
// guard, volume breakout, then momentum breakout.
func (m *Momentum) Evaluate() *signal.Signal {
	if !m.priceLong.Ready() {
		return nil
	}
	price := m.prices.FromEnd(0)

	if m.basePair {
		for i := 1; i <= lookbackDepth; i++ {
			ref := m.prices.FromEnd(i)
			if price > ref*(1-m.params.CrashDrop) {
				continue
			}
			return &signal.Signal{
				Symbol: m.symbol,
				Action: signal.ActionCloseAll,
				Reason: fmt.Sprintf("price down %.1f%% within %dm", (1-price/ref)*100, i),
				Ts:     m.lastTick.Ts,
			}
		}
	}

	volume := m.lastTick.Volume
	if volume > m.volLong.Mean()*m.params.VolumeBreakoutRatio &&
		volume > m.volMed.Mean()*m.params.VolumeBreakoutRatio &&
		volume > m.params.VolumeBreakoutFloor &&
		price > m.priceLong.Mean() &&
		price > m.priceMed.Mean() &&
		price > m.priceShort.Mean() {
		return &signal.Signal{
			Symbol: m.symbol,
			Action: signal.ActionLong,
			Reason: fmt.Sprintf("volume breakout %.1fx ($%.0f)", volume/m.volMed.Mean()-1, volume),
			Ts:     m.lastTick.Ts,
		}
	}

	for i := 1; i <= lookbackDepth; i++ {
		ref := m.prices.FromEnd(i)
		if price < ref*(1+m.params.MomentumRise) {
			continue
		}
		return &signal.Signal{
			Symbol: m.symbol,
			Action: signal.ActionLong,
			Reason: fmt.Sprintf("price up %.1f%% within %dm", (price/ref-1)*100, i),
			Ts:     m.lastTick.Ts,
		}
	}
	return nil
}
