// Package strategy decides whether model intents become ledger mutations.
package strategy

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/ledger"
	"github.com/geyingli/binance-monitor/internal/model"
	"github.com/geyingli/binance-monitor/internal/risk"
	"github.com/geyingli/binance-monitor/internal/signal"
)

// Params tunes position sizing and entry gating.
type Params struct {
	PerAssetFraction float64 // fraction of total account value per entry
	TradeFloor       float64 // absolute minimum trade value
	DustValue        float64 // holdings above this count as "already in"
	TakeProfitRatio  float64
	StopLossRatio    float64
}

// DefaultParams mirror the production configuration.
func DefaultParams() Params {
	return Params{
		PerAssetFraction: 0.10,
		TradeFloor:       1000,
		DustValue:        10,
		TakeProfitRatio:  0.10,
		StopLossRatio:    0.10,
	}
}

// Driver turns signals into account operations, enforcing balance,
// exposure, and dust constraints. It owns no state of its own; the account
// passed to Apply is the single source of truth.
type Driver struct {
	params Params
	limits risk.Limits
	log    zerolog.Logger
}

// NewDriver builds a driver with the given sizing parameters and limits.
func NewDriver(params Params, limits risk.Limits, log zerolog.Logger) *Driver {
	if params.PerAssetFraction <= 0 {
		params.PerAssetFraction = 0.10
	}
	return &Driver{params: params, limits: limits, log: log}
}

// Sizing returns the trade value the driver would commit right now.
func (d *Driver) Sizing(account *ledger.Account) float64 {
	value := account.TotalValue() * d.params.PerAssetFraction
	if value < d.params.TradeFloor {
		value = d.params.TradeFloor
	}
	return value
}

// Apply consumes one signal against the account and reports whether it
// acted. Suppressed signals are normal control flow, not errors.
func (d *Driver) Apply(sig *signal.Signal, account *ledger.Account) bool {
	if sig == nil {
		return false
	}

	switch sig.Action {
	case signal.ActionCloseAll:
		d.log.Info().Str("symbol", sig.Symbol).Str("reason", sig.Reason).Msg("liquidate all")
		account.CloseAll()
		return true

	case signal.ActionLong:
		asset, err := signal.AssetOf(sig.Symbol, account.BasicCurrency())
		if err != nil {
			d.log.Warn().Err(err).Msg("signal for unsupported pair")
			return false
		}
		tradeValue := d.Sizing(account)
		if account.Balance() < tradeValue {
			return false
		}
		if pos, ok := account.Position(asset); ok && pos.Value > d.params.DustValue {
			return false
		}
		if !d.limits.AllowTrade(tradeValue) {
			return false
		}
		exposure := account.TotalValue() - account.Balance() + tradeValue
		if !d.limits.AllowExposure(exposure) {
			return false
		}
		err = account.Open(asset, ledger.SideLong, tradeValue, ledger.OpenOptions{
			TakeProfitRatio: d.params.TakeProfitRatio,
			StopLossRatio:   d.params.StopLossRatio,
		})
		if err != nil {
			d.log.Warn().Err(err).Str("asset", asset).Msg("open rejected")
			return false
		}
		d.log.Info().Str("symbol", sig.Symbol).Str("reason", sig.Reason).
			Float64("value", tradeValue).Msg("open long")
		return true

	default:
		return false
	}
}

// TopTraded ranks symbols by 7-day volume and returns the top n, largest
// first. Ties break by symbol for determinism.
func TopTraded(models map[string]*model.Momentum, n int) []string {
	type ranked struct {
		symbol string
		volume float64
	}
	items := make([]ranked, 0, len(models))
	for symbol, m := range models {
		items = append(items, ranked{symbol: symbol, volume: m.SevenDayVolume()})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].volume != items[j].volume {
			return items[i].volume > items[j].volume
		}
		return items[i].symbol < items[j].symbol
	})
	if n > len(items) {
		n = len(items)
	}
	out := make([]string, 0, n)
	for _, item := range items[:n] {
		out = append(out, item.symbol)
	}
	return out
}
