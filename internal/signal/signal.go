// Package signal standardizes payloads shared between tick sources, models,
// and the strategy layer.
package signal

import (
	"fmt"
	"strings"
	"time"
)

// Tick models one minute-resolution market observation. Ticks for a symbol
// arrive ordered by non-decreasing timestamp and are consumed once.
type Tick struct {
	Symbol string
	Price  float64
	Volume float64 // quote-currency turnover for the interval
	Ts     time.Time
}

// Action enumerates what a model wants the strategy driver to do.
type Action int

const (
	// ActionLong asks the driver to open or extend a long position.
	ActionLong Action = iota + 1
	// ActionCloseAll asks the driver to liquidate every open position.
	ActionCloseAll
)

func (a Action) String() string {
	switch a {
	case ActionLong:
		return "LONG"
	case ActionCloseAll:
		return "CLOSE_ALL"
	default:
		return "UNKNOWN"
	}
}

// Signal expresses a trading intent produced by a model.
type Signal struct {
	Symbol string
	Action Action
	Reason string
	Ts     time.Time
}

// ErrUnsupportedPair reports a symbol that is not quoted in the configured
// basic currency.
type ErrUnsupportedPair struct {
	Symbol string
	Quote  string
}

func (e ErrUnsupportedPair) Error() string {
	return fmt.Sprintf("symbol %q is not a %s-quoted pair", e.Symbol, e.Quote)
}

// AssetOf extracts the base asset from a symbol quoted in the given basic
// currency, e.g. AssetOf("BTCUSDT", "USDT") == "BTC".
func AssetOf(symbol, quote string) (string, error) {
	if quote == "" || !strings.HasSuffix(symbol, quote) {
		return "", ErrUnsupportedPair{Symbol: symbol, Quote: quote}
	}
	asset := strings.TrimSuffix(symbol, quote)
	if asset == "" {
		return "", ErrUnsupportedPair{Symbol: symbol, Quote: quote}
	}
	return asset, nil
}

// Pair composes the tradable symbol for an asset against the basic currency.
func Pair(asset, quote string) string { return asset + quote }
