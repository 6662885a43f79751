// Package ledger implements the simulated account: position lifecycle,
// cost-basis accounting, automatic stop-loss/take-profit triggers, and
// interest accrual on short borrowing.
package ledger

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/metrics"
	"github.com/geyingli/binance-monitor/internal/signal"
)

const (
	epsilon        = 1e-9
	minutesPerYear = 365 * 24 * 60
)

var (
	// ErrInsufficientBalance means the basic-currency balance cannot cover
	// the requested trade. The ledger is left untouched.
	ErrInsufficientBalance = errors.New("insufficient basic-currency balance")
	// ErrNoPosition means a close was requested for an asset the account
	// does not hold.
	ErrNoPosition = errors.New("no position for asset")
	// ErrNoPrice means no market price has been observed for the asset and
	// no limit price was supplied.
	ErrNoPrice = errors.New("no observed price for asset")
)

// Costs bundles the proportional trading costs applied by the ledger.
type Costs struct {
	LongFriction  float64 // fee rate on buys
	ShortFriction float64 // fee rate on sells
	Slippage      float64 // price adjustment versus last observed price
	CloseEpsilon  float64 // residual value below which a position is removed
}

// OpenOptions carries the optional parameters of an Open call.
type OpenOptions struct {
	LimitPrice      float64 // 0 means market execution with slippage
	TakeProfitRatio float64
	StopLossRatio   float64
}

// Account tracks the basic-currency balance and one position per asset.
// It is exclusively owned by the loop that drives it: no internal locking,
// callers must not mutate it from other goroutines.
type Account struct {
	basic      string
	balance    *Position
	assets     map[string]*Position
	total      float64
	costs      Costs
	lastPrices map[string]float64
	log        zerolog.Logger
}

// NewAccount creates an account holding initBalance of the basic currency.
func NewAccount(basic string, initBalance float64, costs Costs, log zerolog.Logger) *Account {
	a := &Account{
		basic: basic,
		balance: &Position{
			Asset:      basic,
			Side:       SideLong,
			EntryPrice: 1.0,
			Price:      1.0,
			Quantity:   initBalance,
			Value:      initBalance,
		},
		assets:     make(map[string]*Position),
		total:      initBalance,
		costs:      costs,
		lastPrices: make(map[string]float64),
		log:        log,
	}
	return a
}

// BasicCurrency returns the currency all values are denominated in.
func (a *Account) BasicCurrency() string { return a.basic }

// Balance returns the free basic-currency value.
func (a *Account) Balance() float64 { return a.balance.Value }

// TotalValue returns the sum of every position value including the balance.
func (a *Account) TotalValue() float64 { return a.total }

// Position returns a copy of the position for asset, if any.
func (a *Account) Position(asset string) (Position, bool) {
	p, ok := a.assets[asset]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Assets returns the held asset names in deterministic order, excluding the
// basic currency.
func (a *Account) Assets() []string {
	out := make([]string, 0, len(a.assets))
	for asset := range a.assets {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// LastPrice returns the most recently observed price for a symbol.
func (a *Account) LastPrice(symbol string) (float64, bool) {
	p, ok := a.lastPrices[symbol]
	return p, ok
}

// Open opens, extends, or flips a position. value is the basic-currency
// amount committed to the trade; the traded quantity is value net of
// friction at the execution price. Opening against an opposite-side
// position nets the exposure and only flips when the new trade value
// exceeds the existing position value.
func (a *Account) Open(asset string, side Side, value float64, opts OpenOptions) error {
	if side != SideLong && side != SideShort {
		return fmt.Errorf("cannot open %s position", side)
	}
	if value <= 0 {
		return fmt.Errorf("trade value must be positive, got %f", value)
	}

	friction := a.costs.LongFriction
	if side == SideShort {
		friction = a.costs.ShortFriction
	}
	execPrice, err := a.executionPrice(asset, side, opts.LimitPrice)
	if err != nil {
		return err
	}
	tradingValue := value * (1 - friction)
	tradingQty := tradingValue / execPrice

	existing := a.assets[asset]
	switch {
	case existing == nil:
		if a.balance.Value+epsilon < value {
			return ErrInsufficientBalance
		}
		a.debit(value)
		pos := &Position{
			Asset:      asset,
			Side:       side,
			EntryPrice: execPrice,
			Price:      execPrice,
			Quantity:   tradingQty,
			Value:      tradingValue,
		}
		pos.setBrackets(execPrice, opts.TakeProfitRatio, opts.StopLossRatio)
		a.assets[asset] = pos

	case existing.Side == side:
		if a.balance.Value+epsilon < value {
			return ErrInsufficientBalance
		}
		a.debit(value)
		newQty := existing.Quantity + tradingQty
		existing.EntryPrice = (existing.EntryPrice*existing.Quantity + execPrice*tradingQty) / newQty
		existing.Quantity = newQty
		existing.Value += tradingValue
		existing.Price = execPrice
		existing.setBrackets(execPrice, opts.TakeProfitRatio, opts.StopLossRatio)

	case tradingValue < existing.Value-a.costs.CloseEpsilon:
		// Partial offset: net down the opposite side without flipping.
		// The offset quantity is priced at the position's own price;
		// pricing it at the slippage-adjusted execution price can exceed
		// the held quantity when the two values are nearly equal.
		closeFriction := a.closeFriction(existing.Side)
		offsetQty := tradingValue / existing.Price
		if offsetQty > existing.Quantity {
			offsetQty = existing.Quantity
		}
		existing.Quantity -= offsetQty
		existing.Value = existing.Quantity * existing.Price
		a.credit(offsetQty * execPrice * (1 - closeFriction))
		if existing.Value <= a.costs.CloseEpsilon {
			delete(a.assets, asset)
		} else {
			existing.setBrackets(existing.Price, opts.TakeProfitRatio, opts.StopLossRatio)
		}

	case tradingValue > existing.Value+a.costs.CloseEpsilon:
		// Flip: close the opposite side at its full current value and open
		// the remainder on the new side.
		remainderCash := value - existing.Value
		if a.balance.Value+epsilon < remainderCash {
			return ErrInsufficientBalance
		}
		remainderValue := tradingValue - existing.Value
		a.credit(existing.Value)
		a.debit(remainderCash)
		pos := &Position{
			Asset:      asset,
			Side:       side,
			EntryPrice: execPrice,
			Price:      execPrice,
			Quantity:   remainderValue / execPrice,
			Value:      remainderValue,
		}
		pos.setBrackets(execPrice, opts.TakeProfitRatio, opts.StopLossRatio)
		a.assets[asset] = pos

	default:
		// Net flat: the new trade exactly covers the opposite position.
		delete(a.assets, asset)
		a.credit(tradingValue)
	}

	a.recomputeTotal()
	a.check(asset)
	a.log.Debug().Str("asset", asset).Str("side", side.String()).
		Float64("value", value).Float64("px", execPrice).Msg("open")
	metrics.OrdersTotal.WithLabelValues(asset, side.String()).Inc()
	return nil
}

// Close realizes fraction of the position at the limit price, or at the
// last price adjusted by slippage against the position's side. The realized
// value net of closing friction is credited to the basic currency.
func (a *Account) Close(asset string, limitPrice, fraction float64) error {
	pos := a.assets[asset]
	if pos == nil {
		return ErrNoPosition
	}
	if fraction <= 0 || fraction > 1 {
		return fmt.Errorf("close fraction must be in (0, 1], got %f", fraction)
	}

	execPrice := limitPrice
	if execPrice <= 0 {
		if pos.Side == SideLong {
			execPrice = pos.Price * (1 - a.costs.Slippage)
		} else {
			execPrice = pos.Price * (1 + a.costs.Slippage)
		}
	}
	closeFriction := a.closeFriction(pos.Side)
	closedQty := pos.Quantity * fraction
	credit := closedQty * execPrice * (1 - closeFriction)

	if fraction == 1 {
		delete(a.assets, asset)
	} else {
		pos.Quantity -= closedQty
		pos.Value = pos.Quantity * pos.Price
		if pos.Value <= a.costs.CloseEpsilon {
			delete(a.assets, asset)
		}
	}
	a.credit(credit)
	a.recomputeTotal()
	a.check(asset)
	a.log.Debug().Str("asset", asset).Float64("fraction", fraction).
		Float64("px", execPrice).Float64("credit", credit).Msg("close")
	return nil
}

// CloseAll unconditionally liquidates every non-basic-currency position.
func (a *Account) CloseAll() {
	for _, asset := range a.Assets() {
		if err := a.Close(asset, 0, 1); err != nil {
			a.log.Warn().Err(err).Str("asset", asset).Msg("close all")
		}
	}
}

// Revalue applies a batch of ticks: per-asset price and value updates, then
// a fresh total. Ticks for unsupported pairs are ignored.
func (a *Account) Revalue(ticks []signal.Tick) {
	for _, tick := range ticks {
		a.lastPrices[tick.Symbol] = tick.Price
		asset, err := signal.AssetOf(tick.Symbol, a.basic)
		if err != nil {
			continue
		}
		pos := a.assets[asset]
		if pos == nil {
			continue
		}
		pos.Price = tick.Price
		pos.Value = pos.Quantity * tick.Price
	}
	a.recomputeTotal()
}

// ApplyTriggers closes every position whose freshly revalued price crossed
// its take-profit or stop-loss target, take-profit first.
func (a *Account) ApplyTriggers() {
	for _, asset := range a.Assets() {
		pos := a.assets[asset]
		price, kind := pos.triggered()
		if kind == "" {
			continue
		}
		a.log.Info().Str("asset", asset).Str("kind", kind).
			Float64("px", price).Msg("trigger close")
		metrics.TriggersTotal.WithLabelValues(asset, kind).Inc()
		if err := a.Close(asset, price, 1); err != nil {
			a.log.Warn().Err(err).Str("asset", asset).Msg("trigger close failed")
		}
	}
}

// AccrueInterest charges one minute of borrow interest on every short
// position. Cash pays first; when the balance cannot cover it, the short
// itself is shrunk by the grossed-up amount, modeling forced margin
// consumption.
func (a *Account) AccrueInterest(ratePerYear float64) {
	if ratePerYear <= 0 {
		return
	}
	for _, asset := range a.Assets() {
		pos := a.assets[asset]
		if pos.Side != SideShort {
			continue
		}
		interest := ratePerYear / minutesPerYear * pos.Value
		if a.balance.Value > interest {
			a.debit(interest)
			continue
		}
		gross := interest / (1 - a.costs.LongFriction)
		if gross >= pos.Value {
			a.log.Info().Str("asset", asset).Float64("interest", interest).
				Float64("value", pos.Value).Msg("interest consumed short, closing")
			metrics.TriggersTotal.WithLabelValues(asset, "interest").Inc()
			delete(a.assets, asset)
			continue
		}
		pos.Quantity *= (pos.Value - gross) / pos.Value
		pos.Value -= gross
		a.check(asset)
	}
	a.recomputeTotal()
}

// Update runs one account cycle: revalue, then triggers on the fresh
// prices, then interest on whatever shorts remain. The order matters.
func (a *Account) Update(ticks []signal.Tick, interestRatePerYear float64) {
	a.Revalue(ticks)
	a.ApplyTriggers()
	a.AccrueInterest(interestRatePerYear)
	metrics.AccountValue.Set(a.total)
}

func (a *Account) executionPrice(asset string, side Side, limitPrice float64) (float64, error) {
	if limitPrice > 0 {
		return limitPrice, nil
	}
	last, ok := a.lastPrices[signal.Pair(asset, a.basic)]
	if !ok || last <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrNoPrice, asset)
	}
	if side == SideLong {
		return last * (1 + a.costs.Slippage), nil
	}
	return last * (1 - a.costs.Slippage), nil
}

func (a *Account) closeFriction(side Side) float64 {
	// Closing a long sells, closing a short buys back.
	if side == SideLong {
		return a.costs.ShortFriction
	}
	return a.costs.LongFriction
}

func (a *Account) debit(value float64) {
	a.balance.Quantity -= value
	a.balance.Value -= value
}

func (a *Account) credit(value float64) {
	a.balance.Quantity += value
	a.balance.Value += value
}

func (a *Account) recomputeTotal() {
	total := a.balance.Value
	for _, pos := range a.assets {
		total += pos.Value
	}
	a.total = total
}

// check panics on impossible post-conditions. These are programming defects
// and continuing would silently corrupt the books.
func (a *Account) check(asset string) {
	if a.balance.Value < -epsilon {
		panic(fmt.Sprintf("ledger: negative balance %.12f after %s operation", a.balance.Value, asset))
	}
	if pos, ok := a.assets[asset]; ok {
		if pos.Quantity < -epsilon || pos.Value < -epsilon {
			panic(fmt.Sprintf("ledger: negative position for %s: qty=%.12f value=%.12f", asset, pos.Quantity, pos.Value))
		}
	}
}
