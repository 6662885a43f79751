package exchange

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/execution"
	"github.com/geyingli/binance-monitor/internal/metrics"
)

// Trader routes orders to the Binance spot API. It satisfies
// execution.Executor, so the same strategy wiring drives paper and live.
type Trader struct {
	client *Client
	log    zerolog.Logger
}

func NewTrader(client *Client, log zerolog.Logger) *Trader {
	return &Trader{client: client, log: log.With().Str("component", "trader").Logger()}
}

func (t *Trader) Submit(ctx context.Context, order execution.Order) (*execution.Fill, error) {
	side := binance.SideTypeBuy
	if order.Side == execution.Sell {
		side = binance.SideTypeSell
	}

	qty, price, fees, err := t.client.MarketOrder(ctx, order.Symbol, side, order.QuoteValue)
	if err != nil {
		t.log.Error().Err(err).
			Str("symbol", order.Symbol).
			Str("side", string(order.Side)).
			Float64("quote_value", order.QuoteValue).
			Msg("order rejected")
		return nil, err
	}

	fill := &execution.Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: qty,
		Price:    price,
		Fees:     fees,
		Ts:       time.Now(),
	}
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	t.log.Info().
		Str("symbol", fill.Symbol).
		Str("side", string(fill.Side)).
		Float64("qty", fill.Quantity).
		Float64("price", fill.Price).
		Float64("fees", fill.Fees).
		Msg("order filled")
	return fill, nil
}
