// Package execution defines the order surface shared by the paper and live
// trading paths.
package execution

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/geyingli/binance-monitor/internal/metrics"
)

// Side enumerates order directions.
type Side string

const (
	// Buy indicates a buy order.
	Buy Side = "BUY"
	// Sell indicates a sell order.
	Sell Side = "SELL"
)

// Order represents a placement request. Exactly one of Quantity or
// QuoteValue is set; LimitPrice of zero means market execution.
type Order struct {
	Symbol     string
	Side       Side
	Quantity   float64
	QuoteValue float64
	LimitPrice float64
}

// Fill reports what actually executed.
type Fill struct {
	Symbol   string    `json:"symbol"`
	Side     Side      `json:"side"`
	Quantity float64   `json:"quantity"`
	Price    float64   `json:"price"`
	Fees     float64   `json:"fees"`
	Ts       time.Time `json:"ts"`
}

// Executor submits orders to a venue. An error means the trade was not
// applied and the caller's state must remain unchanged.
type Executor interface {
	Submit(ctx context.Context, order Order) (*Fill, error)
}

// LogExecutor acknowledges every order and only logs it. The simulation
// account is the actual book of record in paper mode.
type LogExecutor struct{ log zerolog.Logger }

// NewLogExecutor wraps a zerolog logger for paper-mode order submissions.
func NewLogExecutor(log zerolog.Logger) *LogExecutor { return &LogExecutor{log: log} }

// Submit logs the order and reports it as fully filled at the limit price.
func (e *LogExecutor) Submit(ctx context.Context, order Order) (*Fill, error) {
	metrics.OrdersTotal.WithLabelValues(order.Symbol, string(order.Side)).Inc()
	e.log.Info().Str("sym", order.Symbol).Str("side", string(order.Side)).
		Float64("qty", order.Quantity).Float64("quote", order.QuoteValue).
		Float64("px", order.LimitPrice).Msg("submit order (paper)")
	return &Fill{
		Symbol:   order.Symbol,
		Side:     order.Side,
		Quantity: order.Quantity,
		Price:    order.LimitPrice,
		Ts:       time.Now(),
	}, nil
}
