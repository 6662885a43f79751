package exchange

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/geyingli/binance-monitor/internal/signal"
)

// Client wraps the Binance spot REST API with rate limiting and retries.
// Every call is retryable by contract: an error means nothing happened and
// the caller may try again on the next cycle.
type Client struct {
	api     *binance.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient builds a spot client. Testnet routing is process-global in the
// underlying SDK, so set it once at startup.
func NewClient(apiKey, apiSecret string, testnet bool, log zerolog.Logger) *Client {
	binance.UseTestnet = testnet
	api := binance.NewClient(apiKey, apiSecret)
	api.HTTPClient = &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	return &Client{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(10), 20),
		log:     log,
	}
}

// Prices returns the current price per symbol. Symbols the exchange does
// not know are absent from the result.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	listed, err := c.api.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	wanted := make(map[string]struct{}, len(symbols))
	for _, sym := range symbols {
		wanted[sym] = struct{}{}
	}
	out := make(map[string]float64, len(symbols))
	for _, item := range listed {
		if _, ok := wanted[item.Symbol]; !ok {
			continue
		}
		px, err := strconv.ParseFloat(item.Price, 64)
		if err != nil {
			c.log.Warn().Str("symbol", item.Symbol).Str("price", item.Price).Msg("unparseable price")
			continue
		}
		out[item.Symbol] = px
	}
	return out, nil
}

// Klines downloads closed 1m candles as ticks for [start, end), retrying
// transient failures with exponential backoff.
func (c *Client) Klines(ctx context.Context, symbol string, start, end time.Time) ([]signal.Tick, error) {
	const maxRetries = 3
	backoff := 100 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		klines, err := c.api.NewKlinesService().
			Symbol(symbol).
			Interval("1m").
			StartTime(start.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(1000).
			Do(ctx)
		if err == nil {
			ticks := make([]signal.Tick, 0, len(klines))
			for _, k := range klines {
				px, perr := strconv.ParseFloat(k.Close, 64)
				volume, verr := strconv.ParseFloat(k.QuoteAssetVolume, 64)
				if perr != nil || verr != nil {
					continue
				}
				ticks = append(ticks, signal.Tick{
					Symbol: symbol,
					Price:  px,
					Volume: volume,
					Ts:     time.UnixMilli(k.CloseTime),
				})
			}
			return ticks, nil
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		wait := time.Duration(math.Pow(2, float64(attempt))) * backoff
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// HistoricalTicks downloads the last `days` of minute candles in day-sized
// chunks (Binance caps a single request at 1000 rows).
func (c *Client) HistoricalTicks(ctx context.Context, symbol string, days int) ([]signal.Tick, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -days)

	var all []signal.Tick
	for chunkStart := start; chunkStart.Before(end); {
		chunkEnd := chunkStart.Add(1000 * time.Minute)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		ticks, err := c.Klines(ctx, symbol, chunkStart, chunkEnd)
		if err != nil {
			return nil, err
		}
		all = append(all, ticks...)
		if len(ticks) > 0 {
			chunkStart = ticks[len(ticks)-1].Ts.Add(time.Millisecond)
		} else {
			chunkStart = chunkEnd
		}
	}
	return all, nil
}

// AccountValue sums the spot account into the quote currency using current
// prices. Assets with no quoted pair are skipped.
func (c *Client) AccountValue(ctx context.Context, quote string) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	account, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("get account: %w", err)
	}

	var symbols []string
	holdings := make(map[string]float64)
	for _, b := range account.Balances {
		free, _ := strconv.ParseFloat(b.Free, 64)
		locked, _ := strconv.ParseFloat(b.Locked, 64)
		qty := free + locked
		if qty <= 0 {
			continue
		}
		holdings[b.Asset] = qty
		if b.Asset != quote {
			symbols = append(symbols, signal.Pair(b.Asset, quote))
		}
	}

	total := holdings[quote]
	if len(symbols) > 0 {
		prices, err := c.Prices(ctx, symbols)
		if err != nil {
			return 0, err
		}
		for asset, qty := range holdings {
			if asset == quote {
				continue
			}
			px, ok := prices[signal.Pair(asset, quote)]
			if !ok {
				c.log.Warn().Str("asset", asset).Msg("no quoted pair for holding, skipped")
				continue
			}
			total += qty * px
		}
	}
	return total, nil
}

// MarketOrder places a market order for the given quote value and returns
// the aggregate fill. On error nothing was applied.
func (c *Client) MarketOrder(ctx context.Context, symbol string, side binance.SideType, quoteValue float64) (executedQty, executedPrice, fees float64, err error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, 0, 0, err
	}
	res, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		QuoteOrderQty(strconv.FormatFloat(quoteValue, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("create order %s %s: %w", symbol, side, err)
	}

	executedQty, _ = strconv.ParseFloat(res.ExecutedQuantity, 64)
	quoteQty, _ := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)
	if executedQty > 0 {
		executedPrice = quoteQty / executedQty
	}
	for _, fill := range res.Fills {
		commission, _ := strconv.ParseFloat(fill.Commission, 64)
		fees += commission
	}
	return executedQty, executedPrice, fees, nil
}
