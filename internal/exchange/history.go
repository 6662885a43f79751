package exchange

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/geyingli/binance-monitor/internal/signal"
)

// historyRecord is the JSONL line format of the minute-tick store.
type historyRecord struct {
	Ts     int64   `json:"ts"` // unix milliseconds
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

// HistoryPath returns the store file for a symbol under dir.
func HistoryPath(dir, symbol string) string {
	return filepath.Join(dir, symbol+".1m.jsonl")
}

// LoadHistory reads the full minute-tick series for a symbol, oldest first.
// Out-of-order records are rejected: the replay contract requires a
// monotonically ordered stream.
func LoadHistory(dir, symbol string) ([]signal.Tick, error) {
	file, err := os.Open(HistoryPath(dir, symbol))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ticks []signal.Tick
	var lastTs int64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec historyRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode history for %s: %w", symbol, err)
		}
		if rec.Ts < lastTs {
			return nil, fmt.Errorf("history for %s is not time-ordered at ts %d", symbol, rec.Ts)
		}
		lastTs = rec.Ts
		ticks = append(ticks, signal.Tick{
			Symbol: symbol,
			Price:  rec.Price,
			Volume: rec.Volume,
			Ts:     time.UnixMilli(rec.Ts),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ticks, nil
}

// WriteHistory appends ticks to the symbol's store file, creating the
// directory as needed.
func WriteHistory(dir, symbol string, ticks []signal.Tick) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(HistoryPath(dir, symbol), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	for _, tick := range ticks {
		rec := historyRecord{Ts: tick.Ts.UnixMilli(), Price: tick.Price, Volume: tick.Volume}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

// Iterator walks a tick series exactly once. Exhaustion is a terminal
// condition, not an error.
type Iterator struct {
	ticks []signal.Tick
	pos   int
}

// NewIterator wraps an ordered series.
func NewIterator(ticks []signal.Tick) *Iterator {
	return &Iterator{ticks: ticks}
}

// Next pops the next tick; ok is false once the stream is exhausted.
func (it *Iterator) Next() (tick signal.Tick, ok bool) {
	if it.pos >= len(it.ticks) {
		return signal.Tick{}, false
	}
	tick = it.ticks[it.pos]
	it.pos++
	return tick, true
}

// Remaining reports how many ticks are left.
func (it *Iterator) Remaining() int { return len(it.ticks) - it.pos }
