package exchange

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/geyingli/binance-monitor/internal/signal"
)

func minuteSeries(symbol string, start time.Time, prices []float64) []signal.Tick {
	ticks := make([]signal.Tick, len(prices))
	for i, px := range prices {
		ticks[i] = signal.Tick{
			Symbol: symbol,
			Price:  px,
			Volume: 1000,
			Ts:     start.Add(time.Duration(i) * time.Minute),
		}
	}
	return ticks
}

func TestHistoryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	written := minuteSeries("BTCUSDT", start, []float64{100, 101, 102.5})

	if err := WriteHistory(dir, "BTCUSDT", written); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := LoadHistory(dir, "BTCUSDT")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != len(written) {
		t.Fatalf("loaded %d ticks, want %d", len(loaded), len(written))
	}
	for i, tick := range loaded {
		if tick.Symbol != "BTCUSDT" {
			t.Errorf("tick %d symbol = %q", i, tick.Symbol)
		}
		if tick.Price != written[i].Price {
			t.Errorf("tick %d price = %v, want %v", i, tick.Price, written[i].Price)
		}
		if !tick.Ts.Equal(written[i].Ts) {
			t.Errorf("tick %d ts = %v, want %v", i, tick.Ts, written[i].Ts)
		}
	}
}

func TestWriteHistoryAppends(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := WriteHistory(dir, "ETHUSDT", minuteSeries("ETHUSDT", start, []float64{10, 11})); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteHistory(dir, "ETHUSDT", minuteSeries("ETHUSDT", start.Add(2*time.Minute), []float64{12})); err != nil {
		t.Fatalf("second write: %v", err)
	}

	loaded, err := LoadHistory(dir, "ETHUSDT")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("loaded %d ticks, want 3", len(loaded))
	}
	if loaded[2].Price != 12 {
		t.Fatalf("last price = %v, want 12", loaded[2].Price)
	}
}

func TestLoadHistoryRejectsOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	path := HistoryPath(dir, "BTCUSDT")
	body := `{"ts":1000,"price":100,"volume":1}
{"ts":500,"price":99,"volume":1}
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := LoadHistory(dir, "BTCUSDT"); err == nil {
		t.Fatal("expected error for out-of-order records")
	}
}

func TestLoadHistoryMissingFile(t *testing.T) {
	if _, err := LoadHistory(t.TempDir(), "NOPEUSDT"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestHistoryPathLayout(t *testing.T) {
	got := HistoryPath("data", "BTCUSDT")
	want := filepath.Join("data", "BTCUSDT.1m.jsonl")
	if got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}
}

func TestIteratorWalksOnce(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	it := NewIterator(minuteSeries("BTCUSDT", start, []float64{1, 2, 3}))

	if it.Remaining() != 3 {
		t.Fatalf("remaining = %d, want 3", it.Remaining())
	}
	var seen []float64
	for {
		tick, ok := it.Next()
		if !ok {
			break
		}
		seen = append(seen, tick.Price)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("walked %v", seen)
	}
	if it.Remaining() != 0 {
		t.Fatalf("remaining after walk = %d", it.Remaining())
	}
	if _, ok := it.Next(); ok {
		t.Fatal("exhausted iterator yielded a tick")
	}
}
