package backtest

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJSONLRecorderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curves", "run.jsonl")
	rec, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("open recorder: %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	points := []Point{
		{Ts: base, Benchmark: 100, Value: 10000},
		{Ts: base.Add(2 * time.Hour), Benchmark: 103, Value: 10120.5},
	}
	for _, p := range points {
		if err := rec.Record(p); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer file.Close()

	var got []Point
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var p Point
		if err := json.Unmarshal(scanner.Bytes(), &p); err != nil {
			t.Fatalf("decode: %v", err)
		}
		got = append(got, p)
	}
	if len(got) != len(points) {
		t.Fatalf("read %d points, want %d", len(got), len(points))
	}
	for i := range points {
		if !got[i].Ts.Equal(points[i].Ts) || got[i].Value != points[i].Value || got[i].Benchmark != points[i].Benchmark {
			t.Errorf("point %d = %+v, want %+v", i, got[i], points[i])
		}
	}
}

func TestMemoryRecorderCopies(t *testing.T) {
	rec := &MemoryRecorder{}
	if err := rec.Record(Point{Value: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	first := rec.Points()
	first[0].Value = 99
	if rec.Points()[0].Value != 1 {
		t.Fatal("Points returned a live reference")
	}
}
