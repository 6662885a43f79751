// Package backtest replays recorded minute ticks through the model and
// strategy stack and scores the outcome.
package backtest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Point is one sample of the equity curve: total account value alongside
// the benchmark price at the same instant.
type Point struct {
	Ts        time.Time `json:"ts"`
	Benchmark float64   `json:"benchmark"`
	Value     float64   `json:"value"`
}

// Recorder persists equity-curve samples.
type Recorder interface {
	Record(p Point) error
	Close() error
}

// JSONLRecorder appends one JSON object per line to a file.
type JSONLRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder opens (or creates) the curve file in append mode.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLRecorder{file: file, enc: json.NewEncoder(file)}, nil
}

func (r *JSONLRecorder) Record(p Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(p)
}

func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// MemoryRecorder keeps points in memory. Used by tests and by optimizer
// runs where the curve is discarded.
type MemoryRecorder struct {
	mu     sync.Mutex
	points []Point
}

func (r *MemoryRecorder) Record(p Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
	return nil
}

func (r *MemoryRecorder) Close() error { return nil }

// Points returns a copy of everything recorded so far.
func (r *MemoryRecorder) Points() []Point {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Point, len(r.points))
	copy(out, r.points)
	return out
}
