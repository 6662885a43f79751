package window

import (
	"math"
	"math/rand"
	"testing"
)

func TestRollingMatchesDirectMean(t *testing.T) {
	const size = 420
	rng := rand.New(rand.NewSource(7))
	rolling := NewRolling(size)
	samples := make([]float64, 0, 5000)

	for i := 0; i < 5000; i++ {
		v := 100 + rng.Float64()*10
		samples = append(samples, v)
		rolling.Push(v)

		n := len(samples)
		lo := n - size
		if lo < 0 {
			lo = 0
		}
		var sum float64
		for _, s := range samples[lo:] {
			sum += s
		}
		direct := sum / float64(n-lo)
		if math.Abs(rolling.Mean()-direct) > 1e-9 {
			t.Fatalf("at sample %d incremental mean %.12f != direct %.12f", i, rolling.Mean(), direct)
		}
	}
	if !rolling.Ready() {
		t.Fatalf("window should be full after %d samples", 5000)
	}
}

func TestRollingWarmup(t *testing.T) {
	rolling := NewRolling(4)
	rolling.Push(2)
	rolling.Push(4)
	if rolling.Ready() {
		t.Fatalf("window should not be ready with 2 of 4 samples")
	}
	if rolling.Mean() != 3 {
		t.Fatalf("expected warmup mean 3, got %v", rolling.Mean())
	}
}
