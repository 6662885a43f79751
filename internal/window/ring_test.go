package window

import "testing"

func TestRingEvictsOldest(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		if _, full := ring.Push(i); full {
			t.Fatalf("ring should not evict before reaching capacity")
		}
	}
	evicted, full := ring.Push(4)
	if !full || evicted != 1 {
		t.Fatalf("expected eviction of 1, got %d (full=%v)", evicted, full)
	}
	if ring.Len() != 3 {
		t.Fatalf("length should stay constant at capacity, got %d", ring.Len())
	}
	if ring.At(0) != 2 || ring.FromEnd(0) != 4 {
		t.Fatalf("unexpected ring contents: oldest=%d newest=%d", ring.At(0), ring.FromEnd(0))
	}
}

func TestRingFromEnd(t *testing.T) {
	ring := NewRing[float64](5)
	for i := 0; i < 8; i++ {
		ring.Push(float64(i))
	}
	// Holds 3..7 now.
	if ring.FromEnd(0) != 7 || ring.FromEnd(4) != 3 {
		t.Fatalf("unexpected FromEnd values: %v %v", ring.FromEnd(0), ring.FromEnd(4))
	}
}

func TestRingIndexPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for out-of-range index")
		}
	}()
	NewRing[int](2).At(0)
}
