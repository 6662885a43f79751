// Package window provides fixed-length sample windows and incrementally
// maintained rolling means for minute-resolution series.
package window

// Ring is a generic fixed-capacity ring buffer. Once full, each Push evicts
// exactly one oldest sample, so the length stays constant.
type Ring[T any] struct {
	buf    []T
	start  int
	length int
}

// NewRing allocates a ring buffer holding at most capacity samples.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v and returns the evicted sample, if any.
func (r *Ring[T]) Push(v T) (evicted T, full bool) {
	if r.length < len(r.buf) {
		r.buf[(r.start+r.length)%len(r.buf)] = v
		r.length++
		return evicted, false
	}
	evicted = r.buf[r.start]
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return evicted, true
}

// At returns the sample at index i counted from the oldest (0) onward.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.length {
		panic("window: ring index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// FromEnd returns the sample i places before the newest one: FromEnd(0) is
// the latest sample, FromEnd(1) the one before it.
func (r *Ring[T]) FromEnd(i int) T {
	return r.At(r.length - 1 - i)
}

// Len reports how many samples the ring currently holds.
func (r *Ring[T]) Len() int { return r.length }

// Cap reports the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Full reports whether the ring has reached its capacity.
func (r *Ring[T]) Full() bool { return r.length == len(r.buf) }
