package window

// Rolling maintains the arithmetic mean over the newest size samples. While
// the window is filling the mean is the direct mean of what has arrived;
// once full every push folds the new sample in and the evicted one out in
// O(1), so the window length never changes afterwards.
type Rolling struct {
	ring *Ring[float64]
	sum  float64
	mean float64
}

// NewRolling creates a rolling mean over a window of size samples.
func NewRolling(size int) *Rolling {
	return &Rolling{ring: NewRing[float64](size)}
}

// Push folds v into the window, evicting the oldest sample when full.
func (r *Rolling) Push(v float64) {
	evicted, full := r.ring.Push(v)
	if full {
		r.mean += (v - evicted) / float64(r.ring.Cap())
		return
	}
	r.sum += v
	r.mean = r.sum / float64(r.ring.Len())
}

// Mean returns the current window mean.
func (r *Rolling) Mean() float64 { return r.mean }

// Ready reports whether the window holds a full complement of samples.
func (r *Rolling) Ready() bool { return r.ring.Full() }

// Size returns the configured window length.
func (r *Rolling) Size() int { return r.ring.Cap() }
