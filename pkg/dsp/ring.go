package dsp

import (
	"fmt"
	"sync"
	"time"
)

// RingBuffer is a fixed-capacity store of the most recent raw audio
// samples, backed by a single arena addressed with a modular index.
// Push continuously overwrites the oldest samples and never blocks;
// a producer outpacing readers silently loses the oldest data, which is
// documented behavior rather than an error.
type RingBuffer struct {
	mu         sync.Mutex
	data       []float64
	head       int // next write position
	size       int
	sampleRate int
}

// NewRingBuffer creates a ring holding duration worth of samples at the
// given sample rate.
func NewRingBuffer(duration time.Duration, sampleRate int) (*RingBuffer, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	capacity := int(duration.Seconds() * float64(sampleRate))
	if capacity <= 0 {
		return nil, fmt.Errorf("ring duration too short: %s", duration)
	}
	return &RingBuffer{
		data:       make([]float64, capacity),
		sampleRate: sampleRate,
	}, nil
}

// Push appends samples, overwriting the oldest once capacity is exceeded.
func (r *RingBuffer) Push(samples []float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(samples)
	capacity := len(r.data)
	if n >= capacity {
		// Only the newest capacity samples survive.
		copy(r.data, samples[n-capacity:])
		r.head = 0
		r.size = capacity
		return
	}
	for _, s := range samples {
		r.data[r.head] = s
		r.head = (r.head + 1) % capacity
	}
	r.size += n
	if r.size > capacity {
		r.size = capacity
	}
}

// Snapshot returns an immutable, point-in-time copy of the held samples,
// oldest first. It returns exactly the configured duration once that much
// has been captured, or less when the buffer is still filling.
func (r *RingBuffer) Snapshot() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]float64, r.size)
	start := (r.head - r.size + len(r.data)) % len(r.data)
	for i := 0; i < r.size; i++ {
		out[i] = r.data[(start+i)%len(r.data)]
	}
	return out
}

// Len returns the number of samples currently held.
func (r *RingBuffer) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// Capacity returns the maximum number of samples held.
func (r *RingBuffer) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Duration returns the configured capture duration.
func (r *RingBuffer) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(float64(len(r.data)) / float64(r.sampleRate) * float64(time.Second))
}

// SetDuration reallocates the buffer for a new capture duration,
// discarding prior contents.
func (r *RingBuffer) SetDuration(duration time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := int(duration.Seconds() * float64(r.sampleRate))
	if capacity <= 0 {
		return fmt.Errorf("ring duration too short: %s", duration)
	}
	r.data = make([]float64, capacity)
	r.head = 0
	r.size = 0
	return nil
}
