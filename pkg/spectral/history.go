package spectral

import (
	"fmt"
	"sync"
	"time"
)

// History is the bounded spectrogram store: an append-only FIFO of
// immutable frames backed by a fixed-size ring. There is exactly one
// writer (the transform pipeline); readers take consistent snapshots and
// never observe a partially appended frame. Eviction of the oldest frame
// is part of the append and never blocks the writer.
type History struct {
	mu       sync.RWMutex
	frames   []*Frame
	head     int // next write slot
	size     int
	lastTime time.Time
}

// NewHistory creates a history holding at most capacity frames.
func NewHistory(capacity int) (*History, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("history capacity must be positive, got %d", capacity)
	}
	return &History{frames: make([]*Frame, capacity)}, nil
}

// Append enqueues a frame, evicting the oldest once capacity is reached.
// Frames must arrive in strictly increasing timestamp order; out-of-order
// frames are rejected so the ordering invariant holds for all readers.
func (h *History) Append(f *Frame) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.size > 0 && !f.Timestamp.After(h.lastTime) {
		return fmt.Errorf("frame timestamp %s not after previous %s",
			f.Timestamp.Format(time.RFC3339Nano), h.lastTime.Format(time.RFC3339Nano))
	}

	h.frames[h.head] = f
	h.head = (h.head + 1) % len(h.frames)
	if h.size < len(h.frames) {
		h.size++
	}
	h.lastTime = f.Timestamp
	return nil
}

// Len returns the number of frames currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.size
}

// Capacity returns the maximum number of frames held.
func (h *History) Capacity() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.frames)
}

// Latest returns the most recent frame, or nil when empty.
func (h *History) Latest() *Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.size == 0 {
		return nil
	}
	return h.frames[(h.head-1+len(h.frames))%len(h.frames)]
}

// Tail returns up to n most recent frames, oldest first. The returned
// slice is a snapshot; the frames themselves are immutable.
func (h *History) Tail(n int) []*Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n > h.size {
		n = h.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]*Frame, n)
	start := (h.head - n + len(h.frames)) % len(h.frames)
	for i := 0; i < n; i++ {
		out[i] = h.frames[(start+i)%len(h.frames)]
	}
	return out
}

// Slice returns the held frames whose source index lies in [from, to),
// oldest first. Indices that have been evicted are simply absent.
func (h *History) Slice(from, to uint64) []*Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Frame
	start := (h.head - h.size + len(h.frames)) % len(h.frames)
	for i := 0; i < h.size; i++ {
		f := h.frames[(start+i)%len(h.frames)]
		if f.Index >= from && f.Index < to {
			out = append(out, f)
		}
	}
	return out
}

// SetCapacity reallocates the ring for a new capacity, discarding prior
// contents. Used when the configured capture duration changes.
func (h *History) SetCapacity(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("history capacity must be positive, got %d", capacity)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = make([]*Frame, capacity)
	h.head = 0
	h.size = 0
	h.lastTime = time.Time{}
	return nil
}
