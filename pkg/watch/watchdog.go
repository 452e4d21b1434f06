package watch

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sigscope/sigscope/pkg/spectral"
)

var (
	// ErrInvalidThreshold indicates the detect threshold must be positive.
	ErrInvalidThreshold = errors.New("detect threshold must be positive")
	// ErrInvalidCooldown indicates the cooldown must be positive.
	ErrInvalidCooldown = errors.New("cooldown duration must be positive")
)

// State is the watchdog's alerting state. Triggered is transient: the
// watchdog fires the event and immediately enters Cooldown.
type State int

const (
	StateIdle State = iota
	StateTriggered
	StateCooldown
)

// String returns a readable state name.
func (s State) String() string {
	switch s {
	case StateTriggered:
		return "triggered"
	case StateCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// Event is a discrete anomaly alert: a contiguous frequency band whose
// noise-gated magnitude exceeded the detection threshold. IDs increase
// monotonically and serve de-duplication downstream.
type Event struct {
	ID         uint64    `json:"id"`
	BinFrom    int       `json:"bin_from"`
	BinTo      int       `json:"bin_to"` // inclusive
	PeakBin    int       `json:"peak_bin"`
	PeakValue  float64   `json:"peak_value"`
	FrameIndex uint64    `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
}

// Config holds watchdog tuning.
type Config struct {
	// AbsoluteFloor is the magnitude a bin must exceed (scaled by the
	// detect threshold) when no noise profile has been calibrated.
	AbsoluteFloor float64
	// Cooldown suppresses repeat events for the same band after a
	// trigger. The duration is fixed: cooldown ends by timer, not by the
	// condition clearing.
	Cooldown time.Duration
}

// band tracks a triggered frequency band during its cooldown window.
type band struct {
	from, to int
	until    time.Time
}

// Watchdog compares each incoming frame's noise-gated magnitude against a
// threshold derived from the noise profile and raises de-duplicated
// anomaly events. State machine: Idle -> Triggered -> Cooldown -> Idle.
// Events for a band overlapping one already in cooldown are coalesced.
type Watchdog struct {
	cfg    Config
	nextID atomic.Uint64

	mu    sync.Mutex
	bands []band
}

// NewWatchdog creates a watchdog with the given configuration.
func NewWatchdog(cfg Config) (*Watchdog, error) {
	if cfg.Cooldown <= 0 {
		return nil, ErrInvalidCooldown
	}
	if cfg.AbsoluteFloor <= 0 {
		cfg.AbsoluteFloor = 1e-3
	}
	return &Watchdog{cfg: cfg}, nil
}

// State reports the current alerting state: Cooldown while any triggered
// band's window is open, Idle otherwise.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	for _, b := range w.bands {
		if now.Before(b.until) {
			return StateCooldown
		}
	}
	return StateIdle
}

// Evaluate checks one frame against the noise profile and the detect
// threshold, returning any newly triggered events. profile may be nil
// (uncalibrated), in which case raw magnitudes are compared against the
// absolute floor scaled by the threshold. Raising the threshold never
// lowers the magnitude required to trigger.
func (w *Watchdog) Evaluate(f *spectral.Frame, profile *spectral.NoiseProfile, detectThreshold float64) ([]Event, error) {
	if detectThreshold <= 0 {
		return nil, ErrInvalidThreshold
	}

	triggered := make([]bool, f.Bins())
	values := make([]float64, f.Bins())
	any := false
	for i, m := range f.Magnitude {
		var residual, limit float64
		if profile != nil && i < profile.Bins() {
			residual = m - profile.Floor[i]
			if residual < 0 {
				residual = 0
			}
			limit = detectThreshold * profile.StdDev[i]
		} else {
			residual = m
			limit = detectThreshold * w.cfg.AbsoluteFloor
		}
		values[i] = residual
		if residual > limit {
			triggered[i] = true
			any = true
		}
	}
	if !any {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := f.Timestamp
	w.pruneLocked(now)

	var events []Event
	for from := 0; from < len(triggered); from++ {
		if !triggered[from] {
			continue
		}
		to := from
		for to+1 < len(triggered) && triggered[to+1] {
			to++
		}

		if idx := w.overlapLocked(from, to, now); idx >= 0 {
			// Sustained signal: coalesce into the cooling band and
			// extend its extent, but raise no new event.
			if from < w.bands[idx].from {
				w.bands[idx].from = from
			}
			if to > w.bands[idx].to {
				w.bands[idx].to = to
			}
		} else {
			peakBin, peakVal := from, values[from]
			for i := from + 1; i <= to; i++ {
				if values[i] > peakVal {
					peakBin, peakVal = i, values[i]
				}
			}
			events = append(events, Event{
				ID:         w.nextID.Add(1),
				BinFrom:    from,
				BinTo:      to,
				PeakBin:    peakBin,
				PeakValue:  peakVal,
				FrameIndex: f.Index,
				Timestamp:  now,
			})
			w.bands = append(w.bands, band{from: from, to: to, until: now.Add(w.cfg.Cooldown)})
		}
		from = to
	}
	return events, nil
}

// pruneLocked drops bands whose cooldown window has closed.
func (w *Watchdog) pruneLocked(now time.Time) {
	kept := w.bands[:0]
	for _, b := range w.bands {
		if now.Before(b.until) {
			kept = append(kept, b)
		}
	}
	w.bands = kept
}

// overlapLocked returns the index of a cooling band overlapping
// [from, to], or -1.
func (w *Watchdog) overlapLocked(from, to int, now time.Time) int {
	for i, b := range w.bands {
		if now.Before(b.until) && from <= b.to && to >= b.from {
			return i
		}
	}
	return -1
}
