package spectral

import (
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// ErrNoFrames indicates a calibration window ended without receiving any
// frames; no profile is published and the prior one stays authoritative.
var ErrNoFrames = errors.New("calibration captured no frames")

// NoiseProfile is a per-bin ambient floor estimate with its variability,
// published wholesale on calibration. Consumers read it through an atomic
// handle and never see a partially built profile.
type NoiseProfile struct {
	Floor        []float64 `json:"floor"`
	StdDev       []float64 `json:"std_dev"`
	Frames       int       `json:"frames"`
	CalibratedAt time.Time `json:"calibrated_at"`
}

// Bins returns the number of frequency bins covered by the profile.
func (p *NoiseProfile) Bins() int {
	return len(p.Floor)
}

// Subtract returns clamp(mag - floor, 0) per bin, the "gated" magnitude
// used by the watchdog and the display noise cutoff.
func (p *NoiseProfile) Subtract(mag []float64) []float64 {
	out := make([]float64, len(mag))
	for i, m := range mag {
		if i < len(p.Floor) {
			m -= p.Floor[i]
		}
		if m < 0 {
			m = 0
		}
		out[i] = m
	}
	return out
}

// Estimator derives NoiseProfiles from calibration windows. It keeps the
// per-bin minimum magnitude seen during the window (a conservative floor,
// robust to brief signals) and a per-bin variance via Welford's method.
//
// A loud transient spanning the whole window still produces a legitimate
// but poor floor estimate; no automatic rejection is attempted.
type Estimator struct {
	mu      sync.Mutex
	active  bool
	count   int
	minimum []float64
	mean    []float64
	m2      []float64

	current atomic.Pointer[NoiseProfile]
}

// NewEstimator creates an estimator with no published profile.
func NewEstimator() *Estimator {
	return &Estimator{}
}

// Begin starts a calibration window. Calling it while a window is active
// discards the partial accumulation and restarts.
func (e *Estimator) Begin() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = true
	e.count = 0
	e.minimum = nil
	e.mean = nil
	e.m2 = nil
}

// Active reports whether a calibration window is open.
func (e *Estimator) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// Accumulate folds one frame into the open window. Frames arriving while
// no window is open are ignored.
func (e *Estimator) Accumulate(f *Frame) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return
	}
	if e.minimum == nil {
		bins := f.Bins()
		e.minimum = make([]float64, bins)
		e.mean = make([]float64, bins)
		e.m2 = make([]float64, bins)
		for i := range e.minimum {
			e.minimum[i] = math.Inf(1)
		}
	}

	e.count++
	n := float64(e.count)
	for i, m := range f.Magnitude {
		if i >= len(e.minimum) {
			break
		}
		if m < e.minimum[i] {
			e.minimum[i] = m
		}
		delta := m - e.mean[i]
		e.mean[i] += delta / n
		e.m2[i] += delta * (m - e.mean[i])
	}
}

// End finalizes the window and atomically publishes the new profile,
// replacing any prior one. With no frames accumulated it returns
// ErrNoFrames and leaves the previous profile in place.
func (e *Estimator) End() (*NoiseProfile, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		return nil, errors.New("no calibration in progress")
	}
	e.active = false
	if e.count == 0 {
		return nil, ErrNoFrames
	}

	profile := &NoiseProfile{
		Floor:        make([]float64, len(e.minimum)),
		StdDev:       make([]float64, len(e.minimum)),
		Frames:       e.count,
		CalibratedAt: time.Now().UTC(),
	}
	copy(profile.Floor, e.minimum)
	for i := range e.m2 {
		profile.StdDev[i] = math.Sqrt(e.m2[i] / float64(e.count))
	}

	e.minimum = nil
	e.mean = nil
	e.m2 = nil
	e.current.Store(profile)
	return profile, nil
}

// Cancel abandons an open window without publishing.
func (e *Estimator) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = false
	e.minimum = nil
	e.mean = nil
	e.m2 = nil
}

// Current returns the published profile, or nil when uncalibrated. The
// returned profile is immutable.
func (e *Estimator) Current() *NoiseProfile {
	return e.current.Load()
}
