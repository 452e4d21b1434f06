package spectral

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Amplitude mapping constants. Linear magnitude is the canonical stored
// form; LOG values are derived for display and are invertible back to
// linear within floating point tolerance.
const (
	// logEpsilon keeps 20*log10 finite for zero magnitude bins.
	logEpsilon = 1e-9
	// logOffset shifts typical signal levels into a positive display range.
	logOffset = 100.0
)

// AmplitudeMode selects how magnitudes are presented to consumers.
type AmplitudeMode int

const (
	AmplitudeLinear AmplitudeMode = iota
	AmplitudeLog
)

// String returns the canonical name for the mode.
func (m AmplitudeMode) String() string {
	switch m {
	case AmplitudeLog:
		return "log"
	default:
		return "linear"
	}
}

// MarshalJSON encodes the mode as its canonical name.
func (m AmplitudeMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON decodes a mode from its name.
func (m *AmplitudeMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode, err := ParseAmplitudeMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseAmplitudeMode parses a mode name from configuration.
func ParseAmplitudeMode(s string) (AmplitudeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "log":
		return AmplitudeLog, nil
	case "linear", "lin":
		return AmplitudeLinear, nil
	default:
		return AmplitudeLinear, fmt.Errorf("unknown amplitude mode: %q", s)
	}
}

// Frame is a single spectral frame: per-bin linear magnitudes derived from
// one windowed FFT, tagged with the source block index and capture time.
// Frames are immutable once created.
type Frame struct {
	Index     uint64    `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Magnitude []float64 `json:"magnitude"`
}

// NewFrame creates a frame, copying the magnitude slice so later reuse of
// the caller's buffer cannot mutate the frame.
func NewFrame(index uint64, ts time.Time, magnitude []float64) *Frame {
	mag := make([]float64, len(magnitude))
	copy(mag, magnitude)
	return &Frame{
		Index:     index,
		Timestamp: ts,
		Magnitude: mag,
	}
}

// Bins returns the number of frequency bins in the frame.
func (f *Frame) Bins() int {
	return len(f.Magnitude)
}

// Display returns the magnitudes mapped for the given amplitude mode.
// The returned slice is freshly allocated; the stored linear magnitudes
// are never modified.
func (f *Frame) Display(mode AmplitudeMode) []float64 {
	if mode == AmplitudeLog {
		return ToLog(f.Magnitude)
	}
	out := make([]float64, len(f.Magnitude))
	copy(out, f.Magnitude)
	return out
}

// ToLog maps linear magnitudes to display decibels:
// 20*log10(m + epsilon) + offset. The epsilon clamp keeps zero bins finite.
func ToLog(mag []float64) []float64 {
	out := make([]float64, len(mag))
	for i, m := range mag {
		out[i] = 20*math.Log10(m+logEpsilon) + logOffset
	}
	return out
}

// FromLog inverts ToLog, recovering linear magnitudes. Values that were
// clamped at the epsilon floor come back as zero.
func FromLog(db []float64) []float64 {
	out := make([]float64, len(db))
	for i, v := range db {
		m := math.Pow(10, (v-logOffset)/20) - logEpsilon
		if m < 0 {
			m = 0
		}
		out[i] = m
	}
	return out
}
