package engine

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sigscope/sigscope/pkg/spectral"
)

// Settings are the live-tunable parameters of a running engine. They can
// be replaced as a whole at any time; readers always observe a complete,
// validated set.
type Settings struct {
	// Display mapping; affects presentation only, never the stored
	// linear magnitudes.
	Gain            float64                `json:"gain"`
	NoiseCutoff     float64                `json:"noise_cutoff"`
	FreqZoom        float64                `json:"freq_zoom"`
	VerticalStretch int                    `json:"vertical_stretch"`
	AmplitudeMode   spectral.AmplitudeMode `json:"amplitude_mode"`

	// Detection
	DetectThreshold         float64       `json:"detect_threshold"`
	IdentificationThreshold float64       `json:"identification_threshold"`
	EvalInterval            time.Duration `json:"eval_interval"`

	// Capture window; a change reallocates the rolling buffers on the
	// next update, discarding their contents.
	CaptureDuration time.Duration `json:"capture_duration"`
}

// Validate checks the settings for internal consistency.
func (s *Settings) Validate() error {
	if s.Gain <= 0 {
		return fmt.Errorf("gain must be positive, got %g", s.Gain)
	}
	if s.FreqZoom <= 0 || s.FreqZoom > 1 {
		return fmt.Errorf("frequency zoom must be in (0, 1], got %g", s.FreqZoom)
	}
	if s.VerticalStretch < 1 {
		return fmt.Errorf("vertical stretch must be at least 1, got %d", s.VerticalStretch)
	}
	if s.DetectThreshold <= 0 {
		return fmt.Errorf("detect threshold must be positive, got %g", s.DetectThreshold)
	}
	if s.IdentificationThreshold < 0 || s.IdentificationThreshold > 1 {
		return fmt.Errorf("identification threshold must be in [0, 1], got %g", s.IdentificationThreshold)
	}
	if s.EvalInterval <= 0 {
		return fmt.Errorf("eval interval must be positive, got %s", s.EvalInterval)
	}
	if s.CaptureDuration < 5*time.Second || s.CaptureDuration > 60*time.Second {
		return fmt.Errorf("capture duration must be between 5s and 60s, got %s", s.CaptureDuration)
	}
	return nil
}

// settingsStore publishes settings to concurrent readers. Updates are
// all-or-nothing: an invalid replacement is rejected and the previous
// settings stay in effect.
type settingsStore struct {
	current atomic.Pointer[Settings]
}

func newSettingsStore(initial *Settings) (*settingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	s := &settingsStore{}
	s.current.Store(initial)
	return s, nil
}

// Load returns the current settings. The returned value must be treated
// as read-only.
func (s *settingsStore) Load() *Settings {
	return s.current.Load()
}

// Update validates and publishes next. On error the prior settings
// remain in effect.
func (s *settingsStore) Update(next *Settings) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid settings update: %w", err)
	}
	s.current.Store(next)
	return nil
}
