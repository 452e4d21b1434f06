package configs

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration. The json tags mirror
// the config file keys so a serialized Config reads like the file that
// produced it (snapshot bundles embed one per capture).
type Config struct {
	// Application settings
	Verbose  bool   `mapstructure:"verbose" json:"verbose"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	DataDir  string `mapstructure:"data_dir" json:"data_dir"`

	// Audio input configuration
	Audio AudioConfig `mapstructure:"audio" json:"audio"`

	// Capture buffer configuration
	Capture CaptureConfig `mapstructure:"capture" json:"capture"`

	// Noise calibration configuration
	Noise NoiseConfig `mapstructure:"noise" json:"noise"`

	// Profile matching configuration
	Matching MatchingConfig `mapstructure:"matching" json:"matching"`

	// Anomaly watchdog configuration
	Watchdog WatchdogConfig `mapstructure:"watchdog" json:"watchdog"`

	// Display mapping configuration
	Display DisplayConfig `mapstructure:"display" json:"display"`

	// Profile library configuration
	Profiles ProfilesConfig `mapstructure:"profiles" json:"profiles"`

	// Snapshot bundle configuration
	Snapshots SnapshotsConfig `mapstructure:"snapshots" json:"snapshots"`

	// Game journal watcher configuration
	Journal JournalConfig `mapstructure:"journal" json:"journal"`

	// Event/metrics server configuration
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Sighting report configuration
	Report ReportConfig `mapstructure:"report" json:"report"`
}

// AudioConfig contains audio input and transform settings
type AudioConfig struct {
	SampleRate     int    `mapstructure:"sample_rate" json:"sample_rate"`
	BlockSize      int    `mapstructure:"block_size" json:"block_size"`
	FFTSize        int    `mapstructure:"fft_size" json:"fft_size"`
	WindowFunction string `mapstructure:"window_function" json:"window_function"`
	Channels       int    `mapstructure:"channels" json:"channels"`
	ChannelMode    string `mapstructure:"channel_mode" json:"channel_mode"`
}

// CaptureConfig contains rolling capture buffer settings
type CaptureConfig struct {
	Duration      time.Duration `mapstructure:"duration" json:"duration"`
	HistoryFrames int           `mapstructure:"history_frames" json:"history_frames"`
}

// NoiseConfig contains noise floor calibration settings
type NoiseConfig struct {
	CalibrationWindow time.Duration `mapstructure:"calibration_window" json:"calibration_window"`
}

// MatchingConfig contains profile matching settings
type MatchingConfig struct {
	EvalInterval            time.Duration `mapstructure:"eval_interval" json:"eval_interval"`
	SearchRange             int           `mapstructure:"search_range" json:"search_range"`
	IdentificationThreshold float64       `mapstructure:"identification_threshold" json:"identification_threshold"`
	MaxTemplateFrames       int           `mapstructure:"max_template_frames" json:"max_template_frames"`
	MaxTemplateBins         int           `mapstructure:"max_template_bins" json:"max_template_bins"`
}

// WatchdogConfig contains anomaly detection settings
type WatchdogConfig struct {
	DetectThreshold float64       `mapstructure:"detect_threshold" json:"detect_threshold"`
	AbsoluteFloor   float64       `mapstructure:"absolute_floor" json:"absolute_floor"`
	Cooldown        time.Duration `mapstructure:"cooldown" json:"cooldown"`
}

// DisplayConfig contains display mapping settings; they affect only how
// frames are presented, never the stored linear magnitudes
type DisplayConfig struct {
	Gain            float64 `mapstructure:"gain" json:"gain"`
	NoiseCutoff     float64 `mapstructure:"noise_cutoff" json:"noise_cutoff"`
	FreqZoom        float64 `mapstructure:"freq_zoom" json:"freq_zoom"`
	VerticalStretch int     `mapstructure:"vertical_stretch" json:"vertical_stretch"`
	AmplitudeMode   string  `mapstructure:"amplitude_mode" json:"amplitude_mode"`
}

// ProfilesConfig contains profile library settings
type ProfilesConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

// SnapshotsConfig contains snapshot bundle settings
type SnapshotsConfig struct {
	Dir string `mapstructure:"dir" json:"dir"`
}

// JournalConfig contains game journal watcher settings
type JournalConfig struct {
	Enabled      bool          `mapstructure:"enabled" json:"enabled"`
	Dir          string        `mapstructure:"dir" json:"dir"`
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
}

// ServerConfig contains the event/metrics HTTP server settings
type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Addr    string `mapstructure:"addr" json:"addr"`
}

// ReportConfig contains sighting report submission settings
type ReportConfig struct {
	Endpoint  string `mapstructure:"endpoint" json:"endpoint"`
	Commander string `mapstructure:"commander" json:"commander"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}

	return config, nil
}

// ValidateConfig validates the configuration. Invalid values are rejected
// at this boundary; the caller keeps its prior valid configuration.
func ValidateConfig(config *Config) error {
	if config.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio sample rate must be positive")
	}

	if config.Audio.BlockSize <= 0 {
		return fmt.Errorf("audio block size must be positive")
	}

	if config.Audio.FFTSize < config.Audio.BlockSize {
		return fmt.Errorf("fft size must be at least the block size")
	}

	if config.Audio.FFTSize&(config.Audio.FFTSize-1) != 0 {
		return fmt.Errorf("fft size must be a power of two")
	}

	if config.Capture.Duration < 5*time.Second || config.Capture.Duration > 60*time.Second {
		return fmt.Errorf("capture duration must be between 5s and 60s")
	}

	if config.Capture.HistoryFrames <= 0 {
		return fmt.Errorf("history frames must be positive")
	}

	if config.Noise.CalibrationWindow <= 0 {
		return fmt.Errorf("noise calibration window must be positive")
	}

	if config.Matching.IdentificationThreshold < 0 || config.Matching.IdentificationThreshold > 1 {
		return fmt.Errorf("identification threshold must be between 0 and 1")
	}

	if config.Matching.SearchRange < 0 {
		return fmt.Errorf("matching search range cannot be negative")
	}

	if config.Matching.EvalInterval <= 0 {
		return fmt.Errorf("matching eval interval must be positive")
	}

	if config.Watchdog.DetectThreshold <= 0 {
		return fmt.Errorf("detect threshold must be positive")
	}

	if config.Watchdog.Cooldown <= 0 {
		return fmt.Errorf("watchdog cooldown must be positive")
	}

	if config.Display.Gain <= 0 {
		return fmt.Errorf("display gain must be positive")
	}

	if config.Display.FreqZoom <= 0 || config.Display.FreqZoom > 1 {
		return fmt.Errorf("frequency zoom must be in (0, 1]")
	}

	if config.Display.VerticalStretch < 1 {
		return fmt.Errorf("vertical stretch must be at least 1")
	}

	return nil
}
