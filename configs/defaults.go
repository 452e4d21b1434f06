package configs

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SetDefaults sets default configuration values. The audio geometry
// defaults (48 kHz, 1024-sample blocks, 4096-point FFT, 2000-frame
// history) give roughly 42 seconds of spectrogram at ~47 frames/s.
func SetDefaults() {
	// Application defaults
	viper.SetDefault("verbose", false)
	viper.SetDefault("log_level", "info")

	home, _ := os.UserHomeDir()
	viper.SetDefault("data_dir", filepath.Join(home, ".local", "share", "sigscope"))

	// Audio input defaults
	viper.SetDefault("audio.sample_rate", 48000)
	viper.SetDefault("audio.block_size", 1024)
	viper.SetDefault("audio.fft_size", 4096)
	viper.SetDefault("audio.window_function", "hann")
	viper.SetDefault("audio.channels", 2)
	viper.SetDefault("audio.channel_mode", "mix")

	// Capture defaults
	viper.SetDefault("capture.duration", "15s")
	viper.SetDefault("capture.history_frames", 2000)

	// Noise calibration defaults
	viper.SetDefault("noise.calibration_window", "5s")

	// Matching defaults
	viper.SetDefault("matching.eval_interval", "200ms")
	viper.SetDefault("matching.search_range", 8)
	viper.SetDefault("matching.identification_threshold", 0.85)
	viper.SetDefault("matching.max_template_frames", 512)
	viper.SetDefault("matching.max_template_bins", 2049)

	// Watchdog defaults
	viper.SetDefault("watchdog.detect_threshold", 10.0)
	viper.SetDefault("watchdog.absolute_floor", 0.001)
	viper.SetDefault("watchdog.cooldown", "2s")

	// Display defaults
	viper.SetDefault("display.gain", 3.0)
	viper.SetDefault("display.noise_cutoff", 60.0)
	viper.SetDefault("display.freq_zoom", 1.0)
	viper.SetDefault("display.vertical_stretch", 8)
	viper.SetDefault("display.amplitude_mode", "log")

	// Profile library defaults
	viper.SetDefault("profiles.dir", "profiles")

	// Snapshot defaults
	viper.SetDefault("snapshots.dir", "snapshots")

	// Journal watcher defaults
	viper.SetDefault("journal.enabled", false)
	viper.SetDefault("journal.dir", defaultJournalDir(home))
	viper.SetDefault("journal.poll_interval", "2s")

	// Server defaults
	viper.SetDefault("server.enabled", false)
	viper.SetDefault("server.addr", "127.0.0.1:8465")

	// Report defaults
	viper.SetDefault("report.endpoint", "")
	viper.SetDefault("report.commander", "")
}

// defaultJournalDir is where Elite Dangerous writes its journal on
// Windows; other platforms have no standard location.
func defaultJournalDir(home string) string {
	return filepath.Join(home, "Saved Games", "Frontier Developments", "Elite Dangerous")
}
