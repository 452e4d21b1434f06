package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the engine's Prometheus collectors. All collectors
// register on the default registry at construction.
type Metrics struct {
	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	BlocksRead      prometheus.Counter
	Anomalies       prometheus.Counter
	Matches         prometheus.Counter
	MatchConfidence prometheus.Gauge
	NoiseCalibrated prometheus.Gauge
	HistoryFrames   prometheus.Gauge
	ProfileCount    prometheus.Gauge
}

// NewMetrics creates and registers the engine collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		FramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sigscope",
			Name:      "frames_processed_total",
			Help:      "Spectral frames produced by the transform pipeline.",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sigscope",
			Name:      "frames_dropped_total",
			Help:      "Audio blocks dropped before reaching the transform.",
		}),
		BlocksRead: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sigscope",
			Name:      "blocks_read_total",
			Help:      "Audio blocks read from the input source.",
		}),
		Anomalies: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sigscope",
			Name:      "anomalies_total",
			Help:      "Anomaly events emitted by the watchdog.",
		}),
		Matches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "sigscope",
			Name:      "matches_total",
			Help:      "Profile identifications above the confidence threshold.",
		}),
		MatchConfidence: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigscope",
			Name:      "match_confidence",
			Help:      "Confidence of the most recent matching pass.",
		}),
		NoiseCalibrated: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigscope",
			Name:      "noise_calibrated",
			Help:      "1 when a noise profile is active, 0 otherwise.",
		}),
		HistoryFrames: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigscope",
			Name:      "history_frames",
			Help:      "Frames currently retained in the spectrogram history.",
		}),
		ProfileCount: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigscope",
			Name:      "profiles",
			Help:      "Signal profiles loaded in the library.",
		}),
	}
}
