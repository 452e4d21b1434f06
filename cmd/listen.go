package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sigscope/sigscope/internal/app"
	"github.com/sigscope/sigscope/internal/engine"
)

var (
	listenInput        string
	listenRealtime     bool
	listenCalibrate    time.Duration
	listenServer       bool
	listenJournal      bool
	listenSnapAnomaly  bool
	listenSnapInterval time.Duration
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Listen to an audio stream and hunt for signals",
	Long: `Listen consumes audio from a WAV file or raw 16-bit PCM on stdin,
runs the spectral pipeline, and reports identified profiles and
anomalies. With --server enabled, events stream over WebSocket and
metrics are exposed for Prometheus.

Examples:
  sigscope listen --input capture.wav --realtime --calibrate 5s
  arecord -f S16_LE -r 48000 -c 2 | sigscope listen --server`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&listenInput, "input", "i", "",
		"WAV file to replay (default reads raw PCM from stdin)")
	listenCmd.Flags().BoolVar(&listenRealtime, "realtime", false,
		"pace file input to wall-clock time")
	listenCmd.Flags().DurationVar(&listenCalibrate, "calibrate", 0,
		"calibrate the noise floor for this long at startup")
	listenCmd.Flags().BoolVar(&listenServer, "server", false,
		"serve events, status and metrics over HTTP")
	listenCmd.Flags().BoolVar(&listenJournal, "journal", false,
		"follow the game journal for capture context")
	listenCmd.Flags().BoolVar(&listenSnapAnomaly, "snapshot-on-anomaly", false,
		"write a snapshot bundle when the watchdog triggers")
	listenCmd.Flags().DurationVar(&listenSnapInterval, "snapshot-min-interval", 30*time.Second,
		"minimum time between automatic snapshots")
}

func runListen(cmd *cobra.Command, args []string) error {
	a, err := app.New(&app.Context{
		InputFile:    listenInput,
		Realtime:     listenRealtime,
		CalibrateFor: listenCalibrate,
		WithServer:   listenServer,
		WithJournal:  listenJournal,
		WithMetrics:  listenServer,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if listenSnapAnomaly {
		go autoSnapshot(ctx, a, listenSnapInterval)
	}

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("listen session failed: %w", err)
	}
	return nil
}

// autoSnapshot writes a bundle for anomaly events, rate-limited so a
// noisy band cannot fill the disk.
func autoSnapshot(ctx context.Context, a *app.App, minInterval time.Duration) {
	events, cancel := a.Engine().Bus().Subscribe(16)
	defer cancel()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != engine.EventAnomaly {
				continue
			}
			if !last.IsZero() && time.Since(last) < minInterval {
				continue
			}
			last = time.Now()
			note := fmt.Sprintf("anomaly %d at %.0f-%.0f Hz",
				ev.Anomaly.ID, ev.Anomaly.FreqFromHz, ev.Anomaly.FreqToHz)
			if _, err := a.Snapshot(ctx, "anomaly", note); err != nil {
				continue
			}
		}
	}
}
