package engine

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sigscope/sigscope/configs"
	"github.com/sigscope/sigscope/internal/source"
	"github.com/sigscope/sigscope/pkg/dsp"
	"github.com/sigscope/sigscope/pkg/match"
	"github.com/sigscope/sigscope/pkg/profile"
	"github.com/sigscope/sigscope/pkg/spectral"
	"github.com/sigscope/sigscope/pkg/watch"
)

// Engine wires the capture pipeline together: audio blocks flow from a
// Source into the rolling capture ring and the frame transform, frames
// into the spectrogram history and the noise estimator, and the latest
// frame to the watchdog. The matcher runs on its own cadence against the
// history. One goroutine owns each stage; stages exchange data through
// capacity-one mailboxes that keep only the newest frame, so a slow
// consumer degrades its own freshness instead of stalling capture.
type Engine struct {
	cfg *configs.Config

	ring        *dsp.RingBuffer
	transformer *dsp.FrameTransformer
	history     *spectral.History
	noise       *spectral.Estimator
	library     *profile.Library
	matcher     *match.Matcher
	watchdog    *watch.Watchdog
	settings    *settingsStore
	bus         *Bus
	metrics     *Metrics

	sampleRate  int
	blockPeriod time.Duration
	watchBox    chan *spectral.Frame

	mu          sync.Mutex
	lastMatch   string
	lastMatched bool
}

// New builds an engine from configuration. The library is created by the
// caller so profile commands can share it; metrics may be nil when no
// exporter is running.
func New(cfg *configs.Config, library *profile.Library, metrics *Metrics) (*Engine, error) {
	if err := configs.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	ring, err := dsp.NewRingBuffer(cfg.Capture.Duration, cfg.Audio.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture ring: %w", err)
	}

	windowType, err := dsp.ParseWindowType(cfg.Audio.WindowFunction)
	if err != nil {
		return nil, err
	}
	transformer, err := dsp.NewFrameTransformer(cfg.Audio.FFTSize, cfg.Audio.SampleRate, windowType)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame transformer: %w", err)
	}

	watchdog, err := watch.NewWatchdog(watch.Config{
		AbsoluteFloor: cfg.Watchdog.AbsoluteFloor,
		Cooldown:      cfg.Watchdog.Cooldown,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create watchdog: %w", err)
	}

	history, err := spectral.NewHistory(cfg.Capture.HistoryFrames)
	if err != nil {
		return nil, fmt.Errorf("failed to create history: %w", err)
	}

	mode, err := spectral.ParseAmplitudeMode(cfg.Display.AmplitudeMode)
	if err != nil {
		return nil, err
	}
	settings, err := newSettingsStore(&Settings{
		Gain:                    cfg.Display.Gain,
		NoiseCutoff:             cfg.Display.NoiseCutoff,
		FreqZoom:                cfg.Display.FreqZoom,
		VerticalStretch:         cfg.Display.VerticalStretch,
		AmplitudeMode:           mode,
		DetectThreshold:         cfg.Watchdog.DetectThreshold,
		IdentificationThreshold: cfg.Matching.IdentificationThreshold,
		EvalInterval:            cfg.Matching.EvalInterval,
		CaptureDuration:         cfg.Capture.Duration,
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		ring:        ring,
		transformer: transformer,
		history:     history,
		noise:       spectral.NewEstimator(),
		library:     library,
		matcher:     match.NewMatcher(cfg.Matching.SearchRange),
		watchdog:    watchdog,
		settings:    settings,
		bus:         NewBus(),
		metrics:     metrics,
		sampleRate:  cfg.Audio.SampleRate,
		blockPeriod: time.Duration(cfg.Audio.BlockSize) * time.Second / time.Duration(cfg.Audio.SampleRate),
		watchBox:    make(chan *spectral.Frame, 1),
	}, nil
}

// Bus returns the engine's event bus.
func (e *Engine) Bus() *Bus {
	return e.bus
}

// History returns the spectrogram history.
func (e *Engine) History() *spectral.History {
	return e.history
}

// Library returns the signal profile library.
func (e *Engine) Library() *profile.Library {
	return e.library
}

// NoiseProfile returns the active noise profile, or nil when
// uncalibrated.
func (e *Engine) NoiseProfile() *spectral.NoiseProfile {
	return e.noise.Current()
}

// Settings returns the current live settings.
func (e *Engine) Settings() *Settings {
	return e.settings.Load()
}

// UpdateSettings validates and applies a full replacement settings set.
// On error the prior settings stay in effect. A capture duration change
// reallocates the rolling audio buffer and the spectrogram history for
// the new window, discarding their contents.
func (e *Engine) UpdateSettings(next *Settings) error {
	prev := e.settings.Load()
	if err := e.settings.Update(next); err != nil {
		return err
	}

	if next.CaptureDuration != prev.CaptureDuration {
		if err := e.ring.SetDuration(next.CaptureDuration); err != nil {
			return err
		}
		frames := int(next.CaptureDuration.Seconds() * float64(e.sampleRate) / float64(e.cfg.Audio.BlockSize))
		if frames < 1 {
			frames = 1
		}
		if err := e.history.SetCapacity(frames); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"duration": next.CaptureDuration,
			"frames":   frames,
		}).Info("Capture duration changed")
	}
	return nil
}

// BinFrequency returns the center frequency in Hz of a frequency bin.
func (e *Engine) BinFrequency(bin int) float64 {
	return e.transformer.BinFrequency(bin)
}

// AudioSnapshot returns a point-in-time copy of the rolling capture
// buffer (oldest sample first) and its sample rate.
func (e *Engine) AudioSnapshot() ([]float64, int) {
	return e.ring.Snapshot(), e.sampleRate
}

// BeginCalibration opens a noise calibration window. An already open
// window restarts.
func (e *Engine) BeginCalibration() {
	e.noise.Begin()
	e.bus.Publish(statusEvent("noise calibration started"))
	logrus.Info("Noise calibration started")
}

// EndCalibration closes the calibration window and publishes the new
// noise profile. With no frames captured the prior profile stays
// authoritative and ErrNoFrames is returned.
func (e *Engine) EndCalibration() (*spectral.NoiseProfile, error) {
	p, err := e.noise.End()
	if err != nil {
		e.bus.Publish(statusEvent("noise calibration failed"))
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.NoiseCalibrated.Set(1)
	}
	e.bus.Publish(statusEvent("noise calibration complete"))
	logrus.WithFields(logrus.Fields{
		"frames": p.Frames,
		"bins":   p.Bins(),
	}).Info("Noise calibration complete")
	return p, nil
}

// CalibrateFor runs a calibration window of the given duration,
// honoring ctx cancellation (which abandons the window unpublished).
func (e *Engine) CalibrateFor(ctx context.Context, d time.Duration) (*spectral.NoiseProfile, error) {
	e.BeginCalibration()
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		e.noise.Cancel()
		return nil, ctx.Err()
	case <-timer.C:
	}
	return e.EndCalibration()
}

// SaveProfileRegion extracts a region of the current history and saves
// it as a named signal profile. Region frame indices address the
// returned snapshot oldest-first.
func (e *Engine) SaveProfileRegion(name string, region profile.Region, notes string) (*profile.SignalProfile, error) {
	frames := e.history.Tail(e.history.Len())
	p, err := e.library.Save(name, frames, region, notes)
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.ProfileCount.Set(float64(e.library.Len()))
	}
	return p, nil
}

// Run consumes the source until it is exhausted or ctx is canceled. The
// watchdog and matcher stages run alongside the capture loop and stop
// with it.
func (e *Engine) Run(ctx context.Context, src source.Source) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.watchLoop(runCtx)
	}()
	go func() {
		defer wg.Done()
		e.matchLoop(runCtx)
	}()

	e.bus.Publish(statusEvent("capture started"))
	logrus.WithFields(logrus.Fields{
		"sample_rate": src.SampleRate(),
		"fft_size":    e.cfg.Audio.FFTSize,
		"block_size":  e.cfg.Audio.BlockSize,
	}).Info("Capture started")

	err := e.captureLoop(runCtx, src)

	cancel()
	wg.Wait()
	e.bus.Publish(statusEvent("capture stopped"))
	logrus.WithFields(logrus.Fields{
		"frames":  e.transformer.Frames(),
		"dropped": e.transformer.DroppedFrames(),
	}).Info("Capture stopped")
	return err
}

// captureLoop is the single producer: blocks in, ring and frames out.
func (e *Engine) captureLoop(ctx context.Context, src source.Source) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		block, err := src.ReadBlock(ctx)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("source read failed: %w", err)
		}

		e.ring.Push(block.Samples)
		if e.metrics != nil {
			e.metrics.BlocksRead.Inc()
		}

		started := time.Now()
		frame, err := e.transformer.Process(block.Samples, block.Index, block.Timestamp)
		if err != nil {
			e.transformer.MarkDropped()
			if e.metrics != nil {
				e.metrics.FramesDropped.Inc()
			}
			logrus.WithFields(logrus.Fields{
				"block": block.Index,
				"error": err.Error(),
			}).Warn("Frame transform failed, block dropped")
			continue
		}

		// A transform slower than the block cadence would starve the
		// capture; the frame is stale by then, so drop it and count.
		if elapsed := time.Since(started); elapsed > e.blockPeriod {
			e.transformer.MarkDropped()
			if e.metrics != nil {
				e.metrics.FramesDropped.Inc()
			}
			logrus.WithFields(logrus.Fields{
				"block":   block.Index,
				"elapsed": elapsed,
				"period":  e.blockPeriod,
			}).Warn("Frame transform overran the block period, frame dropped")
			continue
		}

		if err := e.history.Append(frame); err != nil {
			logrus.WithFields(logrus.Fields{
				"frame": frame.Index,
				"error": err.Error(),
			}).Warn("Frame rejected by history")
			continue
		}
		e.noise.Accumulate(frame)
		offerLatest(e.watchBox, frame)

		if e.metrics != nil {
			e.metrics.FramesProcessed.Inc()
			e.metrics.HistoryFrames.Set(float64(e.history.Len()))
		}
	}
}

// watchLoop feeds the newest frame to the anomaly watchdog.
func (e *Engine) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-e.watchBox:
			e.evaluateFrame(frame)
		}
	}
}

func (e *Engine) evaluateFrame(frame *spectral.Frame) {
	noiseProfile := e.noise.Current()
	threshold := e.settings.Load().DetectThreshold

	events, err := e.watchdog.Evaluate(frame, noiseProfile, threshold)
	if err != nil {
		logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Watchdog evaluation failed")
		return
	}
	if len(events) == 0 {
		return
	}

	var ch *dsp.Characteristics
	if noiseProfile != nil {
		gated := noiseProfile.Subtract(frame.Magnitude)
		c := dsp.Characterize(gated, noiseProfile.Floor, e.sampleRate, e.cfg.Audio.FFTSize)
		ch = &c
	}

	binHz := e.transformer.BinFrequency(1)
	for _, ev := range events {
		if e.metrics != nil {
			e.metrics.Anomalies.Inc()
		}
		logrus.WithFields(logrus.Fields{
			"id":        ev.ID,
			"freq_from": float64(ev.BinFrom) * binHz,
			"freq_to":   float64(ev.BinTo) * binHz,
			"peak":      ev.PeakValue,
		}).Info("Anomaly detected")
		e.bus.Publish(anomalyEvent(ev, binHz, ch))
	}
}

// matchLoop evaluates the profile library against the history tail on
// the configured cadence. Identification events fire on transitions, not
// every cycle.
func (e *Engine) matchLoop(ctx context.Context) {
	for {
		interval := e.settings.Load().EvalInterval
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		e.evaluateMatch()
	}
}

// evaluateMatch runs one matching cycle. The identification threshold
// comes from the live settings so updates apply on the next cycle.
func (e *Engine) evaluateMatch() {
	profiles := e.library.List()
	if len(profiles) == 0 || e.history.Len() == 0 {
		return
	}

	threshold := e.settings.Load().IdentificationThreshold
	result, ok := e.matcher.Evaluate(e.history, profiles, threshold)
	if result != nil && e.metrics != nil {
		e.metrics.MatchConfidence.Set(result.Confidence)
	}

	e.mu.Lock()
	transition := ok && (!e.lastMatched || e.lastMatch != result.Profile)
	e.lastMatched = ok
	if ok {
		e.lastMatch = result.Profile
	}
	e.mu.Unlock()

	if transition {
		if e.metrics != nil {
			e.metrics.Matches.Inc()
		}
		logrus.WithFields(logrus.Fields{
			"profile":    result.Profile,
			"confidence": result.Confidence,
			"offset":     result.FrameOffset,
		}).Info("Signal identified")
		e.bus.Publish(matchEvent(result))
	}
}

// offerLatest delivers f without blocking, displacing a stale undelivered
// frame if the consumer has fallen behind.
func offerLatest(ch chan *spectral.Frame, f *spectral.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
