package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sigscope/sigscope/configs"
	"github.com/sigscope/sigscope/internal/engine"
	"github.com/sigscope/sigscope/internal/journal"
	"github.com/sigscope/sigscope/internal/report"
	"github.com/sigscope/sigscope/internal/server"
	"github.com/sigscope/sigscope/internal/snapshot"
	"github.com/sigscope/sigscope/internal/source"
	"github.com/sigscope/sigscope/pkg/profile"
)

// Context holds the CLI arguments that shape one invocation.
type Context struct {
	InputFile    string // WAV file path; empty means raw PCM on stdin
	Realtime     bool   // pace file input to wall-clock time
	CalibrateFor time.Duration
	WithServer   bool
	WithJournal  bool
	WithMetrics  bool
}

// App owns the wiring of a listening session: configuration, the signal
// engine, and the optional journal watcher and event server.
type App struct {
	ctx     *Context
	cfg     *configs.Config
	library *profile.Library
	engine  *engine.Engine
	watcher *journal.Watcher
	writer  *snapshot.Writer
	sub     *report.Submitter
}

// New loads and validates configuration and builds the engine. Corrupt
// profile records are logged and skipped, never fatal.
func New(ctx *Context) (*App, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := configs.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogging(cfg)

	store, err := profile.NewStore(resolveDir(cfg.DataDir, cfg.Profiles.Dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open profile store: %w", err)
	}
	library, failures := profile.NewLibrary(store, profile.Limits{
		MaxFrames: cfg.Matching.MaxTemplateFrames,
		MaxBins:   cfg.Matching.MaxTemplateBins,
	})
	for _, ferr := range failures {
		logrus.WithFields(logrus.Fields{"error": ferr.Error()}).Warn("Skipped corrupt profile record")
	}

	var metrics *engine.Metrics
	if ctx.WithMetrics || ctx.WithServer || cfg.Server.Enabled {
		metrics = engine.NewMetrics()
	}

	eng, err := engine.New(cfg, library, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	writer, err := snapshot.NewWriter(resolveDir(cfg.DataDir, cfg.Snapshots.Dir))
	if err != nil {
		return nil, err
	}

	app := &App{
		ctx:     ctx,
		cfg:     cfg,
		library: library,
		engine:  eng,
		writer:  writer,
		sub:     report.NewSubmitter(cfg.Report.Endpoint),
	}
	if ctx.WithJournal || cfg.Journal.Enabled {
		app.watcher = journal.NewWatcher(cfg.Journal.Dir, cfg.Journal.PollInterval)
	}
	return app, nil
}

// Engine returns the wired signal engine.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Library returns the profile library.
func (a *App) Library() *profile.Library {
	return a.library
}

// Config returns the loaded configuration.
func (a *App) Config() *configs.Config {
	return a.cfg
}

// Run opens the input source and drives the engine until the source is
// exhausted or ctx is canceled. The journal watcher and event server run
// alongside when enabled; their failures stop the session.
func (a *App) Run(ctx context.Context) error {
	src, err := a.openSource()
	if err != nil {
		return err
	}
	defer src.Close()

	g, runCtx := errgroup.WithContext(ctx)

	if a.watcher != nil {
		g.Go(func() error {
			if err := a.watcher.Run(runCtx); err != nil && runCtx.Err() == nil {
				return fmt.Errorf("journal watcher failed: %w", err)
			}
			return nil
		})
	}

	if a.ctx.WithServer || a.cfg.Server.Enabled {
		srv := server.New(a.cfg.Server.Addr, a.engine)
		g.Go(func() error {
			if err := srv.Run(runCtx); err != nil && runCtx.Err() == nil {
				return fmt.Errorf("event server failed: %w", err)
			}
			return nil
		})
	}

	if a.ctx.CalibrateFor > 0 {
		d := a.ctx.CalibrateFor
		g.Go(func() error {
			if _, err := a.engine.CalibrateFor(runCtx, d); err != nil && runCtx.Err() == nil {
				logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Startup calibration failed")
			}
			return nil
		})
	}

	g.Go(func() error {
		defer logrus.Info("Engine stopped")
		return a.engine.Run(runCtx, src)
	})

	return g.Wait()
}

// Snapshot writes the current capture buffer as a bundle and, when a
// report endpoint is configured, submits a sighting report referencing
// it.
func (a *App) Snapshot(ctx context.Context, trigger, notes string) (*snapshot.Bundle, error) {
	samples, rate := a.engine.AudioSnapshot()

	var status journal.Status
	if a.watcher != nil {
		status = a.watcher.Status()
	}

	bundle, err := a.writer.Write(samples, rate, a.cfg, a.engine.Settings(), status, trigger, notes)
	if err != nil {
		return nil, err
	}

	if a.sub.Enabled() {
		r := report.New(bundle.Metadata.CreatedAt, a.cfg.Report.Commander, status)
		r.SnapshotID = bundle.ID
		r.Notes = notes
		if err := a.sub.Submit(ctx, r); err != nil {
			logrus.WithFields(logrus.Fields{"error": err.Error()}).Warn("Sighting report submission failed")
		}
	}
	return bundle, nil
}

// openSource builds the audio source selected by the CLI arguments.
func (a *App) openSource() (source.Source, error) {
	mode, err := source.ParseChannelMode(a.cfg.Audio.ChannelMode)
	if err != nil {
		return nil, err
	}

	if a.ctx.InputFile != "" {
		return source.NewWAVSource(a.ctx.InputFile, a.cfg.Audio.BlockSize, mode, a.ctx.Realtime)
	}
	return source.NewRawSource(os.Stdin,
		a.cfg.Audio.SampleRate, a.cfg.Audio.Channels, a.cfg.Audio.BlockSize, mode, a.ctx.Realtime)
}

// setupLogging configures logrus from the loaded configuration.
func setupLogging(cfg *configs.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.Verbose && level < logrus.DebugLevel {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
}

// resolveDir joins dir onto base unless dir is already absolute, and
// creates the result.
func resolveDir(base, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(base, dir)
}
