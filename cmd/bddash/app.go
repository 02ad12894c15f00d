package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/caevv/bddash/internal/config"
	"github.com/caevv/bddash/internal/livestore"
	"github.com/caevv/bddash/internal/logging"
	"github.com/caevv/bddash/internal/metrics"
	"github.com/caevv/bddash/internal/netwatch"
	"github.com/caevv/bddash/internal/prefs"
	"github.com/caevv/bddash/internal/scheduler"
	"github.com/caevv/bddash/internal/source"
	"github.com/caevv/bddash/internal/trend"
)

const (
	probeTaskName = "connectivity-probe"
	retryTaskName = "auto-retry"
)

// app holds the components every command shares.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	src    source.Source
	prefs  prefs.Store
	store  *livestore.Store

	logCloser io.Closer
}

// openApp loads the configuration and builds the live store. With
// quietTerminal set, logs aimed at stdout or stderr are discarded so they
// do not draw over a full-screen UI.
func openApp(ctx context.Context, configPath string, quietTerminal bool) (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	output := cfg.Logging.Output
	if quietTerminal && (output == "stderr" || output == "stdout") {
		output = "discard"
	}
	level := cfg.Logging.Level
	if debugLogging(logger) {
		level = "debug"
	}
	appLogger, logCloser, err := logging.NewFromConfig(cfg.Logging.Format, level, output)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{cfg: cfg, logger: appLogger, logCloser: logCloser}

	a.src, err = source.New(ctx, source.Options{
		Driver:          cfg.Source.Driver,
		Path:            cfg.Source.Path,
		ProjectID:       cfg.Source.ProjectID,
		CredentialsFile: cfg.Source.CredentialsFile,
		EmulatorHost:    cfg.Source.EmulatorHost,
	}, appLogger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize source: %w", err)
	}

	a.prefs, err = prefs.NewStore(cfg.Prefs.Driver, cfg.Prefs.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize preferences: %w", err)
	}

	agg := trend.New(
		trend.WithWindow(cfg.Trend.Window()),
		trend.WithLocation(cfg.Trend.Location()),
	)
	a.store = livestore.New(a.src, a.prefs, appLogger,
		livestore.WithCollections(cfg.Source.ProjectsCollection, cfg.Source.RunsCollection),
		livestore.WithAggregator(agg),
	)

	appLogger.Info("configuration loaded",
		"config", configPath,
		"source_driver", cfg.Source.Driver,
		"prefs_driver", cfg.Prefs.Driver,
		"trend_window_days", cfg.Trend.WindowDays,
		"timezone", cfg.Trend.Timezone)

	return a, nil
}

func debugLogging(l *slog.Logger) bool {
	return l != nil && l.Enabled(context.Background(), slog.LevelDebug)
}

// Close tears down subscriptions and releases every resource in reverse
// order of creation.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		a.store.Teardown()
	}
	if a.src != nil {
		if err := a.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
	}
	if a.prefs != nil {
		if err := a.prefs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close preferences: %w", err))
		}
	}
	for _, err := range errs {
		a.logger.Error("shutdown error", "error", err)
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// addBackgroundTasks registers the connectivity probe and the optional
// subscription auto-retry. m may be nil.
func (a *app) addBackgroundTasks(sched *scheduler.Scheduler, m *metrics.Metrics) error {
	if !a.cfg.Connectivity.Disabled {
		var opts []netwatch.Option
		if m != nil {
			opts = append(opts, netwatch.WithMetrics(m.ProbeObserver(), m.ProbeFailed))
		}
		timeout := a.cfg.Connectivity.Timeout()
		probe := netwatch.NewProbe(a.cfg.Connectivity.ProbeAddr, timeout, a.store, a.logger, opts...)

		if err := sched.Add(scheduler.Task{
			Name:     probeTaskName,
			Schedule: a.cfg.Connectivity.Schedule,
			Timeout:  timeout + time.Second,
			Run:      probe.Check,
		}); err != nil {
			return err
		}
	}

	if a.cfg.AutoRetry != "" {
		if err := sched.Add(scheduler.Task{
			Name:     retryTaskName,
			Schedule: a.cfg.AutoRetry,
			Run:      retryIfFailed(a.store, m, a.logger),
		}); err != nil {
			return err
		}
	}
	return nil
}

// retryIfFailed re-subscribes when the store shows an error or a lost
// channel, and does nothing otherwise.
func retryIfFailed(st *livestore.Store, m *metrics.Metrics, logger *slog.Logger) func(context.Context) error {
	return func(ctx context.Context) error {
		state := st.State()
		if state.Error == "" && state.Connected {
			return nil
		}

		logger.Info("retrying live subscriptions",
			"error", state.Error,
			"connected", state.Connected)
		st.Retry()
		if m != nil {
			m.Retried()
		}
		return nil
	}
}

// waitLoaded blocks until the first snapshots of both collections arrived,
// a subscription failed, or ctx is done.
func waitLoaded(ctx context.Context, st *livestore.Store) error {
	changes, stop := st.Changes()
	defer stop()

	for {
		state := st.State()
		if state.Error != "" {
			return errors.New(state.Error)
		}
		if !state.Loading {
			return nil
		}

		select {
		case <-changes:
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for test results: %w", ctx.Err())
		}
	}
}
