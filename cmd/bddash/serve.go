package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/caevv/bddash/internal/metrics"
	"github.com/caevv/bddash/internal/scheduler"
	"github.com/caevv/bddash/internal/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web dashboard",
	Long: `Subscribe to the configured document store and serve the web
dashboard and its JSON API.

Background tasks keep the connectivity banner current and, when
auto_retry is configured, re-establish failed subscriptions.

Example:
  bddash serve --config ./bddash.yaml --addr :8080`,
	RunE: runServer,
}

func init() {
	serveCmd.Flags().StringP("addr", "a", "", "HTTP server address (host:port), overrides server.addr")
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	addr, _ := cmd.Flags().GetString("addr")

	// Setup signal handling for graceful shutdown
	ctx := setupSignalHandler()

	a, err := openApp(ctx, configPath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	logger = a.logger
	slog.SetDefault(a.logger)

	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	m := metrics.New(server.SnapshotFunc(a.store))

	sched := scheduler.New(ctx, logger)
	if err := a.addBackgroundTasks(sched, m); err != nil {
		return fmt.Errorf("failed to schedule background tasks: %w", err)
	}

	srv := server.New(addr, a.store, logger,
		server.WithMetrics(m),
		server.WithTasks(server.NewSchedulerAdapter(sched)),
	)

	a.store.Init()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sched.Start()
		if !a.cfg.Connectivity.Disabled {
			// Check right away instead of waiting for the first tick.
			_ = sched.RunNow(probeTaskName)
		}
		<-gCtx.Done()
		sched.Stop()
		return nil
	})

	g.Go(func() error {
		if err := srv.Start(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	logger.Info("bddash serve mode started",
		"source", a.cfg.Source.Driver,
		"dashboard_url", fmt.Sprintf("http://localhost%s", addr))

	if err := g.Wait(); err != nil {
		logger.Error("error during execution", "error", err)
		return err
	}

	logger.Info("bddash stopped")
	return nil
}
