package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/caevv/bddash/internal/scheduler"
	"github.com/caevv/bddash/internal/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Show live test results in a terminal UI",
	Long: `Subscribe to the configured document store and show projects, runs
and pass-rate trends in an interactive terminal dashboard.

Navigation:
  ↑/↓ or k/j  - Navigate projects, scroll run history
  enter       - View project details
  esc         - Go back to the project list
  g/G         - Jump to top/bottom
  r           - Retry subscriptions
  t           - Toggle light/dark theme
  q           - Quit

Example:
  bddash tui --config ./bddash.yaml`,
	RunE: runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	ctx := setupSignalHandler()

	// Logs to the terminal would draw over the UI.
	a, err := openApp(ctx, configPath, true)
	if err != nil {
		return err
	}
	defer a.Close()

	logger = a.logger
	slog.SetDefault(a.logger)

	sched := scheduler.New(ctx, logger)
	if err := a.addBackgroundTasks(sched, nil); err != nil {
		return fmt.Errorf("failed to schedule background tasks: %w", err)
	}

	a.store.Init()
	sched.Start()
	defer sched.Stop()

	model := tui.New(a.store, logger)
	defer model.Close()

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	finalModel, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		logger.Info("terminal UI stopped by signal")
		return nil
	}
	if err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	if m, ok := finalModel.(tui.Model); ok && m.Quitting() {
		logger.Info("shutting down gracefully...")
	}
	return nil
}
