package main

import (
	"fmt"
	"os"

	"github.com/caevv/bddash/internal/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a bddash configuration file",
	Long: `Validate the syntax and semantics of a bddash configuration file
without connecting to the document store. It checks for:
  - Valid YAML syntax
  - A supported source driver and its required settings
  - A supported preferences driver
  - A valid trend window and time zone
  - Valid probe and auto-retry schedules

Example:
  bddash validate --config ./bddash.yaml`,
	RunE: validateConfig,
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	logger.Info("validating configuration", "path", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Error("configuration file not found", "path", configPath)
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	// LoadConfig validates automatically
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("configuration validation failed", "error", err)
		return fmt.Errorf("validation failed: %w", err)
	}

	logger.Info("configuration is valid",
		"path", configPath,
		"source_driver", cfg.Source.Driver,
		"prefs_driver", cfg.Prefs.Driver,
		"timezone", cfg.Trend.Timezone)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\n✓ Configuration is valid: %s\n", configPath)
	switch cfg.Source.Driver {
	case "firestore":
		fmt.Fprintf(out, "  Source: firestore (project %s)\n", cfg.Source.ProjectID)
		if cfg.Source.EmulatorHost != "" {
			fmt.Fprintf(out, "  Emulator: %s\n", cfg.Source.EmulatorHost)
		}
	default:
		fmt.Fprintf(out, "  Source: %s (%s)\n", cfg.Source.Driver, cfg.Source.Path)
	}
	fmt.Fprintf(out, "  Collections: %s, %s\n", cfg.Source.ProjectsCollection, cfg.Source.RunsCollection)
	fmt.Fprintf(out, "  Preferences: %s (%s)\n", cfg.Prefs.Driver, cfg.Prefs.Path)
	fmt.Fprintf(out, "  Trend: %d days, %s\n", cfg.Trend.WindowDays, cfg.Trend.Timezone)
	if cfg.Connectivity.Disabled {
		fmt.Fprintln(out, "  Connectivity probe: disabled")
	} else {
		fmt.Fprintf(out, "  Connectivity probe: %s %s\n", cfg.Connectivity.ProbeAddr, cfg.Connectivity.Schedule)
	}
	if cfg.AutoRetry != "" {
		fmt.Fprintf(out, "  Auto retry: %s\n", cfg.AutoRetry)
	}

	return nil
}
