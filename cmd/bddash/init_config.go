package main

import (
	"fmt"
	"os"

	"github.com/caevv/bddash/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long: `Write a configuration file that reads test results from a local
JSON fixture and keeps preferences in a JSON file.

Use --firestore to start from a Firestore source instead.

Examples:
  bddash init --config ./bddash.yaml
  bddash init --firestore my-gcp-project`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration file")
	initCmd.Flags().String("firestore", "", "Use the Firestore source with this project ID")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	force, _ := cmd.Flags().GetBool("force")
	projectID, _ := cmd.Flags().GetString("firestore")

	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	cfg := config.NewDefaultConfig()
	if projectID != "" {
		cfg.Source.Driver = "firestore"
		cfg.Source.Path = ""
		cfg.Source.ProjectID = projectID
	}

	if err := config.SaveConfig(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger.Info("configuration written", "path", configPath, "source_driver", cfg.Source.Driver)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s\n", configPath)
	return nil
}
