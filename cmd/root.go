// Package cmd defines and implements the CLI commands for the linkharvest
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"linkharvest/internal/config"
	"linkharvest/internal/logging"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linkharvest",
		Short: "Discovers and captures profile pages through a shared browser session.",
		Long: `linkharvest expands seed profile references into a deduplicated frontier,
fetches each target's structured profile through one authenticated browser
session with retry and rate pacing, and checkpoints results incrementally.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (settings also load from LINKHARVEST_* env vars)")

	cmd.AddCommand(newHarvestCmd(), newExportCmd(), newStatsCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadApp builds the shared config and logger for one command invocation.
func loadApp() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}
