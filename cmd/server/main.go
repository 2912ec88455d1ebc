// Package main is the entry point for rampwatch, the warehouse portfolio
// risk and stress analytics service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rampwatch",
		Short:         "Warehouse portfolio risk and stress analytics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd(), newEvaluateCmd(), newSeedCmd(), newWatchlistCmd())
	return root
}

// loadConfig loads configuration and the logger every command shares
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		Output: os.Stderr,
	})
	logger.SetGlobalLogger(log)
	return cfg, nil
}
