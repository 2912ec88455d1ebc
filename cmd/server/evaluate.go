package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aristath/rampwatch/internal/di"
)

func newEvaluateCmd() *cobra.Command {
	var warehouse string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate alerts once and print them as JSON",
		Long: "Evaluate alerts for one warehouse, or for every warehouse with a " +
			"stored tape when --warehouse is omitted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			container, err := di.Wire(cmd.Context(), cfg, log.Logger)
			if err != nil {
				return err
			}
			defer container.Close()

			var report interface{}
			if warehouse != "" {
				report, err = container.Analytics.Alerts(warehouse)
			} else {
				report, err = container.Analytics.GlobalAlerts(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("failed to evaluate alerts: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&warehouse, "warehouse", "w", "", "warehouse name (default: all warehouses)")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load warehouse settings from a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// The file is applied below; don't also apply the configured one.
			cfg.SeedFile = ""

			container, err := di.Wire(cmd.Context(), cfg, log.Logger)
			if err != nil {
				return err
			}
			defer container.Close()

			n, err := di.SeedWarehouses(container, file, log.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d warehouses\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

