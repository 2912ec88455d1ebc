package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aristath/rampwatch/internal/di"
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/alerts"
)

func newWatchlistCmd() *cobra.Command {
	var warehouse string

	cmd := &cobra.Command{
		Use:   "watchlist",
		Short: "Print the flagged assets of a warehouse's latest tape",
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

			entries, err := container.Analytics.Watchlist(warehouse)
			if err != nil {
				return fmt.Errorf("failed to build watchlist: %w", err)
			}
			return writeWatchlist(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().StringVarP(&warehouse, "warehouse", "w", "", "warehouse name")
	_ = cmd.MarkFlagRequired("warehouse")
	return cmd
}

func writeWatchlist(w io.Writer, entries []domain.WatchlistEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tASSET\tISSUER\tPAR\tRATING\tREASONS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%s\t%s\n",
			e.Severity, e.AssetID, e.Issuer, e.ParAmount, e.Rating, alerts.JoinReasons(e))
	}
	return tw.Flush()
}
