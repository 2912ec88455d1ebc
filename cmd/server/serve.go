package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aristath/rampwatch/internal/di"
	analyticshandlers "github.com/aristath/rampwatch/internal/modules/analytics/handlers"
	"github.com/aristath/rampwatch/internal/scheduler"
	"github.com/aristath/rampwatch/internal/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

// runServe wires dependencies, starts the server and the scheduler, then
// waits for SIGINT or SIGTERM and shuts down gracefully.
func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	log.Info().Msg("Starting rampwatch")

	container, err := di.Wire(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	defer container.Close()

	sched := scheduler.New(log.Logger)
	if _, err := di.RegisterJobs(sched, container, cfg, log.Logger); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Log:       log.Logger,
		DB:        container.DB,
		Config:    cfg,
		Bus:       container.Bus,
		Analytics: analyticshandlers.NewHandler(container.Analytics, log.Logger),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	sched.Start()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			sched.Stop()
			return err
		}
	}

	log.Info().Msg("Shutting down...")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
	return nil
}
