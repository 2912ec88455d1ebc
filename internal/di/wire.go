package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/config"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations:
// 1. Initialize the database
// 2. Initialize repositories
// 3. Initialize services
// 4. Seed warehouse settings when a seed file is configured
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	InitializeRepositories(container, log)

	if err := InitializeServices(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if cfg.SeedFile != "" {
		if _, err := SeedWarehouses(container, cfg.SeedFile, log); err != nil {
			container.Close()
			return nil, err
		}
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
