package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/archive"
	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/analytics"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	"github.com/aristath/rampwatch/internal/modules/warehouse"
	"github.com/aristath/rampwatch/internal/reliability"
)

// InitializeRepositories creates the data access layer
func InitializeRepositories(container *Container, log zerolog.Logger) {
	container.Tapes = tapes.NewRepository(container.DB.Conn(), log)
	container.Warehouses = warehouse.NewRepository(container.DB.Conn(), log)
}

// InitializeServices creates the event bus, the optional archiver and backup
// service, and the analytics service
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Bus = events.NewBus(log)

	if cfg.Archive.Enabled() {
		client, err := archive.NewS3Client(ctx, cfg.Archive.ClientConfig(), log)
		if err != nil {
			return fmt.Errorf("failed to create archive client: %w", err)
		}
		container.Archiver = archive.NewArchiver(client, log)
		container.Backups = reliability.NewBackupService(container.DB, client, log)
		log.Info().Str("bucket", cfg.Archive.Bucket).Msg("Tape archiving enabled")
	} else {
		log.Info().Msg("Tape archiving disabled, no bucket configured")
	}

	// A nil *archive.Archiver must not become a non-nil interface.
	var archiver analytics.Archiver
	if container.Archiver != nil {
		archiver = container.Archiver
	}

	container.Analytics = analytics.NewService(
		container.Tapes,
		container.Warehouses,
		archiver,
		container.Bus,
		cfg.CacheTTL,
		log,
	)
	return nil
}

// SeedWarehouses loads warehouse settings from a YAML file
func SeedWarehouses(container *Container, path string, log zerolog.Logger) (int, error) {
	settings, err := container.Warehouses.SeedFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to seed warehouses: %w", err)
	}
	if container.Bus != nil {
		for _, s := range settings {
			container.Bus.Publish("seed", &events.ConfigChangedData{Warehouse: s.Warehouse, Source: "seed"})
		}
	}
	return len(settings), nil
}
