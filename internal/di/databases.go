package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/internal/database"
)

// InitializeDatabase opens rampwatch.db and applies its schema
func InitializeDatabase(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileDurable,
		Name:    "rampwatch",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rampwatch database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema to %s: %w", db.Name(), err)
	}

	log.Info().Str("path", db.Path()).Msg("Database initialized and schema applied")

	return &Container{DB: db}, nil
}
