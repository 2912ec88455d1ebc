// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/rampwatch/internal/archive"
	"github.com/aristath/rampwatch/internal/database"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/analytics"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	"github.com/aristath/rampwatch/internal/modules/warehouse"
	"github.com/aristath/rampwatch/internal/reliability"
)

// Container holds all dependencies for the application.
//
// It is created by Wire() and passed to the server and CLI commands.
type Container struct {
	// DB holds tapes and warehouse settings
	DB *database.DB

	// Repositories
	Tapes      *tapes.Repository
	Warehouses *warehouse.Repository

	// Archiver and Backups are nil when object storage is not configured
	Archiver *archive.Archiver
	Backups  *reliability.BackupService

	Bus       *events.Bus
	Analytics *analytics.Service
}

// Close releases the database connection
func (c *Container) Close() error {
	if c.DB == nil {
		return nil
	}
	return c.DB.Close()
}
