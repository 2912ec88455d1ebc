package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/rampwatch/internal/database"
)

// Free space thresholds for the data directory volume.
const (
	DiskCriticalBytes = 500 << 20
	DiskWarningBytes  = 5 << 30
)

// MaintenanceJob checks integrity, truncates the WAL, checks free disk space
// and vacuums the database
type MaintenanceJob struct {
	db      *database.DB
	dataDir string
	log     zerolog.Logger

	freeBytes func(path string) (uint64, error)
}

// NewMaintenanceJob creates the database maintenance job
func NewMaintenanceJob(db *database.DB, dataDir string, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("job", "database_maintenance").Logger(),
		freeBytes: func(path string) (uint64, error) {
			usage, err := disk.Usage(path)
			if err != nil {
				return 0, err
			}
			return usage.Free, nil
		},
	}
}

// Name returns the job name for scheduler
func (j *MaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance job. A corrupt database or a nearly full disk
// fails the job; WAL and VACUUM problems are only logged.
func (j *MaintenanceJob) Run() error {
	j.log.Info().Msg("Starting database maintenance")
	startTime := time.Now()

	// Step 1: Integrity check
	if err := j.checkIntegrity(); err != nil {
		j.log.Error().Err(err).Msg("CRITICAL: Database integrity check failed")
		return err
	}

	// Step 2: WAL checkpoint (prevent bloat)
	if _, err := j.db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	// Step 3: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: VACUUM
	if err := j.vacuum(); err != nil {
		j.log.Error().Err(err).Msg("VACUUM failed")
	}

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Msg("Database maintenance completed successfully")
	return nil
}

func (j *MaintenanceJob) checkIntegrity() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var result string
	if err := j.db.Conn().QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *MaintenanceJob) checkDiskSpace() error {
	free, err := j.freeBytes(j.dataDir)
	if err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(free) / 1e9
	switch {
	case free < DiskCriticalBytes:
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("only %.2f GB free in %s", availableGB, j.dataDir)
	case free < DiskWarningBytes:
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	default:
		j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")
	}
	return nil
}

// vacuum performs VACUUM and logs the space reclaimed
func (j *MaintenanceJob) vacuum() error {
	before, err := j.db.GetStats()
	if err != nil {
		return err
	}
	if _, err := j.db.Conn().Exec("VACUUM"); err != nil {
		return fmt.Errorf("VACUUM failed: %w", err)
	}
	after, err := j.db.GetStats()
	if err != nil {
		return err
	}

	j.log.Info().
		Int64("size_before_bytes", before.SizeBytes).
		Int64("size_after_bytes", after.SizeBytes).
		Msg("VACUUM completed")
	return nil
}
