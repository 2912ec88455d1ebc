package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/internal/reliability"
	"github.com/aristath/rampwatch/internal/scheduler"
)

// alertSweepTimeout bounds one scheduled sweep across all warehouses
const alertSweepTimeout = 2 * time.Minute

// JobInstances holds references to all registered jobs
type JobInstances struct {
	AlertSweep      *scheduler.AlertSweepJob
	WALCheckpoints  *scheduler.CheckWALCheckpointsJob
	Maintenance     *reliability.MaintenanceJob
	ArchiveRotation *scheduler.ArchiveRotationJob // nil when archiving is disabled
	Backup          *reliability.BackupJob        // nil when archiving is disabled
}

// RegisterJobs creates the background jobs and adds them to sched
func RegisterJobs(sched *scheduler.Scheduler, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{
		AlertSweep:     scheduler.NewAlertSweepJob(container.Analytics, container.Bus, alertSweepTimeout, log),
		WALCheckpoints: scheduler.NewCheckWALCheckpointsJob(container.DB, log),
		Maintenance:    reliability.NewMaintenanceJob(container.DB, cfg.DataDir, log),
	}

	if err := sched.AddJob(cfg.AlertSweepSchedule, jobs.AlertSweep); err != nil {
		return nil, fmt.Errorf("failed to register alert sweep job: %w", err)
	}
	if err := sched.AddJob(cfg.WALCheckSchedule, jobs.WALCheckpoints); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}
	if err := sched.AddJob(cfg.MaintenanceSchedule, jobs.Maintenance); err != nil {
		return nil, fmt.Errorf("failed to register maintenance job: %w", err)
	}

	if container.Archiver != nil {
		jobs.ArchiveRotation = scheduler.NewArchiveRotationJob(container.Archiver, container.Tapes, cfg.Archive.RetentionDays, log)
		if err := sched.AddJob(cfg.RotationSchedule, jobs.ArchiveRotation); err != nil {
			return nil, fmt.Errorf("failed to register archive rotation job: %w", err)
		}
	}
	if container.Backups != nil {
		jobs.Backup = reliability.NewBackupJob(container.Backups, cfg.Archive.BackupRetentionDays, log)
		if err := sched.AddJob(cfg.BackupSchedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register backup job: %w", err)
		}
	}

	log.Info().Int("jobs", sched.Entries()).Msg("Background jobs registered")
	return jobs, nil
}
