package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/aristath/rampwatch/internal/modules/tapes"
)

// TapeRotator deletes archived tapes older than the retention window.
type TapeRotator interface {
	Rotate(ctx context.Context, warehouse string, retentionDays int, now time.Time) (int, error)
}

// WarehouseLister lists the warehouses that have stored tapes.
type WarehouseLister interface {
	Warehouses() ([]tapes.Summary, error)
}

// ArchiveRotationJob prunes old archived tapes for every warehouse
type ArchiveRotationJob struct {
	rotator       TapeRotator
	warehouses    WarehouseLister
	retentionDays int
	log           zerolog.Logger
	now           func() time.Time
}

// NewArchiveRotationJob creates the archive rotation job.
func NewArchiveRotationJob(rotator TapeRotator, warehouses WarehouseLister, retentionDays int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		rotator:       rotator,
		warehouses:    warehouses,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "archive_rotation").Logger(),
		now:           time.Now,
	}
}

// Name returns the job name
func (j *ArchiveRotationJob) Name() string {
	return "archive_rotation"
}

// Run rotates every warehouse and reports every failure together.
func (j *ArchiveRotationJob) Run() error {
	if j.retentionDays <= 0 {
		return nil
	}

	summaries, err := j.warehouses.Warehouses()
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := j.now().UTC()
	deleted := 0
	var errs error
	for _, s := range summaries {
		n, err := j.rotator.Rotate(ctx, s.Warehouse, j.retentionDays, now)
		deleted += n
		errs = multierr.Append(errs, err)
	}

	j.log.Info().
		Int("warehouses", len(summaries)).
		Int("deleted", deleted).
		Msg("Archive rotation completed")
	return errs
}
