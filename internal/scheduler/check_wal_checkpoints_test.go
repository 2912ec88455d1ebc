package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

func TestCheckWALCheckpointsJob_Name(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, zerolog.Nop())
	assert.Equal(t, "check_wal_checkpoints", job.Name())
}

func TestCheckWALCheckpointsJob_Run_NoDatabase(t *testing.T) {
	job := NewCheckWALCheckpointsJob(nil, zerolog.Nop())
	assert.NoError(t, job.Run())
}

func TestCheckWALCheckpointsJob_Run(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	job := NewCheckWALCheckpointsJob(db, zerolog.New(nil).Level(zerolog.Disabled))
	assert.NoError(t, job.Run())
}
