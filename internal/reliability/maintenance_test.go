package reliability

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

func TestMaintenanceJob(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	job := NewMaintenanceJob(db, t.TempDir(), zerolog.Nop())
	job.freeBytes = func(string) (uint64, error) { return 50 << 30, nil }

	assert.Equal(t, "database_maintenance", job.Name())
	require.NoError(t, job.Run())
}

func TestMaintenanceJobDiskSpace(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	tests := []struct {
		name    string
		free    uint64
		statErr error
		wantErr bool
	}{
		{name: "plenty", free: 20 << 30},
		{name: "low but usable", free: 1 << 30},
		{name: "critical", free: 100 << 20, wantErr: true},
		{name: "stat fails", statErr: errors.New("no such volume"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewMaintenanceJob(db, "/data", zerolog.Nop())
			job.freeBytes = func(string) (uint64, error) { return tt.free, tt.statErr }

			err := job.Run()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaintenanceJobClosedDatabase(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	cleanup()

	job := NewMaintenanceJob(db, t.TempDir(), zerolog.Nop())
	assert.Error(t, job.Run())
}
