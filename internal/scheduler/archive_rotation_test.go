package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rampwatch/internal/modules/tapes"
)

type fakeRotator struct {
	calls map[string]int
	fail  string
	now   time.Time
}

func (f *fakeRotator) Rotate(_ context.Context, warehouse string, retentionDays int, now time.Time) (int, error) {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[warehouse] = retentionDays
	f.now = now
	if warehouse == f.fail {
		return 0, errors.New("access denied")
	}
	return 2, nil
}

type fakeLister []tapes.Summary

func (f fakeLister) Warehouses() ([]tapes.Summary, error) { return f, nil }

func TestArchiveRotationJob_Run(t *testing.T) {
	rotator := &fakeRotator{fail: "WH-B"}
	lister := fakeLister{{Warehouse: "WH-A"}, {Warehouse: "WH-B"}, {Warehouse: "WH-C"}}

	job := NewArchiveRotationJob(rotator, lister, 90, zerolog.Nop())
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	job.now = func() time.Time { return fixed }

	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	assert.Equal(t, map[string]int{"WH-A": 90, "WH-B": 90, "WH-C": 90}, rotator.calls)
	assert.Equal(t, time.UTC, rotator.now.Location())
}

func TestArchiveRotationJob_DisabledRetention(t *testing.T) {
	rotator := &fakeRotator{}
	job := NewArchiveRotationJob(rotator, fakeLister{{Warehouse: "WH-A"}}, 0, zerolog.Nop())

	assert.Equal(t, "archive_rotation", job.Name())
	assert.NoError(t, job.Run())
	assert.Empty(t, rotator.calls)
}
