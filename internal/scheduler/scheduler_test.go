package scheduler

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run() error {
	j.runs.Add(1)
	if j.block != nil {
		<-j.block
	}
	return j.err
}

func TestSchedulerStartStopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := New(zerolog.Nop())
	require.NoError(t, s.AddJob("@hourly", &countingJob{name: "hourly"}))
	s.Start()
	s.Stop()
}

func TestAddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("every tuesday", &countingJob{name: "bad"}))
	assert.Zero(t, s.Entries())

	require.NoError(t, s.AddJob("0 */5 * * * *", &countingJob{name: "good"}))
	assert.Equal(t, 1, s.Entries())
}

func TestRunNowReturnsJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "failing", err: errors.New("boom")}

	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestClaimPreventsOverlap(t *testing.T) {
	s := New(zerolog.Nop())

	require.True(t, s.claim("alert_sweep"))
	assert.False(t, s.claim("alert_sweep"))
	assert.True(t, s.claim("archive_rotation"))

	s.release("alert_sweep")
	assert.True(t, s.claim("alert_sweep"))
}

func TestExecuteSwallowsJobError(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{name: "failing", err: errors.New("boom")}

	assert.NotPanics(t, func() { s.execute(job) })
	assert.Equal(t, int32(1), job.runs.Load())
}
