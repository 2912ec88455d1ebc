package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/analytics"
)

type fakeEvaluator struct {
	report   analytics.AlertsReport
	err      error
	deadline bool
}

func (f *fakeEvaluator) GlobalAlerts(ctx context.Context) (analytics.AlertsReport, error) {
	_, f.deadline = ctx.Deadline()
	return f.report, f.err
}

func TestAlertSweepJob_Name(t *testing.T) {
	job := NewAlertSweepJob(&fakeEvaluator{}, events.NewBus(zerolog.Nop()), 0, zerolog.Nop())
	assert.Equal(t, "alert_sweep", job.Name())
	assert.Equal(t, time.Minute, job.timeout)
}

func TestAlertSweepJob_PublishesFeed(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	evaluator := &fakeEvaluator{report: analytics.AlertsReport{
		Warehouses: 2,
		Alerts:     []domain.Alert{{AlertID: "a1", Warehouse: "WH-1", Severity: domain.SeverityCritical}},
		Counts:     map[domain.Severity]int{domain.SeverityCritical: 1},
	}}

	var got *events.AlertsEvaluatedData
	bus.Subscribe(events.AlertsEvaluated, func(e *events.Event) {
		got = e.Data.(*events.AlertsEvaluatedData)
	})

	job := NewAlertSweepJob(evaluator, bus, 5*time.Second, zerolog.Nop())
	require.NoError(t, job.Run())

	assert.True(t, evaluator.deadline)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Warehouses)
	assert.Equal(t, 1, got.Counts[domain.SeverityCritical])
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, "a1", got.Alerts[0].AlertID)
}

func TestAlertSweepJob_ErrorPublishesNothing(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	published := false
	bus.Subscribe(events.AlertsEvaluated, func(*events.Event) { published = true })

	job := NewAlertSweepJob(&fakeEvaluator{err: errors.New("db locked")}, bus, 0, zerolog.Nop())
	assert.EqualError(t, job.Run(), "db locked")
	assert.False(t, published)
}
