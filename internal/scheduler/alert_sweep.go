package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/analytics"
)

// AlertEvaluator evaluates alerts across every warehouse.
type AlertEvaluator interface {
	GlobalAlerts(ctx context.Context) (analytics.AlertsReport, error)
}

// AlertSweepJob re-evaluates every warehouse's alerts and publishes the feed.
type AlertSweepJob struct {
	evaluator AlertEvaluator
	bus       *events.Bus
	timeout   time.Duration
	log       zerolog.Logger
}

// NewAlertSweepJob creates the alert sweep. timeout bounds one run; 0 means one minute.
func NewAlertSweepJob(evaluator AlertEvaluator, bus *events.Bus, timeout time.Duration, log zerolog.Logger) *AlertSweepJob {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &AlertSweepJob{
		evaluator: evaluator,
		bus:       bus,
		timeout:   timeout,
		log:       log.With().Str("job", "alert_sweep").Logger(),
	}
}

// Name returns the job name
func (j *AlertSweepJob) Name() string {
	return "alert_sweep"
}

// Run executes the alert sweep
func (j *AlertSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.evaluator.GlobalAlerts(ctx)
	if err != nil {
		return err
	}

	j.bus.Publish("scheduler", &events.AlertsEvaluatedData{
		Warehouses: report.Warehouses,
		Counts:     report.Counts,
		Alerts:     report.Alerts,
	})

	j.log.Info().
		Int("warehouses", report.Warehouses).
		Int("critical", report.Counts[domain.SeverityCritical]).
		Int("warning", report.Counts[domain.SeverityWarning]).
		Int("info", report.Counts[domain.SeverityInfo]).
		Msg("Alert sweep completed")
	return nil
}
