package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// SlowThreshold is the duration above which a timed operation is logged at warn level.
const SlowThreshold = 2 * time.Second

// Timer measures one operation and logs its duration when stopped.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
	now   func() time.Time
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
		log:   log,
		now:   time.Now,
	}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	duration := t.now().Sub(t.start)

	t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", duration).
		Msg("Performance measurement")

	if duration > SlowThreshold {
		t.log.Warn().
			Str("operation", t.name).
			Dur("duration", duration).
			Msg("Slow operation detected")
	}

	return duration
}
