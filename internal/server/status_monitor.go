package server

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/events"
)

// StatusChangeThreshold is how many percentage points a host metric must move
// before a new status event is published.
const StatusChangeThreshold = 5.0

// StatusMonitor periodically samples host status and publishes changes
type StatusMonitor struct {
	bus            *events.Bus
	systemHandlers *SystemHandlers
	log            zerolog.Logger

	// Track previous state
	last *events.SystemStatusData

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(bus *events.Bus, systemHandlers *SystemHandlers, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		bus:            bus,
		systemHandlers: systemHandlers,
		log:            log.With().Str("component", "status_monitor").Logger(),
	}
}

// Start begins periodic status monitoring. Calling Start twice is a no-op.
func (m *StatusMonitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.monitor(ctx, interval)
}

// Stop ends monitoring and waits for the loop to exit
func (m *StatusMonitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
	}
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Do initial check
	m.checkStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkStatus(ctx)
		}
	}
}

// checkStatus samples the host and publishes when it moved enough
func (m *StatusMonitor) checkStatus(ctx context.Context) {
	snap := m.systemHandlers.GetSystemStatusSnapshot(ctx)
	current := &events.SystemStatusData{
		CPUPercent:    snap.CPUPercent,
		MemoryPercent: snap.MemoryPercent,
		DiskPercent:   snap.DiskPercent,
	}

	if !changed(m.last, current) {
		return
	}
	m.last = current
	if m.bus != nil {
		m.bus.Publish("status_monitor", current)
	}
}

func changed(prev, cur *events.SystemStatusData) bool {
	if prev == nil {
		return true
	}
	return math.Abs(prev.CPUPercent-cur.CPUPercent) >= StatusChangeThreshold ||
		math.Abs(prev.MemoryPercent-cur.MemoryPercent) >= StatusChangeThreshold ||
		math.Abs(prev.DiskPercent-cur.DiskPercent) >= StatusChangeThreshold
}
