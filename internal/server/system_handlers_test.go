package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/aristath/rampwatch/internal/events"
	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

func TestSystemHandlers_HandleSystemStatus(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	defer cleanup()

	handlers := NewSystemHandlers(db, t.TempDir(), zerolog.Nop())
	handlers.cpuSample = 10 * time.Millisecond

	req := httptest.NewRequest("GET", "/api/system/status", nil)
	w := httptest.NewRecorder()
	handlers.HandleSystemStatus(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
	assert.GreaterOrEqual(t, response.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, response.MemoryPercent, 0.0)
	assert.GreaterOrEqual(t, response.DiskPercent, 0.0)
	require.NotNil(t, response.Database)
	assert.Positive(t, response.Database.PageSize)
	assert.NotEmpty(t, response.CheckedAt)
}

func TestSystemHandlers_UnhealthyDatabase(t *testing.T) {
	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	cleanup()

	handlers := NewSystemHandlers(db, "", zerolog.Nop())
	handlers.cpuSample = 10 * time.Millisecond

	snap := handlers.GetSystemStatusSnapshot(context.Background())
	assert.Equal(t, "unhealthy", snap.Status)
	assert.Zero(t, snap.DiskPercent)
}

func TestStatusMonitor_PublishesAndStops(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := events.NewBus(zerolog.Nop())
	received := make(chan *events.SystemStatusData, 4)
	bus.Subscribe(events.SystemStatusChanged, func(e *events.Event) {
		received <- e.Data.(*events.SystemStatusData)
	})

	handlers := NewSystemHandlers(nil, t.TempDir(), zerolog.Nop())
	handlers.cpuSample = 10 * time.Millisecond
	monitor := NewStatusMonitor(bus, handlers, zerolog.Nop())

	monitor.Start(time.Hour)
	monitor.Start(time.Hour)

	select {
	case data := <-received:
		assert.GreaterOrEqual(t, data.MemoryPercent, 0.0)
	case <-time.After(5 * time.Second):
		t.Fatal("no status event published")
	}

	monitor.Stop()
	monitor.Stop()
}

func TestStatusChanged(t *testing.T) {
	base := &events.SystemStatusData{CPUPercent: 10, MemoryPercent: 40, DiskPercent: 60}

	assert.True(t, changed(nil, base))
	assert.False(t, changed(base, &events.SystemStatusData{CPUPercent: 14, MemoryPercent: 41, DiskPercent: 60}))
	assert.True(t, changed(base, &events.SystemStatusData{CPUPercent: 10, MemoryPercent: 40, DiskPercent: 65}))
	assert.True(t, changed(base, &events.SystemStatusData{CPUPercent: 2, MemoryPercent: 40, DiskPercent: 60}))
}
