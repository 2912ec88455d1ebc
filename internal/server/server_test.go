package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/modules/analytics"
	analyticshandlers "github.com/aristath/rampwatch/internal/modules/analytics/handlers"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	wh "github.com/aristath/rampwatch/internal/modules/warehouse"
	rwtesting "github.com/aristath/rampwatch/internal/testing"
)

func newTestServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	logger := zerolog.Nop()

	db, cleanup := rwtesting.NewTestDB(t, "rampwatch")
	t.Cleanup(cleanup)

	bus := events.NewBus(logger)
	service := analytics.NewService(
		tapes.NewRepository(db.Conn(), logger),
		wh.NewRepository(db.Conn(), logger),
		nil,
		bus,
		time.Minute,
		logger,
	)

	s := New(Config{
		Log: logger,
		DB:  db,
		Config: &config.Config{
			DataDir:     t.TempDir(),
			Port:        0,
			DevMode:     true,
			CORSOrigins: []string{"*"},
		},
		Bus:       bus,
		Analytics: analyticshandlers.NewHandler(service, logger),
	})
	return s, bus
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "rampwatch", body["service"])
}

func TestHandleHealthDatabaseDown(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.db.Close())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutesMounted(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/api/warehouses/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/metrics", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	req = httptest.NewRequest("OPTIONS", "/api/alerts", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestAlertStream(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/alerts/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() map[string]interface{} {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	}

	assert.Equal(t, "connected", read()["type"])

	// Not subscribed by default.
	bus.Publish("test", &events.TapeStoredData{Warehouse: "WH-1"})
	bus.Publish("test", &events.AlertsEvaluatedData{
		Warehouses: 1,
		Counts:     map[domain.Severity]int{domain.SeverityCritical: 1},
	})

	msg := read()
	assert.Equal(t, string(events.AlertsEvaluated), msg["type"])
	assert.Equal(t, "test", msg["module"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["warehouses"])
}

func TestAlertStreamTypesFilter(t *testing.T) {
	s, bus := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/alerts/stream?types=TAPE_STORED"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, _, err = conn.Read(ctx)
	require.NoError(t, err)

	bus.Publish("test", &events.TapeStoredData{Warehouse: "WH-9", Assets: 3})

	_, raw, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg struct {
		Type string                `json:"type"`
		Data events.TapeStoredData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, string(events.TapeStored), msg.Type)
	assert.Equal(t, "WH-9", msg.Data.Warehouse)
}

func TestStreamOrigins(t *testing.T) {
	assert.Equal(t, []string{"*", "localhost:3000"}, streamOrigins([]string{"*", "http://localhost:3000", "::bad"}))
}
