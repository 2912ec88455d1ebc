package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/rampwatch/internal/events"
	"github.com/aristath/rampwatch/internal/utils"
)

// HeartbeatInterval is how often an idle stream sends a heartbeat message.
const HeartbeatInterval = 30 * time.Second

// streamBuffer is how many events a slow client may fall behind before
// events are dropped for it.
const streamBuffer = 100

// EventsStreamHandler pushes bus events to websocket clients.
type EventsStreamHandler struct {
	bus       *events.Bus
	origins   []string
	heartbeat time.Duration
	log       zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler
func NewEventsStreamHandler(bus *events.Bus, origins []string, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus:       bus,
		origins:   origins,
		heartbeat: HeartbeatInterval,
		log:       log.With().Str("component", "events_stream").Logger(),
	}
}

// streamTypes parses ?types=ALERTS_EVALUATED,TAPE_STORED. Without the
// parameter only alert sweeps are streamed.
func streamTypes(r *http.Request) []events.EventType {
	names := utils.ParseCSV(r.URL.Query().Get("types"))
	if len(names) == 0 {
		return []events.EventType{events.AlertsEvaluated}
	}
	types := make([]events.EventType, 0, len(names))
	for _, n := range names {
		types = append(types, events.EventType(n))
	}
	return types
}

// ServeHTTP handles GET /api/alerts/stream
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's read and write timeouts would otherwise cut the stream.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	// Clients never send; CloseRead handles control frames and cancels
	// ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	types := streamTypes(r)
	eventChan := make(chan *events.Event, streamBuffer)
	for _, t := range types {
		unsubscribe := h.bus.Subscribe(t, func(e *events.Event) {
			select {
			case eventChan <- e:
			default:
				h.log.Warn().Str("event_type", string(e.Type)).Msg("Stream buffer full, dropping event")
			}
		})
		defer unsubscribe()
	}

	h.log.Debug().Interface("types", types).Msg("Stream client connected")

	if err := h.send(ctx, conn, map[string]interface{}{
		"type":      "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"types":     types,
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Stream client disconnected")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-eventChan:
			if err := h.send(ctx, conn, map[string]interface{}{
				"type":      e.Type,
				"module":    e.Module,
				"timestamp": e.Timestamp.Format(time.RFC3339),
				"data":      e.Data,
			}); err != nil {
				return
			}
		case <-ticker.C:
			if err := h.send(ctx, conn, map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}

func (h *EventsStreamHandler) send(ctx context.Context, conn *websocket.Conn, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal stream message")
		return err
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		if websocket.CloseStatus(err) == -1 {
			h.log.Debug().Err(err).Msg("Failed to write stream message")
		}
		return err
	}
	return nil
}
