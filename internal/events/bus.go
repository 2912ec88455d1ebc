// Package events is an in-process publish/subscribe bus.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType names a kind of event.
type EventType string

const (
	TapeStored          EventType = "TAPE_STORED"
	TapeArchived        EventType = "TAPE_ARCHIVED"
	ConfigChanged       EventType = "CONFIG_CHANGED"
	AlertsEvaluated     EventType = "ALERTS_EVALUATED"
	SystemStatusChanged EventType = "SYSTEM_STATUS_CHANGED"
)

// Event is one published occurrence.
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
}

// Handler receives events. Handlers run on the publisher's goroutine and
// must not block.
type Handler func(*Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType][]subscription
	nextID uint64
	log    zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for t and returns a function that removes it.
func (b *Bus) Subscribe(t EventType, handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[t] = append(b.subs[t], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[t]
			for i, s := range list {
				if s.id == id {
					b.subs[t] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers data to every subscriber of its type. A panicking handler
// is logged and does not stop delivery to the rest.
func (b *Bus) Publish(module string, data EventData) {
	event := &Event{
		Type:      data.EventType(),
		Module:    module,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type]))
	for _, s := range b.subs[event.Type] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, event)
	}
}

func (b *Bus) deliver(h Handler, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Str("event_type", string(event.Type)).
				Msg("Event handler panicked")
		}
	}()
	h(event)
}

// SubscriberCount returns how many handlers are registered for t.
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[t])
}
