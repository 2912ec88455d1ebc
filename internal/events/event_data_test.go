package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rampwatch/internal/domain"
)

func TestEventTypes(t *testing.T) {
	tests := []struct {
		data EventData
		want EventType
	}{
		{&TapeStoredData{}, TapeStored},
		{&TapeArchivedData{}, TapeArchived},
		{&ConfigChangedData{}, ConfigChanged},
		{&AlertsEvaluatedData{}, AlertsEvaluated},
		{&SystemStatusData{}, SystemStatusChanged},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.data.EventType())
	}
}

func TestTapeStoredDataJSON(t *testing.T) {
	data := TapeStoredData{
		Warehouse: "WH-1",
		TapeID:    "abc",
		AsOf:      time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC),
		Assets:    12,
	}

	jsonData, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"tape_id":"abc"`)
	assert.Contains(t, string(jsonData), `"as_of":"2025-01-14T00:00:00Z"`)
}

func TestAlertsEvaluatedDataJSON(t *testing.T) {
	data := AlertsEvaluatedData{
		Warehouses: 2,
		Counts:     map[domain.Severity]int{domain.SeverityCritical: 1},
	}

	jsonData, err := json.Marshal(data)
	require.NoError(t, err)
	assert.Contains(t, string(jsonData), `"CRITICAL":1`)
}

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var got []*Event
	unsubscribe := bus.Subscribe(TapeStored, func(e *Event) { got = append(got, e) })
	bus.Subscribe(ConfigChanged, func(*Event) { t.Fatal("wrong type delivered") })

	bus.Publish("tapes", &TapeStoredData{Warehouse: "WH-1"})
	require.Len(t, got, 1)
	assert.Equal(t, TapeStored, got[0].Type)
	assert.Equal(t, "tapes", got[0].Module)
	assert.Equal(t, "WH-1", got[0].Data.(*TapeStoredData).Warehouse)

	unsubscribe()
	unsubscribe()
	assert.Zero(t, bus.SubscriberCount(TapeStored))

	bus.Publish("tapes", &TapeStoredData{})
	assert.Len(t, got, 1)
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	delivered := false
	bus.Subscribe(TapeStored, func(*Event) { panic("boom") })
	bus.Subscribe(TapeStored, func(*Event) { delivered = true })

	assert.NotPanics(t, func() { bus.Publish("tapes", &TapeStoredData{}) })
	assert.True(t, delivered)
}

func TestBusUnsubscribeKeepsOthers(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var calls []int
	u1 := bus.Subscribe(AlertsEvaluated, func(*Event) { calls = append(calls, 1) })
	bus.Subscribe(AlertsEvaluated, func(*Event) { calls = append(calls, 2) })
	u3 := bus.Subscribe(AlertsEvaluated, func(*Event) { calls = append(calls, 3) })

	u1()
	u3()
	bus.Publish("alerts", &AlertsEvaluatedData{})
	assert.Equal(t, []int{2}, calls)
}

func TestBusConcurrentUse(t *testing.T) {
	bus := NewBus(zerolog.Nop())

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unsub := bus.Subscribe(TapeStored, func(*Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			bus.Publish("test", &TapeStoredData{})
			unsub()
		}()
	}
	wg.Wait()

	assert.Zero(t, bus.SubscriberCount(TapeStored))
	assert.Positive(t, count)
}
