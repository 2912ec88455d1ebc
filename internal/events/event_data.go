package events

import (
	"time"

	"github.com/aristath/rampwatch/internal/domain"
)

// EventData is the interface that all event payloads implement.
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// TapeStoredData is published after a tape is accepted.
type TapeStoredData struct {
	Warehouse string    `json:"warehouse"`
	TapeID    string    `json:"tape_id"`
	AsOf      time.Time `json:"as_of"`
	Assets    int       `json:"assets"`
	Replaced  bool      `json:"replaced"`
}

// EventType returns the event type for TapeStoredData
func (d *TapeStoredData) EventType() EventType {
	return TapeStored
}

// TapeArchivedData is published after a tape reaches object storage.
type TapeArchivedData struct {
	Warehouse string `json:"warehouse"`
	TapeID    string `json:"tape_id"`
	Key       string `json:"key"`
}

// EventType returns the event type for TapeArchivedData
func (d *TapeArchivedData) EventType() EventType {
	return TapeArchived
}

// ConfigChangedData is published when a warehouse's settings change.
type ConfigChangedData struct {
	Warehouse string `json:"warehouse"`
	Source    string `json:"source"` // "api" or "seed"
}

// EventType returns the event type for ConfigChangedData
func (d *ConfigChangedData) EventType() EventType {
	return ConfigChanged
}

// AlertsEvaluatedData carries the result of an alert sweep.
type AlertsEvaluatedData struct {
	Warehouses int                     `json:"warehouses"`
	Counts     map[domain.Severity]int `json:"counts"`
	Alerts     []domain.Alert          `json:"alerts"`
}

// EventType returns the event type for AlertsEvaluatedData
func (d *AlertsEvaluatedData) EventType() EventType {
	return AlertsEvaluated
}

// SystemStatusData is published by the status monitor.
type SystemStatusData struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
}

// EventType returns the event type for SystemStatusData
func (d *SystemStatusData) EventType() EventType {
	return SystemStatusChanged
}
