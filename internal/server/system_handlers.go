package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/rampwatch/internal/database"
)

// SystemStatusResponse represents the host and database status
type SystemStatusResponse struct {
	Status        string          `json:"status"` // "healthy" or "unhealthy"
	CPUPercent    float64         `json:"cpu_percent"`
	MemoryPercent float64         `json:"memory_percent"`
	DiskPercent   float64         `json:"disk_percent"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Database      *database.Stats `json:"database,omitempty"`
	CheckedAt     string          `json:"checked_at"`
}

// SystemHandlers serves host and database diagnostics
type SystemHandlers struct {
	db        *database.DB
	dataDir   string
	startedAt time.Time
	log       zerolog.Logger

	// cpuSample is how long CPU usage is measured per request.
	cpuSample time.Duration
}

// NewSystemHandlers creates system handlers for the database and data directory
func NewSystemHandlers(db *database.DB, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		db:        db,
		dataDir:   dataDir,
		startedAt: time.Now(),
		log:       log.With().Str("component", "system_handlers").Logger(),
		cpuSample: 100 * time.Millisecond,
	}
}

// GetSystemStatusSnapshot returns a snapshot of the current system status.
// Host metrics that cannot be read are reported as 0.
func (h *SystemHandlers) GetSystemStatusSnapshot(ctx context.Context) SystemStatusResponse {
	cpuPercent, memPercent := h.getSystemStats(ctx)

	response := SystemStatusResponse{
		Status:        "healthy",
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DiskPercent:   h.getDiskUsage(ctx),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		CheckedAt:     time.Now().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			h.log.Error().Err(err).Msg("Database health check failed")
			response.Status = "unhealthy"
		}
		stats, err := h.db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
		} else {
			response.Database = stats
		}
	}

	return response
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := h.GetSystemStatusSnapshot(r.Context())

	status := http.StatusOK
	if response.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode system status")
	}
}

// getSystemStats calculates CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats(ctx context.Context) (float64, float64) {
	cpuPercent, err := cpu.PercentWithContext(ctx, h.cpuSample, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}

// getDiskUsage returns the used percentage of the volume holding the data directory
func (h *SystemHandlers) getDiskUsage(ctx context.Context) float64 {
	if h.dataDir == "" {
		return 0
	}
	usage, err := disk.UsageWithContext(ctx, h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("dir", h.dataDir).Msg("Failed to get disk usage")
		return 0
	}
	return usage.UsedPercent
}
