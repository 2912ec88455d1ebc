// Package handlers provides HTTP handlers for warehouse analytics.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/domain"
	"github.com/aristath/rampwatch/internal/modules/analytics"
	"github.com/aristath/rampwatch/internal/modules/stress"
	"github.com/aristath/rampwatch/internal/modules/tapes"
	wh "github.com/aristath/rampwatch/internal/modules/warehouse"
	"github.com/aristath/rampwatch/internal/utils"
)

// MaxTapeBytes caps the size of an uploaded tape body.
const MaxTapeBytes = 32 << 20

// Handler handles warehouse analytics HTTP requests
type Handler struct {
	service  *analytics.Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:  service,
		validate: utils.NewValidator(),
		log:      log.With().Str("handler", "analytics").Logger(),
	}
}

type configRequest struct {
	Config          domain.WarehouseConfig `json:"config"`
	DebtOutstanding *float64               `json:"debt_outstanding" validate:"omitempty,gte=0"`
	CashBalance     float64                `json:"cash_balance" validate:"gte=0"`
}

type tapeRequest struct {
	AsOf   string         `json:"as_of" validate:"required,datetime=2006-01-02"`
	Assets []domain.Asset `json:"assets" validate:"required,min=1"`
}

// HandleListWarehouses handles GET /api/warehouses
func (h *Handler) HandleListWarehouses(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Warehouses()
	if err != nil {
		h.writeError(w, err, "Failed to list warehouses")
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"warehouses": list,
		"count":      len(list),
	})
}

// HandleGetConfig handles GET /api/warehouses/{name}/config
func (h *Handler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err, "Failed to load warehouse config")
		return
	}
	h.writeData(w, http.StatusOK, settings)
}

// HandlePutConfig handles PUT /api/warehouses/{name}/config.
// Fields omitted from the body keep their default values.
func (h *Handler) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	req := configRequest{Config: domain.DefaultWarehouseConfig()}
	if !h.decode(w, r, &req) {
		return
	}

	settings := wh.Settings{
		Warehouse: name,
		Config:    req.Config,
		Facility: domain.Facility{
			DebtOutstanding: req.DebtOutstanding,
			CashBalance:     req.CashBalance,
		},
	}
	if err := h.service.UpdateSettings(settings, "api"); err != nil {
		h.writeError(w, err, "Failed to store warehouse config")
		return
	}

	stored, err := h.service.Settings(name)
	if err != nil {
		h.writeError(w, err, "Failed to load warehouse config")
		return
	}
	h.writeData(w, http.StatusOK, stored)
}

// HandleUploadTape handles POST /api/warehouses/{name}/tapes
func (h *Handler) HandleUploadTape(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxTapeBytes)

	var req tapeRequest
	if !h.decode(w, r, &req) {
		return
	}
	asOf, err := time.Parse(tapes.DateLayout, req.AsOf)
	if err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid as_of date", nil)
		return
	}

	snap := domain.Snapshot{
		Warehouse: chi.URLParam(r, "name"),
		AsOf:      asOf,
		Assets:    req.Assets,
	}
	result, err := h.service.IngestTape(r.Context(), snap, "api")
	if err != nil {
		h.writeError(w, err, "Failed to store tape")
		return
	}
	h.writeData(w, http.StatusCreated, result)
}

// HandleGetTape handles GET /api/warehouses/{name}/tapes/{tapeID}
func (h *Handler) HandleGetTape(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Tape(chi.URLParam(r, "name"), chi.URLParam(r, "tapeID"))
	h.respond(w, snap, err, "Failed to load tape")
}

// HandleDeleteTape handles DELETE /api/warehouses/{name}/tapes/{tapeID}
func (h *Handler) HandleDeleteTape(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteTape(chi.URLParam(r, "name"), chi.URLParam(r, "tapeID")); err != nil {
		h.writeError(w, err, "Failed to delete tape")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetMetrics handles GET /api/warehouses/{name}/metrics
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Metrics(chi.URLParam(r, "name"))
	h.respond(w, report, err, "Failed to compute metrics")
}

// HandleGetCompliance handles GET /api/warehouses/{name}/compliance
func (h *Handler) HandleGetCompliance(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Compliance(chi.URLParam(r, "name"))
	h.respond(w, report, err, "Failed to evaluate compliance")
}

// HandleGetAlerts handles GET /api/warehouses/{name}/alerts
func (h *Handler) HandleGetAlerts(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Alerts(chi.URLParam(r, "name"))
	h.respond(w, report, err, "Failed to evaluate alerts")
}

// HandleGetGlobalAlerts handles GET /api/alerts
func (h *Handler) HandleGetGlobalAlerts(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.GlobalAlerts(r.Context())
	h.respond(w, report, err, "Failed to evaluate alerts")
}

// HandleGetWatchlist handles GET /api/warehouses/{name}/watchlist
func (h *Handler) HandleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Watchlist(chi.URLParam(r, "name"))
	if err != nil {
		h.writeError(w, err, "Failed to build watchlist")
		return
	}
	h.writeData(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleGetTrend handles GET /api/warehouses/{name}/trend
func (h *Handler) HandleGetTrend(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.Trend(chi.URLParam(r, "name"))
	h.respond(w, points, err, "Failed to compute trend")
}

// HandleGetRamp handles GET /api/warehouses/{name}/ramp
func (h *Handler) HandleGetRamp(w http.ResponseWriter, r *http.Request) {
	progress, err := h.service.Ramp(chi.URLParam(r, "name"))
	h.respond(w, progress, err, "Failed to compute ramp progress")
}

// HandleGetStress handles GET /api/warehouses/{name}/stress?preset=
func (h *Handler) HandleGetStress(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Stress(chi.URLParam(r, "name"), r.URL.Query().Get("preset"))
	h.respond(w, report, err, "Failed to run stress test")
}

// HandlePostStress handles POST /api/warehouses/{name}/stress.
// Parameters omitted from the body keep their Base preset values.
func (h *Handler) HandlePostStress(w http.ResponseWriter, r *http.Request) {
	cfg := domain.DefaultStressConfig()
	if !h.decode(w, r, &cfg) {
		return
	}
	report, err := h.service.StressCustom(chi.URLParam(r, "name"), cfg)
	h.respond(w, report, err, "Failed to run stress test")
}

// HandleGetStressHistory handles GET /api/warehouses/{name}/stress/history
func (h *Handler) HandleGetStressHistory(w http.ResponseWriter, r *http.Request) {
	points, err := h.service.StressHistory(chi.URLParam(r, "name"))
	h.respond(w, points, err, "Failed to run historical stress")
}

// HandleGetPresetComparison handles GET /api/warehouses/{name}/stress/presets?presets=Base,Severe
func (h *Handler) HandleGetPresetComparison(w http.ResponseWriter, r *http.Request) {
	names := utils.ParseCSV(r.URL.Query().Get("presets"))
	results, err := h.service.ComparePresets(chi.URLParam(r, "name"), names)
	h.respond(w, results, err, "Failed to compare presets")
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the caller should continue.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return true
		}
		h.writeFailure(w, http.StatusBadRequest, "Validation failed", utils.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, data interface{}, err error, msg string) {
	if err != nil {
		h.writeError(w, err, msg)
		return
	}
	h.writeData(w, http.StatusOK, data)
}

// writeError maps service errors onto status codes.
func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	var rejected *tapes.RejectedError
	switch {
	case errors.Is(err, tapes.ErrNotFound):
		h.writeFailure(w, http.StatusNotFound, "No tape stored for warehouse", nil)
	case errors.As(err, &rejected):
		h.writeFailure(w, http.StatusUnprocessableEntity, "Tape rejected", rejected.Issues)
	case errors.Is(err, stress.ErrUnknownPreset), errors.Is(err, analytics.ErrInvalid):
		h.writeFailure(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.log.Error().Err(err).Msg(msg)
		h.writeFailure(w, http.StatusInternalServerError, msg, nil)
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, msg string, details interface{}) {
	body := map[string]interface{}{"error": msg}
	if details != nil {
		body["details"] = details
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
