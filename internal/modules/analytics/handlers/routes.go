package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the warehouse analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts", h.HandleGetGlobalAlerts)

	r.Route("/warehouses", func(r chi.Router) {
		r.Get("/", h.HandleListWarehouses)

		r.Route("/{name}", func(r chi.Router) {
			r.Get("/config", h.HandleGetConfig)
			r.Put("/config", h.HandlePutConfig)
			r.Post("/tapes", h.HandleUploadTape)
			r.Get("/tapes/{tapeID}", h.HandleGetTape)
			r.Delete("/tapes/{tapeID}", h.HandleDeleteTape)

			r.Get("/metrics", h.HandleGetMetrics)
			r.Get("/compliance", h.HandleGetCompliance)
			r.Get("/alerts", h.HandleGetAlerts)
			r.Get("/watchlist", h.HandleGetWatchlist)
			r.Get("/trend", h.HandleGetTrend)
			r.Get("/ramp", h.HandleGetRamp)

			r.Get("/stress", h.HandleGetStress)
			r.Post("/stress", h.HandlePostStress)
			r.Get("/stress/history", h.HandleGetStressHistory)
			r.Get("/stress/presets", h.HandleGetPresetComparison)
		})
	})
}
