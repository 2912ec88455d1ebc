package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status":    "healthy",
		"service":   "rampwatch",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("Health check failed")
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
			body["error"] = "database unavailable"
		}
	}

	s.writeJSON(w, status, body)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
