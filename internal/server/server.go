// Package server provides the HTTP server and routing for rampwatch.
package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/config"
	"github.com/aristath/rampwatch/internal/database"
	"github.com/aristath/rampwatch/internal/events"
	analyticshandlers "github.com/aristath/rampwatch/internal/modules/analytics/handlers"
)

// Config holds server dependencies
type Config struct {
	Log       zerolog.Logger
	DB        *database.DB
	Config    *config.Config
	Bus       *events.Bus
	Analytics *analyticshandlers.Handler
}

// Server is the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	db      *database.DB
	cfg     *config.Config
	bus     *events.Bus
	log     zerolog.Logger
	monitor *StatusMonitor
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		db:     cfg.DB,
		cfg:    cfg.Config,
		bus:    cfg.Bus,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Analytics)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. The websocket stream sits outside the
// timeout and compression middleware since it is long-lived.
func (s *Server) setupRoutes(analytics *analyticshandlers.Handler) {
	systemHandlers := NewSystemHandlers(s.db, s.cfg.DataDir, s.log)
	s.monitor = NewStatusMonitor(s.bus, systemHandlers, s.log)

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	if s.bus != nil {
		stream := NewEventsStreamHandler(s.bus, streamOrigins(s.cfg.CORSOrigins), s.log)
		s.router.Get("/api/alerts/stream", stream.ServeHTTP)
	}

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !s.cfg.DevMode {
			r.Use(middleware.Compress(5))
		}

		r.Route("/api", func(r chi.Router) {
			r.Route("/system", func(r chi.Router) {
				r.Get("/status", systemHandlers.HandleSystemStatus)
			})
			if analytics != nil {
				analytics.RegisterRoutes(r)
			}
		})
	})
}

// streamOrigins converts CORS origins to websocket origin patterns, which
// match on host only.
func streamOrigins(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := parseOrigin(o); err == nil {
			patterns = append(patterns, u)
		}
	}
	return patterns
}

func parseOrigin(origin string) (string, error) {
	if origin == "*" {
		return origin, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}
	return u.Host, nil
}

// Start starts the HTTP server and the status monitor
func (s *Server) Start() error {
	if s.cfg.StatusInterval > 0 {
		s.monitor.Start(s.cfg.StatusInterval)
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	s.monitor.Stop()
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
