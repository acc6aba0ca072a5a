package server

import (
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/appid"
	"github.com/draftsmith/draftsmith/internal/observability"
	"github.com/draftsmith/draftsmith/internal/server/handlers"
	servermw "github.com/draftsmith/draftsmith/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.deps.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Group(func(r chi.Router) {
		r.Use(servermw.HTTPSRedirect(s.opts.Production))
		r.Use(servermw.CORS(s.opts.AllowedOrigins))
		r.Get("/version", handlers.VersionHandler)
		r.Options("/version", handlers.VersionHandler)
	})
	s.router.Get("/metrics", MetricsHandler)

	generate := &handlers.GenerateHandler{
		Orchestrator:   s.deps.Orchestrator,
		FallbackAPIKey: s.opts.FallbackAPIKey,
	}
	events := &handlers.EventsHandler{
		Logger:  s.deps.Events,
		Timeout: s.opts.EventTimeout,
	}

	s.router.Route("/api", func(r chi.Router) {
		s.apiRoute(r, "/generate", handlers.Handle(s.pipeline, generate.Route()))
		s.apiRoute(r, "/analytics", handlers.Handle(s.pipeline, events.AnalyticsRoute()))
		s.apiRoute(r, "/errors", handlers.Handle(s.pipeline, events.ErrorsRoute()))
	})

	s.registerAdminEndpoint()
}

// apiRoute serves h for POST and for CORS preflight.
func (s *Server) apiRoute(r chi.Router, pattern string, h http.HandlerFunc) {
	r.Post(pattern, h)
	r.Options(pattern, h)
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	adminToken := os.Getenv(appid.EnvPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + appid.EnvPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,
		RateBurst: 5,
		Manager:   nil,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
