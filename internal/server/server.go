package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/config"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
	"github.com/draftsmith/draftsmith/internal/observability"
	"github.com/draftsmith/draftsmith/internal/server/handlers"
	servermw "github.com/draftsmith/draftsmith/internal/server/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	Production      bool
	AllowedOrigins  []string
	CSPOrigin       string
	MaxBodyBytes    int64
	FallbackAPIKey  string
	EventTimeout    time.Duration
	Version         string
	HealthCheckWait time.Duration
}

// OptionsFromConfig derives server options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config, version string) Options {
	return Options{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		Production:     cfg.Server.IsProduction(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		CSPOrigin:      cfg.Provider.CSPOrigin,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
		FallbackAPIKey: cfg.Provider.APIKey,
		EventTimeout:   cfg.Provider.AuxTimeout,
		Version:        version,
	}
}

// Deps are the collaborators the API routes dispatch to.
type Deps struct {
	Limiter      *engine.RateLimiter
	Orchestrator *engine.Orchestrator
	Events       handlers.EventLogger
	Health       *handlers.HealthManager
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	opts     Options
	deps     Deps
	pipeline *handlers.Pipeline
	listener net.Listener
}

// New creates a new HTTP server instance
func New(opts Options, deps Deps) *Server {
	if deps.Limiter == nil {
		deps.Limiter = engine.NewRateLimiter()
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthManager(opts.Version)
	}
	if deps.Health.Respond == nil {
		deps.Health.Respond = HandleError
	}

	apperrors.SetExposeDetails(!opts.Production)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)

	// RequestID → Metrics → Recovery → SecurityHeaders
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)
	r.Use(servermw.SecurityHeaders(opts.CSPOrigin))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		opts:   opts,
		deps:   deps,
		pipeline: &handlers.Pipeline{
			Limiter:      deps.Limiter,
			Headers:      servermw.NewSecureHeaders(opts.CSPOrigin),
			Origins:      servermw.NewOriginAllowList(opts.AllowedOrigins),
			MaxBodyBytes: opts.MaxBodyBytes,
		},
	}
	if opts.Production {
		s.pipeline.Redirect = servermw.NewHTTPSRedirect()
	}

	s.registerRoutes()

	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.opts.Host, fmt.Sprint(s.opts.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener.
func (s *Server) Serve(listener net.Listener) error {
	s.listener = listener
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  orDefault(s.opts.ReadTimeout, 15*time.Second),
		WriteTimeout: orDefault(s.opts.WriteTimeout, 45*time.Second),
		IdleTimeout:  orDefault(s.opts.IdleTimeout, 120*time.Second),
	}

	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Starting HTTP server",
			zap.String("addr", listener.Addr().String()),
			zap.Bool("production", s.opts.Production))
	}

	return s.server.Serve(listener)
}

// Shutdown stops accepting requests, waits for in-flight ones and releases
// pending deduplicated calls.
func (s *Server) Shutdown(ctx context.Context) error {
	if observability.ServerLogger != nil {
		observability.ServerLogger.Info("Shutting down HTTP server")
	}
	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}
	s.deps.Orchestrator.Shutdown()
	return err
}

// Addr returns the listening address once Serve has been called.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.opts.Port
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value > 0 {
		return value
	}
	return fallback
}
