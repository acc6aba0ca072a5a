package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/ailink"
	"github.com/draftsmith/draftsmith/internal/ailink/driver/gemini"
	"github.com/draftsmith/draftsmith/internal/ailink/prompt"
	"github.com/draftsmith/draftsmith/internal/config"
	"github.com/draftsmith/draftsmith/internal/core/dedup"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	"github.com/draftsmith/draftsmith/internal/core/store"
	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/observability"
	"github.com/draftsmith/draftsmith/internal/server"
	"github.com/draftsmith/draftsmith/internal/server/handlers"
)

// serveRuntime holds the collaborators built for serve.
type serveRuntime struct {
	deps  server.Deps
	store *store.Store
	stop  func()
}

// Close stops background work and releases the store.
func (rt *serveRuntime) Close() error {
	if rt == nil {
		return nil
	}
	if rt.stop != nil {
		rt.stop()
	}
	return rt.store.Close()
}

// newLimiter builds the rate limiter with configured policy overrides.
func newLimiter(cfg *config.Config) *engine.RateLimiter {
	limiter := engine.NewRateLimiter()
	overrides := make(map[string]engine.RateLimit, len(cfg.RateLimits))
	for endpoint, limit := range cfg.RateLimits {
		overrides[strings.ToLower(endpoint)] = engine.RateLimit{
			RequestsPerWindow: limit.Requests,
			WindowDuration:    limit.Window,
		}
	}
	limiter.ApplyOverrides(overrides)
	return limiter
}

// newPromptRegistry loads prompts from dir, or the embedded set when dir is
// empty. Every content type must have a prompt.
func newPromptRegistry(dir string) (prompt.Registry, error) {
	var (
		reg prompt.Registry
		err error
	)
	if dir = strings.TrimSpace(dir); dir == "" {
		reg, err = prompt.DefaultRegistry()
	} else {
		var prompts []*prompt.Prompt
		if prompts, err = prompt.LoadFromDir(dir); err != nil {
			return nil, fmt.Errorf("load prompts from %s: %w", dir, err)
		}
		reg, err = prompt.NewRegistry(prompts)
	}
	if err != nil {
		return nil, err
	}
	if err := prompt.Require(reg, string(ailink.ContentTypeEmail), string(ailink.ContentTypeSlides)); err != nil {
		return nil, err
	}
	return reg, nil
}

// newOrchestrator wires the provider client, prompts and deduplicator.
func newOrchestrator(cfg *config.Config) (*engine.Orchestrator, error) {
	if name := strings.ToLower(strings.TrimSpace(cfg.Provider.Name)); name != "" && name != "gemini" {
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider.Name)
	}

	registry, err := newPromptRegistry(cfg.Provider.PromptsDir)
	if err != nil {
		return nil, err
	}

	client := gemini.NewClient(cfg.Provider.BaseURL)
	client.Timeout = cfg.Provider.GenerateTimeout

	orchestrator := &engine.Orchestrator{
		Generator: &ailink.Service{
			Driver:  client,
			Prompts: registry,
			Model:   cfg.Provider.Model,
			Retry:   cfg.Provider.Retry,
		},
		Deadline: cfg.Provider.GenerateTimeout,
	}
	if cfg.Dedup.Enabled {
		orchestrator.Dedup = dedup.New[*ailink.GenerateResult](dedup.WithMaxAge(cfg.Dedup.MaxAge))
	}
	return orchestrator, nil
}

// buildRuntime assembles the server dependencies. An unavailable store
// degrades analytics and error logging rather than failing startup.
func buildRuntime(ctx context.Context, cfg *config.Config, version string) (*serveRuntime, error) {
	logger := observability.ServerLogger
	if logger == nil {
		logger = observability.CLILogger
	}

	orchestrator, err := newOrchestrator(cfg)
	if err != nil {
		return nil, err
	}

	limiter := newLimiter(cfg)
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	sweeperDone := limiter.StartSweeper(sweepCtx, cfg.RateLimitSweepInterval, func(removed int, err error) {
		if err != nil {
			if logger != nil {
				logger.Warn("Rate limit sweep failed", zap.Error(err))
			}
			return
		}
		metrics.RecordRateLimitSweep(removed)
		if logger != nil && removed > 0 {
			logger.Debug("Swept expired rate limit windows", zap.Int("removed", removed))
		}
	})

	rt := &serveRuntime{
		stop: func() {
			cancelSweep()
			<-sweeperDone
		},
	}

	health := handlers.NewHealthManager(version)
	health.RegisterChecker("provider", handlers.HealthCheckFunc(func(context.Context) error {
		if orchestrator.Generator == nil {
			return fmt.Errorf("provider not configured")
		}
		return nil
	}))

	db, err := store.OpenAndMigrate(ctx, cfg.Store)
	switch {
	case err == nil:
		rt.store = db
		rt.deps.Events = db
		health.RegisterChecker("store", handlers.HealthCheckFunc(func(ctx context.Context) error {
			if err := db.Ping(ctx); err != nil {
				return handlers.Degraded{Err: err}
			}
			return nil
		}))
	case stderrors.Is(err, store.ErrDisabled):
		health.RegisterChecker("store", handlers.HealthCheckFunc(func(context.Context) error {
			return handlers.Degraded{Err: store.ErrDisabled}
		}))
	default:
		if logger != nil {
			logger.Warn("Event store unavailable; analytics and error logs will be dropped", zap.Error(err))
		}
		storeErr := err
		health.RegisterChecker("store", handlers.HealthCheckFunc(func(context.Context) error {
			return handlers.Degraded{Err: storeErr}
		}))
	}

	rt.deps.Limiter = limiter
	rt.deps.Orchestrator = orchestrator
	rt.deps.Health = health
	return rt, nil
}
