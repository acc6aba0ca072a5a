package engine

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/draftsmith/draftsmith/internal/core"
)

// RateLimiter enforces fixed-window quotas per (endpoint, client) pair.
type RateLimiter struct {
	Store  RateLimitStore
	Limits map[string]RateLimit
	Clock  func() time.Time
}

// RateLimit represents a rate limit window.
type RateLimit struct {
	RequestsPerWindow int           `json:"requests" yaml:"requests"`
	WindowDuration    time.Duration `json:"window" yaml:"window"`
}

// Decision is the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long a rejected caller should wait.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !now.Before(d.ResetAt) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

// RateLimitStore stores rate windows. UpdateRateWindow must run fn atomically
// with respect to other updates on the same key.
type RateLimitStore interface {
	UpdateRateWindow(ctx context.Context, key string, fn func(current *core.RateWindow) *core.RateWindow) error
	SweepRateWindows(ctx context.Context, now time.Time) (int, error)
}

// DefaultPolicy applies to endpoints without an explicit entry.
var DefaultPolicy = RateLimit{RequestsPerWindow: 50, WindowDuration: time.Minute}

// DefaultLimits provides the built-in per-endpoint policies.
var DefaultLimits = map[string]RateLimit{
	string(core.EndpointGenerate):  {RequestsPerWindow: 10, WindowDuration: time.Minute},
	string(core.EndpointAnalytics): {RequestsPerWindow: 30, WindowDuration: time.Minute},
	string(core.EndpointErrors):    {RequestsPerWindow: 20, WindowDuration: time.Minute},
	string(core.EndpointDefault):   DefaultPolicy,
}

// NewRateLimiter builds a limiter over an in-memory store with default limits.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{Store: NewMemoryRateStore()}
}

// Key builds the storage key for an endpoint and client.
func Key(endpoint string, client core.ClientKey) string {
	return endpoint + ":" + string(client)
}

// Allow reports whether a request may proceed, recording it when it does.
// Store failures admit the request.
func (r *RateLimiter) Allow(ctx context.Context, endpoint string, client core.ClientKey) bool {
	return r.Decide(ctx, endpoint, client).Allowed
}

// Decide performs the check-then-increment for one request and reports the
// resulting window.
func (r *RateLimiter) Decide(ctx context.Context, endpoint string, client core.ClientKey) Decision {
	limit := r.Limit(endpoint)
	if r == nil || r.Store == nil {
		return Decision{Allowed: true, Limit: limit.RequestsPerWindow, Remaining: limit.RequestsPerWindow}
	}

	now := r.now()
	decision := Decision{Limit: limit.RequestsPerWindow}
	err := r.Store.UpdateRateWindow(ctx, Key(endpoint, client), func(current *core.RateWindow) *core.RateWindow {
		if current.Expired(now) {
			current = &core.RateWindow{Count: 1, ResetAt: now.Add(limit.WindowDuration)}
			decision.Allowed = true
		} else if current.Count < limit.RequestsPerWindow {
			current.Count++
			decision.Allowed = true
		}
		decision.Remaining = limit.RequestsPerWindow - current.Count
		decision.ResetAt = current.ResetAt
		return current
	})
	if err != nil {
		return Decision{Allowed: true, Limit: limit.RequestsPerWindow, Remaining: limit.RequestsPerWindow}
	}
	if decision.Remaining < 0 {
		decision.Remaining = 0
	}
	return decision
}

// Sweep removes every window whose reset time has passed.
func (r *RateLimiter) Sweep(ctx context.Context) (int, error) {
	if r == nil || r.Store == nil {
		return 0, nil
	}
	return r.Store.SweepRateWindows(ctx, r.now())
}

// StartSweeper runs Sweep on interval until ctx is done. The returned channel
// is closed once the sweeper goroutine exits.
func (r *RateLimiter) StartSweeper(ctx context.Context, interval time.Duration, onSweep func(removed int, err error)) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := r.Sweep(ctx)
				if onSweep != nil {
					onSweep(removed, err)
				}
			}
		}
	}()

	return done
}

// ApplyOverrides merges per-endpoint policy overrides.
func (r *RateLimiter) ApplyOverrides(overrides map[string]RateLimit) {
	if r == nil || len(overrides) == 0 {
		return
	}

	if r.Limits == nil {
		r.Limits = make(map[string]RateLimit, len(DefaultLimits))
		for key, limit := range DefaultLimits {
			r.Limits[key] = limit
		}
	}

	for endpoint, value := range overrides {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint == "" || value.RequestsPerWindow <= 0 || value.WindowDuration <= 0 {
			continue
		}
		r.Limits[endpoint] = value
	}
}

// Limit returns the policy for endpoint, falling back to the default policy.
func (r *RateLimiter) Limit(endpoint string) RateLimit {
	limits := DefaultLimits
	if r != nil && r.Limits != nil {
		limits = r.Limits
	}

	if limit, ok := limits[endpoint]; ok {
		return limit
	}
	if limit, ok := limits[string(core.EndpointDefault)]; ok {
		return limit
	}
	return DefaultPolicy
}

// Policy is a named rate limit, used for listing.
type Policy struct {
	Endpoint string    `json:"endpoint" yaml:"endpoint"`
	Limit    RateLimit `json:"limit" yaml:"limit"`
}

// Policies returns the effective policy table sorted by endpoint.
func (r *RateLimiter) Policies() []Policy {
	limits := DefaultLimits
	if r != nil && r.Limits != nil {
		limits = r.Limits
	}

	policies := make([]Policy, 0, len(limits))
	for endpoint, limit := range limits {
		policies = append(policies, Policy{Endpoint: endpoint, Limit: limit})
	}
	sort.Slice(policies, func(i, j int) bool {
		return policies[i].Endpoint < policies[j].Endpoint
	})
	return policies
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
