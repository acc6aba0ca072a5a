package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/internal/ailink"
	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/core/engine"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
	"github.com/draftsmith/draftsmith/internal/server/handlers"
)

const validKey = "AIzaSyA1b2C3d4E5f6G7h8I9j0KLMNOPQRS"

type echoGenerator struct{ calls int }

func (g *echoGenerator) Generate(ctx context.Context, req ailink.GenerateRequest) (*ailink.GenerateResult, error) {
	g.calls++
	return &ailink.GenerateResult{Content: "Draft: " + req.Prompt, ContentType: req.ContentType, Model: "m"}, nil
}

func newTestServer(t *testing.T, production bool) (*Server, *echoGenerator) {
	t.Helper()
	gen := &echoGenerator{}
	srv := New(Options{
		Host:           "127.0.0.1",
		Production:     production,
		AllowedOrigins: []string{"https://app.example"},
		CSPOrigin:      "https://generativelanguage.googleapis.com",
		MaxBodyBytes:   64 * 1024,
		Version:        "test",
	}, Deps{
		Orchestrator: &engine.Orchestrator{Generator: gen},
	})
	t.Cleanup(func() { apperrors.SetExposeDetails(false) })
	return srv, gen
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv, _ := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body apperrors.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "NOT_FOUND", body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantAction bool
	}{
		{
			name:       "Classified",
			err:        fmt.Errorf("metrics: %w", classify.Catalog(core.ErrorRateLimited)),
			wantStatus: http.StatusTooManyRequests,
			wantCode:   string(core.ErrorRateLimited),
			wantAction: true,
		},
		{
			name:       "Envelope",
			err:        apperrors.NewNotFoundError("missing"),
			wantStatus: http.StatusNotFound,
			wantCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil), tt.err)

			require.Equal(t, tt.wantStatus, rec.Code)
			var body apperrors.Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantAction, len(body.Actions) > 0)
		})
	}
}

func TestServerReadinessUsesHandleError(t *testing.T) {
	srv, _ := newTestServer(t, false)
	srv.deps.Health.RegisterChecker("store", handlers.HealthCheckFunc(func(context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body apperrors.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
	assert.NotEmpty(t, body.RequestID)
}

func TestServerMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, false)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/generate", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerGenerateEndToEnd(t *testing.T) {
	srv, gen := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"Quarterly update","contentType":"slides"}`))
	req.Header.Set("Authorization", "Bearer "+validKey)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("X-Request-ID", "req-e2e")
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "req-e2e", rec.Header().Get("X-Request-ID"))

	var body apperrors.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "req-e2e", body.RequestID)
	assert.Equal(t, "slides", body.Data.(map[string]any)["contentType"])
	assert.Equal(t, 1, gen.calls)
}

func TestServerProductionRedirectsAPIButNotHealth(t *testing.T) {
	srv, gen := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodPost, "http://drafts.example/api/generate", strings.NewReader(`{"prompt":"x"}`))
	req.Header.Set("X-Forwarded-Proto", "http")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Zero(t, gen.calls)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerVersionCORSAndRedirect(t *testing.T) {
	srv, _ := newTestServer(t, true)

	req := httptest.NewRequest(http.MethodGet, "http://drafts.example/version", nil)
	req.Header.Set("X-Forwarded-Proto", "http")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://drafts.example/version", rec.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodOptions, "/version", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	req.Header.Set("Origin", "https://app.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestServerPreflight(t *testing.T) {
	srv, _ := newTestServer(t, false)

	for _, path := range []string{"/api/generate", "/api/analytics", "/api/errors"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"), path)
	}
}

func TestServerAnalyticsWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t, false)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analytics", strings.NewReader(`{"event":"opened"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"id":null},"request_id":"`+rec.Header().Get("X-Request-ID")+`"}`, rec.Body.String())
}

func TestShutdownWithoutStart(t *testing.T) {
	srv, _ := newTestServer(t, false)
	require.NoError(t, srv.Shutdown(context.Background()))
}
