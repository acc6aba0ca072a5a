package cmd

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/internal/ailink/prompt"
	"github.com/draftsmith/draftsmith/internal/config"
	apperrors "github.com/draftsmith/draftsmith/internal/errors"
	"github.com/draftsmith/draftsmith/internal/server"
)

const testKey = "AIzaSyA1b2C3d4E5f6G7h8I9j0KLMNOPQRS"

func loadTestConfig(t *testing.T, settings map[string]any) *config.Config {
	t.Helper()
	v := viper.New()
	config.SetDefaults(v)
	v.Set("store.driver", "none")
	for key, value := range settings {
		v.Set(key, value)
	}
	cfg, _, err := config.Load(v)
	require.NoError(t, err)
	return cfg
}

func TestNewLimiterOverrides(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{
		"rate_limits": map[string]any{
			"Generate": map[string]any{"requests": 2, "window": "10s"},
		},
	})

	limit := newLimiter(cfg).Limit("generate")
	assert.Equal(t, 2, limit.RequestsPerWindow)
	assert.Equal(t, "10s", limit.WindowDuration.String())
}

func TestNewOrchestratorRejectsUnknownProvider(t *testing.T) {
	cfg := loadTestConfig(t, map[string]any{"provider.name": "openai"})
	_, err := newOrchestrator(cfg)
	require.Error(t, err)
}

func TestNewPromptRegistryRequiresEveryContentType(t *testing.T) {
	reg, err := newPromptRegistry("")
	require.NoError(t, err)
	require.Len(t, reg.List(), 2)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "email.md"), []byte("---\nslug: email\n---\nWrite: {{.prompt}}"), 0o600))

	_, err = newPromptRegistry(dir)
	require.ErrorIs(t, err, prompt.ErrNotFound)
	assert.Contains(t, err.Error(), "slides")
}

func TestBuildRuntimeServesGeneration(t *testing.T) {
	var upstreamCalls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		assert.Equal(t, testKey, r.Header.Get("x-goog-api-key"))
		assert.True(t, strings.HasSuffix(r.URL.Path, ":generateContent"), r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Quarterly update")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"Hi team, here is the quarterly update."}]},"finishReason":"STOP"}]}`)
	}))
	defer upstream.Close()

	cfg := loadTestConfig(t, map[string]any{
		"provider.base_url": upstream.URL,
		"metrics.enabled":   false,
	})

	rt, err := buildRuntime(context.Background(), cfg, "test")
	require.NoError(t, err)
	defer rt.Close() // nolint:errcheck // test cleanup

	assert.Nil(t, rt.deps.Events)
	require.NotNil(t, rt.deps.Orchestrator.Dedup)

	srv := server.New(server.OptionsFromConfig(cfg, "test"), rt.deps)
	t.Cleanup(func() { apperrors.SetExposeDetails(false) })

	req := httptest.NewRequest(http.MethodPost, "/api/generate", strings.NewReader(`{"prompt":"Quarterly update","contentType":"email"}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Content     string `json:"content"`
			ContentType string `json:"contentType"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Hi team, here is the quarterly update.", resp.Data.Content)
	assert.Equal(t, "email", resp.Data.ContentType)
	assert.Equal(t, int32(1), upstreamCalls.Load())

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "store")
}

func TestBuildRuntimeClassifiesUpstreamFailure(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT","details":[{"reason":"API_KEY_INVALID"}]}}`)
	}))
	defer upstream.Close()

	cfg := loadTestConfig(t, map[string]any{
		"provider.base_url":       upstream.URL,
		"server.environment":      "production",
		"provider.retry.attempts": 1,
	})

	rt, err := buildRuntime(context.Background(), cfg, "test")
	require.NoError(t, err)
	defer rt.Close() // nolint:errcheck // test cleanup

	srv := server.New(server.OptionsFromConfig(cfg, "test"), rt.deps)
	t.Cleanup(func() { apperrors.SetExposeDetails(false) })

	req := httptest.NewRequest(http.MethodPost, "https://drafts.example/api/generate", strings.NewReader(`{"prompt":"Quarterly update"}`))
	req.Header.Set("Authorization", "Bearer "+testKey)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
	var resp apperrors.Response
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "INVALID_API_KEY", resp.Code)
	assert.Nil(t, resp.Details)
	require.NotEmpty(t, resp.Actions)
}
