package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftsmith/draftsmith/internal/core"
	"github.com/draftsmith/draftsmith/internal/core/classify"
	"github.com/draftsmith/draftsmith/internal/server/middleware"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func withRequestID(id string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
	ctx := context.WithValue(req.Context(), middleware.RequestIDContextKey, id)
	return req.WithContext(ctx)
}

func TestHTTPStatusFromCode(t *testing.T) {
	cases := map[string]int{
		"INVALID_API_KEY":     http.StatusUnauthorized,
		"API_KEY_EXPIRED":     http.StatusForbidden,
		"RATE_LIMITED":        http.StatusTooManyRequests,
		"SERVICE_UNAVAILABLE": http.StatusServiceUnavailable,
		"TIMEOUT":             http.StatusGatewayTimeout,
		"INVALID_INPUT":       http.StatusBadRequest,
		CodeNotFound:          http.StatusNotFound,
		CodeMethodNotAllowed:  http.StatusMethodNotAllowed,
		CodeStoreUnavailable:  http.StatusServiceUnavailable,
		CodeInternal:          http.StatusInternalServerError,
		"SOMETHING_ELSE":      http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatusFromCode(code), code)
	}
}

func TestEnsureEnvelope(t *testing.T) {
	env := EnsureEnvelope(nil)
	assert.Equal(t, CodeInternal, env.Code)

	env = EnsureEnvelope(stderrors.New("boom"))
	assert.Equal(t, CodeInternal, env.Code)
	assert.Equal(t, "boom", env.Context["wrapped_error"])

	original := NewInvalidInputError("bad")
	assert.Same(t, original, EnsureEnvelope(original))

	classified := classify.Catalog(core.ErrorRateLimited)
	env = EnsureEnvelope(classified)
	assert.Equal(t, "RATE_LIMITED", env.Code)
	assert.Equal(t, classified.UserMessage, env.Message)
}

func TestRespondWithEnvelopeHidesDetailsByDefault(t *testing.T) {
	SetExposeDetails(false)

	rec := httptest.NewRecorder()
	RespondWithError(rec, withRequestID("req-1"), stderrors.New("db exploded"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, CodeInternal, resp.Code)
	assert.Equal(t, "req-1", resp.RequestID)
	assert.Nil(t, resp.Details)
	assert.NotContains(t, rec.Body.String(), "db exploded")
}

func TestRespondWithEnvelopeExposesDetails(t *testing.T) {
	SetExposeDetails(true)
	t.Cleanup(func() { SetExposeDetails(false) })

	rec := httptest.NewRecorder()
	RespondWithError(rec, withRequestID("req-2"), stderrors.New("db exploded"))

	assert.Contains(t, rec.Body.String(), "db exploded")
}

func TestRespondClassified(t *testing.T) {
	classified := classify.ClassifyResponse(http.StatusTooManyRequests, []byte(`{"error":{"message":"quota"}}`))

	t.Run("Production", func(t *testing.T) {
		SetExposeDetails(false)
		rec := httptest.NewRecorder()
		RespondClassified(rec, withRequestID("req-3"), "generate", classified)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		resp := decode(t, rec)
		assert.False(t, resp.Success)
		assert.Equal(t, "RATE_LIMITED", resp.Code)
		assert.Equal(t, classified.UserMessage, resp.Error)
		assert.Nil(t, resp.Details)
		require.NotEmpty(t, resp.Actions)
		assert.True(t, resp.Actions[0].Primary)
	})

	t.Run("Development", func(t *testing.T) {
		SetExposeDetails(true)
		t.Cleanup(func() { SetExposeDetails(false) })
		rec := httptest.NewRecorder()
		RespondClassified(rec, withRequestID("req-4"), "generate", classified)

		resp := decode(t, rec)
		assert.Equal(t, classified.TechnicalMessage, resp.Details)
	})

	t.Run("Nil", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RespondClassified(rec, nil, "generate", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "UNKNOWN_ERROR", decode(t, rec).Code)
	})
}

func TestRespondSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, withRequestID("req-5"), http.StatusOK, map[string]string{"id": "abc"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "req-5", resp.RequestID)
	assert.Equal(t, map[string]any{"id": "abc"}, resp.Data)
	assert.Empty(t, resp.Error)
}

func TestWrap(t *testing.T) {
	env := WrapStoreUnavailable(withRequestID("req-6").Context(), stderrors.New("locked"), "store unavailable")
	assert.Equal(t, CodeStoreUnavailable, env.Code)
	assert.Equal(t, "req-6", env.CorrelationID)
	assert.Equal(t, "locked", env.Context["wrapped_error"])
}
