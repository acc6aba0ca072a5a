package middleware

import (
	"crypto/tls"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertSecurityHeaders(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "strict-origin-when-cross-origin", h.Get("Referrer-Policy"))
	assert.Equal(t, "camera=(), microphone=(), geolocation=()", h.Get("Permissions-Policy"))
	assert.Equal(t, "max-age=31536000; includeSubDomains", h.Get("Strict-Transport-Security"))
	assert.Contains(t, h.Get("Content-Security-Policy"), "connect-src 'self'")
}

func TestContentSecurityPolicy(t *testing.T) {
	csp := ContentSecurityPolicy("https://generativelanguage.googleapis.com/", " ")
	assert.Contains(t, csp, "connect-src 'self' https://generativelanguage.googleapis.com;")
	assert.Contains(t, csp, "frame-ancestors 'none'")
	assert.Contains(t, ContentSecurityPolicy(), "connect-src 'self';")
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders("https://provider.example")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assertSecurityHeaders(t, rec.Header())
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://provider.example")
}

func TestHTTPSRedirect(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

	tests := []struct {
		name      string
		enabled   bool
		proto     string
		tls       bool
		wantNext  bool
		wantCode  int
		wantWhere string
	}{
		{name: "PlainHTTP", enabled: true, proto: "http", wantCode: http.StatusMovedPermanently, wantWhere: "https://app.example/api/generate?x=1"},
		{name: "NoProxyHeader", enabled: true, wantCode: http.StatusMovedPermanently, wantWhere: "https://app.example/api/generate?x=1"},
		{name: "ForwardedHTTPS", enabled: true, proto: "https", wantNext: true},
		{name: "ForwardedHTTPSUpperCase", enabled: true, proto: "HTTPS", wantNext: true},
		{name: "LocalTLS", enabled: true, tls: true, wantNext: true},
		{name: "Disabled", enabled: false, proto: "http", wantNext: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			req := httptest.NewRequest(http.MethodPost, "/api/generate?x=1", nil)
			req.Host = "app.example"
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			if tt.tls {
				req.TLS = &tls.ConnectionState{}
			}
			rec := httptest.NewRecorder()

			HTTPSRedirect(tt.enabled)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantNext, called)
			if !tt.wantNext {
				assert.Equal(t, tt.wantCode, rec.Code)
				assert.Equal(t, tt.wantWhere, rec.Header().Get("Location"))
			}
		})
	}
}

func TestHTTPSRedirectIgnoresForwardedHost(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Host = "drafts.example"
	req.Header.Set("X-Forwarded-Proto", "http")
	req.Header.Set("X-Forwarded-Host", "evil.example")
	rec := httptest.NewRecorder()

	HTTPSRedirect(true)(http.NotFoundHandler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://drafts.example/version", rec.Header().Get("Location"))
}

func TestCORS(t *testing.T) {
	handler := CORS([]string{"https://app.example/"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("AllowedOriginReflected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	})

	t.Run("UnknownOriginNotReflected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/generate", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
	})
}

func TestRecovery(t *testing.T) {
	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/generate", nil)
	req.Header.Set(RequestIDHeader, "req-panic")
	rec := httptest.NewRecorder()

	require.NotPanics(t, func() { handler.ServeHTTP(rec, req) })

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertSecurityHeaders(t, rec.Header())
	assert.NotContains(t, rec.Body.String(), "kaboom")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "req-panic", body["request_id"])
	assert.NotEmpty(t, body["error"])
}

func TestWriteFallbackKeepsExistingPolicy(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("Content-Security-Policy", ContentSecurityPolicy("https://provider.example"))

	WriteFallback(rec, httptest.NewRequest(http.MethodGet, "/", nil), "req-1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assertSecurityHeaders(t, rec.Header())
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "https://provider.example")
	assert.JSONEq(t, `{"success":false,"error":"An unexpected error occurred. Please try again.","request_id":"req-1"}`, rec.Body.String())

	bare := httptest.NewRecorder()
	WriteFallback(bare, httptest.NewRequest(http.MethodGet, "/", nil), "")
	assertSecurityHeaders(t, bare.Header())
}

func TestFallbackBodyIsValidJSON(t *testing.T) {
	var body map[string]any
	require.NoError(t, json.Unmarshal(FallbackBody("a\"b\\c\x01-9"), &body))
	assert.Equal(t, "abc-9", body["request_id"])

	require.NoError(t, json.Unmarshal(FallbackBody(""), &body))
}
