package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/draftsmith/draftsmith/internal/metrics"
	"github.com/draftsmith/draftsmith/internal/observability"
)

// FallbackBody is the minimal failure body written when a panic escapes a
// handler. It is built by hand so that writing it cannot fail again.
func FallbackBody(requestID string) []byte {
	body := `{"success":false,"error":"An unexpected error occurred. Please try again."`
	if id := safeID(requestID); id != "" {
		body += `,"request_id":"` + id + `"`
	}
	return []byte(body + "}")
}

// safeID keeps only characters that need no JSON escaping.
func safeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.', r == ':':
			return r
		}
		return -1
	}, id)
}

// WriteFallback writes the minimal failure response with the security
// header set. A policy already on the response is kept.
func WriteFallback(w http.ResponseWriter, r *http.Request, requestID string) {
	csp := w.Header().Get("Content-Security-Policy")
	_ = fallbackHeaders.Process(w, r)
	if csp != "" {
		w.Header().Set("Content-Security-Policy", csp)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(FallbackBody(requestID))
}

// Recovery middleware recovers from panics and logs them
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				requestID := GetRequestID(r.Context())
				panicErr := errors.NewErrorEnvelope("INTERNAL_ERROR", fmt.Sprintf("panic: %v", err)).
					WithCorrelationID(requestID)
				panicErr, _ = panicErr.WithContext(map[string]interface{}{
					"stack_trace": string(debug.Stack()),
				})
				panicErr, _ = panicErr.WithSeverity(errors.SeverityCritical)

				metrics.RecordPanic()
				if observability.ServerLogger != nil {
					observability.ServerLogger.Error(panicErr.Message,
						zap.String("request_id", requestID),
						zap.String("path", r.URL.Path),
						zap.Any("context", panicErr.Context),
					)
				}

				WriteFallback(w, r, requestID)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
