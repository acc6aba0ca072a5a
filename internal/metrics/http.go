package metrics

import (
	"strconv"
	"time"

	"github.com/draftsmith/draftsmith/internal/observability"
)

// HTTP metric names
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPRequestSize     = "http_request_size_bytes"
	HTTPResponseSize    = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"
)

// HTTPRequest describes one completed request. Endpoint must be a route
// pattern, never a raw path.
type HTTPRequest struct {
	Method       string
	Endpoint     string
	Status       int
	Duration     time.Duration
	RequestSize  int64
	ResponseSize int64
}

// RecordHTTPRequest emits request counters, latency and size gauges.
func RecordHTTPRequest(req HTTPRequest) {
	if observability.TelemetrySystem == nil {
		return
	}
	sys := observability.TelemetrySystem

	labels := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
		"status":   strconv.Itoa(req.Status),
	}
	_ = sys.Counter(HTTPRequestsTotal, 1, labels)
	_ = sys.Histogram(HTTPRequestDuration, req.Duration, labels)

	sizeLabels := map[string]string{
		"method":   req.Method,
		"endpoint": req.Endpoint,
	}
	_ = sys.Gauge(HTTPRequestSize, float64(req.RequestSize), sizeLabels)
	_ = sys.Gauge(HTTPResponseSize, float64(req.ResponseSize), sizeLabels)

	if req.Status >= 400 {
		errorType := "client_error"
		if req.Status >= 500 {
			errorType = "server_error"
		}
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"method":     req.Method,
			"endpoint":   req.Endpoint,
			"status":     strconv.Itoa(req.Status),
			"error_type": errorType,
		})
	}
}
