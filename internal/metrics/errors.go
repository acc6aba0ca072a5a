package metrics

import (
	"strconv"

	"github.com/draftsmith/draftsmith/internal/observability"
)

// Metric names
const (
	ErrorsTotalName       = "errors_total"
	PanicsTotalName       = "panics_total"
	ErrorsByEndpointName  = "errors_by_endpoint"
	ClassifiedErrorsTotal = "classified_errors_total"
)

// RecordError records an error response with code and status
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsTotalName,
			1,
			map[string]string{
				"error_code":  errorCode,
				"http_status": strconv.Itoa(httpStatus),
			},
		)
	}
}

// RecordPanic records a panic recovery
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, nil)
	}
}

// RecordErrorByEndpoint records an error by endpoint
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsByEndpointName,
			1,
			map[string]string{
				"endpoint":   endpoint,
				"error_code": errorCode,
			},
		)
	}
}

// RecordClassifiedError records the outcome of error classification. cause
// is the structural empty-response cause, if any.
func RecordClassifiedError(endpoint, code, cause string) {
	if observability.TelemetrySystem != nil {
		labels := map[string]string{
			"endpoint": endpoint,
			"code":     code,
		}
		if cause != "" {
			labels["cause"] = cause
		}
		_ = observability.TelemetrySystem.Counter(ClassifiedErrorsTotal, 1, labels)
	}
}
