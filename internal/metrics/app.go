package metrics

import (
	"time"

	"github.com/draftsmith/draftsmith/internal/observability"
)

// Gateway metrics following Prometheus conventions
var (
	RateLimitRejectionsTotal = "ratelimit_rejections_total"
	RateLimitLastSweep       = "ratelimit_last_sweep_removed"
	SanitizerRejectionsTotal = "sanitizer_rejections_total"
	DedupSharedTotal         = "dedup_shared_total"
	DedupPending             = "dedup_pending"

	ProviderCallsTotal   = "provider_calls_total"
	ProviderCallDuration = "provider_call_duration_ms"

	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"

	ServerStartTime = "app_server_start_time_seconds"
)

// RecordRateLimitRejection records a request refused by the limiter.
func RecordRateLimitRejection(endpoint string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitRejectionsTotal,
			1,
			map[string]string{"endpoint": endpoint},
		)
	}
}

// RecordRateLimitSweep records how many windows the last sweep removed.
func RecordRateLimitSweep(removed int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(RateLimitLastSweep, float64(removed), nil)
	}
}

// RecordSanitizerRejection records input refused during sanitization.
func RecordSanitizerRejection(endpoint, code string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			SanitizerRejectionsTotal,
			1,
			map[string]string{
				"endpoint": endpoint,
				"code":     code,
			},
		)
	}
}

// RecordDedup records whether a dispatched call was shared between callers
// and the number of calls still in flight.
func RecordDedup(shared bool, pending int) {
	if observability.TelemetrySystem == nil {
		return
	}
	if shared {
		_ = observability.TelemetrySystem.Counter(DedupSharedTotal, 1, nil)
	}
	_ = observability.TelemetrySystem.Gauge(DedupPending, float64(pending), nil)
}

// RecordProviderCall records one upstream generation call.
func RecordProviderCall(provider, outcome string, duration time.Duration) {
	if observability.TelemetrySystem != nil {
		labels := map[string]string{
			"provider": provider,
			"outcome":  outcome,
		}
		_ = observability.TelemetrySystem.Counter(ProviderCallsTotal, 1, labels)
		_ = observability.TelemetrySystem.Histogram(ProviderCallDuration, duration, map[string]string{"provider": provider})
	}
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			HealthCheckTotal,
			1,
			map[string]string{
				"check":  checkName,
				"status": status,
			},
		)

		_ = observability.TelemetrySystem.Histogram(
			HealthCheckDuration,
			duration,
			map[string]string{
				"check": checkName,
			},
		)
	}
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
