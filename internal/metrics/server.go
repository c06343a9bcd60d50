// Package metrics names the application's Prometheus metrics and emits them
// through the global telemetry system. Every function is a no-op while
// telemetry is disabled, which is the CLI default.
package metrics

import (
	"strconv"
	"time"

	"github.com/charybdis/charybdis/internal/observability"
)

// Proxy server metrics
const (
	HealthCheckTotal     = "app_health_check_total"
	HealthCheckDuration  = "app_health_check_duration_ms"
	ServerStartTime      = "app_server_start_time_seconds"
	ErrorsTotalName      = "errors_total"
	PanicsTotalName      = "panics_total"
	ErrorsByEndpointName = "errors_by_endpoint"
)

// RecordHealthCheck records one dependency check run by the health endpoints.
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}
	counter(HealthCheckTotal, map[string]string{"check": checkName, "status": status})
	histogram(HealthCheckDuration, duration, map[string]string{"check": checkName})
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	gauge(ServerStartTime, float64(timestamp), nil)
}

// RecordError counts an error response by code and HTTP status.
func RecordError(errorCode string, httpStatus int) {
	counter(ErrorsTotalName, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
}

// RecordErrorByEndpoint counts an error response by route pattern.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	counter(ErrorsByEndpointName, map[string]string{"endpoint": endpoint, "error_code": errorCode})
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	counter(PanicsTotalName, nil)
}

func counter(name string, tags map[string]string) {
	if tel := observability.TelemetrySystem; tel != nil {
		_ = tel.Counter(name, 1, tags)
	}
}

func gauge(name string, value float64, tags map[string]string) {
	if tel := observability.TelemetrySystem; tel != nil {
		_ = tel.Gauge(name, value, tags)
	}
}

func histogram(name string, d time.Duration, tags map[string]string) {
	if tel := observability.TelemetrySystem; tel != nil {
		_ = tel.Histogram(name, d, tags)
	}
}
