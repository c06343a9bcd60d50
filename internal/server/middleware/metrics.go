package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/observability"
)

// EndpointPattern returns the chi route pattern so metric labels stay low
// cardinality. Requests that never reached a route are bucketed by prefix.
func EndpointPattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/methods/"):
		return "/v1/methods/{method}/*"
	case path == "/health" || strings.HasPrefix(path, "/health/"):
		return "/health/*"
	}
	switch path {
	case "/v1/ping", "/v1/session", "/version", "/metrics", "/":
		return path
	default:
		return "/unknown"
	}
}

// quietEndpoint reports endpoints polled by probes and scrapers, which are
// logged at debug level.
func quietEndpoint(endpoint string) bool {
	return endpoint == "/metrics" || strings.HasPrefix(endpoint, "/health")
}

// RequestMetrics emits the http_* metrics and an access log line per request.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tel := observability.TelemetrySystem
		logger := observability.ServerLogger
		if tel == nil && logger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		endpoint := EndpointPattern(r)
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		requestSize := r.ContentLength
		if requestSize < 0 {
			requestSize = 0
		}

		if tel != nil {
			labels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
				"status":   strconv.Itoa(status),
			}
			sizeLabels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
			}

			_ = tel.Counter("http_requests_total", 1, labels)
			_ = tel.Histogram("http_request_duration_ms", duration, labels)
			_ = tel.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
			_ = tel.Gauge("http_response_size_bytes", float64(ww.BytesWritten()), sizeLabels)

			if status >= 400 {
				errorType := "client_error"
				if status >= 500 {
					errorType = "server_error"
				}
				_ = tel.Counter("http_errors_total", 1, map[string]string{
					"method":     r.Method,
					"endpoint":   endpoint,
					"status":     strconv.Itoa(status),
					"error_type": errorType,
				})
			}
		}

		if logger != nil {
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", endpoint),
				zap.Int("status", status),
				zap.Duration("duration", duration),
				zap.Int64("request_size", requestSize),
				zap.Int("response_size", ww.BytesWritten()),
				zap.String("request_id", GetRequestID(r.Context())),
			}
			if method := chi.URLParam(r, "method"); method != "" {
				fields = append(fields, zap.String("api_method", method))
			}
			if quietEndpoint(endpoint) {
				logger.Debug("HTTP request completed", fields...)
			} else {
				logger.Info("HTTP request completed", fields...)
			}
		}
	})
}
