package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{
		Enabled: true,
		Emitter: collector,
	})
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	return collector
}

func TestRequestMetrics(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		request func() *http.Request
		metrics []string
		absent  []string
	}{
		{
			name:    "success",
			status:  http.StatusOK,
			body:    `[{"ret_msg":null}]`,
			request: func() *http.Request { return httptest.NewRequest(http.MethodGet, "/v1/ping", nil) },
			metrics: []string{"http_requests_total", "http_request_duration_ms", "http_request_size_bytes", "http_response_size_bytes"},
			absent:  []string{"http_errors_total"},
		},
		{
			name:    "upstream error",
			status:  http.StatusBadGateway,
			request: func() *http.Request { return httptest.NewRequest(http.MethodGet, "/v1/methods/getgods", nil) },
			metrics: []string{"http_requests_total", "http_errors_total"},
		},
		{
			name:   "request body",
			status: http.StatusOK,
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/v1/session", strings.NewReader(`{"x":1}`))
			},
			metrics: []string{"http_request_size_bytes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := setupTelemetry(t)

			handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, tt.request())

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, rec.Body.String())
			for _, name := range tt.metrics {
				assert.Greater(t, collector.CountMetricsByName(name), 0, "expected %s", name)
			}
			for _, name := range tt.absent {
				assert.Zero(t, collector.CountMetricsByName(name), "unexpected %s", name)
			}
		})
	}
}

func TestRequestMetricsWithoutTelemetry(t *testing.T) {
	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	handler := RequestMetrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestMetricsUsesRoutePattern(t *testing.T) {
	setupTelemetry(t)

	var pattern string
	r := chi.NewRouter()
	r.Use(RequestMetrics)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = EndpointPattern(req)
		})
	})
	r.Get("/v1/methods/{method}/*", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/methods/getplayer/someone", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/v1/methods/{method}/*", pattern)
}

func TestGetEndpointPattern(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/health", "/health/*"},
		{"/health/live", "/health/*"},
		{"/health/ready", "/health/*"},
		{"/version", "/version"},
		{"/metrics", "/metrics"},
		{"/v1/ping", "/v1/ping"},
		{"/v1/session", "/v1/session"},
		{"/v1/methods/getplayer/someone", "/v1/methods/{method}/*"},
		{"/api/users/123", "/unknown"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.expected, EndpointPattern(req))
		})
	}
}

func TestQuietEndpoint(t *testing.T) {
	assert.True(t, quietEndpoint("/health/*"))
	assert.True(t, quietEndpoint("/metrics"))
	assert.False(t, quietEndpoint("/v1/methods/{method}/*"))
}
