package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/charybdis/charybdis/internal/errors"
	"github.com/charybdis/charybdis/internal/observability"
)

const prometheusContentType = "text/plain; version=0.0.4"

// hopHeaders are dropped when copying the exporter response.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
}

var defaultMetricsClient = &http.Client{
	Timeout: 5 * time.Second,
}

// MetricsProxy serves /metrics on the main listener by forwarding to the
// Prometheus exporter, which listens on its own port.
type MetricsProxy struct {
	Client *http.Client

	// Port reports the exporter port. observability.GetMetricsPort is used
	// when nil.
	Port func() int
}

func (m MetricsProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.NewUnavailableError("Metrics exporter not initialized"))
		return
	}

	metricsURL := fmt.Sprintf("http://127.0.0.1:%d/metrics", m.port())
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, metricsURL, nil)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := m.client().Do(req)
	if err != nil {
		apperrors.RespondWithEnvelope(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Failed to close metrics response body", zap.Error(err))
		}
	}()

	for key, values := range resp.Header {
		if hopHeaders[http.CanonicalHeaderKey(key)] {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if resp.Header.Get("Content-Type") == "" {
		w.Header().Set("Content-Type", prometheusContentType)
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write metrics response", zap.Error(err))
	}
}

func (m MetricsProxy) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return defaultMetricsClient
}

func (m MetricsProxy) port() int {
	port := 0
	if m.Port != nil {
		port = m.Port()
	} else {
		port = observability.GetMetricsPort()
	}
	if port == 0 {
		port = 9090
	}
	return port
}
