package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/observability"
)

func withCollector(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })
	return collector
}

func TestClientObserver(t *testing.T) {
	collector := withCollector(t)
	var observer ClientObserver

	observer.ObserveRequest("getgods", 200, 30*time.Millisecond, nil)
	observer.ObserveRequest("getplayer", 500, 10*time.Millisecond, errors.New("boom"))
	observer.ObserveWait("getgods", 100*time.Millisecond)
	observer.ObserveSession(true)

	require.Positive(t, collector.CountMetricsByName(APIRequestsTotal))
	require.Positive(t, collector.CountMetricsByName(APIRequestDuration))
	require.Positive(t, collector.CountMetricsByName(RateLimitWaitDuration))
	require.Positive(t, collector.CountMetricsByName(SessionsTotal))
}

func TestServerMetrics(t *testing.T) {
	collector := withCollector(t)

	RecordHealthCheck("upstream", false, time.Millisecond)
	RecordError("EXTERNAL_SERVICE_ERROR", 502)
	RecordErrorByEndpoint("/v1/methods/{method}/*", "EXTERNAL_SERVICE_ERROR")
	RecordPanic()
	SetServerStartTime(time.Now().Unix())

	require.Positive(t, collector.CountMetricsByName(HealthCheckTotal))
	require.Positive(t, collector.CountMetricsByName(HealthCheckDuration))
	require.Positive(t, collector.CountMetricsByName(ErrorsTotalName))
	require.Positive(t, collector.CountMetricsByName(ErrorsByEndpointName))
	require.Positive(t, collector.CountMetricsByName(PanicsTotalName))
	require.Positive(t, collector.CountMetricsByName(ServerStartTime))
}

func TestMetricsDisabled(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	require.NotPanics(t, func() {
		ClientObserver{}.ObserveRequest("ping", 200, time.Millisecond, nil)
		RecordPanic()
	})
}
