package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func check(err error) HealthCheckFunc {
	return func(ctx context.Context) error { return err }
}

// blockingCheck waits for ctx, like a ping to an unresponsive upstream.
func blockingCheck(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func TestHealthHandler(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		manager := NewHealthManager("1.2.3")
		manager.RegisterChecker("store", check(nil))
		manager.RegisterChecker("hirez", check(nil))

		rec := httptest.NewRecorder()
		manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "healthy", resp.Status)
		require.Equal(t, "1.2.3", resp.Version)
		require.Equal(t, map[string]string{"store": "healthy", "hirez": "healthy"}, resp.Checks)
	})

	t.Run("unhealthy", func(t *testing.T) {
		manager := NewHealthManager("1.2.3")
		manager.RegisterChecker("store", check(nil))
		manager.RegisterChecker("hirez", check(errors.New("connection refused")))

		rec := httptest.NewRecorder()
		manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)

		checks, ok := resp.Error.Details["checks"].(map[string]interface{})
		require.True(t, ok, "expected checks in error details")
		require.Equal(t, "unhealthy", checks["hirez"])
		require.Equal(t, "healthy", checks["store"])
	})
}

func TestRunHealthChecksMarksTimeouts(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", check(nil))
	manager.RegisterChecker("hirez", HealthCheckFunc(blockingCheck))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	checks := manager.runHealthChecks(ctx)
	require.Equal(t, "healthy", checks["store"])
	require.Equal(t, "timeout", checks["hirez"])
	require.Equal(t, "degraded", manager.determineOverallStatus(checks))
}

func TestDetermineOverallStatus(t *testing.T) {
	manager := NewHealthManager("dev")

	tests := []struct {
		checks map[string]string
		want   string
	}{
		{nil, "healthy"},
		{map[string]string{"store": "healthy"}, "healthy"},
		{map[string]string{"store": "healthy", "hirez": "timeout"}, "degraded"},
		{map[string]string{"store": "timeout", "hirez": "unhealthy"}, "unhealthy"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, manager.determineOverallStatus(tt.checks), "%v", tt.checks)
	}
}

func TestLivenessIgnoresDependencies(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("hirez", check(errors.New("down")))

	rec := httptest.NewRecorder()
	manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestProbes(t *testing.T) {
	manager := NewHealthManager("dev")
	manager.RegisterChecker("store", check(nil))
	manager.RegisterChecker("hirez", check(errors.New("unreachable")))

	for name, handler := range map[string]http.HandlerFunc{
		"ready":   manager.ReadinessHandler,
		"startup": manager.StartupHandler,
	} {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/health/"+name, nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code, name)

		var resp errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Equal(t, name, resp.Error.Details["probe"])
	}
}
