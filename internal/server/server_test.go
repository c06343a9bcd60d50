package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/config"
	"github.com/charybdis/charybdis/internal/core"
	apperrors "github.com/charybdis/charybdis/internal/errors"
	"github.com/charybdis/charybdis/internal/server/handlers"
)

type pingOnlyClient struct {
	err error
}

func (c pingOnlyClient) Ping(ctx context.Context) (string, error) {
	return "Ping successful.", c.err
}

func (c pingOnlyClient) CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	return json.RawMessage(`{"ret_msg":null}`), c.err
}

func (c pingOnlyClient) Session() (core.Session, bool) { return core.Session{}, false }

func (c pingOnlyClient) BaseURL() string { return "http://upstream.test" }

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(Options{Config: config.ServerConfig{Host: "127.0.0.1"}})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

func TestServerProxyRoutesRequireClient(t *testing.T) {
	srv := New(Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	srv = New(Options{Client: pingOnlyClient{}})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/ping", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/methods/testsession", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ret_msg":null}`, rec.Body.String())
}

func TestServerReadinessUsesRegisteredCheckers(t *testing.T) {
	health := handlers.NewHealthManager("dev")
	health.RegisterChecker("hirez", handlers.HealthCheckFunc(func(ctx context.Context) error {
		return errors.New("unreachable")
	}))
	srv := New(Options{Health: health})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServerAdminEndpointRequiresToken(t *testing.T) {
	srv := New(Options{})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	srv = New(Options{AdminToken: "secret"})
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/signal", nil))
	require.NotEqual(t, http.StatusNotFound, rec.Code)
	require.NotEqual(t, http.StatusOK, rec.Code)
}

func TestServerAddrUsesDefaults(t *testing.T) {
	srv := New(Options{Config: config.ServerConfig{Port: 8181}})
	require.Equal(t, "localhost:8181", srv.Addr())
}
