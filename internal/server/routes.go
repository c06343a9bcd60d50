package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/observability"
	"github.com/charybdis/charybdis/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	var baseURL string
	if s.opts.Client != nil {
		baseURL = s.opts.Client.BaseURL()
	}
	s.router.Method("GET", "/version", handlers.VersionHandler{BaseURL: baseURL})

	s.router.Method("GET", "/metrics", MetricsProxy{})

	if s.opts.Client != nil {
		proxy := handlers.Proxy{Client: s.opts.Client}
		s.router.Route("/v1", func(r chi.Router) {
			r.Get("/ping", proxy.Ping)
			r.Get("/session", proxy.Session)
			r.Get("/methods/{method}", proxy.CallMethod)
			r.Get("/methods/{method}/*", proxy.CallMethod)
		})
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	adminToken := s.opts.AdminToken
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
