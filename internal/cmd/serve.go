package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/config"
	errwrap "github.com/charybdis/charybdis/internal/errors"
	"github.com/charybdis/charybdis/internal/metrics"
	"github.com/charybdis/charybdis/internal/observability"
	"github.com/charybdis/charybdis/internal/server"
	"github.com/charybdis/charybdis/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// upstreamHealthChecker pings the API. Ping is unsigned and unmetered, so
// probing it does not spend the daily request budget.
type upstreamHealthChecker struct {
	client *apiClient
}

func (u upstreamHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := u.client.Ping(ctx)
	return err
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP proxy server",
	Long: `Start an HTTP server that forwards calls to the Hi-Rez API with the
configured credentials, sharing one session and rate limit ledger across all
callers.

Routes:
  GET /v1/ping                     upstream ping
  GET /v1/methods/{method}/{args}  call a method; each path segment is an argument
  GET /v1/session                  cached session metadata
  GET /health, /health/live, /health/ready, /health/startup
  GET /version, /metrics

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (log level and store settings apply on restart)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("host") {
			cfg.Server.Host = serverHost
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		namespace := config.AppName
		observability.InitServerLogger(config.AppName, cfg.Logging.Level, namespace)

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(config.AppName, cfg.Metrics.Port, namespace); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics",
					zap.Error(err))
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
		}
		metrics.SetServerStartTime(time.Now().Unix())

		client, err := newAPIClient(ctx, cfg)
		if err != nil {
			return err
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("upstream", client.BaseURL()),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Int("metrics_port", observability.GetMetricsPort()))

		hm := handlers.NewHealthManager(versionInfo.Version)
		if cfg.Health.Enabled {
			hm.RegisterChecker("upstream", upstreamHealthChecker{client: client})
			if client.store != nil {
				hm.RegisterChecker("store", handlers.HealthCheckFunc(client.store.Ping))
			}
			if cfg.Metrics.Enabled {
				hm.RegisterChecker("telemetry", telemetryHealthChecker{})
			}
		}

		handlers.AppName = config.AppName
		srv := server.New(server.Options{
			Config:     cfg.Server,
			Client:     client,
			Health:     hm,
			AdminToken: os.Getenv(config.EnvPrefix + "_ADMIN_TOKEN"),
		})

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Drain in-flight API calls, close the store and stop the exporter
		signals.OnShutdown(func(ctx context.Context) error {
			if err := client.Close(); err != nil {
				observability.ServerLogger.Warn("Client shutdown returned error", zap.Error(err))
			}
			if err := observability.StopMetrics(); err != nil {
				observability.ServerLogger.Warn("Metrics exporter stop returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// SIGHUP re-reads the config file and reports what changed. Values
		// already wired into the client apply on restart.
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			reloaded, err := loadConfig(cmd)
			if err != nil {
				observability.ServerLogger.Error("Failed to reload config file", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			if err := reloaded.Validate(); err != nil {
				return errwrap.WrapConfigInvalid(ctx, err, "reloaded config is invalid")
			}

			observability.ServerLogger.Info("Configuration reloaded",
				zap.Bool("delay_changed", reloaded.API.Delay != cfg.API.Delay),
				zap.Bool("credentials_changed", reloaded.API.DevID != cfg.API.DevID || reloaded.API.AuthKey != cfg.API.AuthKey),
				zap.Bool("log_level_changed", reloaded.Logging.Level != cfg.Logging.Level))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		if err := client.Start(); err != nil {
			return err
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")
}
