package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/observability"
)

func TestLoggersInitialize(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.InitCLILogger("test-service", true)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		observability.CLILogger.Debug("Test CLI log message",
			zap.String("method", "getgods"))
	})

	t.Run("Structured logger creation", func(t *testing.T) {
		observability.InitServerLogger("test-service", "debug", "charybdis")

		if observability.ServerLogger == nil {
			t.Fatal("Server logger should not be nil after initialization")
		}

		observability.ServerLogger.Info("Test structured log message",
			zap.String("endpoint", "api.smitegame.com"),
			zap.Duration("wait", 0))
	})
}

// The /version endpoint reports these values.
func TestCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()

	if version.Gofulmen == "" {
		t.Error("Gofulmen version should not be empty")
	}
	if version.Crucible == "" {
		t.Error("Crucible version should not be empty")
	}
}

func TestStopMetricsWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil
	if err := observability.StopMetrics(); err != nil {
		t.Fatalf("StopMetrics without exporter: %v", err)
	}
	if observability.GetMetricsPort() != 0 {
		t.Fatal("metrics port should reset")
	}
}
