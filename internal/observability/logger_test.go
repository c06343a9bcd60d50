package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := map[string]string{
		"trace":   "TRACE",
		"DEBUG":   "DEBUG",
		" info ":  "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"":        "INFO",
		"verbose": "INFO",
	}
	for in, want := range cases {
		require.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestLoggerConfigProfiles(t *testing.T) {
	simple := loggerConfig("svc", "debug", "simple", nil)
	require.Equal(t, logging.ProfileSimple, simple.Profile)
	require.Equal(t, "DEBUG", simple.DefaultLevel)
	require.Equal(t, "console", simple.Sinks[0].Format)

	structured := loggerConfig("svc", "warn", "structured", map[string]any{"namespace": "svc"})
	require.Equal(t, logging.ProfileStructured, structured.Profile)
	require.Equal(t, "json", structured.Sinks[0].Format)
	require.Equal(t, "svc", structured.StaticFields["namespace"])

	require.Equal(t, logging.ProfileSimple, loggerConfig("svc", "info", "FANCY", nil).Profile)
}

func TestCurrentPrefersServerLogger(t *testing.T) {
	origCLI, origServer := CLILogger, ServerLogger
	t.Cleanup(func() {
		CLILogger, ServerLogger = origCLI, origServer
	})

	CLILogger, ServerLogger = nil, nil
	require.Nil(t, Current())

	InitCLILogger("test", false)
	require.Same(t, CLILogger, Current())

	InitServerLogger("test", "info")
	require.Same(t, ServerLogger, Current())
}

func TestConfigureCLILogger(t *testing.T) {
	orig := CLILogger
	t.Cleanup(func() { CLILogger = orig })

	require.NoError(t, ConfigureCLILogger("test", "warn", ProfileStructured))
	require.NotNil(t, CLILogger)
	require.NotSame(t, orig, CLILogger)
}
