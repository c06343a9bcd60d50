package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

const (
	// ProfileSimple writes human-readable console lines.
	ProfileSimple = "SIMPLE"
	// ProfileStructured writes one JSON object per line.
	ProfileStructured = "STRUCTURED"
)

var (
	// CLILogger is used for CLI commands (SIMPLE profile unless configured otherwise)
	CLILogger *logging.Logger

	// ServerLogger is used for the proxy server (STRUCTURED profile)
	ServerLogger *logging.Logger
)

// InitCLILogger initializes the CLI logger with SIMPLE profile
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize CLI logger", err)
	}

	if verbose {
		logger.SetLevel(logging.DEBUG)
	}

	CLILogger = logger
}

// ConfigureCLILogger rebuilds the CLI logger from the logging section of the
// config. An unknown profile falls back to SIMPLE.
func ConfigureCLILogger(serviceName, logLevel, profile string) error {
	logger, err := logging.New(loggerConfig(serviceName, logLevel, profile, nil))
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	CLILogger = logger
	return nil
}

// InitServerLogger initializes the server logger with STRUCTURED profile
// Optional namespace parameter for telemetry integration
func InitServerLogger(serviceName string, logLevel string, namespace ...string) {
	staticFields := make(map[string]any)
	if len(namespace) > 0 && namespace[0] != "" {
		staticFields["namespace"] = namespace[0]
	}

	logger, err := logging.New(loggerConfig(serviceName, logLevel, ProfileStructured, staticFields))
	if err != nil {
		exitWithCodeStderr(foundry.ExitConfigInvalid, "Failed to initialize server logger", err)
	}

	ServerLogger = logger
}

// Current returns the server logger when the proxy is running, otherwise the
// CLI logger. It is nil before either is initialized.
func Current() *logging.Logger {
	if ServerLogger != nil {
		return ServerLogger
	}
	return CLILogger
}

func loggerConfig(serviceName, logLevel, profile string, staticFields map[string]any) *logging.LoggerConfig {
	if normalizeProfile(profile) == ProfileStructured {
		return &logging.LoggerConfig{
			Profile:      logging.ProfileStructured,
			DefaultLevel: parseLogLevel(logLevel),
			Service:      serviceName,
			Environment:  "production",
			StaticFields: staticFields,
			Middleware: []logging.MiddlewareConfig{
				{
					Name:    "correlation",
					Enabled: true,
					Order:   100,
					Config:  make(map[string]any),
				},
			},
			Sinks: []logging.SinkConfig{
				{
					Type:   "console",
					Format: "json",
					Console: &logging.ConsoleSinkConfig{
						Stream:   "stderr",
						Colorize: false,
					},
				},
			},
			EnableCaller:     true,
			EnableStacktrace: true,
		}
	}

	return &logging.LoggerConfig{
		Profile:      logging.ProfileSimple,
		DefaultLevel: parseLogLevel(logLevel),
		Service:      serviceName,
		Environment:  "cli",
		StaticFields: staticFields,
		Sinks: []logging.SinkConfig{
			{
				Type:   "console",
				Format: "console",
				Console: &logging.ConsoleSinkConfig{
					Stream:   "stderr",
					Colorize: false,
				},
			},
		},
	}
}

func normalizeProfile(profile string) string {
	if strings.EqualFold(strings.TrimSpace(profile), ProfileStructured) {
		return ProfileStructured
	}
	return ProfileSimple
}

// parseLogLevel converts string log level to logging severity string
func parseLogLevel(levelStr string) string {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "trace":
		return "TRACE"
	case "debug":
		return "DEBUG"
	case "info":
		return "INFO"
	case "warn", "warning":
		return "WARN"
	case "error":
		return "ERROR"
	default:
		return "INFO"
	}
}

// exitWithCodeStderr exits with a semantic exit code, writing to stderr.
// Used when a logger cannot be built, so nothing else can report the failure.
func exitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: %s (exit code: %d)\n", msg, exitCode)
		}
		os.Exit(int(exitCode))
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)

	os.Exit(info.Code)
}
