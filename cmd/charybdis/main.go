package main

import (
	"github.com/charybdis/charybdis/internal/cmd"
	"github.com/charybdis/charybdis/internal/server/handlers"
)

// Version information set via ldflags during build
// Example: go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-10-16"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Set version info for commands to access
	cmd.SetVersionInfo(version, commit, buildDate)

	// Set version info for HTTP handlers
	handlers.SetVersionInfo(version, commit, buildDate)

	// Execute root command; failures exit with a code classified from the error
	if err := cmd.Execute(); err != nil {
		cmd.Exit(err)
	}
}
