package cmd

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/config"
	"github.com/charybdis/charybdis/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()
		log := observability.CLILogger

		log.Info("=== Charybdis Environment Information ===")
		log.Info("")

		log.Info("Application:")
		log.Info("  Name:       " + config.AppName)
		log.Info("  Version:    " + versionInfo.Version)
		log.Info("  Commit:     " + versionInfo.Commit)
		log.Info("  Built:      " + versionInfo.BuildDate)
		log.Info("")

		log.Info("SSOT:")
		log.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		log.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		log.Info("")

		log.Info("Runtime:")
		log.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		log.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		log.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		log.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		log.Info("")

		cfg, err := loadConfig(cmd)
		if err != nil {
			log.Warn("Config load failed", zap.Error(err))
			return
		}

		baseURL, err := cfg.API.ResolveBaseURL()
		if err != nil {
			baseURL = "(invalid: " + err.Error() + ")"
		}

		log.Info("API:")
		log.Info("  Platform:       "+cfg.API.Platform, zap.String("platform", cfg.API.Platform))
		log.Info("  Base URL:       "+baseURL, zap.String("base_url", baseURL))
		log.Info("  Dev ID:         "+setOrNot(cfg.API.DevID != ""), zap.Bool("dev_id_set", cfg.API.DevID != ""))
		log.Info("  Auth Key:       "+setOrNot(cfg.API.AuthKey != ""), zap.Bool("auth_key_set", cfg.API.AuthKey != ""))
		log.Info("  Delay:          "+cfg.API.Delay.String(), zap.Duration("delay", cfg.API.Delay))
		log.Info("  Session TTL:    "+cfg.API.SessionTTL.String(), zap.Duration("session_ttl", cfg.API.SessionTTL))
		log.Info(fmt.Sprintf("  Workers:        %d", cfg.API.Workers), zap.Int("workers", cfg.API.Workers))
		log.Info(fmt.Sprintf("  Verify TLS:     %t", cfg.API.Verify), zap.Bool("verify", cfg.API.Verify))
		log.Info("")

		log.Info("Configuration:")
		log.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		log.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		log.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		log.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		log.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			log.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			log.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		log.Info(fmt.Sprintf("  Persist:        sessions=%t rate_limit=%t", cfg.API.PersistSessions, cfg.API.PersistRateLimit))
		log.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		log.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		log.Info("")

		log.Info("Environment:")
		for _, name := range config.EnvVarNames() {
			if strings.Contains(name, "KEY") || strings.Contains(name, "TOKEN") {
				continue
			}
			if value, ok := lookupEnv(name); ok {
				log.Info("  " + name + "=" + value)
			}
		}
		log.Info("")

		log.Info("=== End Environment Information ===")
	},
}

func setOrNot(set bool) string {
	if set {
		return "(set)"
	}
	return "(not set)"
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}

func lookupEnv(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}
