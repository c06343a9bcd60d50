package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/charybdis/charybdis/internal/errors"
	"github.com/charybdis/charybdis/internal/observability"
)

var healthSkipUpstream bool

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long: `Verify the configuration, the store and that the API answers ping.
Ping is unsigned, so this does not create a session or spend the daily request
budget.`,
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		ctx := commandContext(cmd)
		log.Info("Running health check...")

		// Check 1: Version info available
		if versionInfo.Version == "" {
			log.Error("❌ FAIL: Version information missing")
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewConfigInvalidError("Version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		// Check 2: Configuration loads and has credentials
		cfg, err := loadConfig(cmd)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration failed to load", errwrap.WrapConfigInvalid(ctx, err, "config load failed"))
			return
		}
		if err := cfg.Validate(); err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Configuration is invalid", errwrap.FromClientError(ctx, err))
			return
		}
		log.Info("✅ Configuration valid")

		// Check 3: Store opens and migrates
		if cfg.API.PersistSessions || cfg.API.PersistRateLimit {
			db, err := openStore(ctx, cfg)
			if err != nil {
				ExitWithCode(log, foundry.ExitFileNotFound, "Store unavailable", errwrap.WrapDatabaseError(ctx, err, "store open failed"))
				return
			}
			_ = db.Close()
			log.Info("✅ Store ready", zap.String("path", cfg.Store.Path))
		} else {
			log.Info("➖ Store disabled")
		}

		// Check 4: Upstream answers ping
		if healthSkipUpstream {
			log.Info("➖ Upstream check skipped")
		} else {
			cfg.API.PersistSessions = false
			cfg.API.PersistRateLimit = false
			client, err := newAPIClient(ctx, cfg)
			if err != nil {
				ExitWithCode(log, foundry.ExitConfigInvalid, "Client construction failed", errwrap.FromClientError(ctx, err))
				return
			}
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			text, err := client.Ping(pingCtx)
			cancel()
			_ = client.Close()
			if err != nil {
				ExitWithCode(log, foundry.ExitExternalServiceUnavailable, "Upstream ping failed", errwrap.FromClientError(ctx, err))
				return
			}
			log.Info("✅ Upstream reachable", zap.String("ping", text))
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().BoolVar(&healthSkipUpstream, "offline", false, "skip the upstream ping")
}
