package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/config"
	"github.com/charybdis/charybdis/internal/observability"
)

var (
	cfgFile     string
	verbose     bool
	platform    string
	baseURL     string
	delay       time.Duration
	insecureTLS bool
	noStore     bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Client and proxy for the Hi-Rez Smite and Paladins APIs",
	Long: `charybdis signs, rate limits and sends calls to the Hi-Rez Smite and
Paladins public APIs. Sessions are created lazily and reused; the spacing
ledger and session tokens can be persisted so separate invocations share them.

Credentials come from the config file, CHARYBDIS_DEV_ID/CHARYBDIS_AUTH_KEY or
SMITE_DEV_ID/SMITE_AUTH_KEY.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Disable global telemetry early so CLI runs do not emit metrics to
	// stdout. Server mode initializes proper telemetry later.
	disabledConfig := &telemetry.Config{Enabled: false}
	if sys, err := telemetry.NewSystem(disabledConfig); err == nil {
		telemetry.SetGlobalSystem(sys)
	}

	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/"+config.AppName+"/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
	flags.StringVar(&platform, "platform", "", "API deployment: smite-pc, smite-xbox, smite-ps4, paladins-pc, paladins-xbox, paladins-ps4")
	flags.StringVar(&baseURL, "base-url", "", "override the API base URL")
	flags.DurationVar(&delay, "delay", 0, "minimum spacing between signed calls (default from config, 100ms)")
	flags.BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification")
	flags.BoolVar(&noStore, "no-store", false, "do not persist sessions or the rate limit ledger")
}

// initConfig initializes the CLI logger before any command runs.
func initConfig() {
	observability.InitCLILogger(config.AppName, verbose)
}

// loadConfig layers the global flags over the config file and environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	ctx := commandContext(cmd)

	api := map[string]any{}
	flags := rootCmd.PersistentFlags()
	if flags.Changed("platform") {
		api["platform"] = platform
	}
	if flags.Changed("base-url") {
		api["base_url"] = baseURL
	}
	if flags.Changed("delay") {
		if delay < 0 {
			return nil, errors.New("--delay must not be negative")
		}
		api["delay"] = delay
	}
	if flags.Changed("insecure") {
		api["verify"] = !insecureTLS
	}
	if noStore {
		api["persist_sessions"] = false
		api["persist_rate_limit"] = false
	}

	var overrides []map[string]any
	if len(api) > 0 {
		overrides = append(overrides, map[string]any{"api": api})
	}

	cfg, err := config.Load(ctx, cfgFile, overrides...)
	if err != nil {
		return nil, err
	}
	if !verbose {
		if err := observability.ConfigureCLILogger(config.AppName, cfg.Logging.Level, cfg.Logging.Profile); err != nil {
			return nil, err
		}
	}
	if observability.CLILogger != nil && verbose {
		observability.CLILogger.Debug("Configuration loaded",
			zap.String("platform", cfg.API.Platform),
			zap.Duration("delay", cfg.API.Delay),
			zap.String("store", cfg.Store.Path))
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if cmd != nil && cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
