// Package config provides centralized configuration management for Charybdis.
// It layers built-in defaults, an optional YAML config file, environment
// variables and runtime overrides using viper, then decodes the merged
// settings with mapstructure.
package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the config, data and cache directories.
	AppName = "charybdis"

	// EnvPrefix prefixes every environment variable the app reads.
	EnvPrefix = "CHARYBDIS"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// EnvVarSpec maps environment variables onto a config key. Names are checked
// in order; the first non-empty one wins.
type EnvVarSpec struct {
	Key   string
	Names []string
}

// Load builds the configuration. configFile may be empty, in which case the
// XDG config directory and ./config are searched for config.yaml.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, configFile string, runtimeOverrides ...map[string]any) (*Config, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	SetDefaults(v)

	v.SetConfigType("yaml")
	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
	} else {
		if dir := gfconfig.GetAppConfigDir(AppName); strings.TrimSpace(dir) != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath("./config")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if strings.TrimSpace(configFile) != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, spec := range getEnvSpecs() {
		args := append([]string{spec.Key}, spec.Names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", spec.Key, err)
		}
	}

	for _, overrides := range runtimeOverrides {
		for key, value := range flatten("", overrides) {
			v.Set(key, value)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	setConfig(cfg)

	return cfg, nil
}

// SetDefaults registers the built-in defaults on v.
func SetDefaults(v *viper.Viper) {
	// API defaults
	v.SetDefault("api.dev_id", "")
	v.SetDefault("api.auth_key", "")
	v.SetDefault("api.platform", "smite-pc")
	v.SetDefault("api.base_url", "")
	v.SetDefault("api.delay", "100ms")
	v.SetDefault("api.verify", true)
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("api.session_ttl", "14m")
	v.SetDefault("api.workers", 4)
	v.SetDefault("api.persist_sessions", true)
	v.SetDefault("api.persist_rate_limit", true)

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "SIMPLE")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// getEnvSpecs returns the explicit environment bindings. Keys not listed
// here are still reachable as CHARYBDIS_<SECTION>_<KEY>.
func getEnvSpecs() []EnvVarSpec {
	prefix := EnvPrefix + "_"
	return []EnvVarSpec{
		// Credentials, with the variables the upstream API docs suggest as fallback
		{Key: "api.dev_id", Names: []string{prefix + "DEV_ID", "SMITE_DEV_ID"}},
		{Key: "api.auth_key", Names: []string{prefix + "AUTH_KEY", "SMITE_AUTH_KEY"}},
		{Key: "api.platform", Names: []string{prefix + "PLATFORM"}},
		{Key: "api.base_url", Names: []string{prefix + "BASE_URL"}},
		{Key: "api.delay", Names: []string{prefix + "DELAY"}},
		{Key: "api.verify", Names: []string{prefix + "VERIFY"}},
		{Key: "api.timeout", Names: []string{prefix + "TIMEOUT"}},
		{Key: "api.session_ttl", Names: []string{prefix + "SESSION_TTL"}},
		{Key: "api.workers", Names: []string{prefix + "WORKERS"}},

		// Server config
		{Key: "server.host", Names: []string{prefix + "HOST"}},
		{Key: "server.port", Names: []string{prefix + "PORT"}},
		{Key: "server.read_timeout", Names: []string{prefix + "READ_TIMEOUT"}},
		{Key: "server.write_timeout", Names: []string{prefix + "WRITE_TIMEOUT"}},
		{Key: "server.idle_timeout", Names: []string{prefix + "IDLE_TIMEOUT"}},
		{Key: "server.shutdown_timeout", Names: []string{prefix + "SHUTDOWN_TIMEOUT"}},

		// Logging config
		{Key: "logging.level", Names: []string{prefix + "LOG_LEVEL"}},
		{Key: "logging.profile", Names: []string{prefix + "LOG_PROFILE"}},

		// Store config
		{Key: "store.driver", Names: []string{prefix + "DB_DRIVER"}},
		{Key: "store.path", Names: []string{prefix + "DB_PATH"}},
		{Key: "store.url", Names: []string{prefix + "DB_URL"}},
		{Key: "store.auth_token", Names: []string{prefix + "DB_AUTH_TOKEN"}},

		// Metrics config
		{Key: "metrics.enabled", Names: []string{prefix + "METRICS_ENABLED"}},
		{Key: "metrics.port", Names: []string{prefix + "METRICS_PORT"}},

		// Health config
		{Key: "health.enabled", Names: []string{prefix + "HEALTH_ENABLED"}},
	}
}

// EnvVarNames lists every explicitly bound environment variable, sorted.
func EnvVarNames() []string {
	names := []string{}
	for _, spec := range getEnvSpecs() {
		names = append(names, spec.Names...)
	}
	sort.Strings(names)
	return names
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

// flatten turns nested override maps into dotted viper keys.
func flatten(prefix string, values map[string]any) map[string]any {
	out := map[string]any{}
	for key, value := range values {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			for k, v := range flatten(full, nested) {
				out[k] = v
			}
			continue
		}
		out[full] = value
	}
	return out
}
