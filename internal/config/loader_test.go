package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/core/hirez"
)

// isolate points the XDG directories at temp dirs and clears credentials so
// the developer's own environment does not leak into assertions.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	for _, name := range EnvVarNames() {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		isolate(t)

		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		// Verify API defaults
		assert.Equal(t, "smite-pc", cfg.API.Platform)
		assert.Equal(t, 100*time.Millisecond, cfg.API.Delay)
		assert.True(t, cfg.API.Verify)
		assert.Equal(t, 10*time.Second, cfg.API.Timeout)
		assert.Equal(t, 14*time.Minute, cfg.API.SessionTTL)
		assert.Equal(t, 4, cfg.API.Workers)
		assert.True(t, cfg.API.PersistSessions)

		// Verify server defaults
		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		// Verify store defaults
		assert.Equal(t, "libsql", cfg.Store.Driver)
		expectedStorePath := filepath.Join(gfconfig.GetAppDataDir(AppName), AppName+".db")
		assert.Equal(t, expectedStorePath, cfg.Store.Path)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.True(t, cfg.Health.Enabled)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		isolate(t)

		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
api:
  dev_id: "1004"
  auth_key: "secret"
  platform: paladins-pc
  delay: 250ms
server:
  port: 9000
`), 0o600))

		cfg, err := Load(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "1004", cfg.API.DevID)
		assert.Equal(t, "secret", cfg.API.AuthKey)
		assert.Equal(t, 250*time.Millisecond, cfg.API.Delay)
		assert.Equal(t, 9000, cfg.Server.Port)

		baseURL, err := cfg.API.ResolveBaseURL()
		require.NoError(t, err)
		assert.Equal(t, hirez.PaladinsPCURL, baseURL)
	})

	t.Run("MissingExplicitConfigFile", func(t *testing.T) {
		isolate(t)

		_, err := Load(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
		require.Error(t, err)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		isolate(t)

		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, "", overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Verify non-overridden values remain default
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, "SIMPLE", cfg.Logging.Profile)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		isolate(t)
		t.Setenv("CHARYBDIS_PORT", "3000")
		t.Setenv("CHARYBDIS_LOG_LEVEL", "warn")
		t.Setenv("CHARYBDIS_METRICS_ENABLED", "false")
		t.Setenv("CHARYBDIS_DELAY", "1s")
		t.Setenv("CHARYBDIS_VERIFY", "false")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.False(t, cfg.Metrics.Enabled)
		assert.Equal(t, time.Second, cfg.API.Delay)
		assert.False(t, cfg.API.Verify)
	})

	t.Run("LegacyCredentialEnv", func(t *testing.T) {
		isolate(t)
		t.Setenv("SMITE_DEV_ID", "1004")
		t.Setenv("SMITE_AUTH_KEY", "legacy")

		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "1004", cfg.API.DevID)
		assert.Equal(t, "legacy", cfg.API.AuthKey)

		t.Setenv("CHARYBDIS_AUTH_KEY", "preferred")
		cfg, err = Load(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "preferred", cfg.API.AuthKey)
	})

	t.Run("ConfigPrecedence", func(t *testing.T) {
		isolate(t)
		t.Setenv("CHARYBDIS_PORT", "4000")

		overrides := map[string]any{
			"server": map[string]any{
				"port": 5000,
			},
		}

		cfg, err := Load(ctx, "", overrides)
		require.NoError(t, err)

		// Runtime override should take precedence over env var
		assert.Equal(t, 5000, cfg.Server.Port)
	})
}

func TestGetConfig(t *testing.T) {
	isolate(t)

	cfg, err := Load(context.Background(), "")
	require.NoError(t, err)

	retrieved := GetConfig()
	require.NotNil(t, retrieved)
	assert.Equal(t, cfg.Server.Port, retrieved.Server.Port)
	assert.Equal(t, cfg.Logging.Level, retrieved.Logging.Level)
}

func TestEnvSpecs(t *testing.T) {
	names := map[string]bool{}
	for _, name := range EnvVarNames() {
		names[name] = true
	}

	assert.True(t, names["CHARYBDIS_DEV_ID"], "DEV_ID env var must be mapped")
	assert.True(t, names["CHARYBDIS_AUTH_KEY"], "AUTH_KEY env var must be mapped")
	assert.True(t, names["SMITE_DEV_ID"], "legacy SMITE_DEV_ID must be mapped")
	assert.True(t, names["CHARYBDIS_LOG_LEVEL"], "LOG_LEVEL env var must be mapped")
	assert.True(t, names["CHARYBDIS_PORT"], "PORT env var must be mapped")
	assert.True(t, names["CHARYBDIS_DB_PATH"], "DB_PATH env var must be mapped")
}

func TestValidate(t *testing.T) {
	cfg := &Config{API: APIConfig{Platform: "smite-pc"}}
	require.ErrorIs(t, cfg.Validate(), hirez.ErrMissingCredentials)

	cfg.API.DevID = "1004"
	cfg.API.AuthKey = "secret"
	require.NoError(t, cfg.Validate())

	cfg.API.Platform = "smite-switch"
	require.Error(t, cfg.Validate())

	cfg.API.BaseURL = "http://127.0.0.1:9999/"
	require.NoError(t, cfg.Validate())
	baseURL, err := cfg.API.ResolveBaseURL()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", baseURL)

	cfg.API.Delay = -time.Second
	require.Error(t, cfg.Validate())

	var missing *Config
	require.Error(t, missing.Validate())
}

func TestClientOptions(t *testing.T) {
	api := APIConfig{
		DevID:      " 1004 ",
		AuthKey:    "secret",
		Platform:   "smite-xbox",
		Delay:      time.Second,
		Verify:     false,
		Timeout:    5 * time.Second,
		SessionTTL: time.Minute,
		Workers:    2,
	}

	opts, err := api.ClientOptions()
	require.NoError(t, err)
	assert.Equal(t, "1004", opts.DevID)
	assert.Equal(t, hirez.SmiteXboxURL, opts.BaseURL)
	assert.True(t, opts.InsecureSkipVerify)
	assert.Equal(t, time.Second, opts.Delay)
	assert.Equal(t, 2, opts.Workers)
}
