package config

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// DefaultSettings returns the built-in defaults as a nested map keyed like
// the config file.
func DefaultSettings() map[string]any {
	v := viper.New()
	SetDefaults(v)
	return v.AllSettings()
}

// Settings converts cfg back into a nested map keyed like the config file.
// Durations are rendered as strings so the result round-trips through Load.
func Settings(cfg *Config) map[string]any {
	if cfg == nil {
		return nil
	}
	out := map[string]any{}
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil
	}
	return stringifyDurations(out)
}

func stringifyDurations(m map[string]any) map[string]any {
	for key, value := range m {
		switch v := value.(type) {
		case time.Duration:
			m[key] = v.String()
		case map[string]any:
			m[key] = stringifyDurations(v)
		}
	}
	return m
}
