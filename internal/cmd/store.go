package cmd

import (
	"context"
	"fmt"

	"github.com/charybdis/charybdis/internal/config"
	"github.com/charybdis/charybdis/internal/core/store"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}

	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// openConfiguredStore loads the configuration and opens its store.
func openConfiguredStore(ctx context.Context) (*store.Store, *config.Config, error) {
	cfg, err := loadConfig(rootCmd)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}
