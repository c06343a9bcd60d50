package cmd

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/config"
	"github.com/charybdis/charybdis/internal/core/hirez"
	"github.com/charybdis/charybdis/internal/core/store"
	"github.com/charybdis/charybdis/internal/metrics"
	"github.com/charybdis/charybdis/internal/observability"
)

// apiClient bundles a configured client with the store backing it.
type apiClient struct {
	*hirez.Client
	cfg   *config.Config
	store *store.Store
}

// Close releases the client's workers and the store.
func (c *apiClient) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Client != nil {
		errs = append(errs, c.Client.Close())
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	return errors.Join(errs...)
}

// newAPIClient builds a client from cfg. The store is opened when either
// persistence option is enabled; a store that fails to open is logged and
// skipped.
func newAPIClient(ctx context.Context, cfg *config.Config) (*apiClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts, err := cfg.API.ClientOptions()
	if err != nil {
		return nil, err
	}
	opts.Observer = metrics.ClientObserver{}
	if logger := clientLogger(); logger != nil {
		opts.Logger = logger
	}

	bundle := &apiClient{cfg: cfg}
	if cfg.API.PersistSessions || cfg.API.PersistRateLimit {
		db, err := openStore(ctx, cfg)
		if err != nil {
			if observability.CLILogger != nil {
				observability.CLILogger.Warn("Store unavailable; continuing without persistence", zap.Error(err))
			}
		} else {
			bundle.store = db
			if cfg.API.PersistSessions {
				opts.Sessions = db
			}
			if cfg.API.PersistRateLimit {
				opts.RateLimitStore = db
			}
		}
	}

	client, err := hirez.New(opts)
	if err != nil {
		_ = bundle.Close()
		return nil, err
	}
	bundle.Client = client
	return bundle, nil
}

// clientLogger returns the logger the client should use, if any. A nil
// *logging.Logger must not be stored in the interface.
func clientLogger() hirez.Logger {
	if logger := observability.Current(); logger != nil {
		return logger
	}
	return nil
}
