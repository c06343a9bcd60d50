package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type migration struct {
	version    int
	statements []string
}

// migrations are applied in order. Never edit one that has shipped; append a
// new version instead.
var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS sessions (
				session_key TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				dev_id TEXT NOT NULL,
				base_url TEXT NOT NULL,
				created_at INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS rate_limits (
				endpoint TEXT PRIMARY KEY,
				last_scheduled INTEGER NOT NULL,
				delay_ms INTEGER NOT NULL DEFAULT 0,
				updated_at INTEGER NOT NULL
			);`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS response_cache (
				cache_key TEXT PRIMARY KEY,
				method TEXT NOT NULL,
				body TEXT NOT NULL,
				fetched_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL
			);`,
			`CREATE INDEX IF NOT EXISTS idx_response_cache_expires ON response_cache(expires_at);`,
		},
	},
}

// Migrate applies every migration newer than the recorded schema version.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at INTEGER NOT NULL
	);`); err != nil {
		return fmt.Errorf("store migration failed: %w", err)
	}

	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := s.apply(ctx, m); err != nil {
			return fmt.Errorf("store migration %d failed: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration, or 0 for a new database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.DB.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) apply(ctx context.Context, m migration) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		m.version, time.Now().Unix()); err != nil {
		return err
	}
	return tx.Commit()
}
