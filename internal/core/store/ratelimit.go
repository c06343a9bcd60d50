package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charybdis/charybdis/internal/core"
)

// GetRateLimit returns the stored spacing ledger for an endpoint.
func (s *Store) GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("endpoint is required")
	}

	var (
		lastScheduled int64
		delayMS       int64
		updatedAt     int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT last_scheduled, delay_ms, updated_at
		FROM rate_limits
		WHERE endpoint = ?
	`, endpoint)

	if err := row.Scan(&lastScheduled, &delayMS, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch rate limit: %w", err)
	}

	return &core.RateLimitState{
		LastScheduled: time.Unix(0, lastScheduled).UTC(),
		Delay:         time.Duration(delayMS) * time.Millisecond,
		UpdatedAt:     time.Unix(0, updatedAt).UTC(),
	}, nil
}

// UpdateRateLimit persists the spacing ledger for an endpoint. The stored
// last_scheduled only moves forward so concurrent writers cannot rewind it.
func (s *Store) UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return errors.New("endpoint is required")
	}
	if state == nil {
		return errors.New("rate limit state is required")
	}

	updatedAt := state.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO rate_limits (endpoint, last_scheduled, delay_ms, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			last_scheduled = MAX(rate_limits.last_scheduled, excluded.last_scheduled),
			delay_ms = excluded.delay_ms,
			updated_at = excluded.updated_at
	`, endpoint, state.LastScheduled.UTC().UnixNano(), state.Delay.Milliseconds(), updatedAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store rate limit: %w", err)
	}

	return nil
}
