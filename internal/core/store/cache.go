package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CachedResponse is a stored API response body.
type CachedResponse struct {
	Method    string
	Body      json.RawMessage
	FetchedAt time.Time
	ExpiresAt time.Time
}

// ResponseCacheKey identifies a call by deployment, method and arguments.
func ResponseCacheKey(baseURL, method string, args []string) string {
	parts := append([]string{strings.TrimRight(baseURL, "/"), strings.ToLower(strings.TrimSpace(method))}, args...)
	return strings.Join(parts, "\x1f")
}

// GetCachedResponse returns a cached response if it is still valid.
func (s *Store) GetCachedResponse(ctx context.Context, key string) (*CachedResponse, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if strings.TrimSpace(key) == "" {
		return nil, errors.New("cache key is required")
	}

	var (
		method    string
		body      string
		fetchedAt int64
		expiresAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT method, body, fetched_at, expires_at
		FROM response_cache
		WHERE cache_key = ? AND expires_at > ?
	`, key, time.Now().UTC().Unix())

	if err := row.Scan(&method, &body, &fetchedAt, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch cached response: %w", err)
	}

	if !json.Valid([]byte(body)) {
		return nil, fmt.Errorf("decode cached response: invalid JSON for %s", method)
	}

	return &CachedResponse{
		Method:    method,
		Body:      json.RawMessage(body),
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
		ExpiresAt: time.Unix(expiresAt, 0).UTC(),
	}, nil
}

// SetCachedResponse stores a response with a TTL. A non-positive TTL is a
// no-op.
func (s *Store) SetCachedResponse(ctx context.Context, key, method string, body json.RawMessage, ttl time.Duration) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	if ttl <= 0 || len(body) == 0 {
		return nil
	}

	if strings.TrimSpace(key) == "" {
		return errors.New("cache key is required")
	}

	now := time.Now().UTC()
	expires := now.Add(ttl)

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO response_cache (cache_key, method, body, fetched_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			method = excluded.method,
			body = excluded.body,
			fetched_at = excluded.fetched_at,
			expires_at = excluded.expires_at
	`, key, method, string(body), now.Unix(), expires.Unix())
	if err != nil {
		return fmt.Errorf("store cached response: %w", err)
	}

	return nil
}

// PurgeExpiredResponses deletes expired cache rows.
func (s *Store) PurgeExpiredResponses(ctx context.Context) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM response_cache WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("purge cached responses: %w", err)
	}
	return result.RowsAffected()
}
