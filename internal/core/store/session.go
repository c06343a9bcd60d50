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

// SessionEntry is a persisted session and the key it is stored under.
type SessionEntry struct {
	Key     string       `json:"key"`
	Session core.Session `json:"session"`
}

// LoadSession returns the session stored under key, or nil when none is.
func (s *Store) LoadSession(ctx context.Context, key string) (*core.Session, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("session key is required")
	}

	var (
		session   core.Session
		createdAt int64
	)
	row := s.DB.QueryRowContext(ctx, `
		SELECT session_id, dev_id, base_url, created_at
		FROM sessions
		WHERE session_key = ?
	`, key)
	if err := row.Scan(&session.ID, &session.DevID, &session.BaseURL, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	session.CreatedAt = time.Unix(0, createdAt).UTC()

	return &session, nil
}

// SaveSession stores session under key, replacing any previous token.
func (s *Store) SaveSession(ctx context.Context, key string, session *core.Session) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("session key is required")
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}

	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (session_key, session_id, dev_id, base_url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			session_id = excluded.session_id,
			dev_id = excluded.dev_id,
			base_url = excluded.base_url,
			created_at = excluded.created_at
	`, key, session.ID, session.DevID, session.BaseURL, createdAt.UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// DeleteSession removes the session stored under key. It reports whether a
// row was deleted.
func (s *Store) DeleteSession(ctx context.Context, key string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, strings.TrimSpace(key))
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return affected > 0, nil
}

// ListSessions returns every stored session ordered by key.
func (s *Store) ListSessions(ctx context.Context) ([]SessionEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT session_key, session_id, dev_id, base_url, created_at
		FROM sessions
		ORDER BY session_key
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []SessionEntry{}
	for rows.Next() {
		var (
			entry     SessionEntry
			createdAt int64
		)
		if err := rows.Scan(&entry.Key, &entry.Session.ID, &entry.Session.DevID, &entry.Session.BaseURL, &createdAt); err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		entry.Session.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return entries, nil
}
