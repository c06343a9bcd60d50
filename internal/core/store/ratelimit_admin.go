package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charybdis/charybdis/internal/core"
)

// RateLimitEntry is one endpoint's ledger.
type RateLimitEntry struct {
	Endpoint string              `json:"endpoint"`
	State    core.RateLimitState `json:"state"`
}

// NextSlot is the earliest time a new call to the endpoint may be scheduled.
func (e RateLimitEntry) NextSlot() time.Time {
	return e.State.LastScheduled.Add(e.State.Delay)
}

// Ahead reports how far the ledger has been reserved past now.
func (e RateLimitEntry) Ahead(now time.Time) time.Duration {
	if ahead := e.State.LastScheduled.Sub(now); ahead > 0 {
		return ahead
	}
	return 0
}

// RateLimitQuery selects ledger rows for the admin commands. Endpoint and
// Prefix are exclusive; IdleFor narrows any selection to rows whose last
// scheduled call is at least that old.
type RateLimitQuery struct {
	All      bool
	Endpoint string
	Prefix   string
	IdleFor  time.Duration
	Now      time.Time
}

func (q RateLimitQuery) Validate() error {
	endpoint := strings.TrimSpace(q.Endpoint)
	prefix := strings.TrimSpace(q.Prefix)
	switch {
	case endpoint != "" && prefix != "":
		return errors.New("--endpoint and --prefix are mutually exclusive")
	case q.IdleFor < 0:
		return errors.New("--idle must not be negative")
	case q.All, endpoint != "", prefix != "", q.IdleFor > 0:
		return nil
	default:
		return errors.New("must specify --all, --endpoint, --prefix or --idle")
	}
}

func (q RateLimitQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	if endpoint := strings.TrimSpace(q.Endpoint); endpoint != "" {
		conds = append(conds, "endpoint = ?")
		args = append(args, endpoint)
	}
	if prefix := strings.TrimSpace(q.Prefix); prefix != "" {
		conds = append(conds, `endpoint LIKE ? ESCAPE '\'`)
		args = append(args, escapeLike(prefix)+"%")
	}
	if q.IdleFor > 0 {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		conds = append(conds, "last_scheduled <= ?")
		args = append(args, now.Add(-q.IdleFor).UnixNano())
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args, nil
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

// ListRateLimits returns the matching ledgers ordered by endpoint.
func (s *Store) ListRateLimits(ctx context.Context, q RateLimitQuery) ([]RateLimitEntry, error) {
	ctx, where, args, err := s.prepareAdmin(ctx, q)
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT endpoint, last_scheduled, delay_ms, updated_at
		FROM rate_limits
		%s
		ORDER BY endpoint
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []RateLimitEntry{}
	for rows.Next() {
		var (
			entry                             RateLimitEntry
			lastScheduled, delayMS, updatedAt int64
		)
		if err := rows.Scan(&entry.Endpoint, &lastScheduled, &delayMS, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limits: %w", err)
		}
		entry.State = core.RateLimitState{
			LastScheduled: time.Unix(0, lastScheduled).UTC(),
			Delay:         time.Duration(delayMS) * time.Millisecond,
			UpdatedAt:     time.Unix(0, updatedAt).UTC(),
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rate limits: %w", err)
	}
	return entries, nil
}

// CountRateLimits counts the matching ledgers.
func (s *Store) CountRateLimits(ctx context.Context, q RateLimitQuery) (int, error) {
	ctx, where, args, err := s.prepareAdmin(ctx, q)
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM rate_limits "+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rate limits: %w", err)
	}
	return count, nil
}

// ResetRateLimits deletes the matching ledgers and reports how many went.
func (s *Store) ResetRateLimits(ctx context.Context, q RateLimitQuery) (int64, error) {
	ctx, where, args, err := s.prepareAdmin(ctx, q)
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, "DELETE FROM rate_limits "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset rate limits: %w", err)
	}
	return affected, nil
}

func (s *Store) prepareAdmin(ctx context.Context, q RateLimitQuery) (context.Context, string, []any, error) {
	if s == nil || s.DB == nil {
		return nil, "", nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	where, args, err := q.whereClause()
	return ctx, where, args, err
}
