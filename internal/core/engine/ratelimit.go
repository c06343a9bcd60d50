package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charybdis/charybdis/internal/core"
)

// DefaultDelay is the minimum spacing between Hi-Rez API calls.
const DefaultDelay = 100 * time.Millisecond

// RateLimiter spaces outbound calls at least Delay apart using a ledger of
// the last scheduled call. Bursts are laid out on a fixed grid rather than
// measured from when the previous request completed.
type RateLimiter struct {
	Delay    time.Duration
	Store    RateLimitStore
	Endpoint string
	Clock    func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// RateLimitStore stores rate limit state.
type RateLimitStore interface {
	GetRateLimit(ctx context.Context, endpoint string) (*core.RateLimitState, error)
	UpdateRateLimit(ctx context.Context, endpoint string, state *core.RateLimitState) error
}

// Reservation is a slot on the ledger.
type Reservation struct {
	RequestedAt time.Time
	ScheduledAt time.Time
}

// Wait returns how long the holder must wait before using the slot.
func (r Reservation) Wait() time.Duration {
	return r.ScheduledAt.Sub(r.RequestedAt)
}

// Reserve books the next slot. The ledger update is atomic with respect to
// other callers of the same limiter. With a Store, the stored ledger is read
// before every reservation so limiters in other processes are honoured.
func (r *RateLimiter) Reserve(ctx context.Context) (Reservation, error) {
	now := r.now()
	if r == nil || r.Delay <= 0 {
		return Reservation{RequestedAt: now, ScheduledAt: now}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	persisted := r.Store != nil && r.endpoint() != ""
	if persisted {
		state, err := r.Store.GetRateLimit(ctx, r.endpoint())
		if err != nil {
			return Reservation{RequestedAt: now, ScheduledAt: now}, err
		}
		if state != nil && state.LastScheduled.After(r.last) {
			r.last = state.LastScheduled
		}
	}

	scheduled := r.advance(now)

	if persisted {
		state := &core.RateLimitState{
			LastScheduled: r.last,
			Delay:         r.Delay,
			UpdatedAt:     now,
		}
		if err := r.Store.UpdateRateLimit(ctx, r.endpoint(), state); err != nil {
			return Reservation{RequestedAt: now, ScheduledAt: scheduled}, err
		}
	}

	return Reservation{RequestedAt: now, ScheduledAt: scheduled}, nil
}

// Wait books the next slot and blocks until it arrives or ctx is done. A
// cancelled wait keeps its slot on the ledger.
func (r *RateLimiter) Wait(ctx context.Context) (Reservation, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := r.Reserve(ctx)
	if err != nil {
		return res, err
	}

	wait := res.Wait()
	if wait <= 0 {
		return res, nil
	}

	sleep := Sleep
	if r != nil && r.Sleep != nil {
		sleep = r.Sleep
	}
	return res, sleep(ctx, wait)
}

// LastScheduled returns the in-memory ledger value.
func (r *RateLimiter) LastScheduled() time.Time {
	if r == nil {
		return time.Time{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// advance must be called with mu held.
func (r *RateLimiter) advance(now time.Time) time.Time {
	if r.last.IsZero() || !r.last.Add(r.Delay).After(now) {
		r.last = now
		return now
	}

	r.last = r.last.Add(r.Delay)
	return r.last
}

func (r *RateLimiter) endpoint() string {
	return strings.TrimSpace(r.Endpoint)
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
