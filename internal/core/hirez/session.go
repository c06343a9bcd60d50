package hirez

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/charybdis/charybdis/internal/core"
)

const retMsgApproved = "Approved"

type sessionResponse struct {
	RetMsg    string `json:"ret_msg"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// SessionID returns the cached session token, creating one if needed.
// Concurrent first callers share a single createsession call. The shared call
// outlives any one caller's cancellation; each caller stops waiting when its
// own ctx is done.
func (c *Client) SessionID(ctx context.Context) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if session := c.cachedSession(); session != nil {
		return session.ID, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := c.sessionGroup.DoChan(c.sessionKey(), func() (any, error) {
		if session := c.cachedSession(); session != nil {
			return session.ID, nil
		}
		if session := c.loadStoredSession(shared); session != nil {
			return session.ID, nil
		}
		session, _, err := c.createSession(shared)
		if err != nil {
			return "", err
		}
		return session.ID, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// CreateSession unconditionally creates a new session and caches it.
func (c *Client) CreateSession(ctx context.Context) (*core.Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	session, _, err := c.createSession(ctx)
	return session, err
}

// Session returns a copy of the cached session, if any.
func (c *Client) Session() (core.Session, bool) {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.session == nil {
		return core.Session{}, false
	}
	return *c.session, true
}

// ResetSession drops the cached session so the next call creates a new one.
func (c *Client) ResetSession() {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	c.session = nil
}

func (c *Client) createSession(ctx context.Context) (*core.Session, json.RawMessage, error) {
	raw, err := c.invoke(ctx, MethodCreateSession, "", nil)
	if err != nil {
		return nil, nil, err
	}

	var resp sessionResponse
	if err := decodeInto(MethodCreateSession, raw, &resp); err != nil {
		return nil, nil, err
	}
	id := strings.TrimSpace(resp.SessionID)
	if id == "" || (resp.RetMsg != "" && resp.RetMsg != retMsgApproved) {
		return nil, nil, &SessionError{RetMsg: resp.RetMsg}
	}

	session := &core.Session{
		ID:        id,
		DevID:     c.devID,
		BaseURL:   c.baseURL,
		CreatedAt: c.now(),
	}

	c.sessionMu.Lock()
	c.session = session
	c.sessionLoaded = true
	c.sessionMu.Unlock()

	if c.observer != nil {
		c.observer.ObserveSession(true)
	}
	if c.logger != nil {
		c.logger.Debug("Created Hi-Rez session", zap.String("base_url", c.baseURL))
	}

	if c.store != nil {
		if err := c.store.SaveSession(ctx, c.sessionKey(), session); err != nil && c.logger != nil {
			c.logger.Warn("Failed to persist session", zap.Error(err))
		}
	}

	copied := *session
	return &copied, raw, nil
}

// cachedSession returns the in-memory session while it is still fresh.
func (c *Client) cachedSession() *core.Session {
	c.sessionMu.Lock()
	defer c.sessionMu.Unlock()
	if c.session == nil {
		return nil
	}
	if c.session.Expired(c.now(), c.sessionTTL) {
		c.session = nil
		return nil
	}
	return c.session
}

// loadStoredSession consults the session store once per client.
func (c *Client) loadStoredSession(ctx context.Context) *core.Session {
	c.sessionMu.Lock()
	loaded := c.sessionLoaded
	c.sessionLoaded = true
	c.sessionMu.Unlock()

	if loaded || c.store == nil {
		return nil
	}

	session, err := c.store.LoadSession(ctx, c.sessionKey())
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("Failed to load persisted session", zap.Error(err))
		}
		return nil
	}
	if session == nil || session.Expired(c.now(), c.sessionTTL) {
		return nil
	}

	c.sessionMu.Lock()
	c.session = session
	c.sessionMu.Unlock()

	if c.observer != nil {
		c.observer.ObserveSession(false)
	}
	return session
}

func (c *Client) sessionKey() string {
	return core.SessionKey(c.devID, c.baseURL)
}
