package core

import "time"

// Session is a Hi-Rez API session token together with the context it was
// issued for.
type Session struct {
	ID        string    `json:"session_id"`
	DevID     string    `json:"dev_id"`
	BaseURL   string    `json:"base_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Age reports how long ago the session was created.
func (s *Session) Age(now time.Time) time.Duration {
	if s == nil || s.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(s.CreatedAt)
}

// Expired reports whether the session has outlived ttl. A non-positive ttl
// never expires.
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if s == nil || s.ID == "" {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return s.Age(now) >= ttl
}

// SessionKey identifies the session slot for a developer id on one API
// deployment.
func SessionKey(devID, baseURL string) string {
	return devID + "@" + baseURL
}
