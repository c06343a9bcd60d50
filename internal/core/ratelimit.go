package core

import "time"

// RateLimitState captures the spacing ledger for one endpoint.
type RateLimitState struct {
	LastScheduled time.Time     `json:"last_scheduled"`
	Delay         time.Duration `json:"delay"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
