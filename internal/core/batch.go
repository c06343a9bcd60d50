package core

import (
	"encoding/json"
	"time"
)

// CallRequest is one API call in a batch.
type CallRequest struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Method string   `json:"method" yaml:"method"`
	Args   []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// CallResult is the outcome of a CallRequest. Exactly one of Body and Error
// is set.
type CallResult struct {
	Request     CallRequest     `json:"request" yaml:"request"`
	Body        json.RawMessage `json:"body,omitempty" yaml:"-"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	RequestedAt time.Time       `json:"requested_at" yaml:"requested_at"`
	ResolvedAt  time.Time       `json:"resolved_at" yaml:"resolved_at"`
}

// OK reports whether the call succeeded.
func (r *CallResult) OK() bool {
	return r != nil && r.Error == ""
}

// CallFile is the on-disk batch format.
type CallFile struct {
	Calls []CallRequest `json:"calls" yaml:"calls"`
}
