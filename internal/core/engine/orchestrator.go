package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/charybdis/charybdis/internal/core"
)

// Orchestrator runs a batch of API calls concurrently and collects the
// results in request order.
type Orchestrator struct {
	Caller Caller

	// Concurrency bounds in-flight calls. Zero means one per request.
	Concurrency int

	// FailFast aborts the batch on the first failed call. Otherwise failures
	// are recorded on the result and the batch continues.
	FailFast bool

	Clock func() time.Time
}

// Caller issues a single API call.
type Caller interface {
	CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error)
}

// Run executes requests. Requests with an empty method are rejected before
// any call is made.
func (o *Orchestrator) Run(ctx context.Context, requests []core.CallRequest) ([]*core.CallResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if o == nil || o.Caller == nil {
		return nil, fmt.Errorf("caller is required")
	}

	for i, req := range requests {
		if strings.TrimSpace(req.Method) == "" {
			return nil, fmt.Errorf("request %d: method is required", i+1)
		}
	}

	results := make([]*core.CallResult, len(requests))
	group, groupCtx := errgroup.WithContext(ctx)
	if o.Concurrency > 0 {
		group.SetLimit(o.Concurrency)
	}

	for i, req := range requests {
		group.Go(func() error {
			result := o.runCall(groupCtx, req)
			results[i] = result
			if o.FailFast && !result.OK() {
				return fmt.Errorf("%s: %s", req.Method, result.Error)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (o *Orchestrator) runCall(ctx context.Context, req core.CallRequest) *core.CallResult {
	result := &core.CallResult{
		Request:     req,
		RequestedAt: o.now(),
	}

	body, err := o.Caller.CallMethod(ctx, strings.TrimSpace(req.Method), req.Args...)
	result.ResolvedAt = o.now()
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Body = body
	return result
}

func (o *Orchestrator) now() time.Time {
	if o != nil && o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}
