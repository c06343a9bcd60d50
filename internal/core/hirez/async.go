package hirez

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"
)

// Call is an asynchronous API call. Done receives the call once Result and
// Error are set.
type Call struct {
	Method string
	Args   []string
	Result json.RawMessage
	Error  error
	Done   chan *Call
}

// Await blocks until the call completes or ctx is done. Use either Await or
// Done, not both.
func (call *Call) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-call.Done:
		return call.Result, call.Error
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Text returns the result of a ping call as text.
func (call *Call) Text() string {
	return pingText(call.Result)
}

func (call *Call) finish() {
	call.Done <- call
}

// Start launches the asynchronous dispatcher. Go and PingAsync fail with
// ErrAsyncNotStarted until Start is called.
func (c *Client) Start() error {
	c.asyncMu.Lock()
	defer c.asyncMu.Unlock()

	if c.group != nil {
		return ErrAlreadyStarted
	}
	group := &errgroup.Group{}
	group.SetLimit(c.workers)
	c.group = group
	return nil
}

// Close stops accepting asynchronous calls and waits for in-flight ones.
func (c *Client) Close() error {
	c.asyncMu.Lock()
	group := c.group
	c.group = nil
	c.asyncMu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

// Go calls method asynchronously. It only blocks while Workers calls are
// already running.
func (c *Client) Go(ctx context.Context, method string, args ...string) *Call {
	call := &Call{Method: method, Args: args, Done: make(chan *Call, 1)}
	c.dispatch(call, func() (json.RawMessage, error) {
		return c.CallMethod(ctx, method, args...)
	})
	return call
}

// PingAsync pings asynchronously; read the reply with Call.Text.
func (c *Client) PingAsync(ctx context.Context) *Call {
	call := &Call{Method: MethodPing, Done: make(chan *Call, 1)}
	c.dispatch(call, func() (json.RawMessage, error) {
		body, err := c.ping(ctx)
		return json.RawMessage(body), err
	})
	return call
}

func (c *Client) dispatch(call *Call, fn func() (json.RawMessage, error)) {
	c.asyncMu.RLock()
	defer c.asyncMu.RUnlock()

	if c.group == nil {
		call.Error = ErrAsyncNotStarted
		call.finish()
		return
	}

	c.group.Go(func() error {
		call.Result, call.Error = fn()
		call.finish()
		return nil
	})
}
