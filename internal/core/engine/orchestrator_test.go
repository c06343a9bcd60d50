package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charybdis/charybdis/internal/core"
)

type stubCaller struct {
	mu      sync.Mutex
	seen    []string
	fail    map[string]bool
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (s *stubCaller) CallMethod(ctx context.Context, method string, args ...string) (json.RawMessage, error) {
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		peak := s.maxSeen.Load()
		if n <= peak || s.maxSeen.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.seen = append(s.seen, method)
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fail[method] {
		return nil, errors.New("upstream failure")
	}
	return json.RawMessage(fmt.Sprintf(`{"method":%q,"args":%d}`, method, len(args))), nil
}

func TestOrchestratorRunPreservesOrder(t *testing.T) {
	caller := &stubCaller{fail: map[string]bool{"getplayer": true}}
	orchestrator := &Orchestrator{Caller: caller}

	requests := []core.CallRequest{
		{Method: "getgods", Args: []string{"1"}},
		{Method: "getplayer", Args: []string{"example"}},
		{Method: " getitems ", Args: []string{"1"}},
	}

	results, err := orchestrator.Run(context.Background(), requests)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.True(t, results[0].OK())
	require.JSONEq(t, `{"method":"getgods","args":1}`, string(results[0].Body))

	require.False(t, results[1].OK())
	require.Equal(t, "upstream failure", results[1].Error)
	require.Nil(t, results[1].Body)

	require.True(t, results[2].OK())
	require.Equal(t, " getitems ", results[2].Request.Method)
	require.ElementsMatch(t, []string{"getgods", "getplayer", "getitems"}, caller.seen)
}

func TestOrchestratorRejectsEmptyMethod(t *testing.T) {
	caller := &stubCaller{}
	orchestrator := &Orchestrator{Caller: caller}

	_, err := orchestrator.Run(context.Background(), []core.CallRequest{{Method: "getgods"}, {Method: " "}})
	require.Error(t, err)
	require.Empty(t, caller.seen)

	_, err = (&Orchestrator{}).Run(context.Background(), nil)
	require.Error(t, err)
}

func TestOrchestratorConcurrencyLimit(t *testing.T) {
	caller := &stubCaller{delay: 20 * time.Millisecond}
	orchestrator := &Orchestrator{Caller: caller, Concurrency: 2}

	requests := make([]core.CallRequest, 6)
	for i := range requests {
		requests[i] = core.CallRequest{Method: "getgods"}
	}

	results, err := orchestrator.Run(context.Background(), requests)
	require.NoError(t, err)
	require.Len(t, results, 6)
	require.LessOrEqual(t, caller.maxSeen.Load(), int32(2))
}

func TestOrchestratorFailFast(t *testing.T) {
	caller := &stubCaller{fail: map[string]bool{"getplayer": true}}
	orchestrator := &Orchestrator{Caller: caller, FailFast: true, Concurrency: 1}

	results, err := orchestrator.Run(context.Background(), []core.CallRequest{
		{Method: "getplayer"},
		{Method: "getgods"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "getplayer")
	require.Len(t, results, 2)
	require.False(t, results[0].OK())
}
