package hirez

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGoRequiresStart(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server)

	call := client.Go(context.Background(), "getgods", "1")
	_, err := call.Await(context.Background())
	require.ErrorIs(t, err, ErrAsyncNotStarted)
	require.True(t, errors.Is(err, errors.ErrUnsupported))

	ping := client.PingAsync(context.Background())
	<-ping.Done
	require.ErrorIs(t, ping.Error, ErrAsyncNotStarted)

	require.Empty(t, api.recorded())
}

func TestStartTwice(t *testing.T) {
	_, server := newFakeAPI(t)
	client := newTestClient(t, server)

	require.NoError(t, client.Start())
	require.ErrorIs(t, client.Start(), ErrAlreadyStarted)
	require.NoError(t, client.Close())

	// A closed dispatcher can be started again.
	require.NoError(t, client.Start())
	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
}

func TestAsyncCallsShareSessionAndLedger(t *testing.T) {
	api, server := newFakeAPI(t)
	api.sessionDelay = 30 * time.Millisecond
	api.responses["getgods"] = `[{"Name":"Zeus"}]`
	delay := 20 * time.Millisecond
	client := newTestClient(t, server, func(o *Options) {
		o.Delay = delay
		o.Workers = 8
	})
	require.NoError(t, client.Start())
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	calls := make([]*Call, 0, 6)
	for i := 0; i < 6; i++ {
		calls = append(calls, client.Go(ctx, "getgods", "1"))
	}
	for _, call := range calls {
		raw, err := call.Await(ctx)
		require.NoError(t, err)
		require.JSONEq(t, `[{"Name":"Zeus"}]`, string(raw))
	}

	require.Equal(t, 1, api.sessionCount())

	recorded := api.recorded()
	require.Len(t, recorded, 7)
	tolerance := 5 * time.Millisecond
	first, last := recorded[0].At, recorded[0].At
	for _, call := range recorded {
		if call.At.Before(first) {
			first = call.At
		}
		if call.At.After(last) {
			last = call.At
		}
	}
	require.GreaterOrEqual(t, last.Sub(first), 6*delay-tolerance)
}

func TestMixedBlockingAndAsyncFirstCalls(t *testing.T) {
	api, server := newFakeAPI(t)
	api.sessionDelay = 30 * time.Millisecond
	client := newTestClient(t, server)
	require.NoError(t, client.Start())
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	async := client.Go(ctx, "getitems", "1")
	_, err := client.CallMethod(ctx, "getgods", "1")
	require.NoError(t, err)
	_, err = async.Await(ctx)
	require.NoError(t, err)

	require.Equal(t, 1, api.sessionCount())
}

func TestPingAsync(t *testing.T) {
	api, server := newFakeAPI(t)
	client := newTestClient(t, server)
	require.NoError(t, client.Start())

	call := client.PingAsync(context.Background())
	_, err := call.Await(context.Background())
	require.NoError(t, err)
	require.Contains(t, call.Text(), "Ping successful")
	require.NoError(t, client.Close())
	require.Zero(t, api.sessionCount())
}

func TestCloseWaitsForInFlightCalls(t *testing.T) {
	_, server := newFakeAPI(t)
	client := newTestClient(t, server, func(o *Options) { o.Delay = 20 * time.Millisecond })
	require.NoError(t, client.Start())

	ctx := context.Background()
	calls := []*Call{client.Go(ctx, "getgods", "1"), client.Go(ctx, "getitems", "1")}
	require.NoError(t, client.Close())

	for _, call := range calls {
		select {
		case done := <-call.Done:
			require.NoError(t, done.Error)
		default:
			t.Fatalf("call %s still running after Close", call.Method)
		}
	}
}
