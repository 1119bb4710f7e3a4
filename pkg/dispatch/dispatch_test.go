package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/pool"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestDispatcher(t *testing.T, poolOpts []pool.Option, opts ...Option) *Dispatcher {
	t.Helper()
	poolOpts = append([]pool.Option{pool.WithLogger(quiet), pool.PollTimeout(20 * time.Millisecond)}, poolOpts...)
	p := pool.New(poolOpts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})
	return New(p, append([]Option{WithLogger(quiet)}, opts...)...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func echo(_ context.Context, args ...any) (any, error) {
	return args[0], nil
}

func fail(context.Context, ...any) (any, error) {
	return nil, errors.New("failed on purpose")
}

func TestDispatcher_WaitAllFiresEachCallbackOnce(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(4)})
	ctx := testContext(t)

	var mu sync.Mutex
	calls := map[pool.RequestID]int{}
	record := func(req *pool.Request, _ any) {
		mu.Lock()
		calls[req.ID]++
		mu.Unlock()
	}

	reqs := pool.MakeRequests(echo, [][]any{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}, pool.OnSuccess(record))
	for _, req := range reqs {
		require.NoError(t, d.Submit(ctx, req))
	}

	require.NoError(t, d.WaitAll(ctx))
	assert.Equal(t, 0, d.Pending())

	mu.Lock()
	defer mu.Unlock()
	for _, req := range reqs {
		assert.Equal(t, 1, calls[req.ID])
	}
}

func TestDispatcher_SuccessAndFailureRouting(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(2)})
	ctx := testContext(t)

	var succeeded, failed atomic.Int32
	var failErr error
	a := pool.NewRequest(echo, []any{"a"},
		pool.OnSuccess(func(*pool.Request, any) { succeeded.Add(1) }),
		pool.OnFailure(func(*pool.Request, error) { failed.Add(1) }),
	)
	b := pool.NewRequest(fail, nil,
		pool.OnSuccess(func(*pool.Request, any) { succeeded.Add(1) }),
		pool.OnFailure(func(_ *pool.Request, err error) {
			failErr = err
			failed.Add(1)
		}),
	)

	require.NoError(t, d.Submit(ctx, a))
	require.NoError(t, d.Submit(ctx, b))
	require.NoError(t, d.WaitAll(ctx))

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(1), failed.Load())
	assert.False(t, a.Failed())
	assert.True(t, b.Failed())

	var execErr *core.ExecutionError
	require.ErrorAs(t, failErr, &execErr)
	assert.Equal(t, string(b.ID), execErr.RequestID)
}

func TestDispatcher_DefaultFailureHandler(t *testing.T) {
	var got []*pool.Request
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)},
		WithDefaultFailure(func(req *pool.Request, _ error) { got = append(got, req) }))
	ctx := testContext(t)

	req := pool.NewRequest(fail, nil)
	require.NoError(t, d.Submit(ctx, req))
	require.NoError(t, d.WaitAll(ctx))

	require.Len(t, got, 1)
	assert.Same(t, req, got[0])
}

func TestDispatcher_LogFailureDoesNotPanic(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	require.NoError(t, d.Submit(ctx, pool.NewRequest(func(context.Context, ...any) (any, error) {
		panic("boom")
	}, nil)))
	require.NoError(t, d.WaitAll(ctx))
}

func TestDispatcher_CallbackRunsAfterRemoval(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	pendingInCallback := -1
	req := pool.NewRequest(echo, []any{1}, pool.OnSuccess(func(*pool.Request, any) {
		pendingInCallback = d.Pending()
	}))
	require.NoError(t, d.Submit(ctx, req))
	require.NoError(t, d.WaitAll(ctx))

	assert.Equal(t, 0, pendingInCallback)
}

func TestDispatcher_DuplicateIdentityRejected(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	gate := make(chan struct{})
	blocker := func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}

	require.NoError(t, d.Submit(ctx, pool.NewRequest(blocker, nil, pool.WithID("same"))))
	err := d.Submit(ctx, pool.NewRequest(blocker, nil, pool.WithID("same")))
	assert.ErrorIs(t, err, core.ErrDuplicateRequest)
	assert.Equal(t, 1, d.Pending())

	close(gate)
	require.NoError(t, d.WaitAll(ctx))
}

func TestDispatcher_DrainAvailable(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	_, err := d.DrainAvailable()
	assert.ErrorIs(t, err, core.ErrNoResultsPending)

	gate := make(chan struct{})
	require.NoError(t, d.Submit(ctx, pool.NewRequest(func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}, nil)))

	n, err := d.DrainAvailable()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	close(gate)
	require.Eventually(t, func() bool {
		n, err := d.DrainAvailable()
		return err == nil && n == 1
	}, 2*time.Second, 5*time.Millisecond)

	_, err = d.DrainAvailable()
	assert.ErrorIs(t, err, core.ErrNoResultsPending)
}

func TestDispatcher_DrainBlocking(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(2)})
	ctx := testContext(t)

	_, err := d.DrainBlocking(ctx)
	assert.ErrorIs(t, err, core.ErrNoResultsPending)

	require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{1})))
	n, err := d.DrainBlocking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_DrainBlockingRespectsContext(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})

	gate := make(chan struct{})
	defer close(gate)
	require.NoError(t, d.Submit(context.Background(), pool.NewRequest(func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := d.DrainBlocking(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, d.Pending())
}

func TestDispatcher_NoWorkersAvailable(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{1})))
	require.NoError(t, d.Pool().Shutdown(ctx))

	// consume the result behind the dispatcher's back
	_, ok := d.Pool().TryNext()
	require.True(t, ok)

	_, err := d.DrainBlocking(ctx)
	assert.ErrorIs(t, err, core.ErrNoWorkersAvailable)
	assert.ErrorIs(t, d.WaitAll(ctx), core.ErrNoWorkersAvailable)
}

func TestDispatcher_SubmitFailureWithdraws(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	require.NoError(t, d.Pool().Shutdown(ctx))

	err := d.Submit(ctx, pool.NewRequest(echo, []any{1}))
	assert.ErrorIs(t, err, core.ErrPoolClosed)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_WithdrawalWakesBlockedDrain(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1), pool.RequestCapacity(1)})
	ctx := testContext(t)

	gate := make(chan struct{})
	defer close(gate)
	blocker := func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}

	// occupy the worker and fill the queue without going through the dispatcher
	require.NoError(t, d.Pool().Submit(ctx, pool.NewRequest(blocker, nil)))
	require.Eventually(t, func() bool { return d.Pool().Stats().InFlight == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, d.Pool().Submit(ctx, pool.NewRequest(blocker, nil)))

	submitErr := make(chan error, 1)
	go func() {
		submitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()
		submitErr <- d.Submit(submitCtx, pool.NewRequest(echo, []any{1}))
	}()
	require.Eventually(t, func() bool { return d.Pending() == 1 }, time.Second, time.Millisecond)

	waitErr := make(chan error, 1)
	go func() { waitErr <- d.WaitAll(ctx) }()

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitAll did not return after the registration was withdrawn")
	}
	assert.ErrorIs(t, <-submitErr, core.ErrQueueSaturated)
}

func TestDispatcher_UnknownResultDropped(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	stray := pool.NewRequest(echo, []any{"stray"})
	require.NoError(t, d.Pool().Submit(ctx, stray))
	require.Eventually(t, func() bool { return d.Pool().Stats().Succeeded == 1 }, time.Second, 5*time.Millisecond)

	var got any
	require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{"known"}, pool.OnSuccess(func(_ *pool.Request, v any) {
		got = v
	}))))

	n, err := d.DrainBlocking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "known", got)
}

func TestDispatcher_CallbackPanicRecovered(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{1}, pool.OnSuccess(func(*pool.Request, any) {
		panic("callback")
	}))))

	n, err := d.DrainBlocking(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, d.Pending())
}

func TestDispatcher_Run(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(3)})
	ctx, cancel := context.WithCancel(testContext(t))

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	delivered := make(chan any, 10)
	onSuccess := pool.OnSuccess(func(_ *pool.Request, v any) { delivered <- v })

	// submit after Run is idle so it has to wake up
	time.Sleep(20 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{i}, onSuccess)))
	}

	seen := map[any]bool{}
	for i := 0; i < 5; i++ {
		select {
		case v := <-delivered:
			seen[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("result not delivered")
		}
	}
	assert.Len(t, seen, 5)

	cancel()
	select {
	case err := <-runErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestDispatcher_SubmitNil(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	assert.Error(t, d.Submit(context.Background(), nil))
}

func TestDispatcher_DrainAvailableWhileRunWaits(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx, cancel := context.WithCancel(testContext(t))

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	gate := make(chan struct{})
	require.NoError(t, d.Submit(ctx, pool.NewRequest(func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}, nil)))
	// let Run settle into its wait for the result
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	n, err := d.DrainAvailable()
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Less(t, elapsed, 200*time.Millisecond)

	// a second blocking drain honours its own deadline
	short, cancelShort := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancelShort()
	start = time.Now()
	_, err = d.DrainBlocking(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(gate)
	require.Eventually(t, func() bool { return d.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-runErr)
}

func TestDispatcher_ConcurrentWaitAllReturnTogether(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1)})
	ctx := testContext(t)

	gate := make(chan struct{})
	require.NoError(t, d.Submit(ctx, pool.NewRequest(func(context.Context, ...any) (any, error) {
		<-gate
		return nil, nil
	}, nil)))

	const waiters = 3
	done := make(chan error, waiters)
	for w := 0; w < waiters; w++ {
		go func() { done <- d.WaitAll(ctx) }()
	}
	time.Sleep(20 * time.Millisecond)
	close(gate)

	for w := 0; w < waiters; w++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("a waiter stayed blocked after the last result was delivered")
		}
	}
}

func TestDispatcher_ConcurrentDrainsDeliverOnce(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(4)})
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()

	const total = 200
	var (
		mu        sync.Mutex
		calls     = map[pool.RequestID]int{}
		delivered atomic.Int32
	)
	record := func(req *pool.Request) {
		mu.Lock()
		calls[req.ID]++
		mu.Unlock()
		delivered.Add(1)
	}
	onSuccess := pool.OnSuccess(func(req *pool.Request, _ any) { record(req) })
	onFailure := pool.OnFailure(func(req *pool.Request, _ error) { record(req) })

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			for delivered.Load() < total {
				if i%2 == 0 {
					_, _ = d.DrainAvailable()
					time.Sleep(time.Millisecond)
					continue
				}
				short, cancelShort := context.WithTimeout(ctx, 10*time.Millisecond)
				_, _ = d.DrainBlocking(short)
				cancelShort()
			}
		}()
	}

	reqs := make([]*pool.Request, 0, total)
	for i := 0; i < total; i++ {
		fn := echo
		if i%7 == 0 {
			fn = fail
		}
		req := pool.NewRequest(fn, []any{i}, onSuccess, onFailure)
		reqs = append(reqs, req)
		require.NoError(t, d.Submit(ctx, req))
	}

	require.NoError(t, d.WaitAll(ctx))
	wg.Wait()
	cancel()
	assert.NoError(t, <-runErr)

	assert.EqualValues(t, total, delivered.Load())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, total)
	for _, req := range reqs {
		assert.Equal(t, 1, calls[req.ID], "request %s", req.ID)
	}
}

func TestDispatcher_ShutdownWithBoundedResults(t *testing.T) {
	d := newTestDispatcher(t, []pool.Option{pool.Workers(1), pool.ResultCapacity(1)})
	ctx := testContext(t)

	var delivered atomic.Int32
	onSuccess := pool.OnSuccess(func(*pool.Request, any) { delivered.Add(1) })
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Submit(ctx, pool.NewRequest(echo, []any{i}, onSuccess)))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(shutdownCtx))

	assert.EqualValues(t, 3, delivered.Load())
	assert.Equal(t, 0, d.Pending())
	assert.Equal(t, 0, d.Pool().LiveWorkers())
}
