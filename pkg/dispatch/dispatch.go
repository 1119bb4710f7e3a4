package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/pool"
)

// Dispatcher submits requests to a pool and delivers their results.
type Dispatcher struct {
	pool      *pool.Pool
	logger    *slog.Logger
	onFailure pool.FailureFunc

	mu      sync.Mutex
	pending map[pool.RequestID]*pool.Request
	// emptied is closed and replaced each time the pending set becomes
	// empty, releasing drains still waiting on the pool.
	emptied chan struct{}

	// drainMu serializes delivery. It is never held while waiting on the pool.
	drainMu sync.Mutex

	// submitted wakes an idle Run loop.
	submitted chan struct{}
}

// New creates a dispatcher delivering results from p.
func New(p *pool.Pool, opts ...Option) *Dispatcher {
	var config Config
	for _, opt := range opts {
		opt.ApplyDispatcher(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	d := &Dispatcher{
		pool:      p,
		logger:    config.Logger,
		onFailure: config.OnFailure,
		pending:   make(map[pool.RequestID]*pool.Request),
		emptied:   make(chan struct{}),
		submitted: make(chan struct{}, 1),
	}
	if d.onFailure == nil {
		d.onFailure = d.logFailure
	}
	return d
}

// Pool returns the underlying pool.
func (d *Dispatcher) Pool() *pool.Pool {
	return d.pool
}

// Pending returns the number of requests awaiting delivery.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// remove takes id out of the pending set and reports whether it was there.
// The caller must hold d.mu.
func (d *Dispatcher) remove(id pool.RequestID) bool {
	if _, ok := d.pending[id]; !ok {
		return false
	}
	delete(d.pending, id)
	if len(d.pending) == 0 {
		close(d.emptied)
		d.emptied = make(chan struct{})
	}
	return true
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Submit registers req as pending and hands it to the pool. A request whose
// identity is already pending is rejected with core.ErrDuplicateRequest. If the
// pool refuses the request the registration is withdrawn.
func (d *Dispatcher) Submit(ctx context.Context, req *pool.Request) error {
	if req == nil {
		return errors.New("jobs: nil request")
	}

	d.mu.Lock()
	if _, exists := d.pending[req.ID]; exists {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrDuplicateRequest, req.ID)
	}
	d.pending[req.ID] = req
	d.mu.Unlock()
	notify(d.submitted)

	if err := d.pool.Submit(ctx, req); err != nil {
		d.mu.Lock()
		d.remove(req.ID)
		d.mu.Unlock()
		return err
	}
	return nil
}

// DrainAvailable delivers every result that is ready without waiting for
// work to finish. It returns core.ErrNoResultsPending when nothing is pending.
func (d *Dispatcher) DrainAvailable() (int, error) {
	if d.Pending() == 0 {
		return 0, core.ErrNoResultsPending
	}

	d.drainMu.Lock()
	defer d.drainMu.Unlock()
	return d.drainReady(), nil
}

// drainReady delivers results until none is ready. The caller must hold
// drainMu.
func (d *Dispatcher) drainReady() int {
	n := 0
	for {
		r, ok := d.pool.TryNext()
		if !ok {
			return n
		}
		if d.deliver(r) {
			n++
		}
	}
}

// DrainBlocking waits for at least one result, then delivers it and any other
// ready results. It returns core.ErrNoResultsPending when nothing is pending,
// including when another drain delivers the last result while this one waits,
// and core.ErrNoWorkersAvailable when requests are pending but every worker has
// exited.
func (d *Dispatcher) DrainBlocking(ctx context.Context) (int, error) {
	for {
		d.mu.Lock()
		pending, emptied := len(d.pending), d.emptied
		d.mu.Unlock()
		if pending == 0 {
			return 0, core.ErrNoResultsPending
		}

		r, err := d.next(ctx, emptied)
		switch {
		case err == nil:
			if n, ok := d.deliverWithReady(r); ok {
				return n, nil
			}
		case ctx.Err() != nil:
			return 0, ctx.Err()
		case errors.Is(err, core.ErrNoWorkersAvailable):
			return 0, err
		default:
			// the pending set emptied while waiting, re-check it
		}
	}
}

func (d *Dispatcher) deliverWithReady(r pool.Result) (int, bool) {
	d.drainMu.Lock()
	defer d.drainMu.Unlock()
	if !d.deliver(r) {
		return 0, false
	}
	return 1 + d.drainReady(), true
}

// next waits for a pool result, giving up early when emptied is closed.
func (d *Dispatcher) next(ctx context.Context, emptied <-chan struct{}) (pool.Result, error) {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-emptied:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	return d.pool.Next(waitCtx)
}

// WaitAll drains until nothing is pending.
func (d *Dispatcher) WaitAll(ctx context.Context) error {
	for {
		_, err := d.DrainBlocking(ctx)
		if errors.Is(err, core.ErrNoResultsPending) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Shutdown stops the pool and waits for its workers while delivering results
// as they are published. Workers blocked on a full result queue are freed by
// the drain, so a bounded result queue cannot stall the shutdown.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		if err := d.pool.Shutdown(ctx); err != nil {
			return fmt.Errorf("jobs: stop pool: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := d.WaitAll(ctx); err != nil {
			return fmt.Errorf("jobs: deliver remaining results: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// Run delivers results as they arrive until ctx is done. It returns
// core.ErrNoWorkersAvailable if the pool loses all its workers while requests
// are pending.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Debug("dispatcher started")
	defer d.logger.Debug("dispatcher stopped")

	for {
		_, err := d.DrainBlocking(ctx)
		switch {
		case err == nil:
		case errors.Is(err, core.ErrNoResultsPending):
			select {
			case <-d.submitted:
			case <-ctx.Done():
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

// deliver removes the result's request from the pending set and fires its
// callback. Results with no pending request are dropped.
func (d *Dispatcher) deliver(r pool.Result) (delivered bool) {
	req := r.Request
	d.mu.Lock()
	ok := d.remove(req.ID)
	d.mu.Unlock()

	if !ok {
		d.logger.Warn("dropping result for unknown request", "request_id", req.ID)
		return false
	}

	delivered = true
	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("result callback panicked", "request_id", req.ID, "panic", p)
		}
	}()

	if req.Failed() {
		if req.OnFailure != nil {
			req.OnFailure(req, r.Err)
		} else {
			d.onFailure(req, r.Err)
		}
		return delivered
	}
	if req.OnSuccess != nil {
		req.OnSuccess(req, r.Value)
	}
	return delivered
}

func (d *Dispatcher) logFailure(req *pool.Request, err error) {
	attrs := []any{"request_id", req.ID, "error", err}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) && execErr.Panicked() {
		attrs = append(attrs, "stack", string(execErr.Stack))
	}
	d.logger.Error("request failed", attrs...)
}
