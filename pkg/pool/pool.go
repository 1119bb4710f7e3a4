package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/internal/fifo"
)

// Result is the outcome of one request.
type Result struct {
	Request *Request
	Value   any
	Err     error
}

// ReleaseFunc is called by the worker after a request finishes, before its
// result is published. err is nil on success.
type ReleaseFunc func(id RequestID, err error)

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers   int
	Queued    int
	InFlight  int64
	Submitted int64
	Succeeded int64
	Failed    int64
}

// Pool runs requests on a fixed set of worker goroutines.
type Pool struct {
	config   Config
	logger   *slog.Logger
	requests *fifo.Queue[*Request]
	results  *fifo.Queue[Result]

	hooksMu   sync.RWMutex
	onRelease []ReleaseFunc

	live     atomic.Int32
	exited   chan struct{}
	shutdown sync.Once

	submitted atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64
}

// New creates a pool and starts its workers.
func New(opts ...Option) *Pool {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.ApplyPool(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	p := &Pool{
		config:   config,
		logger:   config.Logger,
		requests: fifo.New[*Request](config.RequestCapacity),
		results:  fifo.New[Result](config.ResultCapacity),
		exited:   make(chan struct{}),
	}

	p.live.Store(int32(config.Workers))
	for i := 0; i < config.Workers; i++ {
		go p.worker(i)
	}
	return p
}

// Config returns the configuration the pool was built with.
func (p *Pool) Config() Config {
	return p.config
}

// OnRelease registers a hook called once per finished request.
func (p *Pool) OnRelease(fn ReleaseFunc) {
	p.hooksMu.Lock()
	p.onRelease = append(p.onRelease, fn)
	p.hooksMu.Unlock()
}

func (p *Pool) accept(req *Request) error {
	if req == nil || req.Fn == nil {
		return errors.New("jobs: request has no function")
	}
	if req.Failed() || !req.submitted.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateRequest, req.ID)
	}
	return nil
}

func (p *Pool) enqueued(req *Request, err error) error {
	switch {
	case err == nil:
		p.submitted.Add(1)
		return nil
	case errors.Is(err, fifo.ErrClosed):
		err = core.ErrPoolClosed
	case errors.Is(err, fifo.ErrFull), errors.Is(err, context.DeadlineExceeded):
		err = fmt.Errorf("%w: %w", core.ErrQueueSaturated, err)
	}
	// not enqueued, so the caller may try again
	req.submitted.Store(false)
	return err
}

// Submit queues req, waiting while a bounded request queue is full.
// It returns an error wrapping core.ErrQueueSaturated if ctx's deadline
// passes first, and core.ErrPoolClosed after Shutdown.
func (p *Pool) Submit(ctx context.Context, req *Request) error {
	if err := p.accept(req); err != nil {
		return err
	}
	return p.enqueued(req, p.requests.Put(ctx, req))
}

// TrySubmit queues req without waiting.
func (p *Pool) TrySubmit(req *Request) error {
	if err := p.accept(req); err != nil {
		return err
	}
	return p.enqueued(req, p.requests.TryPut(req))
}

// TryNext returns a published result if one is available.
func (p *Pool) TryNext() (Result, bool) {
	return p.results.TryGet()
}

// Next waits for a published result. It returns core.ErrNoWorkersAvailable
// once every worker has exited and no results remain.
func (p *Pool) Next(ctx context.Context) (Result, error) {
	if r, ok := p.results.TryGet(); ok {
		return r, nil
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.exited:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	r, err := p.results.Get(waitCtx, 0)
	if err == nil {
		return r, nil
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	if r, ok := p.results.TryGet(); ok {
		return r, nil
	}
	return Result{}, core.ErrNoWorkersAvailable
}

// LiveWorkers returns the number of workers still running.
func (p *Pool) LiveWorkers() int {
	return int(p.live.Load())
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.LiveWorkers(),
		Queued:    p.requests.Len(),
		InFlight:  p.inFlight.Load(),
		Submitted: p.submitted.Load(),
		Succeeded: p.succeeded.Load(),
		Failed:    p.failed.Load(),
	}
}

// Shutdown stops accepting requests and waits for queued and running ones to
// finish. Results stay available after Shutdown returns.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.shutdown.Do(p.requests.Close)

	select {
	case <-p.exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(n int) {
	clean := false
	defer func() {
		if !clean {
			// the goroutine was torn down mid-request; keep the pool at size
			p.logger.Error("worker exited unexpectedly, restarting", "worker", n)
			go p.worker(n)
			return
		}
		if p.live.Add(-1) == 0 {
			close(p.exited)
		}
	}()

	for {
		req, err := p.requests.Get(context.Background(), p.config.PollTimeout)
		switch {
		case err == nil:
			p.process(req)
		case errors.Is(err, fifo.ErrEmpty):
			// poll timeout, look again
		default:
			p.logger.Debug("worker exiting", "worker", n)
			clean = true
			return
		}
	}
}

func (p *Pool) process(req *Request) {
	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	returned := false
	defer func() {
		if returned {
			return
		}
		// Fn never returned, e.g. it called runtime.Goexit
		err := &core.ExecutionError{RequestID: string(req.ID), Err: core.ErrWorkerExited}
		p.finish(req, nil, err)
	}()

	value, execErr := p.execute(req)
	returned = true
	p.finish(req, value, execErr)
}

// finish records the outcome, calls the release hooks and then publishes the
// result.
func (p *Pool) finish(req *Request, value any, execErr error) {
	if execErr != nil {
		req.exception.Store(true)
		p.failed.Add(1)
	} else {
		p.succeeded.Add(1)
	}

	p.release(req.ID, execErr)

	if err := p.results.Put(context.Background(), Result{Request: req, Value: value, Err: execErr}); err != nil {
		p.logger.Error("failed to publish result", "request_id", req.ID, "error", err)
	}
}

// execute runs the request's function, turning a panic into an
// *core.ExecutionError carrying the stack.
func (p *Pool) execute(req *Request) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &core.ExecutionError{
				RequestID: string(req.ID),
				Err:       fmt.Errorf("panic: %v", r),
				Stack:     debug.Stack(),
			}
		}
	}()

	value, err = req.Fn(context.Background(), req.Args...)
	if err != nil {
		err = &core.ExecutionError{RequestID: string(req.ID), Err: err}
	}
	return value, err
}

func (p *Pool) release(id RequestID, err error) {
	p.hooksMu.RLock()
	hooks := make([]ReleaseFunc, len(p.onRelease))
	copy(hooks, p.onRelease)
	p.hooksMu.RUnlock()

	for _, fn := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("release hook panicked", "request_id", id, "panic", r)
				}
			}()
			fn(id, err)
		}()
	}
}
