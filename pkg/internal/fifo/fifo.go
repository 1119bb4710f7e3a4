// Package fifo provides the queue backing the pool's request and result
// channels. A capacity of zero means unbounded.
package fifo

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrFull is returned by TryPut when a bounded queue is at capacity.
	ErrFull = errors.New("fifo: queue full")
	// ErrClosed is returned by Put after Close.
	ErrClosed = errors.New("fifo: queue closed")
	// ErrEmpty is returned by Get when the wait times out with nothing queued.
	ErrEmpty = errors.New("fifo: queue empty")
)

// Queue is a FIFO safe for concurrent producers and consumers.
//
// Waiters are woken through single-slot signal channels. A woken waiter that
// leaves work behind re-signals, so every queued item or free slot wakes
// exactly as many waiters as it can satisfy.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	closed   bool

	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}
}

// New creates a queue. capacity <= 0 means unbounded.
func New[T any](capacity int) *Queue[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue[T]{
		capacity: capacity,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Cap returns the capacity, zero for unbounded.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// TryPut appends v without blocking.
func (q *Queue[T]) TryPut(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.putLocked(v)
}

func (q *Queue[T]) putLocked(v T) error {
	if q.closed {
		return ErrClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		return ErrFull
	}
	q.items = append(q.items, v)
	signal(q.notEmpty)
	if q.capacity > 0 && len(q.items) < q.capacity {
		signal(q.notFull)
	}
	return nil
}

// Put appends v, waiting for room while a bounded queue is full.
// It returns ctx.Err() if the context ends first.
func (q *Queue[T]) Put(ctx context.Context, v T) error {
	for {
		q.mu.Lock()
		err := q.putLocked(v)
		q.mu.Unlock()
		if !errors.Is(err, ErrFull) {
			return err
		}

		select {
		case <-q.notFull:
		case <-q.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryGet removes the head without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.getLocked()
}

func (q *Queue[T]) getLocked() (T, bool) {
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// release the backing array once drained
		q.items = nil
	} else {
		signal(q.notEmpty)
	}
	signal(q.notFull)
	return v, true
}

// Get removes the head, waiting up to timeout for an item. A timeout <= 0
// waits until an item arrives or ctx ends. It returns ErrEmpty on timeout and
// ErrClosed once the queue is closed and drained.
func (q *Queue[T]) Get(ctx context.Context, timeout time.Duration) (T, error) {
	var zero T
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		q.mu.Lock()
		v, ok := q.getLocked()
		closed := q.closed
		q.mu.Unlock()
		if ok {
			return v, nil
		}
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-q.notEmpty:
		case <-q.done:
		case <-expired:
			return zero, ErrEmpty
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Close stops accepting items. Queued items can still be taken.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.done)
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
