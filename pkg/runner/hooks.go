package runner

import (
	"context"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

// OnJobComplete registers a hook called after a run succeeds.
func (r *Runner) OnJobComplete(fn func(context.Context, *core.Job)) {
	r.hooksMu.Lock()
	r.onComplete = append(r.onComplete, fn)
	r.hooksMu.Unlock()
}

// OnJobFail registers a hook called after a run fails, including runs that
// could not be submitted.
func (r *Runner) OnJobFail(fn func(context.Context, *core.Job, error)) {
	r.hooksMu.Lock()
	r.onFail = append(r.onFail, fn)
	r.hooksMu.Unlock()
}

func (r *Runner) callCompleteHooks(ctx context.Context, job *core.Job) {
	r.hooksMu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(r.onComplete))
	copy(hooks, r.onComplete)
	r.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

func (r *Runner) callFailHooks(ctx context.Context, job *core.Job, err error) {
	r.hooksMu.RLock()
	hooks := make([]func(context.Context, *core.Job, error), len(r.onFail))
	copy(hooks, r.onFail)
	r.hooksMu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, err)
	}
}

// Events returns a channel receiving run events.
// The caller must call Unsubscribe when done.
func (r *Runner) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	r.hooksMu.Lock()
	r.eventSubs = append(r.eventSubs, ch)
	r.hooksMu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Events. The channel is not
// closed.
func (r *Runner) Unsubscribe(ch <-chan core.Event) {
	r.hooksMu.Lock()
	defer r.hooksMu.Unlock()
	for i, sub := range r.eventSubs {
		if sub == ch {
			r.eventSubs = append(r.eventSubs[:i], r.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit sends e to every subscriber, dropping it for subscribers whose buffer
// is full.
func (r *Runner) Emit(e core.Event) {
	r.hooksMu.RLock()
	subs := make([]chan core.Event, len(r.eventSubs))
	copy(subs, r.eventSubs)
	r.hooksMu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
