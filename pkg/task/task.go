// Package task maps task kinds to the functions that execute them.
//
// Jobs never carry executable code. A job names a registered kind and stores
// JSON parameters, which are decoded into the kind's parameter type before
// the function runs.
package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/internal/handler"
	"github.com/jdziat/simple-job-runner/pkg/security"
)

// Registry holds the task kinds a runner can execute.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]*handler.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]*handler.Handler)}
}

// Register adds a task kind. fn must have one of the shapes accepted by the
// handler package, e.g. func(ctx context.Context, params T) error.
// It panics on an invalid kind or function, like http.HandleFunc does.
func (r *Registry) Register(kind string, fn any) {
	if err := r.TryRegister(kind, fn); err != nil {
		panic(err.Error())
	}
}

// TryRegister is Register returning an error instead of panicking.
func (r *Registry) TryRegister(kind string, fn any) error {
	if err := security.ValidateTaskKind(kind); err != nil {
		return fmt.Errorf("jobs: invalid task kind %q: %w", kind, err)
	}
	h, err := handler.NewHandler(fn)
	if err != nil {
		return fmt.Errorf("jobs: task %q: %w", kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
	return nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind string) bool {
	_, ok := r.lookup(kind)
	return ok
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func (r *Registry) lookup(kind string) (*handler.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// Validate checks that kind is registered and params decode into its
// parameter type.
func (r *Registry) Validate(kind string, params []byte) error {
	h, ok := r.lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrUnknownTaskKind, kind)
	}
	if err := h.Validate(params); err != nil {
		return fmt.Errorf("jobs: invalid params for %q: %w", kind, err)
	}
	return nil
}

// Execute runs the task registered for kind.
func (r *Registry) Execute(ctx context.Context, kind string, params []byte) (any, error) {
	h, ok := r.lookup(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownTaskKind, kind)
	}
	return h.Execute(ctx, params)
}
