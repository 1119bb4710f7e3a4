package pool

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// RequestID identifies a unit of work for result correlation.
type RequestID string

// Func is the executable part of a request.
type Func func(ctx context.Context, args ...any) (any, error)

// SuccessFunc receives the value returned by a request's Func.
type SuccessFunc func(req *Request, value any)

// FailureFunc receives the error of a failed request, usually a
// *core.ExecutionError.
type FailureFunc func(req *Request, err error)

// Request is a unit of work: a function, its arguments and its callbacks.
// A request is consumed by exactly one worker and must not be resubmitted.
type Request struct {
	ID        RequestID
	Fn        Func
	Args      []any
	OnSuccess SuccessFunc
	OnFailure FailureFunc

	exception atomic.Bool
	submitted atomic.Bool
}

// RequestOption configures a Request.
type RequestOption interface {
	ApplyRequest(*Request)
}

type requestOptionFunc func(*Request)

func (f requestOptionFunc) ApplyRequest(r *Request) { f(r) }

// WithID sets a caller-chosen identity instead of a generated one.
func WithID(id RequestID) RequestOption {
	return requestOptionFunc(func(r *Request) {
		r.ID = id
	})
}

// OnSuccess sets the success callback.
func OnSuccess(fn SuccessFunc) RequestOption {
	return requestOptionFunc(func(r *Request) {
		r.OnSuccess = fn
	})
}

// OnFailure sets the failure callback. Without one, the dispatcher logs the
// failure.
func OnFailure(fn FailureFunc) RequestOption {
	return requestOptionFunc(func(r *Request) {
		r.OnFailure = fn
	})
}

// NewRequest creates a request for fn. Unless WithID is given the identity is
// a random UUID, unique for the life of the process.
func NewRequest(fn Func, args []any, opts ...RequestOption) *Request {
	r := &Request{Fn: fn, Args: args}
	for _, opt := range opts {
		opt.ApplyRequest(r)
	}
	if r.ID == "" {
		r.ID = RequestID(uuid.New().String())
	}
	return r
}

// MakeRequests builds one request per argument list, all sharing fn and opts.
// WithID must not be among opts, since identities have to be distinct.
func MakeRequests(fn Func, argsList [][]any, opts ...RequestOption) []*Request {
	reqs := make([]*Request, 0, len(argsList))
	for _, args := range argsList {
		reqs = append(reqs, NewRequest(fn, args, opts...))
	}
	return reqs
}

// Failed reports whether execution returned an error or panicked. It is set
// before the result is published.
func (r *Request) Failed() bool {
	return r.exception.Load()
}

func (r *Request) String() string {
	return fmt.Sprintf("<Request id=%s args=%v exception=%t>", r.ID, r.Args, r.Failed())
}
