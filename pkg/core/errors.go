package core

import (
	"errors"
	"fmt"
)

// Dispatch errors, returned to the caller that triggered a run.
var (
	ErrJobNotFound       = errors.New("jobs: job not found")
	ErrJobAlreadyRunning = errors.New("jobs: job is already running")
)

// Queue errors.
var (
	ErrQueueSaturated   = errors.New("jobs: queue is full")
	ErrPoolClosed       = errors.New("jobs: pool is shut down")
	ErrDuplicateRequest = errors.New("jobs: request already pending")
	ErrWorkerExited     = errors.New("jobs: worker exited before the request returned")
)

// Drain signals. These are control flow for draining callers, not failures.
var (
	ErrNoResultsPending   = errors.New("jobs: no results pending")
	ErrNoWorkersAvailable = errors.New("jobs: no workers available")
)

// Validation errors
var (
	ErrInvalidTaskKind    = errors.New("jobs: invalid task kind (must be alphanumeric, start with letter)")
	ErrTaskKindTooLong    = errors.New("jobs: task kind too long")
	ErrUnknownTaskKind    = errors.New("jobs: no task registered for kind")
	ErrParamsTooLarge     = errors.New("jobs: task parameters exceed size limit")
	ErrDescriptionTooLong = errors.New("jobs: description too long")
	ErrEmptyDescription   = errors.New("jobs: description is required")
	ErrInvalidSchedule    = errors.New("jobs: invalid scheduling interval")
	ErrInvalidStatus      = errors.New("jobs: invalid job status")
)

// ExecutionError is the outcome of a unit of work whose function returned an
// error or panicked.
type ExecutionError struct {
	RequestID string
	Err       error
	// Stack is set when the failure was a recovered panic.
	Stack []byte
}

func (e *ExecutionError) Error() string {
	if e.Stack != nil {
		return fmt.Sprintf("request %s panicked: %v", e.RequestID, e.Err)
	}
	return fmt.Sprintf("request %s failed: %v", e.RequestID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Panicked reports whether the failure was a recovered panic.
func (e *ExecutionError) Panicked() bool {
	return e.Stack != nil
}
