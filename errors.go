package jobs

import "github.com/jdziat/simple-job-runner/pkg/core"

// Errors returned by RunJob and the store.
var (
	ErrJobNotFound       = core.ErrJobNotFound
	ErrJobAlreadyRunning = core.ErrJobAlreadyRunning
	ErrUnknownTaskKind   = core.ErrUnknownTaskKind
)

// Queue errors.
var (
	ErrQueueSaturated   = core.ErrQueueSaturated
	ErrPoolClosed       = core.ErrPoolClosed
	ErrDuplicateRequest = core.ErrDuplicateRequest
)

// Drain signals.
var (
	ErrNoResultsPending   = core.ErrNoResultsPending
	ErrNoWorkersAvailable = core.ErrNoWorkersAvailable
)
