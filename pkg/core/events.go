package core

import "time"

// Event is the interface for all run events.
type Event interface {
	eventMarker()
}

// JobStarted is emitted when a run has been submitted to the pool.
type JobStarted struct {
	JobID     string
	RequestID string
	Timestamp time.Time
}

func (*JobStarted) eventMarker() {}

// JobCompleted is emitted when a run finishes successfully.
type JobCompleted struct {
	JobID     string
	RequestID string
	Duration  time.Duration
	Timestamp time.Time
}

func (*JobCompleted) eventMarker() {}

// JobFailed is emitted when a run fails.
type JobFailed struct {
	JobID     string
	RequestID string
	Error     error
	Timestamp time.Time
}

func (*JobFailed) eventMarker() {}
