package core

import (
	"context"
	"time"
)

// Store defines the persistence layer for jobs.
//
// Every method touching a single job must be atomic for that row.
type Store interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Run lifecycle
	FetchByID(ctx context.Context, jobID string) (*Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, lastError string) error
	SetLastExecuted(ctx context.Context, jobID string, at time.Time) error

	// Management
	Create(ctx context.Context, job *Job) error
	List(ctx context.Context) ([]*Job, error)
	Update(ctx context.Context, job *Job) error
	Delete(ctx context.Context, jobID string) error
}
