// Package core provides the domain models and interfaces for the job runner.
package core

import (
	"time"

	"github.com/jdziat/simple-job-runner/pkg/schedule"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusReady   JobStatus = "ready"
	StatusRunning JobStatus = "running"
	StatusFailed  JobStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case StatusReady, StatusRunning, StatusFailed:
		return true
	}
	return false
}

// Job is a stored description of work that can be run on demand.
type Job struct {
	ID           string            `gorm:"primaryKey;size:36" json:"id"`
	Description  string            `gorm:"size:1024;not null" json:"description"`
	Kind         string            `gorm:"index;size:255;not null" json:"kind"`
	Params       []byte            `gorm:"type:bytes" json:"params,omitempty"`
	Status       JobStatus         `gorm:"index;size:10;default:'ready'" json:"status"`
	Scheduling   schedule.Interval `gorm:"default:0" json:"scheduling"`
	LastExecuted *time.Time        `json:"last_executed,omitempty"`
	LastError    string            `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRunnable reports whether a new run may be started for the job.
func (j *Job) IsRunnable() bool {
	return j.Status != StatusRunning
}
