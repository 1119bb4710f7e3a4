package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/security"
)

// GormStorage implements core.Store using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed store.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying database handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the store runs on SQLite.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{})
}

// Create validates and inserts a job. A new job starts ready.
func (s *GormStorage) Create(ctx context.Context, job *core.Job) error {
	if err := security.ValidateJob(job); err != nil {
		return err
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.Status = core.StatusReady
	job.LastExecuted = nil
	job.LastError = ""
	return s.db.WithContext(ctx).Create(job).Error
}

// FetchByID retrieves a job, returning core.ErrJobNotFound if it does not
// exist.
func (s *GormStorage) FetchByID(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns all jobs, oldest first.
func (s *GormStorage) List(ctx context.Context) ([]*core.Job, error) {
	var jobs []*core.Job
	err := s.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&jobs).Error
	return jobs, err
}

// Update saves the user-editable fields of a job. Status and run history
// are left alone.
func (s *GormStorage) Update(ctx context.Context, job *core.Job) error {
	if err := security.ValidateJob(job); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", job.ID).
		Updates(map[string]any{
			"description": job.Description,
			"kind":        job.Kind,
			"params":      job.Params,
			"scheduling":  job.Scheduling,
		})
	return rowResult(result, job.ID)
}

// UpdateStatus sets a job's status and last error in one row update.
func (s *GormStorage) UpdateStatus(ctx context.Context, jobID string, status core.JobStatus, lastError string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", core.ErrInvalidStatus, status)
	}
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     status,
			"last_error": security.SanitizeErrorMessage(lastError),
		})
	return rowResult(result, jobID)
}

// SetLastExecuted records when a job last started.
func (s *GormStorage) SetLastExecuted(ctx context.Context, jobID string, at time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ?", jobID).
		Update("last_executed", at)
	return rowResult(result, jobID)
}

// Delete removes a job. A running job is not deleted and
// core.ErrJobAlreadyRunning is returned.
func (s *GormStorage) Delete(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("id = ? AND status <> ?", jobID, core.StatusRunning).
			Delete(&core.Job{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&core.Job{}).Where("id = ?", jobID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", core.ErrJobAlreadyRunning, jobID)
		}
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	})
}

// RecoverInterrupted marks jobs left running by a previous process as failed.
// Run it at startup, before any job is started.
func (s *GormStorage) RecoverInterrupted(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("status = ?", core.StatusRunning).
		Updates(map[string]any{
			"status":     core.StatusFailed,
			"last_error": "interrupted: the process stopped while the job was running",
		})
	return result.RowsAffected, result.Error
}

func rowResult(result *gorm.DB, jobID string) error {
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrJobNotFound, jobID)
	}
	return nil
}
