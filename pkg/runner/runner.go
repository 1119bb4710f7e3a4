package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/dispatch"
	"github.com/jdziat/simple-job-runner/pkg/pool"
	"github.com/jdziat/simple-job-runner/pkg/security"
	"github.com/jdziat/simple-job-runner/pkg/task"
)

// Runner starts runs of stored jobs and records their outcome.
type Runner struct {
	store      core.Store
	dispatcher *dispatch.Dispatcher
	tasks      *task.Registry
	logger     *slog.Logger
	config     Config

	// Active-task map. byJob is the reverse index used by the single-run
	// guard. An entry exists from reservation until the outcome is stored.
	mu        sync.Mutex
	byRequest map[pool.RequestID]string
	byJob     map[string]pool.RequestID

	hooksMu    sync.RWMutex
	onComplete []func(context.Context, *core.Job)
	onFail     []func(context.Context, *core.Job, error)
	eventSubs  []chan core.Event
}

// New creates a runner and registers its release hook with the dispatcher's
// pool.
func New(store core.Store, d *dispatch.Dispatcher, tasks *task.Registry, opts ...Option) *Runner {
	config := DefaultConfig()
	for _, opt := range opts {
		opt.ApplyRunner(&config)
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	r := &Runner{
		store:      store,
		dispatcher: d,
		tasks:      tasks,
		logger:     config.Logger,
		config:     config,
		byRequest:  make(map[pool.RequestID]string),
		byJob:      make(map[string]pool.RequestID),
	}
	d.Pool().OnRelease(r.OnWorkerFinished)
	return r
}

// Store returns the job store.
func (r *Runner) Store() core.Store {
	return r.store
}

// Dispatcher returns the dispatcher runs are submitted through.
func (r *Runner) Dispatcher() *dispatch.Dispatcher {
	return r.dispatcher
}

// Tasks returns the task registry.
func (r *Runner) Tasks() *task.Registry {
	return r.tasks
}

// reserve claims jobID for a new run. It fails if the job is already mapped.
func (r *Runner) reserve(jobID string) (pool.RequestID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.byJob[jobID]; running {
		return "", fmt.Errorf("%w: %s", core.ErrJobAlreadyRunning, jobID)
	}
	id := pool.RequestID(uuid.New().String())
	r.byJob[jobID] = id
	r.byRequest[id] = jobID
	return id, nil
}

// unmap removes the entry for id if it still belongs to it.
func (r *Runner) unmap(id pool.RequestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	jobID, ok := r.byRequest[id]
	if !ok {
		return
	}
	delete(r.byRequest, id)
	if r.byJob[jobID] == id {
		delete(r.byJob, jobID)
	}
}

// RunJob starts an asynchronous run of the job. It returns
// core.ErrJobAlreadyRunning if a run of the job is in flight and
// core.ErrJobNotFound if the job does not exist; in both cases nothing is
// changed. If the run cannot be submitted the job is marked failed and the
// submission error returned.
func (r *Runner) RunJob(ctx context.Context, jobID string) (pool.RequestID, error) {
	id, err := r.reserve(jobID)
	if err != nil {
		return "", err
	}

	job, err := r.store.FetchByID(ctx, jobID)
	if err != nil {
		r.unmap(id)
		if errors.Is(err, core.ErrJobNotFound) {
			return "", err
		}
		return "", fmt.Errorf("jobs: fetch job %s: %w", jobID, err)
	}

	started := time.Now()
	if err := r.store.UpdateStatus(ctx, jobID, core.StatusRunning, ""); err != nil {
		r.unmap(id)
		return "", fmt.Errorf("jobs: mark job %s running: %w", jobID, err)
	}
	job.Status = core.StatusRunning
	job.LastError = ""
	if err := r.store.SetLastExecuted(ctx, jobID, started); err != nil {
		// the job is already marked running, so it has to be failed
		r.abort(ctx, id, job, err)
		return "", fmt.Errorf("jobs: record start of job %s: %w", jobID, err)
	}
	job.LastExecuted = &started

	req := r.newRequest(id, job, started)
	r.Emit(&core.JobStarted{JobID: jobID, RequestID: string(id), Timestamp: started})

	submitCtx := ctx
	if r.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, r.config.SubmitTimeout)
		defer cancel()
	}
	if err := r.dispatcher.Submit(submitCtx, req); err != nil {
		r.abort(ctx, id, job, err)
		return "", fmt.Errorf("jobs: submit job %s: %w", jobID, err)
	}

	r.logger.Debug("job submitted", "job_id", jobID, "request_id", id)
	return id, nil
}

// abort fails a run that never reached a worker.
func (r *Runner) abort(ctx context.Context, id pool.RequestID, job *core.Job, cause error) {
	ctx = context.WithoutCancel(ctx)
	msg := security.SanitizeErrorMessage(cause.Error())
	if err := retryWithBackoff(ctx, r.config.Retry, func() error {
		return r.store.UpdateStatus(ctx, job.ID, core.StatusFailed, msg)
	}); err != nil {
		r.logger.Error("failed to mark job failed", "job_id", job.ID, "error", err)
	}
	r.unmap(id)

	job.Status = core.StatusFailed
	job.LastError = msg
	r.logger.Warn("job run not submitted", "job_id", job.ID, "request_id", id, "error", cause)
	r.Emit(&core.JobFailed{JobID: job.ID, RequestID: string(id), Error: cause, Timestamp: time.Now()})
	r.callFailHooks(ctx, job, cause)
}

func (r *Runner) newRequest(id pool.RequestID, job *core.Job, started time.Time) *pool.Request {
	kind, params := job.Kind, job.Params
	fn := func(ctx context.Context, _ ...any) (any, error) {
		return r.tasks.Execute(ctx, kind, params)
	}

	return pool.NewRequest(fn, []any{job.ID},
		pool.WithID(id),
		pool.OnSuccess(func(req *pool.Request, _ any) {
			r.completed(job, req, started)
		}),
		pool.OnFailure(func(req *pool.Request, err error) {
			r.failed(job, req, err)
		}),
	)
}

// OnWorkerFinished is the pool release hook. It stores the run's outcome and
// then clears the mapping, so a new run of the job cannot start before the
// outcome is written. Unknown identities are ignored.
func (r *Runner) OnWorkerFinished(id pool.RequestID, execErr error) {
	r.mu.Lock()
	jobID, ok := r.byRequest[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	defer r.unmap(id)

	status, msg := core.StatusReady, ""
	if execErr != nil {
		status, msg = core.StatusFailed, security.SanitizeErrorMessage(execErr.Error())
	}

	ctx := context.Background()
	if err := retryWithBackoff(ctx, r.config.Retry, func() error {
		return r.store.UpdateStatus(ctx, jobID, status, msg)
	}); err != nil {
		r.logger.Error("failed to store job outcome",
			"job_id", jobID, "request_id", id, "status", status, "error", err)
	}
}

func (r *Runner) completed(job *core.Job, req *pool.Request, started time.Time) {
	now := time.Now()
	r.logger.Info("job completed", "job_id", job.ID, "request_id", req.ID, "duration", now.Sub(started))

	done := *job
	done.Status = core.StatusReady
	r.Emit(&core.JobCompleted{JobID: job.ID, RequestID: string(req.ID), Duration: now.Sub(started), Timestamp: now})
	r.callCompleteHooks(context.Background(), &done)
}

func (r *Runner) failed(job *core.Job, req *pool.Request, err error) {
	attrs := []any{"job_id", job.ID, "request_id", req.ID, "error", err}
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) && execErr.Panicked() {
		attrs = append(attrs, "stack", string(execErr.Stack))
	}
	r.logger.Error("job failed", attrs...)

	done := *job
	done.Status = core.StatusFailed
	done.LastError = security.SanitizeErrorMessage(err.Error())
	r.Emit(&core.JobFailed{JobID: job.ID, RequestID: string(req.ID), Error: err, Timestamp: time.Now()})
	r.callFailHooks(context.Background(), &done, err)
}

// IsRunning reports whether a run of the job is in flight.
func (r *Runner) IsRunning(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byJob[jobID]
	return ok
}

// Active returns a snapshot of the active-task map.
func (r *Runner) Active() map[pool.RequestID]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := make(map[pool.RequestID]string, len(r.byRequest))
	for id, jobID := range r.byRequest {
		active[id] = jobID
	}
	return active
}

// DeleteJob removes a job that is not running. A run that starts after the
// check is caught by the store, which refuses to delete a running job.
func (r *Runner) DeleteJob(ctx context.Context, jobID string) error {
	if r.IsRunning(jobID) {
		return fmt.Errorf("%w: %s", core.ErrJobAlreadyRunning, jobID)
	}
	return r.store.Delete(ctx, jobID)
}
