// Package jobs runs stored jobs on demand on a fixed pool of background
// workers and records each run's outcome on the job.
//
// This is the main package users should import. It re-exports the public
// types of the pkg/ packages and wires them together.
//
// Basic usage:
//
//	db, _ := jobs.Open(jobs.DriverSQLite, "jobs.db")
//	store := jobs.NewGormStorage(db)
//	store.Migrate(ctx)
//
//	tasks := jobs.NewRegistry()
//	tasks.Register("send-email", func(ctx context.Context, p EmailParams) error {
//	    return sendEmail(p.To)
//	})
//
//	r := jobs.New(store, tasks, jobs.WithPool(jobs.Workers(4)))
//	go r.Dispatcher().Run(ctx)
//
//	job := &jobs.Job{Description: "welcome mail", Kind: "send-email", Params: params}
//	store.Create(ctx, job)
//	r.RunJob(ctx, job.ID)
package jobs

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/dispatch"
	"github.com/jdziat/simple-job-runner/pkg/pool"
	"github.com/jdziat/simple-job-runner/pkg/runner"
	"github.com/jdziat/simple-job-runner/pkg/schedule"
	"github.com/jdziat/simple-job-runner/pkg/storage"
	"github.com/jdziat/simple-job-runner/pkg/task"
)

type (
	// Job is a stored description of work that can be run on demand.
	Job = core.Job

	// JobStatus represents the current state of a job.
	JobStatus = core.JobStatus

	// Store defines the persistence layer for jobs.
	Store = core.Store

	// ExecutionError wraps a task's returned error or recovered panic.
	ExecutionError = core.ExecutionError

	// Event is the interface for all runner events.
	Event = core.Event

	// JobStarted is emitted when a run is submitted to the pool.
	JobStarted = core.JobStarted

	// JobCompleted is emitted when a run finishes without error.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a run fails.
	JobFailed = core.JobFailed

	// Interval is a job's scheduling interval in hours.
	Interval = schedule.Interval

	// Registry maps task kinds to functions.
	Registry = task.Registry

	// Runner starts runs of stored jobs and records their outcomes.
	Runner = runner.Runner

	// Dispatcher delivers finished requests to their callbacks.
	Dispatcher = dispatch.Dispatcher

	// Pool is the fixed-size worker pool.
	Pool = pool.Pool

	// Request is a unit of work for the pool.
	Request = pool.Request

	// RequestID identifies a request.
	RequestID = pool.RequestID

	// GormStorage is the GORM-backed Store.
	GormStorage = storage.GormStorage

	// RetryConfig controls retries of status writes.
	RetryConfig = runner.RetryConfig
)

// Job statuses.
const (
	StatusReady   = core.StatusReady
	StatusRunning = core.StatusRunning
	StatusFailed  = core.StatusFailed
)

// Scheduling intervals.
const (
	None     = schedule.None
	Hourly   = schedule.Hourly
	Every2h  = schedule.Every2h
	Every6h  = schedule.Every6h
	Every12h = schedule.Every12h
)

// Database drivers accepted by Open.
const (
	DriverSQLite   = storage.DriverSQLite
	DriverPostgres = storage.DriverPostgres
)

// Built-in task kinds.
const (
	KindLog   = task.KindLog
	KindSleep = task.KindSleep
	KindFail  = task.KindFail
)

// Option configures New.
type Option interface {
	apply(*options)
}

type optionFunc func(*options)

func (f optionFunc) apply(o *options) { f(o) }

type options struct {
	logger   *slog.Logger
	pool     []pool.Option
	dispatch []dispatch.Option
	runner   []runner.Option
}

// WithLogger sets the logger for the pool, dispatcher and runner.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *options) { o.logger = l })
}

// WithPool passes options to the worker pool.
func WithPool(opts ...pool.Option) Option {
	return optionFunc(func(o *options) { o.pool = append(o.pool, opts...) })
}

// WithDispatch passes options to the dispatcher.
func WithDispatch(opts ...dispatch.Option) Option {
	return optionFunc(func(o *options) { o.dispatch = append(o.dispatch, opts...) })
}

// WithRunner passes options to the runner.
func WithRunner(opts ...runner.Option) Option {
	return optionFunc(func(o *options) { o.runner = append(o.runner, opts...) })
}

// New builds a pool, a dispatcher over it, and a runner for store. The caller
// drives result delivery with r.Dispatcher().Run or WaitAll, and stops the
// workers with r.Dispatcher().Shutdown.
func New(store Store, tasks *Registry, opts ...Option) *Runner {
	o := &options{}
	for _, opt := range opts {
		opt.apply(o)
	}

	poolOpts := o.pool
	dispatchOpts := o.dispatch
	runnerOpts := o.runner
	if o.logger != nil {
		// explicit component options come last and win
		poolOpts = append([]pool.Option{pool.WithLogger(o.logger)}, poolOpts...)
		dispatchOpts = append([]dispatch.Option{dispatch.WithLogger(o.logger)}, dispatchOpts...)
		runnerOpts = append([]runner.Option{runner.WithLogger(o.logger)}, runnerOpts...)
	}

	d := dispatch.New(pool.New(poolOpts...), dispatchOpts...)
	return runner.New(store, d, tasks, runnerOpts...)
}

// NewRegistry returns an empty task registry.
func NewRegistry() *Registry {
	return task.NewRegistry()
}

// RegisterBuiltins adds the log, sleep and fail kinds to r.
func RegisterBuiltins(r *Registry, logger *slog.Logger) {
	task.RegisterBuiltins(r, logger)
}

// Open connects to a sqlite or postgres database.
func Open(driver, dsn string, opts ...storage.ConnOption) (*gorm.DB, error) {
	return storage.Open(driver, dsn, opts...)
}

// NewGormStorage creates a GORM-backed store. Call Migrate before use.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return storage.NewGormStorage(db)
}

// ParseInterval parses a scheduling interval such as "6", "6h" or "none".
func ParseInterval(s string) (Interval, error) {
	return schedule.Parse(s)
}

// Workers sets the number of pool workers.
func Workers(n int) pool.Option {
	return pool.Workers(n)
}

// PollTimeout sets how long an idle worker waits for a request before
// checking again.
func PollTimeout(d time.Duration) pool.Option {
	return pool.PollTimeout(d)
}

// SubmitTimeout bounds how long RunJob waits for room in the request queue.
func SubmitTimeout(d time.Duration) runner.Option {
	return runner.SubmitTimeout(d)
}
