package ui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdziat/simple-job-runner/pkg/core"
	"github.com/jdziat/simple-job-runner/pkg/runner"
	"github.com/jdziat/simple-job-runner/pkg/schedule"
)

type server struct {
	runner *runner.Runner
	logger *slog.Logger
}

// jobView is the wire form of a job.
type jobView struct {
	ID              string            `json:"id"`
	Description     string            `json:"description"`
	Kind            string            `json:"kind"`
	Params          json.RawMessage   `json:"params,omitempty"`
	Status          core.JobStatus    `json:"status"`
	Runnable        bool              `json:"runnable"`
	Scheduling      schedule.Interval `json:"scheduling"`
	SchedulingLabel string            `json:"scheduling_label"`
	NextRun         *time.Time        `json:"next_run,omitempty"`
	LastExecuted    *time.Time        `json:"last_executed,omitempty"`
	LastError       string            `json:"last_error,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func newJobView(job *core.Job) jobView {
	v := jobView{
		ID:              job.ID,
		Description:     job.Description,
		Kind:            job.Kind,
		Status:          job.Status,
		Runnable:        job.IsRunnable(),
		Scheduling:      job.Scheduling,
		SchedulingLabel: job.Scheduling.String(),
		LastExecuted:    job.LastExecuted,
		LastError:       job.LastError,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if len(job.Params) > 0 && json.Valid(job.Params) {
		v.Params = json.RawMessage(job.Params)
	}
	from := job.CreatedAt
	if job.LastExecuted != nil {
		from = *job.LastExecuted
	}
	if next := job.Scheduling.Next(from); !next.IsZero() {
		v.NextRun = &next
	}
	return v
}

// jobInput is the body of create and update requests.
type jobInput struct {
	Description string            `json:"description" binding:"required"`
	Kind        string            `json:"kind" binding:"required"`
	Params      json.RawMessage   `json:"params"`
	Scheduling  schedule.Interval `json:"scheduling"`
}

func (in jobInput) apply(job *core.Job) {
	job.Description = in.Description
	job.Kind = in.Kind
	job.Params = []byte(in.Params)
	job.Scheduling = in.Scheduling
}

func (s *server) jobViews(ctx context.Context) ([]jobView, error) {
	jobs, err := s.runner.Store().List(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	return views, nil
}

// errorStatus maps store and runner errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrJobAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrDescriptionTooLong),
		errors.Is(err, core.ErrInvalidTaskKind),
		errors.Is(err, core.ErrTaskKindTooLong),
		errors.Is(err, core.ErrUnknownTaskKind),
		errors.Is(err, core.ErrParamsTooLarge),
		errors.Is(err, core.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrQueueSaturated), errors.Is(err, core.ErrPoolClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *server) fail(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *server) listJobs(c *gin.Context) {
	views, err := s.jobViews(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

func (s *server) getJob(c *gin.Context) {
	job, err := s.runner.Store().FetchByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": newJobView(job)})
}

func (s *server) createJob(c *gin.Context) {
	var in jobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job: " + err.Error()})
		return
	}
	if err := s.runner.Tasks().Validate(in.Kind, in.Params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job := &core.Job{}
	in.apply(job)
	if err := s.runner.Store().Create(c.Request.Context(), job); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"job": newJobView(job)})
}

func (s *server) updateJob(c *gin.Context) {
	var in jobInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job: " + err.Error()})
		return
	}
	if err := s.runner.Tasks().Validate(in.Kind, in.Params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	job := &core.Job{ID: c.Param("id")}
	in.apply(job)
	if err := s.runner.Store().Update(ctx, job); err != nil {
		s.fail(c, err)
		return
	}
	updated, err := s.runner.Store().FetchByID(ctx, job.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job": newJobView(updated)})
}

func (s *server) deleteJob(c *gin.Context) {
	if err := s.runner.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// run triggers a run and returns the warning to show, if any. Only failures
// other than a running or missing job are returned as errors.
func (s *server) run(ctx context.Context, jobID string) (warning string, err error) {
	_, err = s.runner.RunJob(ctx, jobID)
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, core.ErrJobAlreadyRunning):
		return "Job is already running.", nil
	case errors.Is(err, core.ErrJobNotFound):
		return "Job not found.", nil
	}
	return "", err
}

// runJob starts a run and answers with the refreshed job list. A job that is
// running or missing is reported as a warning, not an error.
func (s *server) runJob(c *gin.Context) {
	ctx := c.Request.Context()
	warning, runErr := s.run(ctx, c.Param("id"))

	views, err := s.jobViews(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runErr != nil {
		c.JSON(errorStatus(runErr), gin.H{"error": runErr.Error(), "jobs": views})
		return
	}

	body := gin.H{"jobs": views}
	status := http.StatusAccepted
	if warning != "" {
		body["warning"] = warning
		status = http.StatusOK
	}
	c.JSON(status, body)
}

func (s *server) stats(c *gin.Context) {
	d := s.runner.Dispatcher()
	st := d.Pool().Stats()
	c.JSON(http.StatusOK, gin.H{
		"workers":   st.Workers,
		"queued":    st.Queued,
		"in_flight": st.InFlight,
		"submitted": st.Submitted,
		"succeeded": st.Succeeded,
		"failed":    st.Failed,
		"pending":   d.Pending(),
		"active":    len(s.runner.Active()),
	})
}

func (s *server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kinds": s.runner.Tasks().Kinds()})
}

func (s *server) listSchedules(c *gin.Context) {
	choices := make([]gin.H, 0, len(schedule.Choices))
	for _, i := range schedule.Choices {
		choices = append(choices, gin.H{"value": int(i), "label": i.String()})
	}
	c.JSON(http.StatusOK, gin.H{"schedules": choices})
}

func (s *server) renderList(c *gin.Context, status int, warning string) {
	views, err := s.jobViews(c.Request.Context())
	if err != nil {
		s.logger.Error("list jobs", "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.HTML(status, "joblist.html", gin.H{"Jobs": views, "Warning": warning})
}

func (s *server) listPage(c *gin.Context) {
	s.renderList(c, http.StatusOK, "")
}

func (s *server) runPage(c *gin.Context) {
	warning, err := s.run(c.Request.Context(), c.Param("id"))
	if err != nil {
		warning = "Could not start job: " + err.Error()
	}
	s.renderList(c, http.StatusOK, warning)
}

func (s *server) deletePage(c *gin.Context) {
	err := s.runner.DeleteJob(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.Redirect(http.StatusSeeOther, "/")
	case errors.Is(err, core.ErrJobAlreadyRunning):
		s.renderList(c, http.StatusOK, "Job is running and cannot be deleted.")
	case errors.Is(err, core.ErrJobNotFound):
		s.renderList(c, http.StatusOK, "Job not found.")
	default:
		s.logger.Error("delete job", "error", err)
		s.renderList(c, http.StatusOK, "Could not delete job.")
	}
}
