package runner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/jdziat/simple-job-runner/pkg/core"
)

// memStore is an in-memory core.Store for runner tests.
type memStore struct {
	mu   sync.Mutex
	jobs map[string]*core.Job
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*core.Job)}
}

func (s *memStore) add(kind string, params string) *core.Job {
	job := &core.Job{
		ID:          uuid.New().String(),
		Description: kind + " job",
		Kind:        kind,
		Params:      []byte(params),
		Status:      core.StatusReady,
		CreatedAt:   time.Now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

func (s *memStore) get(id string) core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) Migrate(context.Context) error { return nil }

func (s *memStore) FetchByID(_ context.Context, id string) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrJobNotFound, id)
	}
	cp := *job
	return &cp, nil
}

func (s *memStore) UpdateStatus(_ context.Context, id string, status core.JobStatus, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.ErrJobNotFound
	}
	job.Status = status
	job.LastError = lastError
	return nil
}

func (s *memStore) SetLastExecuted(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return core.ErrJobNotFound
	}
	job.LastExecuted = &at
	return nil
}

func (s *memStore) Create(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) List(context.Context) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *memStore) Update(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return core.ErrJobNotFound
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return core.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

// mockStore is a testify mock of core.Store.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) FetchByID(ctx context.Context, id string) (*core.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*core.Job)
	return job, args.Error(1)
}

func (m *mockStore) UpdateStatus(ctx context.Context, id string, status core.JobStatus, lastError string) error {
	return m.Called(ctx, id, status, lastError).Error(0)
}

func (m *mockStore) SetLastExecuted(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *mockStore) Create(ctx context.Context, job *core.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) List(ctx context.Context) ([]*core.Job, error) {
	args := m.Called(ctx)
	jobs, _ := args.Get(0).([]*core.Job)
	return jobs, args.Error(1)
}

func (m *mockStore) Update(ctx context.Context, job *core.Job) error {
	return m.Called(ctx, job).Error(0)
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
