// Package memory is an in-process store.ImportStore used when no database
// is configured.
package memory

import (
	"context"
	"sync"

	"github.com/narvanalabs/causeway/internal/models"
	"github.com/narvanalabs/causeway/internal/store"
)

// Store keeps jobs in memory. Jobs are copied on the way in and out.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*models.ImportJob
	results map[string][]*models.ImportResult
}

// New creates an empty store.
func New() *Store {
	return &Store{
		jobs:    make(map[string]*models.ImportJob),
		results: make(map[string][]*models.ImportResult),
	}
}

var _ store.ImportStore = (*Store)(nil)

// CreateJob stores a new job.
func (s *Store) CreateJob(ctx context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// UpdateJob replaces the stored job fields.
func (s *Store) UpdateJob(ctx context.Context, job *models.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return store.ErrNotFound
	}
	s.jobs[job.ID] = copyJob(job)
	return nil
}

// GetJob returns a job with its results.
func (s *Store) GetJob(ctx context.Context, id string) (*models.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := copyJob(job)
	out.Results = copyResults(s.results[id])
	return out, nil
}

// AddResult appends a build result to a job.
func (s *Store) AddResult(ctx context.Context, jobID string, result *models.ImportResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return store.ErrNotFound
	}
	r := *result
	s.results[jobID] = append(s.results[jobID], &r)
	return nil
}

// ListResults returns the results of a job.
func (s *Store) ListResults(ctx context.Context, jobID string) ([]*models.ImportResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, store.ErrNotFound
	}
	return copyResults(s.results[jobID]), nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func copyJob(job *models.ImportJob) *models.ImportJob {
	c := *job
	c.BuildIDs = append([]string(nil), job.BuildIDs...)
	c.Results = nil
	if job.FinishedAt != nil {
		t := *job.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func copyResults(results []*models.ImportResult) []*models.ImportResult {
	out := make([]*models.ImportResult, 0, len(results))
	for _, r := range results {
		c := *r
		out = append(out, &c)
	}
	return out
}
