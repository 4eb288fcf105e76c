package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/jobs"
)

// Store keeps job state in memory. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]jobs.ExportJob
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]jobs.ExportJob)}
}

// SaveJob stores a copy of job, replacing any previous state.
func (s *Store) SaveJob(_ context.Context, job *jobs.ExportJob) error {
	if job.JobID == "" {
		return apperr.New(apperr.Argument, "job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = copyJob(job)
	return nil
}

// GetJob returns a copy of the job.
func (s *Store) GetJob(_ context.Context, jobID string) (*jobs.ExportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("GetJob: %w", apperr.ForID(apperr.NotFound, jobID))
	}
	c := copyJob(&job)
	return &c, nil
}

// ListJobs returns matching jobs, newest first.
func (s *Store) ListJobs(_ context.Context, filter jobs.JobFilter) ([]*jobs.ExportJob, error) {
	s.mu.RLock()
	result := make([]*jobs.ExportJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		c := copyJob(&job)
		result = append(result, &c)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].JobID < result[j].JobID
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// copyJob copies job including the values behind its time pointers.
func copyJob(job *jobs.ExportJob) jobs.ExportJob {
	c := *job
	if job.StartedAt != nil {
		t := *job.StartedAt
		c.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return c
}

var _ jobs.JobStore = (*Store)(nil)
