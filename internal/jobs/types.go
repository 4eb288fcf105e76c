// Package jobs defines background export jobs run by the API server.
package jobs

import (
	"context"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates a worker is exporting.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates every record was written to the destination.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job gave up after its retries.
	JobStatusFailed JobStatus = "failed"
	// JobStatusRetrying indicates the last attempt failed and another is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusRetrying:
		return true
	}
	return false
}

// Terminal reports whether no further attempts will be made.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ExportJob copies a snapshot of the record store to Dest.
type ExportJob struct {
	JobID    string    `json:"job_id"`
	Dest     string    `json:"dest"`
	PageSize int       `json:"page_size,omitempty"`
	Status   JobStatus `json:"status"`

	// Exported counts records written by the latest attempt.
	Exported int `json:"exported"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Publisher enqueues jobs.
type Publisher interface {
	PublishExport(ctx context.Context, job *ExportJob) error
	Close() error
}

// Consumer runs queued jobs.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops accepting jobs and waits for in-flight ones.
	Stop(ctx context.Context) error
}

// JobHandler runs one attempt of a job. A non-nil error schedules a retry
// while the job has retries left.
type JobHandler func(ctx context.Context, job *ExportJob) error

// JobStore keeps job state for status queries.
type JobStore interface {
	SaveJob(ctx context.Context, job *ExportJob) error
	GetJob(ctx context.Context, jobID string) (*ExportJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ExportJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Status JobStatus // empty matches all
	Limit  int       // 0 means no limit
}
