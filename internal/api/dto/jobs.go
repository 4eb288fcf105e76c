package dto

import (
	"time"

	"github.com/dvloznov/txledger/internal/domain"
	"github.com/dvloznov/txledger/internal/jobs"
)

// ExportRequest is the body of POST /api/v1/exports.
type ExportRequest struct {
	Dest     string `json:"dest"`
	PageSize int    `json:"pageSize,omitempty"`
}

// ExportJob is the wire form of a background export. Times are epoch
// milliseconds, 0 when unset.
type ExportJob struct {
	JobID       string `json:"jobId"`
	Dest        string `json:"dest"`
	PageSize    int    `json:"pageSize,omitempty"`
	Status      string `json:"status"`
	Exported    int    `json:"exported"`
	CreatedAt   int64  `json:"createdAt"`
	StartedAt   int64  `json:"startedAt,omitempty"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	Error       string `json:"error,omitempty"`
	RetryCount  int    `json:"retryCount"`
	MaxRetries  int    `json:"maxRetries"`
}

// ExportJobData wraps one job in a response.
type ExportJobData struct {
	Job ExportJob `json:"job"`
}

// ExportJobList is the body of GET /api/v1/exports.
type ExportJobList struct {
	Jobs []ExportJob `json:"jobs"`
}

// FromJob converts job state to its wire form.
func FromJob(j *jobs.ExportJob) ExportJob {
	return ExportJob{
		JobID:       j.JobID,
		Dest:        j.Dest,
		PageSize:    j.PageSize,
		Status:      string(j.Status),
		Exported:    j.Exported,
		CreatedAt:   domain.Millis(j.CreatedAt),
		StartedAt:   millisPtr(j.StartedAt),
		CompletedAt: millisPtr(j.CompletedAt),
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		MaxRetries:  j.MaxRetries,
	}
}

func millisPtr(ts *time.Time) int64 {
	if ts == nil {
		return 0
	}
	return domain.Millis(*ts)
}
