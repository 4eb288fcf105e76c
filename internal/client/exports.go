package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/api/handlers"
)

// SubmitExport asks the server to export every record to dest in the
// background. pageSize 0 uses the server default.
func (c *Client) SubmitExport(ctx context.Context, dest string, pageSize int) (dto.ExportJob, error) {
	var env dto.Envelope[dto.ExportJobData]
	req := dto.ExportRequest{Dest: dest, PageSize: pageSize}
	if _, err := c.do(ctx, http.MethodPost, handlers.ExportsPath, nil, req, &env); err != nil {
		return dto.ExportJob{}, fmt.Errorf("submit export: %w", err)
	}
	return env.Data.Job, nil
}

// GetExport fetches the state of one export job.
func (c *Client) GetExport(ctx context.Context, jobID string) (dto.ExportJob, error) {
	var env dto.Envelope[dto.ExportJobData]
	path := handlers.ExportsPath + "/" + url.PathEscape(jobID)
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &env); err != nil {
		return dto.ExportJob{}, fmt.Errorf("get export %s: %w", jobID, err)
	}
	return env.Data.Job, nil
}

// ListExports lists export jobs, newest first. Empty status matches all;
// limit 0 means no limit.
func (c *Client) ListExports(ctx context.Context, status string, limit int) ([]dto.ExportJob, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var env dto.Envelope[dto.ExportJobList]
	if _, err := c.do(ctx, http.MethodGet, handlers.ExportsPath, q, nil, &env); err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return env.Data.Jobs, nil
}
