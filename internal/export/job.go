package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/dvloznov/txledger/internal/jobs"
	"github.com/rs/zerolog"
)

// Pager is the listing half of service.TransactionService.
type Pager interface {
	DecodeCursor(token string) (domain.Cursor, error)
	ListRecords(ctx context.Context, c *domain.Cursor, pageSize int) (domain.Page, error)
}

// ServiceLister lets an Exporter read the store of the running process
// without going through HTTP.
type ServiceLister struct {
	Pager Pager
}

// List implements Lister.
func (l ServiceLister) List(ctx context.Context, cursor string, pageSize int) (domain.Page, error) {
	c, err := l.Pager.DecodeCursor(cursor)
	if err != nil {
		return domain.Page{}, err
	}
	return l.Pager.ListRecords(ctx, &c, pageSize)
}

// SinkOpener opens the sink for a destination string. Open is the default.
type SinkOpener func(ctx context.Context, dest string) (Sink, error)

// ValidateServerDest rejects destinations a background job cannot write to.
func ValidateServerDest(dest string) error {
	switch {
	case strings.TrimSpace(dest) == "":
		return apperr.New(apperr.Argument, "dest is required")
	case dest == "-":
		return apperr.New(apperr.Argument, "dest %q is only available to the CLI", dest)
	case strings.HasPrefix(dest, "gs://"):
		if _, _, err := ParseGCSURI(dest); err != nil {
			return apperr.Wrap(apperr.Argument, err, "invalid dest")
		}
	case strings.HasPrefix(dest, "bq://"):
		if _, _, _, err := ParseTableRef(dest); err != nil {
			return apperr.Wrap(apperr.Argument, err, "invalid dest")
		}
	}
	return nil
}

// JobHandler returns a jobs.JobHandler that exports src into each job's
// destination. Each attempt opens a fresh sink.
func JobHandler(src Lister, open SinkOpener, opts Options, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ExportJob) error {
		sink, err := open(ctx, job.Dest)
		if err != nil {
			return fmt.Errorf("open destination: %w", err)
		}

		jobOpts := opts
		if job.PageSize > 0 {
			jobOpts.PageSize = job.PageSize
		}
		jobLog := log.With().Str("job_id", job.JobID).Logger()

		n, err := New(src, jobOpts, jobLog).Export(ctx, sink)
		job.Exported = n
		if closeErr := sink.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close destination: %w", closeErr)
		}
		return err
	}
}
