// Package export copies every transaction from a running server into a
// sink by walking the listing cursor until the last page.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/rs/zerolog"
)

// Lister returns the page after cursor. client.Client satisfies it.
type Lister interface {
	List(ctx context.Context, cursor string, pageSize int) (domain.Page, error)
}

// Sink receives exported records in listing order.
type Sink interface {
	WriteBatch(ctx context.Context, txs []domain.Transaction) error
	Close() error
}

// Options tunes an Exporter.
type Options struct {
	PageSize   int
	MaxRetries int           // per page, for retryable errors
	Backoff    time.Duration // doubled after each retry
}

// DefaultOptions returns the options used by the CLI.
func DefaultOptions() Options {
	return Options{PageSize: 100, MaxRetries: 5, Backoff: 100 * time.Millisecond}
}

// Exporter walks a Lister and forwards each page to a Sink.
type Exporter struct {
	src  Lister
	opts Options
	log  zerolog.Logger
}

// New creates an Exporter.
func New(src Lister, opts Options, log zerolog.Logger) *Exporter {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	return &Exporter{src: src, opts: opts, log: log}
}

// Export copies all records into sink and returns how many were written.
// The sink is not closed.
func (e *Exporter) Export(ctx context.Context, sink Sink) (int, error) {
	total := 0
	cursor := ""
	for {
		page, err := e.fetch(ctx, cursor)
		if err != nil {
			return total, err
		}
		if len(page.Items) > 0 {
			if err := sink.WriteBatch(ctx, page.Items); err != nil {
				return total, fmt.Errorf("write batch after %d records: %w", total, err)
			}
			total += len(page.Items)
		}

		e.log.Debug().Int("batch", len(page.Items)).Int("total", total).Msg("exported page")

		if !page.HasNext {
			return total, nil
		}
		cursor = page.NextCursor
	}
}

// fetch lists one page, retrying while the server reports lock contention.
func (e *Exporter) fetch(ctx context.Context, cursor string) (domain.Page, error) {
	backoff := e.opts.Backoff
	for attempt := 0; ; attempt++ {
		page, err := e.src.List(ctx, cursor, e.opts.PageSize)
		if err == nil {
			return page, nil
		}
		if !apperr.IsRetryable(err) || attempt >= e.opts.MaxRetries {
			return domain.Page{}, fmt.Errorf("list page: %w", err)
		}

		e.log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", backoff).Msg("listing busy, retrying")
		select {
		case <-ctx.Done():
			return domain.Page{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
