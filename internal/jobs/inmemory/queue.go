// Package inmemory runs export jobs on a channel-backed worker pool inside
// the API process.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// QueueOptions sizes a Queue.
type QueueOptions struct {
	BufferSize   int           // jobs waiting for a worker before PublishExport blocks
	Workers      int           // concurrent exports
	MaxRetries   int           // applied to jobs published with MaxRetries == 0
	RetryBackoff time.Duration // multiplied by the retry number
}

// Queue is a job publisher and consumer backed by a buffered channel.
type Queue struct {
	opts      QueueOptions
	jobChan   chan *jobs.ExportJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	log       zerolog.Logger
	closed    bool
	now       func() time.Time
}

// NewQueue creates a queue. store may be nil.
func NewQueue(opts QueueOptions, store jobs.JobStore, log zerolog.Logger) *Queue {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Queue{
		opts:      opts,
		jobChan:   make(chan *jobs.ExportJob, opts.BufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		log:       log.With().Str("component", "export_queue").Logger(),
		now:       time.Now,
	}
}

// PublishExport assigns defaults, saves the job and enqueues a copy of it.
// The caller keeps ownership of job.
func (q *Queue) PublishExport(ctx context.Context, job *jobs.ExportJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return apperr.New(apperr.System, "export queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = q.now().UTC()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.opts.MaxRetries
	}

	q.save(ctx, job)

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return apperr.New(apperr.System, "export queue is closed")
	}
}

// Start launches the workers.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	for i := 0; i < q.opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	q.log.Info().Int("workers", q.opts.Workers).Msg("export workers started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs one attempt and schedules a retry on failure.
func (q *Queue) processJob(ctx context.Context, job *jobs.ExportJob, handler jobs.JobHandler) {
	log := q.log.With().Str("job_id", job.JobID).Str("dest", job.Dest).Logger()

	started := q.now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt = &started
	job.CompletedAt = nil
	job.Exported = 0
	q.save(ctx, job)

	err := handler(ctx, job)

	completed := q.now().UTC()
	job.CompletedAt = &completed

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.save(ctx, job)
		log.Info().Int("exported", job.Exported).Dur("elapsed", completed.Sub(started)).Msg("export job completed")
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.save(ctx, job)
		log.Error().Err(err).Int("retries", job.RetryCount).Msg("export job failed")
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.save(ctx, job)

	backoff := time.Duration(job.RetryCount) * q.opts.RetryBackoff
	log.Warn().Err(err).Int("retry", job.RetryCount).Dur("backoff", backoff).Msg("export job failed, retrying")

	retry := *job
	time.AfterFunc(backoff, func() {
		retry.Status = jobs.JobStatusPending
		if err := q.PublishExport(ctx, &retry); err != nil {
			retry.Status = jobs.JobStatusFailed
			retry.Error = fmt.Sprintf("requeue: %v", err)
			q.save(context.Background(), &retry)
			log.Error().Err(err).Msg("export job could not be requeued")
		}
	})
}

func (q *Queue) save(ctx context.Context, job *jobs.ExportJob) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		q.log.Error().Err(err).Str("job_id", job.JobID).Msg("saving job state")
	}
}

// Stop closes the queue and waits for in-flight jobs. Queued jobs that no
// worker picked up stay pending.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
