package export

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/dvloznov/txledger/internal/apperr"
	"github.com/dvloznov/txledger/internal/idregistry"
	"github.com/dvloznov/txledger/internal/jobs"
	"github.com/dvloznov/txledger/internal/service"
	"github.com/dvloznov/txledger/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededService(t *testing.T, n int) *service.Transactions {
	t.Helper()
	svc := service.New(
		idregistry.New(idregistry.DefaultStart),
		store.New(store.DefaultOptions(), zerolog.Nop()),
		zerolog.Nop(),
	)
	for i, tx := range makeTransactions(n) {
		_, err := svc.CreateRecord(context.Background(), "token-"+strconv.Itoa(i), tx)
		require.NoError(t, err)
	}
	return svc
}

func TestServiceLister_WalksStore(t *testing.T) {
	src := ServiceLister{Pager: seededService(t, 7)}
	sink := &memorySink{}

	n, err := New(src, Options{PageSize: 3}, zerolog.Nop()).Export(context.Background(), sink)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Len(t, sink.batches, 3)
	assert.Equal(t, []string{"1001", "1002", "1003", "1004", "1005", "1006", "1007"}, sink.ids())
}

func TestServiceLister_BadCursor(t *testing.T) {
	src := ServiceLister{Pager: seededService(t, 1)}

	_, err := src.List(context.Background(), "!!!!", 10)
	assert.True(t, errors.Is(err, apperr.ErrCursor))
}

func TestJobHandler(t *testing.T) {
	sink := &memorySink{}
	var openedDest string
	open := func(_ context.Context, dest string) (Sink, error) {
		openedDest = dest
		return sink, nil
	}

	handler := JobHandler(ServiceLister{Pager: seededService(t, 5)}, open, Options{PageSize: 100}, zerolog.Nop())
	job := &jobs.ExportJob{JobID: "job-1", Dest: "gs://bucket/snapshot.ndjson", PageSize: 2}

	require.NoError(t, handler(context.Background(), job))
	assert.Equal(t, "gs://bucket/snapshot.ndjson", openedDest)
	assert.Equal(t, 5, job.Exported)
	assert.Len(t, sink.batches, 3, "job page size overrides the default")
	assert.True(t, sink.closed)
}

func TestJobHandler_OpenError(t *testing.T) {
	open := func(context.Context, string) (Sink, error) {
		return nil, errors.New("permission denied")
	}

	handler := JobHandler(ServiceLister{Pager: seededService(t, 1)}, open, DefaultOptions(), zerolog.Nop())
	err := handler(context.Background(), &jobs.ExportJob{JobID: "job-1", Dest: "/root/forbidden"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestJobHandler_ClosesSinkOnFailure(t *testing.T) {
	sink := &memorySink{failOn: 1}
	open := func(context.Context, string) (Sink, error) { return sink, nil }

	handler := JobHandler(ServiceLister{Pager: seededService(t, 3)}, open, DefaultOptions(), zerolog.Nop())
	job := &jobs.ExportJob{JobID: "job-1", Dest: "/tmp/x"}

	require.Error(t, handler(context.Background(), job))
	assert.True(t, sink.closed)
	assert.Zero(t, job.Exported)
}

func TestValidateServerDest(t *testing.T) {
	tests := []struct {
		dest    string
		wantErr bool
	}{
		{"", true},
		{"-", true},
		{"gs://bucket", true},
		{"bq://project.dataset", true},
		{"gs://bucket/object.ndjson", false},
		{"bq://project.dataset.table", false},
		{"/var/exports/out.ndjson", false},
		{"file:///var/exports/out.ndjson", false},
	}

	for _, tt := range tests {
		t.Run(tt.dest, func(t *testing.T) {
			err := ValidateServerDest(tt.dest)
			if tt.wantErr {
				assert.True(t, errors.Is(err, apperr.ErrArgument), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

var _ Pager = (*service.Transactions)(nil)
