package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/txledger/internal/domain"
	"google.golang.org/api/option"
)

// GCSSink streams NDJSON into a Cloud Storage object. The object becomes
// visible when Close finalizes the upload.
type GCSSink struct {
	client *storage.Client
	writer *storage.Writer
	ndjson *NDJSONSink
}

// NewGCSSink opens a writer on gs://bucket/object. It uses Application
// Default Credentials unless opts say otherwise.
func NewGCSSink(ctx context.Context, bucket, object string, opts ...option.ClientOption) (*GCSSink, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	return &GCSSink{
		client: client,
		writer: w,
		// Hide the writer's Close so only GCSSink.Close finalizes the upload.
		ndjson: NewNDJSONSink(struct{ io.Writer }{w}),
	}, nil
}

// WriteBatch implements Sink.
func (s *GCSSink) WriteBatch(ctx context.Context, txs []domain.Transaction) error {
	return s.ndjson.WriteBatch(ctx, txs)
}

// Close finalizes the upload and releases the client.
func (s *GCSSink) Close() error {
	defer s.client.Close()
	if err := s.writer.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}

// ParseGCSURI splits gs://bucket/path/to/object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}

	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

var _ Sink = (*GCSSink)(nil)
