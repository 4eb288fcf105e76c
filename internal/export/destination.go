package export

import (
	"context"
	"io"
	"os"
	"strings"
)

// OpenOptions carries settings for cloud destinations.
type OpenOptions struct {
	CreateTable bool // bq:// only
}

// Open returns the sink for dest:
//
//	-                          standard output
//	gs://bucket/object         Cloud Storage object (NDJSON)
//	bq://project.dataset.table BigQuery table
//	file:///path or a path     local file (NDJSON)
func Open(ctx context.Context, dest string, opts OpenOptions) (Sink, error) {
	switch {
	case dest == "-":
		return NewNDJSONSink(struct{ io.Writer }{os.Stdout}), nil
	case strings.HasPrefix(dest, "gs://"):
		bucket, object, err := ParseGCSURI(dest)
		if err != nil {
			return nil, err
		}
		return NewGCSSink(ctx, bucket, object)
	case strings.HasPrefix(dest, "bq://"):
		project, dataset, table, err := ParseTableRef(dest)
		if err != nil {
			return nil, err
		}
		return NewBigQuerySink(ctx, project, dataset, table, opts.CreateTable)
	default:
		return NewFileSink(strings.TrimPrefix(dest, "file://"))
	}
}
