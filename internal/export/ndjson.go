package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/txledger/internal/api/dto"
	"github.com/dvloznov/txledger/internal/domain"
)

// NDJSONSink writes one JSON object per line in the API wire format.
type NDJSONSink struct {
	enc    *json.Encoder
	closer io.Closer
}

// NewNDJSONSink writes to w. Close closes w when it is an io.Closer.
func NewNDJSONSink(w io.Writer) *NDJSONSink {
	s := &NDJSONSink{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// NewFileSink creates (or truncates) path and writes to it.
func NewFileSink(path string) (*NDJSONSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create export file %q: %w", path, err)
	}
	return NewNDJSONSink(f), nil
}

// WriteBatch implements Sink.
func (s *NDJSONSink) WriteBatch(_ context.Context, txs []domain.Transaction) error {
	for _, tx := range txs {
		if err := s.enc.Encode(dto.FromDomain(tx)); err != nil {
			return fmt.Errorf("encode transaction %s: %w", tx.ID, err)
		}
	}
	return nil
}

// Close implements Sink.
func (s *NDJSONSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

var _ Sink = (*NDJSONSink)(nil)
