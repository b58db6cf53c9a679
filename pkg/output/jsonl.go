package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// JSONLSink writes one JSON object per line to an underlying writer (a
// file, typically). Writes are serialized by a mutex so concurrent Output
// worker calls never interleave partial lines.
type JSONLSink struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// NewJSONLSink wraps w. If w also implements io.Closer, Close releases it;
// otherwise Close is a no-op.
func NewJSONLSink(w io.Writer) *JSONLSink {
	sink := &JSONLSink{w: w}
	if c, ok := w.(io.Closer); ok {
		sink.closer = c
	}
	return sink
}

func (s *JSONLSink) Write(ctx context.Context, record Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("jsonl sink: marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonl sink: write: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

var _ Sink = (*JSONLSink)(nil)
