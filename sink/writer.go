// Package sink provides concrete output endpoints for a logpipe Manager.
package sink

import (
	"io"
	"sync"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/formatter"
)

// Writer formats records and writes each batch to an io.Writer in one call
type Writer struct {
	logpipe.SinkBase
	mu     sync.Mutex
	w      io.Writer
	format *formatter.Formatter
	buf    []byte
}

// NewWriter creates a sink writing to w. A nil formatter uses the txt default.
func NewWriter(w io.Writer, f *formatter.Formatter) *Writer {
	if f == nil {
		f = formatter.New()
	}
	return &Writer{
		w:      w,
		format: f,
		buf:    make([]byte, 0, 4096),
	}
}

// Write formats and writes a single record
func (s *Writer) Write(r logpipe.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.w.Write(s.format.Format(r))
	return err
}

// WriteBatch formats every record into one buffer and writes it once
func (s *Writer) WriteBatch(records []logpipe.Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = s.buf[:0]
	for _, r := range records {
		s.buf = append(s.buf, s.format.Format(r)...)
	}
	_, err := s.w.Write(s.buf)

	// Don't hold on to an oversized buffer after a burst
	if cap(s.buf) > maxRetainedBuffer {
		s.buf = make([]byte, 0, 4096)
	}
	return err
}

// Close closes the underlying writer when it is an io.Closer
func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

const maxRetainedBuffer = 1 << 20
