package logpipe

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingSink keeps every record it receives
type recordingSink struct {
	SinkBase
	mu      sync.Mutex
	records []Record
	batches int
	closed  atomic.Bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{}
}

func (s *recordingSink) Write(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *recordingSink) WriteBatch(records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	s.batches++
	return nil
}

func (s *recordingSink) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *recordingSink) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *recordingSink) Batches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batches
}

// failingSink rejects every batch
type failingSink struct {
	SinkBase
	calls atomic.Int64
}

func (s *failingSink) Write(Record) error {
	return errors.New("sink unavailable")
}

func (s *failingSink) WriteBatch([]Record) error {
	s.calls.Add(1)
	return errors.New("sink unavailable")
}

// panickingSink panics on every batch
type panickingSink struct {
	SinkBase
}

func (s *panickingSink) Write(Record) error {
	panic("write exploded")
}

func (s *panickingSink) WriteBatch([]Record) error {
	panic("batch exploded")
}

// levelPanicSink panics when its level is changed
type levelPanicSink struct {
	recordingSink
}

func (s *levelPanicSink) SetMinimumLevel(int64) {
	panic("level rejected")
}

// blockingSink holds WriteBatch until released
type blockingSink struct {
	recordingSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *blockingSink) WriteBatch(records []Record) error {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.recordingSink.WriteBatch(records)
}

// eventRecorder collects telemetry events
type eventRecorder struct {
	mu      sync.Mutex
	flushes []FlushEvent
	records []RecordEvent
}

func (e *eventRecorder) FlushCompleted(ev FlushEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushes = append(e.flushes, ev)
}

func (e *eventRecorder) RecordReceived(ev RecordEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = append(e.records, ev)
}

func (e *eventRecorder) Flushes() []FlushEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]FlushEvent(nil), e.flushes...)
}

func (e *eventRecorder) Records() []RecordEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]RecordEvent(nil), e.records...)
}

// createTestManager creates a manager with auto flush disabled and one recording sink
func createTestManager(t *testing.T) (*Manager, *recordingSink) {
	t.Helper()
	sink := newRecordingSink()

	cfg := DefaultConfig()
	cfg.AutoFlush = false

	m, err := NewManager(cfg, sink)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Dispose() })

	return m, sink
}

// drain flushes until the manager reports nothing left
func drain(t *testing.T, m *Manager) int {
	t.Helper()
	total := 0
	for {
		n, err := m.Flush()
		require.NoError(t, err)
		if n == 0 {
			return total
		}
		total += n
	}
}
