package sink

import (
	"sync"
	"sync/atomic"

	"github.com/lixenwraith/logpipe"
)

// Memory keeps the most recent records in a fixed-size ring, overwriting the oldest when full
type Memory struct {
	logpipe.SinkBase
	mu          sync.Mutex
	ring        []logpipe.Record
	head        int // next write position
	count       int
	overwritten atomic.Uint64
}

// NewMemory creates a ring holding up to capacity records
func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		return nil, errorf("%w: memory sink capacity must be positive, got %d", logpipe.ErrOutOfRange, capacity)
	}
	return &Memory{ring: make([]logpipe.Record, capacity)}, nil
}

// Write stores one record
func (s *Memory) Write(r logpipe.Record) error {
	s.mu.Lock()
	s.put(r)
	s.mu.Unlock()
	return nil
}

// WriteBatch stores records in order; records are copied so the batch slice is not retained
func (s *Memory) WriteBatch(records []logpipe.Record) error {
	s.mu.Lock()
	for _, r := range records {
		s.put(r)
	}
	s.mu.Unlock()
	return nil
}

func (s *Memory) put(r logpipe.Record) {
	if s.count == len(s.ring) {
		s.overwritten.Add(1)
	} else {
		s.count++
	}
	s.ring[s.head] = r
	s.head = (s.head + 1) % len(s.ring)
}

// Records returns the held records, oldest first
func (s *Memory) Records() []logpipe.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]logpipe.Record, 0, s.count)
	start := (s.head - s.count + len(s.ring)) % len(s.ring)
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(start+i)%len(s.ring)])
	}
	return out
}

// Len returns the number of held records
func (s *Memory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Cap returns the ring capacity
func (s *Memory) Cap() int {
	return len(s.ring)
}

// Overwritten returns how many records were evicted to make room
func (s *Memory) Overwritten() uint64 {
	return s.overwritten.Load()
}

// Reset discards all held records
func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.ring)
	s.head = 0
	s.count = 0
}
