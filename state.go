package logpipe

import (
	"sync/atomic"
	"time"
)

// State encapsulates the runtime state and counters of a pipeline
type State struct {
	IsInitialized    atomic.Bool
	Disposed         atomic.Bool
	AutoFlushEnabled atomic.Bool

	TotalEnqueued     atomic.Uint64 // Records accepted into the queue
	TotalProcessed    atomic.Uint64 // Records drained and handed to sinks
	TotalFlushes      atomic.Uint64 // Flushes that drained at least one record
	DroppedRecords    atomic.Uint64 // Records lost to a closed queue, a producer-side fault or the capacity policy
	SkippedFlushes    atomic.Uint64 // Flushes abandoned because the flush lock was held
	SinkFailures      atomic.Uint64 // WriteBatch calls that returned an error or panicked
	TelemetryFailures atomic.Uint64 // Telemetry publishers that panicked

	HeartbeatSequence atomic.Uint64
	StartTime         atomic.Value // stores time.Time
}

// Stats is a point-in-time snapshot of pipeline counters
type Stats struct {
	Enqueued          uint64
	Processed         uint64
	Flushes           uint64
	Dropped           uint64
	SkippedFlushes    uint64
	SinkFailures      uint64
	TelemetryFailures uint64
	Pending           int
	Sinks             int
	AutoFlush         bool
	Disposed          bool
	Uptime            time.Duration
}

// snapshot copies the counters; pending and sink count are filled by the caller
func (s *State) snapshot() Stats {
	st := Stats{
		Enqueued:          s.TotalEnqueued.Load(),
		Processed:         s.TotalProcessed.Load(),
		Flushes:           s.TotalFlushes.Load(),
		Dropped:           s.DroppedRecords.Load(),
		SkippedFlushes:    s.SkippedFlushes.Load(),
		SinkFailures:      s.SinkFailures.Load(),
		TelemetryFailures: s.TelemetryFailures.Load(),
		AutoFlush:         s.AutoFlushEnabled.Load(),
		Disposed:          s.Disposed.Load(),
	}
	if start, ok := s.StartTime.Load().(time.Time); ok && !start.IsZero() {
		st.Uptime = time.Since(start)
	}
	return st
}
