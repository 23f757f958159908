package logpipe

import (
	"time"
)

// FlushEvent is published after each flush that drained at least one record
type FlushEvent struct {
	RecordsProcessed int
	RecordsRemaining int
	RecordsDropped   int // discarded by the queue capacity policy before draining
	SinkFailures     int
	ProcessingTime   time.Duration
}

// ProcessingTimeMs returns the processing time in fractional milliseconds
func (e FlushEvent) ProcessingTimeMs() float64 {
	return float64(e.ProcessingTime) / float64(time.Millisecond)
}

// RecordEvent is published after a record is accepted into the queue
type RecordEvent struct {
	Level int64
	Tag   string
}

// Telemetry receives fire-and-forget pipeline events.
// Implementations must be cheap; a panicking publisher is contained and counted.
type Telemetry interface {
	FlushCompleted(e FlushEvent)
	RecordReceived(e RecordEvent)
}

// TelemetryFuncs adapts plain functions to Telemetry; nil fields are skipped
type TelemetryFuncs struct {
	OnFlush  func(FlushEvent)
	OnRecord func(RecordEvent)
}

// FlushCompleted implements Telemetry
func (t TelemetryFuncs) FlushCompleted(e FlushEvent) {
	if t.OnFlush != nil {
		t.OnFlush(e)
	}
}

// RecordReceived implements Telemetry
func (t TelemetryFuncs) RecordReceived(e RecordEvent) {
	if t.OnRecord != nil {
		t.OnRecord(e)
	}
}
