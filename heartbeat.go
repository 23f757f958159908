package logpipe

import (
	"fmt"
	"runtime"
)

// advanceHeartbeat accumulates host time and reports whether a heartbeat is due.
// Caller holds configMu.
func (m *Manager) advanceHeartbeat(deltaSeconds float64) bool {
	interval := m.getConfig().HeartbeatIntervalS
	if interval <= 0 {
		return false
	}
	m.heartbeatElapsed += deltaSeconds
	if m.heartbeatElapsed < interval {
		return false
	}
	m.heartbeatElapsed = 0
	return true
}

// logHeartbeat enqueues a pipeline statistics record at LevelProc.
// It goes straight to the processor so the global level never filters it.
func (m *Manager) logHeartbeat() {
	if m.state.Disposed.Load() {
		return
	}

	sequence := m.state.HeartbeatSequence.Add(1)
	st := m.Stats()

	props := Properties{
		"type":            "proc",
		"sequence":        sequence,
		"uptime_hours":    fmt.Sprintf("%.2f", st.Uptime.Hours()),
		"enqueued":        st.Enqueued,
		"processed":       st.Processed,
		"dropped":         st.Dropped,
		"pending":         st.Pending,
		"skipped_flushes": st.SkippedFlushes,
		"sink_failures":   st.SinkFailures,
		"goroutines":      runtime.NumGoroutine(),
	}

	// Drops since the previous heartbeat
	m.configMu.Lock()
	droppedInInterval := st.Dropped - m.lastDropped
	m.lastDropped = st.Dropped
	m.configMu.Unlock()
	if droppedInInterval > 0 {
		props["dropped_since_last"] = droppedInInterval
	}

	m.enqueue(newRecord(LevelProc, heartbeatTag, heartbeatMessage, props, *m.limits.Load()))
}
