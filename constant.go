package logpipe

import (
	"time"
)

// Log level constants
const (
	LevelDebug int64 = -4
	LevelInfo  int64 = 0
	LevelWarn  int64 = 4
	LevelError int64 = 8
)

// LevelProc is used by pipeline heartbeat records, which bypass the global level filter
const LevelProc int64 = 12

// Record limits
const (
	defaultMaxTagLength     = 64
	defaultMaxMessageLength = 4096
)

// Heartbeat record identity
const (
	heartbeatTag     = "logpipe"
	heartbeatMessage = "heartbeat"
)

// Timers
const (
	// Minimum wait time used throughout the package
	minWaitTime = 10 * time.Millisecond
	// Default number of extra drain cycles attempted on dispose
	defaultDisposeDrainCycles = 3
)
