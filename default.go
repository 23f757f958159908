package logpipe

import (
	"sync/atomic"
)

// defaultManager backs the package-level functions. Until SetDefault is called
// it holds an uninitialized Manager, so logging is a no-op.
var defaultManager atomic.Pointer[Manager]

func init() {
	defaultManager.Store(&Manager{})
}

// SetDefault installs m as the package-level manager and returns the previous one.
// A nil m restores the no-op manager.
func SetDefault(m *Manager) *Manager {
	if m == nil {
		m = &Manager{}
	}
	return defaultManager.Swap(m)
}

// Default returns the package-level manager
func Default() *Manager {
	return defaultManager.Load()
}

// Log enqueues a record on the default manager
func Log(level int64, tag, message string) {
	Default().Log(level, tag, message)
}

// LogWithProperties enqueues a record with properties on the default manager
func LogWithProperties(level int64, tag, message string, props Properties) {
	Default().LogWithProperties(level, tag, message, props)
}

// Debug logs a message at debug level
func Debug(tag, message string) {
	Default().Debug(tag, message)
}

// Info logs a message at info level
func Info(tag, message string) {
	Default().Info(tag, message)
}

// Warn logs a message at warning level
func Warn(tag, message string) {
	Default().Warn(tag, message)
}

// Error logs a message at error level
func Error(tag, message string) {
	Default().Error(tag, message)
}

// Update drives the default manager's auto flush
func Update(deltaSeconds float64) (int, error) {
	return Default().Update(deltaSeconds)
}

// Flush drains one batch from the default manager
func Flush() (int, error) {
	return Default().Flush()
}

// Dispose disposes the default manager
func Dispose() error {
	return Default().Dispose()
}
