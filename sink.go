package logpipe

import (
	"sync/atomic"
)

// Sink is an output endpoint for log records.
// All methods are called from the single draining goroutine; sinks that also accept
// direct writes from elsewhere are responsible for their own locking.
type Sink interface {
	Enabled() bool
	MinimumLevel() int64
	SetMinimumLevel(level int64)
	ShouldProcess(r Record) bool
	Write(r Record) error
	// WriteBatch receives a slice owned by the processor; it must not be retained
	WriteBatch(records []Record) error
}

// LevelPinner is implemented by sinks whose minimum level is set per-sink and
// must not follow the pipeline's global level
type LevelPinner interface {
	LevelPinned() bool
}

// BatchWriter is the single legacy endpoint driven by an AdapterProcessor
type BatchWriter interface {
	WriteBatch(records []Record) error
}

// tagFilter holds inclusion and exclusion tag sets
type tagFilter struct {
	include map[string]struct{}
	exclude map[string]struct{}
}

// SinkBase implements the filtering half of the Sink contract and is meant to be embedded.
// The zero value is enabled, at level 0, with no tag filter.
type SinkBase struct {
	disabled atomic.Bool
	pinned   atomic.Bool
	minLevel atomic.Int64
	filter   atomic.Pointer[tagFilter]
}

// Enabled reports whether the sink accepts records
func (b *SinkBase) Enabled() bool {
	return !b.disabled.Load()
}

// SetEnabled toggles the sink
func (b *SinkBase) SetEnabled(enabled bool) {
	b.disabled.Store(!enabled)
}

// MinimumLevel returns the lowest level this sink accepts
func (b *SinkBase) MinimumLevel() int64 {
	return b.minLevel.Load()
}

// SetMinimumLevel sets the lowest level this sink accepts
func (b *SinkBase) SetMinimumLevel(level int64) {
	b.minLevel.Store(level)
}

// PinLevel sets the minimum level and detaches it from the global level
func (b *SinkBase) PinLevel(level int64) {
	b.minLevel.Store(level)
	b.pinned.Store(true)
}

// UnpinLevel lets the global level apply again on the next propagation
func (b *SinkBase) UnpinLevel() {
	b.pinned.Store(false)
}

// LevelPinned implements LevelPinner
func (b *SinkBase) LevelPinned() bool {
	return b.pinned.Load()
}

// SetTagFilter replaces the tag filter. An empty include list accepts every tag not excluded.
func (b *SinkBase) SetTagFilter(include, exclude []string) {
	if len(include) == 0 && len(exclude) == 0 {
		b.filter.Store(nil)
		return
	}
	f := &tagFilter{}
	if len(include) > 0 {
		f.include = make(map[string]struct{}, len(include))
		for _, t := range include {
			f.include[t] = struct{}{}
		}
	}
	if len(exclude) > 0 {
		f.exclude = make(map[string]struct{}, len(exclude))
		for _, t := range exclude {
			f.exclude[t] = struct{}{}
		}
	}
	b.filter.Store(f)
}

// ShouldProcess applies the tag filter
func (b *SinkBase) ShouldProcess(r Record) bool {
	f := b.filter.Load()
	if f == nil {
		return true
	}
	if _, excluded := f.exclude[r.Tag]; excluded {
		return false
	}
	if f.include != nil {
		_, included := f.include[r.Tag]
		return included
	}
	return true
}

// accepts applies every per-sink gate except the enable flag
func accepts(s Sink, r Record) bool {
	return r.Level >= s.MinimumLevel() && s.ShouldProcess(r)
}

// isPinned reports whether s opts out of global level propagation
func isPinned(s Sink) bool {
	p, ok := s.(LevelPinner)
	return ok && p.LevelPinned()
}
