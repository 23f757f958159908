package logpipe

import (
	"fmt"
	"io"
)

// Builder provides a fluent API for assembling a Manager.
// Errors are accumulated and reported by Build.
type Builder struct {
	cfg  *Config
	opts managerOptions
	err  error
}

// NewBuilder creates a builder starting from the default configuration
func NewBuilder() *Builder {
	return &Builder{
		cfg: DefaultConfig(),
	}
}

// Build validates the accumulated settings and creates the Manager
func (b *Builder) Build() (*Manager, error) {
	if b.err != nil {
		return nil, b.err
	}
	return newManager(b.cfg, b.opts)
}

// Config replaces the whole configuration
func (b *Builder) Config(cfg *Config) *Builder {
	if cfg == nil {
		b.err = combineErrors(b.err, fmt.Errorf("%w: config", ErrNullArgument))
		return b
	}
	b.cfg = cfg.Clone()
	return b
}

// Level sets the global minimum level
func (b *Builder) Level(level int64) *Builder {
	b.cfg.Level = level
	return b
}

// LevelString sets the global minimum level by name
func (b *Builder) LevelString(level string) *Builder {
	levelVal, err := Level(level)
	if err != nil {
		b.err = combineErrors(b.err, err)
		return b
	}
	b.cfg.Level = levelVal
	return b
}

// MaxRecordsPerFlush sets the flush budget
func (b *Builder) MaxRecordsPerFlush(n int64) *Builder {
	b.cfg.MaxRecordsPerFlush = n
	return b
}

// AutoFlushInterval enables auto flush every intervalSeconds of Update time
func (b *Builder) AutoFlushInterval(intervalSeconds float64) *Builder {
	b.cfg.AutoFlush = true
	b.cfg.AutoFlushIntervalS = intervalSeconds
	return b
}

// ManualFlush disables auto flush; only explicit Flush calls drain
func (b *Builder) ManualFlush() *Builder {
	b.cfg.AutoFlush = false
	return b
}

// QueueCapacity bounds the backlog, 0 is unbounded
func (b *Builder) QueueCapacity(n int64) *Builder {
	b.cfg.QueueCapacity = n
	return b
}

// HeartbeatIntervalS sets the heartbeat interval, 0 disables it
func (b *Builder) HeartbeatIntervalS(interval float64) *Builder {
	b.cfg.HeartbeatIntervalS = interval
	return b
}

// PublishRecordEvents toggles per-record telemetry events
func (b *Builder) PublishRecordEvents(enable bool) *Builder {
	b.cfg.PublishRecordEvents = enable
	return b
}

// InternalErrorsToStderr toggles internal diagnostics
func (b *Builder) InternalErrorsToStderr(enable bool) *Builder {
	b.cfg.InternalErrorsToStderr = enable
	return b
}

// Override applies "key=value" strings using the same keys as the TOML file
func (b *Builder) Override(overrides ...string) *Builder {
	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			b.err = combineErrors(b.err, err)
			continue
		}
		if err := applyConfigField(b.cfg, key, value); err != nil {
			b.err = combineErrors(b.err, err)
		}
	}
	return b
}

// Sink adds a sink owned by the caller
func (b *Builder) Sink(s Sink) *Builder {
	b.opts.sinks = append(b.opts.sinks, s)
	return b
}

// OwnedSink adds a sink the manager closes on Dispose if it implements io.Closer
func (b *Builder) OwnedSink(s Sink) *Builder {
	b.opts.owned = append(b.opts.owned, s)
	return b
}

// Telemetry sets the event publisher
func (b *Builder) Telemetry(t Telemetry) *Builder {
	b.opts.telemetry = t
	return b
}

// Queue supplies an externally owned queue; the manager never closes it
func (b *Builder) Queue(q Queue) *Builder {
	b.opts.queue = q
	return b
}

// Diagnostics redirects internal error output, stderr by default.
// Output is still gated by internal_errors_to_stderr.
func (b *Builder) Diagnostics(w io.Writer) *Builder {
	b.opts.diag = w
	return b
}

// Example usage:
//
//	m, err := logpipe.NewBuilder().
//		LevelString("debug").
//		MaxRecordsPerFlush(500).
//		AutoFlushInterval(0.05).
//		OwnedSink(fileSink).
//		Build()
//	if err == nil {
//		defer m.Dispose()
//		m.Info("app", "pipeline ready")
//	}
