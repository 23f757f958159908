package logpipe

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Manager is the pipeline entry point. Producers call Log from any goroutine;
// the host drives draining through Update or Flush.
// A zero-value Manager is uninitialized: logging is a no-op and other operations
// return ErrNotInitialized.
type Manager struct {
	id            string
	currentConfig atomic.Value // stores *Config
	state         State
	level         atomic.Int64
	limits        atomic.Pointer[recordLimits]
	publishEvents atomic.Bool

	processor *MultiSinkProcessor
	telemetry Telemetry
	diagOut   io.Writer

	// flushLock is a one-slot semaphore so acquisition can time out
	flushLock chan struct{}

	configMu          sync.Mutex // guards the fields below
	sinks             []Sink
	owned             []Sink
	autoFlushInterval float64
	autoFlushElapsed  float64
	heartbeatElapsed  float64
	lastDropped       uint64
}

// managerOptions carries construction inputs that are not part of Config
type managerOptions struct {
	sinks     []Sink
	owned     []Sink
	telemetry Telemetry
	queue     Queue
	diag      io.Writer
}

// NewManager creates an active manager delivering to sinks. A nil cfg uses the defaults.
// At least one sink is required. Sinks passed here are never closed by the manager.
func NewManager(cfg *Config, sinks ...Sink) (*Manager, error) {
	return newManager(cfg, managerOptions{sinks: sinks})
}

func newManager(cfg *Config, opts managerOptions) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg = cfg.Clone()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	all := make([]Sink, 0, len(opts.sinks)+len(opts.owned))
	all = append(all, opts.sinks...)
	all = append(all, opts.owned...)
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: at least one sink is required", ErrValidation)
	}
	for _, s := range all {
		if err := checkSink(s); err != nil {
			return nil, err
		}
	}

	m := &Manager{
		id:        uuid.NewString(),
		telemetry: opts.telemetry,
		diagOut:   opts.diag,
		flushLock: make(chan struct{}, 1),
	}
	if m.diagOut == nil {
		m.diagOut = os.Stderr
	}

	m.state.StartTime.Store(time.Now())

	processor, err := newMultiSinkProcessor(ProcessorOptions{
		MaxRecordsPerFlush: int(cfg.MaxRecordsPerFlush),
		Queue:              opts.queue,
		QueueCapacity:      int(cfg.QueueCapacity),
		DisposeDrainCycles: int(cfg.DisposeDrainCycles),
		Telemetry:          opts.telemetry,
		Diagnostics:        m.diagFor(cfg),
	}, &m.state)
	if err != nil {
		return nil, err
	}
	m.processor = processor

	m.currentConfig.Store(cfg)
	limits := cfg.limits()
	m.limits.Store(&limits)
	m.publishEvents.Store(cfg.PublishRecordEvents)
	m.level.Store(cfg.Level)

	for _, s := range all {
		if containsSink(m.sinks, s) {
			continue
		}
		if err := m.applyLevelTo(s, cfg.Level); err != nil {
			m.internalLog("%v\n", err)
		}
		m.sinks = append(m.sinks, s)
	}
	m.owned = append(m.owned, opts.owned...)
	if err := m.processor.SetSinks(m.sinks); err != nil {
		return nil, err
	}

	if cfg.AutoFlush {
		m.autoFlushInterval = cfg.AutoFlushIntervalS
		m.state.AutoFlushEnabled.Store(true)
	}

	m.state.IsInitialized.Store(true)
	return m, nil
}

// ID returns the unique identifier of this manager
func (m *Manager) ID() string {
	return m.id
}

// Log enqueues a record. It never blocks and never fails; records below the global
// level, with an empty message, or arriving after Dispose are discarded.
func (m *Manager) Log(level int64, tag, message string) {
	m.LogWithProperties(level, tag, message, nil)
}

// LogWithProperties enqueues a record carrying structured properties.
// The map is copied before the call returns.
func (m *Manager) LogWithProperties(level int64, tag, message string, props Properties) {
	if !m.accepting(level, message) {
		return
	}
	m.enqueue(newRecord(level, tag, message, props, *m.limits.Load()))
}

// Enqueue submits a prebuilt record, subject to the same filters and limits as Log.
// Properties are copied; a zero timestamp is stamped with the current time.
func (m *Manager) Enqueue(r Record) {
	if !m.accepting(r.Level, r.Message) {
		return
	}
	rec := newRecord(r.Level, r.Tag, r.Message, r.Properties, *m.limits.Load())
	if !r.Timestamp.IsZero() {
		rec.Timestamp = r.Timestamp
	}
	m.enqueue(rec)
}

// Debug logs a message at debug level
func (m *Manager) Debug(tag, message string) {
	m.Log(LevelDebug, tag, message)
}

// Info logs a message at info level
func (m *Manager) Info(tag, message string) {
	m.Log(LevelInfo, tag, message)
}

// Warn logs a message at warning level
func (m *Manager) Warn(tag, message string) {
	m.Log(LevelWarn, tag, message)
}

// Error logs a message at error level
func (m *Manager) Error(tag, message string) {
	m.Log(LevelError, tag, message)
}

func (m *Manager) accepting(level int64, message string) bool {
	if !m.state.IsInitialized.Load() || m.state.Disposed.Load() {
		return false
	}
	return message != "" && level >= m.level.Load()
}

// enqueue hands a record to the processor; faults on this path count as drops
func (m *Manager) enqueue(r Record) {
	defer func() {
		if rec := recover(); rec != nil {
			m.state.DroppedRecords.Add(1)
			m.internalLog("enqueue failed: %v\n", rec)
		}
	}()

	if !m.processor.Enqueue(r) {
		return
	}
	if m.telemetry != nil && m.publishEvents.Load() {
		m.publishRecord(RecordEvent{Level: r.Level, Tag: r.Tag})
	}
}

func (m *Manager) publishRecord(e RecordEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			m.state.TelemetryFailures.Add(1)
			m.internalLog("telemetry record event failed: %v\n", rec)
		}
	}()
	m.telemetry.RecordReceived(e)
}

// AddSink adds a sink and applies the global level to it unless it is pinned.
// Adding a sink already present is a no-op.
func (m *Manager) AddSink(s Sink) error {
	if err := checkSink(s); err != nil {
		return err
	}
	if err := m.checkActive(); err != nil {
		return err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}
	if containsSink(m.sinks, s) {
		return nil
	}
	if err := m.applyLevelTo(s, m.level.Load()); err != nil {
		m.internalLog("%v\n", err)
	}
	m.sinks = append(m.sinks, s)
	return m.processor.SetSinks(m.sinks)
}

// RemoveSink removes a sink, reporting whether it was present.
// A removed sink is no longer closed by the manager on Dispose.
func (m *Manager) RemoveSink(s Sink) (bool, error) {
	if err := checkSink(s); err != nil {
		return false, err
	}
	if err := m.checkActive(); err != nil {
		return false, err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return false, ErrAlreadyDisposed
	}
	next, removed := withoutSink(m.sinks, s)
	if !removed {
		return false, nil
	}
	m.sinks = next
	m.owned, _ = withoutSink(m.owned, s)
	return true, m.processor.SetSinks(m.sinks)
}

// Sinks returns a copy of the current sink list
func (m *Manager) Sinks() []Sink {
	if !m.state.IsInitialized.Load() {
		return nil
	}
	m.configMu.Lock()
	defer m.configMu.Unlock()
	out := make([]Sink, len(m.sinks))
	copy(out, m.sinks)
	return out
}

// SetGlobalMinimumLevel sets the level below which Log discards records and
// propagates it to every sink that is not pinned. A sink failing to accept the
// level is reported internally and skipped.
func (m *Manager) SetGlobalMinimumLevel(level int64) error {
	if err := m.checkActive(); err != nil {
		return err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}
	m.setLevelLocked(level)

	cfg := m.getConfig().Clone()
	cfg.Level = level
	m.currentConfig.Store(cfg)
	return nil
}

// GlobalMinimumLevel returns the current global minimum level
func (m *Manager) GlobalMinimumLevel() int64 {
	return m.level.Load()
}

// setLevelLocked stores the level and propagates it. Caller holds configMu.
func (m *Manager) setLevelLocked(level int64) {
	m.level.Store(level)
	for _, s := range m.sinks {
		if err := m.applyLevelTo(s, level); err != nil {
			m.internalLog("%v\n", err)
		}
	}
}

// applyLevelTo sets level on an unpinned sink, converting a panic into an error
func (m *Manager) applyLevelTo(s Sink, level int64) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmtErrorf("sink %T rejected level %d: %v", s, level, rec)
		}
	}()
	if isPinned(s) {
		return nil
	}
	s.SetMinimumLevel(level)
	return nil
}

// EnableAutoFlush makes Update flush every intervalSeconds of accumulated time
func (m *Manager) EnableAutoFlush(intervalSeconds float64) error {
	if err := m.checkActive(); err != nil {
		return err
	}
	if !finitePositive(intervalSeconds) {
		return fmt.Errorf("%w: auto flush interval must be positive, got %v", ErrOutOfRange, intervalSeconds)
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}
	m.autoFlushInterval = intervalSeconds
	m.autoFlushElapsed = 0
	m.state.AutoFlushEnabled.Store(true)

	cfg := m.getConfig().Clone()
	cfg.AutoFlush = true
	cfg.AutoFlushIntervalS = intervalSeconds
	m.currentConfig.Store(cfg)
	return nil
}

// DisableAutoFlush stops Update from flushing. Explicit Flush calls still work.
func (m *Manager) DisableAutoFlush() error {
	if err := m.checkActive(); err != nil {
		return err
	}

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}
	m.state.AutoFlushEnabled.Store(false)
	m.autoFlushElapsed = 0

	cfg := m.getConfig().Clone()
	cfg.AutoFlush = false
	m.currentConfig.Store(cfg)
	return nil
}

// AutoFlushEnabled reports whether Update triggers flushes
func (m *Manager) AutoFlushEnabled() bool {
	return m.state.AutoFlushEnabled.Load()
}

// Update advances the host clock by deltaSeconds. When the accumulated time reaches
// the auto flush interval exactly one flush runs and its drained count is returned.
// Negative, NaN and infinite deltas are ignored. A flush skipped because another
// flush holds the lock returns 0 and nil; it shows up in Stats.SkippedFlushes.
func (m *Manager) Update(deltaSeconds float64) (int, error) {
	if err := m.checkActive(); err != nil {
		return 0, err
	}
	if deltaSeconds < 0 || math.IsNaN(deltaSeconds) || math.IsInf(deltaSeconds, 0) {
		return 0, nil
	}

	m.configMu.Lock()
	heartbeatDue := m.advanceHeartbeat(deltaSeconds)
	flushDue := false
	if m.state.AutoFlushEnabled.Load() {
		m.autoFlushElapsed += deltaSeconds
		if m.autoFlushElapsed >= m.autoFlushInterval {
			m.autoFlushElapsed = 0
			flushDue = true
		}
	}
	m.configMu.Unlock()

	if heartbeatDue {
		m.logHeartbeat()
	}
	if !flushDue {
		return 0, nil
	}

	n, err := m.Flush()
	if errors.Is(err, ErrFlushSkipped) {
		return 0, nil
	}
	return n, err
}

// Flush drains at most max_records_per_flush records to the sinks.
// Returns ErrFlushSkipped when the flush lock is not acquired within flush_lock_timeout_ms,
// and 0 with a nil error when there was nothing to drain.
func (m *Manager) Flush() (int, error) {
	if err := m.checkActive(); err != nil {
		return 0, err
	}

	if !m.acquireFlushLock(m.getConfig().flushLockTimeout()) {
		m.state.SkippedFlushes.Add(1)
		return 0, ErrFlushSkipped
	}
	defer m.releaseFlushLock()

	if m.state.Disposed.Load() {
		return 0, ErrAlreadyDisposed
	}

	n, err := m.processor.Flush()
	if err != nil {
		if errors.Is(err, ErrAlreadyDisposed) {
			return 0, err
		}
		return n, fmtErrorf("flush: %w", err)
	}
	return n, nil
}

// Pending returns the approximate number of queued records
func (m *Manager) Pending() int {
	if !m.state.IsInitialized.Load() {
		return 0
	}
	return m.processor.Pending()
}

// Stats returns a snapshot of pipeline counters
func (m *Manager) Stats() Stats {
	st := m.state.snapshot()
	if m.state.IsInitialized.Load() {
		st.Pending = m.processor.Pending()
		st.Sinks = len(*m.processor.sinks.Load())
	}
	return st
}

// Dispose stops the pipeline: it disables auto flush, drains a bounded number of
// final batches, closes the sinks the manager owns and clears the sink list.
// Calling Dispose more than once is a no-op.
func (m *Manager) Dispose() error {
	if !m.state.IsInitialized.Load() {
		return nil
	}
	if !m.state.Disposed.CompareAndSwap(false, true) {
		return nil
	}
	m.state.AutoFlushEnabled.Store(false)

	m.configMu.Lock()
	defer m.configMu.Unlock()

	var finalErr error

	timeout := m.getConfig().disposeTimeout()
	if m.acquireFlushLock(timeout) {
		defer m.releaseFlushLock()
	} else {
		finalErr = fmtErrorf("flush lock not acquired within %v, disposing anyway", timeout)
	}

	if err := m.processor.Dispose(); err != nil {
		finalErr = combineErrors(finalErr, err)
	}

	for _, s := range m.owned {
		if err := closeSink(s); err != nil {
			finalErr = combineErrors(finalErr, fmtErrorf("failed to close sink %T: %w", s, err))
		}
	}

	m.owned = nil
	m.sinks = nil
	_ = m.processor.SetSinks(nil)

	return finalErr
}

// GetConfig returns a copy of the current configuration, nil if uninitialized
func (m *Manager) GetConfig() *Config {
	cfg := m.getConfig()
	if cfg == nil {
		return nil
	}
	return cfg.Clone()
}

// ApplyConfig validates cfg and applies it to the running pipeline.
// Level, budget, capacity, limits, auto flush and diagnostics take effect immediately.
func (m *Manager) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: config", ErrNullArgument)
	}
	if err := m.checkActive(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmtErrorf("invalid configuration: %w", err)
	}
	cfg = cfg.Clone()

	m.configMu.Lock()
	defer m.configMu.Unlock()

	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}

	if err := m.processor.SetMaxRecordsPerFlush(int(cfg.MaxRecordsPerFlush)); err != nil {
		return err
	}
	if err := m.processor.SetQueueCapacity(int(cfg.QueueCapacity)); err != nil {
		return err
	}
	m.processor.core.setDiagnostics(m.diagFor(cfg))

	oldCfg := m.getConfig()
	m.currentConfig.Store(cfg)

	limits := cfg.limits()
	m.limits.Store(&limits)
	m.publishEvents.Store(cfg.PublishRecordEvents)

	if oldCfg == nil || oldCfg.Level != cfg.Level || m.level.Load() != cfg.Level {
		m.setLevelLocked(cfg.Level)
	}

	if cfg.AutoFlush {
		if m.autoFlushInterval != cfg.AutoFlushIntervalS {
			m.autoFlushElapsed = 0
		}
		m.autoFlushInterval = cfg.AutoFlushIntervalS
		m.state.AutoFlushEnabled.Store(true)
	} else {
		m.state.AutoFlushEnabled.Store(false)
		m.autoFlushElapsed = 0
	}

	if cfg.HeartbeatIntervalS == 0 {
		m.heartbeatElapsed = 0
	}

	return nil
}

// getConfig returns the current configuration without copying
func (m *Manager) getConfig() *Config {
	cfg, _ := m.currentConfig.Load().(*Config)
	return cfg
}

func (m *Manager) checkActive() error {
	if !m.state.IsInitialized.Load() {
		return ErrNotInitialized
	}
	if m.state.Disposed.Load() {
		return ErrAlreadyDisposed
	}
	return nil
}

func (m *Manager) acquireFlushLock(timeout time.Duration) bool {
	select {
	case m.flushLock <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.flushLock <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

func (m *Manager) releaseFlushLock() {
	<-m.flushLock
}

// diagFor returns the diagnostics destination selected by cfg
func (m *Manager) diagFor(cfg *Config) io.Writer {
	if !cfg.InternalErrorsToStderr {
		return nil
	}
	return m.diagOut
}

// internalLog writes manager diagnostics when internal_errors_to_stderr is set
func (m *Manager) internalLog(format string, args ...any) {
	cfg := m.getConfig()
	if cfg == nil || !cfg.InternalErrorsToStderr {
		return
	}
	if !strings.HasPrefix(format, "logpipe: ") {
		format = "logpipe: " + format
	}
	fmt.Fprintf(m.diagOut, format, args...)
}

// closeSink closes s if it implements io.Closer, converting a panic into an error
func closeSink(s Sink) (err error) {
	c, ok := s.(io.Closer)
	if !ok {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("close panicked: %v", rec)
		}
	}()
	return c.Close()
}

func withoutSink(sinks []Sink, s Sink) ([]Sink, bool) {
	next := make([]Sink, 0, len(sinks))
	removed := false
	for _, existing := range sinks {
		if existing == s {
			removed = true
			continue
		}
		next = append(next, existing)
	}
	return next, removed
}
