package logpipe

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// BatchProcessor drains queued records in bounded batches.
// Enqueue is safe from any goroutine. Flush must not run concurrently on one instance;
// a concurrent call returns ErrFlushSkipped instead of draining.
type BatchProcessor interface {
	Enqueue(r Record) bool
	Flush() (int, error)
	Pending() int
	Dispose() error
}

// ProcessorOptions configures a batch processor
type ProcessorOptions struct {
	// MaxRecordsPerFlush bounds the records drained by one Flush call, must be positive
	MaxRecordsPerFlush int
	// Queue is an externally owned queue; nil makes the processor create and own an MPSCQueue.
	// A processor never closes a queue it does not own.
	Queue Queue
	// QueueCapacity discards the oldest records beyond this backlog at each flush, 0 is unbounded
	QueueCapacity int
	// DisposeDrainCycles is the number of flushes attempted on Dispose, <= 0 uses the default
	DisposeDrainCycles int
	// Telemetry receives flush events, may be nil
	Telemetry Telemetry
	// Diagnostics receives internal error reports, nil discards them
	Diagnostics io.Writer
}

// diagWriter is a wrapper around an io.Writer, atomic value type change workaround
type diagWriter struct {
	w io.Writer
}

// processorCore holds the queue, budget and buffer shared by both processor variants
type processorCore struct {
	queue       Queue
	ownsQueue   bool
	maxPerFlush atomic.Int64
	capacity    atomic.Int64
	drainCycles int
	telemetry   Telemetry
	diag        atomic.Value // stores diagWriter
	state       *State

	flushing atomic.Bool
	disposed atomic.Bool
	batch    []Record // reused across flushes, guarded by flushing
}

// init validates options and prepares the core in place
func (c *processorCore) init(opts ProcessorOptions, state *State) error {
	if opts.MaxRecordsPerFlush <= 0 {
		return fmt.Errorf("%w: max records per flush must be positive, got %d", ErrOutOfRange, opts.MaxRecordsPerFlush)
	}
	if opts.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue capacity cannot be negative, got %d", ErrOutOfRange, opts.QueueCapacity)
	}
	if state == nil {
		state = &State{}
		state.IsInitialized.Store(true)
		state.StartTime.Store(time.Now())
	}
	c.state = state

	if opts.Queue != nil {
		c.queue = opts.Queue
	} else {
		c.queue = NewMPSCQueue()
		c.ownsQueue = true
	}

	c.maxPerFlush.Store(int64(opts.MaxRecordsPerFlush))
	c.capacity.Store(int64(opts.QueueCapacity))
	c.drainCycles = opts.DisposeDrainCycles
	if c.drainCycles <= 0 {
		c.drainCycles = defaultDisposeDrainCycles
	}
	c.telemetry = opts.Telemetry
	c.setDiagnostics(opts.Diagnostics)
	c.batch = make([]Record, 0, min(opts.MaxRecordsPerFlush, 4096))
	return nil
}

func (c *processorCore) setDiagnostics(w io.Writer) {
	c.diag.Store(diagWriter{w: w})
}

// internalLog reports processor faults to the diagnostics writer, if any
func (c *processorCore) internalLog(format string, args ...any) {
	dw, _ := c.diag.Load().(diagWriter)
	if dw.w == nil {
		return
	}
	if !strings.HasPrefix(format, "logpipe: ") {
		format = "logpipe: " + format
	}
	fmt.Fprintf(dw.w, format, args...)
}

func (c *processorCore) enqueue(r Record) bool {
	if c.disposed.Load() {
		return false
	}
	if !c.queue.Enqueue(r) {
		c.state.DroppedRecords.Add(1)
		return false
	}
	c.state.TotalEnqueued.Add(1)
	return true
}

func (c *processorCore) setQueueCapacity(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: queue capacity cannot be negative, got %d", ErrOutOfRange, n)
	}
	c.capacity.Store(int64(n))
	return nil
}

func (c *processorCore) setMaxRecordsPerFlush(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: max records per flush must be positive, got %d", ErrOutOfRange, n)
	}
	c.maxPerFlush.Store(int64(n))
	return nil
}

// flush runs one bounded drain unless disposed or already flushing
func (c *processorCore) flush(deliver func([]Record) int) (int, error) {
	if c.disposed.Load() {
		return 0, ErrAlreadyDisposed
	}
	if !c.flushing.CompareAndSwap(false, true) {
		c.state.SkippedFlushes.Add(1)
		return 0, ErrFlushSkipped
	}
	defer c.flushing.Store(false)
	return c.drain(deliver)
}

// drain moves up to the flush budget from the queue into the batch buffer and delivers it.
// Caller holds the flushing flag.
func (c *processorCore) drain(deliver func([]Record) int) (drained int, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			clear(c.batch)
			c.batch = c.batch[:0]
			err = fmtErrorf("flush failed after draining %d records: %v", drained, r)
		}
	}()

	dropped := c.enforceCapacity()

	n := min(c.queue.Len(), int(c.maxPerFlush.Load()))
	if n <= 0 {
		if dropped > 0 {
			c.publishFlush(FlushEvent{
				RecordsRemaining: c.queue.Len(),
				RecordsDropped:   dropped,
				ProcessingTime:   time.Since(start),
			})
		}
		return 0, nil
	}

	c.batch = c.batch[:0]
	for len(c.batch) < n {
		r, ok := c.queue.TryDequeue()
		if !ok {
			break // in-flight enqueue, picked up next cycle
		}
		c.batch = append(c.batch, r)
	}
	drained = len(c.batch)
	if drained == 0 {
		return 0, nil
	}

	failures := deliver(c.batch)

	clear(c.batch)
	c.batch = c.batch[:0]

	c.state.TotalProcessed.Add(uint64(drained))
	c.state.TotalFlushes.Add(1)

	c.publishFlush(FlushEvent{
		RecordsProcessed: drained,
		RecordsRemaining: c.queue.Len(),
		RecordsDropped:   dropped,
		SinkFailures:     failures,
		ProcessingTime:   time.Since(start),
	})

	return drained, nil
}

// enforceCapacity discards the oldest records beyond the configured capacity
func (c *processorCore) enforceCapacity() int {
	capacity := int(c.capacity.Load())
	if capacity <= 0 {
		return 0
	}
	excess := c.queue.Len() - capacity
	dropped := 0
	for dropped < excess {
		if _, ok := c.queue.TryDequeue(); !ok {
			break
		}
		dropped++
	}
	if dropped > 0 {
		c.state.DroppedRecords.Add(uint64(dropped))
	}
	return dropped
}

// publishFlush sends a flush event, containing publisher panics
func (c *processorCore) publishFlush(e FlushEvent) {
	if c.telemetry == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.state.TelemetryFailures.Add(1)
			c.internalLog("telemetry flush event failed: %v\n", r)
		}
	}()
	c.telemetry.FlushCompleted(e)
}

// dispose drains a bounded number of extra cycles, then releases the queue if owned
func (c *processorCore) dispose(deliver func([]Record) int) error {
	if !c.disposed.CompareAndSwap(false, true) {
		return nil
	}

	// Wait out a flush already in progress
	acquired := false
	for i := 0; i < 100; i++ {
		if c.flushing.CompareAndSwap(false, true) {
			acquired = true
			break
		}
		time.Sleep(minWaitTime)
	}
	if !acquired {
		return fmtErrorf("dispose could not acquire the processor, in-flight flush did not finish")
	}
	defer c.flushing.Store(false)

	var finalErr error
	for i := 0; i < c.drainCycles; i++ {
		n, err := c.drain(deliver)
		if err != nil {
			finalErr = combineErrors(finalErr, err)
			break
		}
		if n == 0 {
			break
		}
	}

	if c.ownsQueue {
		c.queue.Close()
	}
	c.batch = nil
	return finalErr
}

// MultiSinkProcessor fans each batch out to a set of sinks.
// The sink set is an immutable snapshot swapped on change, so a flush never sees a list
// mutated mid fan-out.
type MultiSinkProcessor struct {
	core    processorCore
	sinks   atomic.Pointer[[]Sink]
	sinkMu  sync.Mutex // serializes copy-on-write updates
	scratch []Record   // per-sink filtered view, guarded by the flushing flag
}

// NewMultiSinkProcessor creates a processor delivering to the given sinks
func NewMultiSinkProcessor(opts ProcessorOptions, sinks ...Sink) (*MultiSinkProcessor, error) {
	return newMultiSinkProcessor(opts, nil, sinks...)
}

func newMultiSinkProcessor(opts ProcessorOptions, state *State, sinks ...Sink) (*MultiSinkProcessor, error) {
	p := &MultiSinkProcessor{}
	if err := p.core.init(opts, state); err != nil {
		return nil, err
	}
	initial := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if err := checkSink(s); err != nil {
			return nil, err
		}
		if !containsSink(initial, s) {
			initial = append(initial, s)
		}
	}
	p.sinks.Store(&initial)
	return p, nil
}

// Enqueue appends a record to the queue
func (p *MultiSinkProcessor) Enqueue(r Record) bool {
	return p.core.enqueue(r)
}

// Flush drains at most the flush budget and writes the batch to every sink.
// Returns the number of records drained, not the number delivered.
func (p *MultiSinkProcessor) Flush() (int, error) {
	return p.core.flush(p.deliver)
}

// Pending returns the current backlog
func (p *MultiSinkProcessor) Pending() int {
	return p.core.queue.Len()
}

// Dispose drains best-effort and releases the queue if owned. Safe to call more than once.
func (p *MultiSinkProcessor) Dispose() error {
	return p.core.dispose(p.deliver)
}

// SetMaxRecordsPerFlush changes the flush budget
func (p *MultiSinkProcessor) SetMaxRecordsPerFlush(n int) error {
	return p.core.setMaxRecordsPerFlush(n)
}

// SetQueueCapacity changes the backlog bound, 0 removes it
func (p *MultiSinkProcessor) SetQueueCapacity(n int) error {
	return p.core.setQueueCapacity(n)
}

// MaxRecordsPerFlush returns the flush budget
func (p *MultiSinkProcessor) MaxRecordsPerFlush() int {
	return int(p.core.maxPerFlush.Load())
}

// AddSink adds a sink if not already present
func (p *MultiSinkProcessor) AddSink(s Sink) error {
	if err := checkSink(s); err != nil {
		return err
	}
	if p.core.disposed.Load() {
		return ErrAlreadyDisposed
	}
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()

	current := *p.sinks.Load()
	if containsSink(current, s) {
		return nil
	}
	next := make([]Sink, len(current), len(current)+1)
	copy(next, current)
	next = append(next, s)
	p.sinks.Store(&next)
	return nil
}

// RemoveSink removes a sink, reporting whether it was present
func (p *MultiSinkProcessor) RemoveSink(s Sink) bool {
	if checkSink(s) != nil {
		return false
	}
	p.sinkMu.Lock()
	defer p.sinkMu.Unlock()

	next, removed := withoutSink(*p.sinks.Load(), s)
	if removed {
		p.sinks.Store(&next)
	}
	return removed
}

// Sinks returns the current sink snapshot
func (p *MultiSinkProcessor) Sinks() []Sink {
	current := *p.sinks.Load()
	out := make([]Sink, len(current))
	copy(out, current)
	return out
}

// SetSinks replaces the whole sink set, dropping duplicates
func (p *MultiSinkProcessor) SetSinks(sinks []Sink) error {
	next := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if err := checkSink(s); err != nil {
			return err
		}
		if !containsSink(next, s) {
			next = append(next, s)
		}
	}
	p.sinkMu.Lock()
	p.sinks.Store(&next)
	p.sinkMu.Unlock()
	return nil
}

// deliver writes the batch to each sink in the snapshot, returning the failure count
func (p *MultiSinkProcessor) deliver(batch []Record) int {
	snapshot := *p.sinks.Load()
	failures := 0
	for _, s := range snapshot {
		if err := p.writeSink(s, batch); err != nil {
			failures++
			p.core.state.SinkFailures.Add(1)
			p.core.internalLog("sink %T failed to write batch of %d: %v\n", s, len(batch), err)
		}
	}
	clear(p.scratch)
	p.scratch = p.scratch[:0]
	return failures
}

// writeSink isolates one sink, converting panics into errors
func (p *MultiSinkProcessor) writeSink(s Sink, batch []Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if !s.Enabled() {
		return nil
	}
	view := p.filterFor(s, batch)
	if len(view) == 0 {
		return nil
	}
	return s.WriteBatch(view)
}

// filterFor returns batch itself when every record passes the sink's gates,
// otherwise a filtered copy in the scratch buffer
func (p *MultiSinkProcessor) filterFor(s Sink, batch []Record) []Record {
	i := 0
	for i < len(batch) && accepts(s, batch[i]) {
		i++
	}
	if i == len(batch) {
		return batch
	}
	p.scratch = append(p.scratch[:0], batch[:i]...)
	for _, r := range batch[i+1:] {
		if accepts(s, r) {
			p.scratch = append(p.scratch, r)
		}
	}
	return p.scratch
}

// AdapterProcessor drives a single legacy batch writer with no per-sink filtering.
// It has no sink management methods.
type AdapterProcessor struct {
	core   processorCore
	target BatchWriter
}

// NewAdapterProcessor creates a processor delivering every batch to target
func NewAdapterProcessor(opts ProcessorOptions, target BatchWriter) (*AdapterProcessor, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: target", ErrNullArgument)
	}
	p := &AdapterProcessor{target: target}
	if err := p.core.init(opts, nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Enqueue appends a record to the queue
func (p *AdapterProcessor) Enqueue(r Record) bool {
	return p.core.enqueue(r)
}

// Flush drains at most the flush budget into the target
func (p *AdapterProcessor) Flush() (int, error) {
	return p.core.flush(p.deliver)
}

// Pending returns the current backlog
func (p *AdapterProcessor) Pending() int {
	return p.core.queue.Len()
}

// Dispose drains best-effort and releases the queue if owned
func (p *AdapterProcessor) Dispose() error {
	return p.core.dispose(p.deliver)
}

func (p *AdapterProcessor) deliver(batch []Record) (failures int) {
	defer func() {
		if r := recover(); r != nil {
			failures = 1
			p.core.state.SinkFailures.Add(1)
			p.core.internalLog("adapter target panicked: %v\n", r)
		}
	}()
	if err := p.target.WriteBatch(batch); err != nil {
		p.core.state.SinkFailures.Add(1)
		p.core.internalLog("adapter target failed to write batch of %d: %v\n", len(batch), err)
		return 1
	}
	return 0
}

// checkSink rejects nil sinks and sinks whose dynamic type cannot be compared,
// since sink identity is interface equality
func checkSink(s Sink) error {
	if s == nil {
		return fmt.Errorf("%w: sink", ErrNullArgument)
	}
	if t := reflect.TypeOf(s); !t.Comparable() {
		return fmt.Errorf("%w: sink type %s is not comparable, pass a pointer", ErrValidation, t)
	}
	return nil
}

func containsSink(sinks []Sink, s Sink) bool {
	for _, existing := range sinks {
		if existing == s {
			return true
		}
	}
	return false
}
