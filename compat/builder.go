package compat

import (
	"fmt"

	"github.com/lixenwraith/logpipe"
)

// Builder creates adapters for gnet and fasthttp that share one Manager.
// It uses an existing *logpipe.Manager or creates one from a *logpipe.Config and sinks.
type Builder struct {
	manager *logpipe.Manager
	cfg     *logpipe.Config
	sinks   []logpipe.Sink
	err     error
}

// NewBuilder creates a new adapter builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithManager specifies an existing manager for the adapters.
// Recommended for applications that already have a central pipeline.
// If this is set WithConfig and WithSinks are ignored.
func (b *Builder) WithManager(m *logpipe.Manager) *Builder {
	if m == nil {
		b.err = fmt.Errorf("logpipe/compat: provided manager cannot be nil")
		return b
	}
	b.manager = m
	return b
}

// WithConfig provides a configuration for a new manager.
// Used only if an existing manager is NOT provided via WithManager.
func (b *Builder) WithConfig(cfg *logpipe.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithSinks provides the sinks for a new manager
func (b *Builder) WithSinks(sinks ...logpipe.Sink) *Builder {
	b.sinks = append(b.sinks, sinks...)
	return b
}

// getManager resolves the manager to be used, creating one if necessary
func (b *Builder) getManager() (*logpipe.Manager, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.manager != nil {
		return b.manager, nil
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = logpipe.DefaultConfig()
	}
	m, err := logpipe.NewManager(cfg, b.sinks...)
	if err != nil {
		return nil, err
	}

	// Cache the manager for subsequent builds with this builder
	b.manager = m
	return m, nil
}

// BuildGnet creates a gnet adapter
func (b *Builder) BuildGnet(opts ...GnetOption) (*GnetAdapter, error) {
	m, err := b.getManager()
	if err != nil {
		return nil, err
	}
	return NewGnetAdapter(m, opts...), nil
}

// BuildStructuredGnet creates a gnet adapter that extracts key=value pairs
// from format strings into record properties
func (b *Builder) BuildStructuredGnet(opts ...GnetOption) (*StructuredGnetAdapter, error) {
	m, err := b.getManager()
	if err != nil {
		return nil, err
	}
	return NewStructuredGnetAdapter(m, opts...), nil
}

// BuildFastHTTP creates a fasthttp adapter
func (b *Builder) BuildFastHTTP(opts ...FastHTTPOption) (*FastHTTPAdapter, error) {
	m, err := b.getManager()
	if err != nil {
		return nil, err
	}
	return NewFastHTTPAdapter(m, opts...), nil
}

// GetManager returns the underlying manager, creating it if needed
func (b *Builder) GetManager() (*logpipe.Manager, error) {
	return b.getManager()
}

// --- Example Usage ---
//
//	// 1. Create the application's pipeline
//	m, err := logpipe.NewBuilder().
//		LevelString("debug").
//		OwnedSink(sink.NewConsole(sink.TargetStdout, nil)).
//		Build()
//	if err != nil { /* handle error */ }
//	defer m.Dispose()
//
//	// 2. Build adapters sharing it
//	builder := compat.NewBuilder().WithManager(m)
//	gnetLogger, _ := builder.BuildGnet()
//	fasthttpLogger, _ := builder.BuildFastHTTP()
//
//	// 3. Hand them to the servers
//	go gnet.Run(events, "tcp://:9000", gnet.WithLogger(gnetLogger))
//	server := &fasthttp.Server{Handler: handler, Logger: fasthttpLogger}
//
//	// 4. Drive the pipeline from the application's loop
//	for range ticker.C {
//		m.Update(tick.Seconds())
//	}
