package telemetry

import (
	"github.com/lixenwraith/logpipe"
)

// Fanout forwards every event to each publisher in order. A panicking publisher
// does not stop the others; the first panic is re-raised once all have run so the
// pipeline still counts it.
type Fanout []logpipe.Telemetry

// NewFanout drops nil publishers
func NewFanout(publishers ...logpipe.Telemetry) Fanout {
	f := make(Fanout, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			f = append(f, p)
		}
	}
	return f
}

// FlushCompleted implements logpipe.Telemetry
func (f Fanout) FlushCompleted(e logpipe.FlushEvent) {
	f.each(func(p logpipe.Telemetry) { p.FlushCompleted(e) })
}

// RecordReceived implements logpipe.Telemetry
func (f Fanout) RecordReceived(e logpipe.RecordEvent) {
	f.each(func(p logpipe.Telemetry) { p.RecordReceived(e) })
}

func (f Fanout) each(call func(logpipe.Telemetry)) {
	var first any
	for _, p := range f {
		if r := safeCall(call, p); r != nil && first == nil {
			first = r
		}
	}
	if first != nil {
		panic(first)
	}
}

func safeCall(call func(logpipe.Telemetry), p logpipe.Telemetry) (recovered any) {
	defer func() { recovered = recover() }()
	call(p)
	return nil
}
