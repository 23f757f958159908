package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/sink"
)

// Reconfigure a pipeline rapidly while producers log and the host loop flushes
func main() {
	var count atomic.Int64

	primary, err := sink.NewMemory(10000)
	if err != nil {
		panic(err)
	}
	m, err := logpipe.NewBuilder().Sink(primary).Build()
	if err != nil {
		panic(err)
	}

	stop := make(chan struct{})
	defer close(stop)

	// Log something constantly
	go func() {
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			m.LogWithProperties(logpipe.LevelInfo, "reconfig", "test log", logpipe.Properties{"i": i})
			count.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	// Host loop
	go func() {
		const tick = 5 * time.Millisecond
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = m.Update(tick.Seconds())
			}
		}
	}()

	// Trigger multiple reconfigurations rapidly
	extra, _ := sink.NewMemory(10000)
	for i := 0; i < 10; i++ {
		budget := fmt.Sprintf("max_records_per_flush=%d", 10*(i+1))
		if err := m.ApplyConfigString(budget); err != nil {
			fmt.Printf("Reconfigure error: %v\n", err)
		}
		if i%2 == 0 {
			_ = m.AddSink(extra)
		} else {
			_, _ = m.RemoveSink(extra)
		}
		level := logpipe.LevelDebug
		if i%2 == 1 {
			level = logpipe.LevelInfo
		}
		_ = m.SetGlobalMinimumLevel(level)
		time.Sleep(10 * time.Millisecond)
	}

	time.Sleep(500 * time.Millisecond)
	fmt.Printf("Records attempted: %d\n", count.Load())

	if err := m.Dispose(); err != nil {
		fmt.Printf("Dispose error: %v\n", err)
	}

	stats := m.Stats()
	fmt.Printf("Processed %d, dropped %d, primary sink holds %d, extra sink holds %d\n",
		stats.Processed, stats.Dropped, primary.Len(), extra.Len())
}
