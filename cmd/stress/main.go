package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/logpipe"
	"github.com/lixenwraith/logpipe/sink"
	"github.com/lixenwraith/logpipe/telemetry"
)

type options struct {
	producers   int
	records     int
	maxMessage  int
	tick        time.Duration
	budget      int64
	capacity    int64
	configFile  string
	sinkFile    string
	overrides   []string
	metricsAddr string
}

var levels = []int64{
	logpipe.LevelDebug,
	logpipe.LevelInfo,
	logpipe.LevelWarn,
	logpipe.LevelError,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Drive a logpipe pipeline with concurrent producers and a host update loop",
		Long: `stress starts N producer goroutines that log as fast as they can while a
host loop calls Update at a fixed tick, the way a simulation frame loop would.
It reports throughput and pipeline statistics when the producers finish.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.producers, "producers", "p", 8, "number of producer goroutines")
	f.IntVarP(&opts.records, "records", "n", 100000, "records per producer")
	f.IntVar(&opts.maxMessage, "max-message", 256, "maximum random message size in bytes")
	f.DurationVar(&opts.tick, "tick", 16*time.Millisecond, "host update interval")
	f.Int64Var(&opts.budget, "budget", 200, "maximum records drained per flush")
	f.Int64Var(&opts.capacity, "capacity", 0, "queue capacity, 0 for unbounded")
	f.StringVarP(&opts.configFile, "config", "c", "", "pipeline TOML config with a [logpipe] table")
	f.StringVarP(&opts.sinkFile, "sinks", "s", "", "sink TOML config with [[sink]] tables, defaults to an in-memory ring")
	f.StringArrayVarP(&opts.overrides, "set", "o", nil, "config override key=value, repeatable")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if opts.producers <= 0 || opts.records <= 0 || opts.tick <= 0 {
		return fmt.Errorf("producers, records and tick must be positive")
	}

	cfg := logpipe.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := logpipe.NewConfigFromFile(opts.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	cfg.Level = logpipe.LevelDebug
	cfg.MaxRecordsPerFlush = opts.budget
	cfg.QueueCapacity = opts.capacity
	cfg.AutoFlushIntervalS = opts.tick.Seconds()

	reg := prometheus.NewRegistry()
	b := logpipe.NewBuilder().
		Config(cfg).
		Override(opts.overrides...).
		Telemetry(telemetry.NewPrometheus(reg, "stress"))

	var ring *sink.Memory
	if opts.sinkFile != "" {
		cfgs, err := sink.LoadConfigs(opts.sinkFile)
		if err != nil {
			return err
		}
		if err := sink.Attach(b, cfgs); err != nil {
			return err
		}
	} else {
		var err error
		if ring, err = sink.NewMemory(1024); err != nil {
			return err
		}
		b.OwnedSink(ring)
	}

	m, err := b.Build()
	if err != nil {
		return err
	}

	if opts.metricsAddr != "" {
		server := &http.Server{
			Addr:              opts.metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
			}
		}()
		defer server.Close()
		fmt.Printf("Serving metrics on %s/metrics\n", opts.metricsAddr)
	}

	fmt.Printf("Starting: %d producers x %d records, budget %d, tick %v\n",
		opts.producers, opts.records, opts.budget, opts.tick)

	start := time.Now()
	producersDone := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)

	for p := range opts.producers {
		g.Go(func() error {
			return produce(gctx, m, p, opts)
		})
	}
	go func() {
		_ = g.Wait()
		close(producersDone)
	}()

	produced := hostLoop(ctx, m, opts.tick, producersDone)
	elapsed := time.Since(start)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stats := m.Stats()
	fmt.Printf("\n--- Finished in %v (producers done after %v) ---\n",
		elapsed.Round(time.Millisecond), produced.Round(time.Millisecond))
	printStats(stats, elapsed)
	if ring != nil {
		fmt.Printf("memory ring held %d records, %d overwritten\n", ring.Len(), ring.Overwritten())
	}

	fmt.Println("Disposing pipeline...")
	return m.Dispose()
}

// produce logs opts.records random records as fast as possible
func produce(ctx context.Context, m *logpipe.Manager, id int, opts *options) error {
	tag := fmt.Sprintf("producer-%d", id)
	for seq := range opts.records {
		if seq%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		level := levels[rand.IntN(len(levels))]
		m.LogWithProperties(level, tag, randomMessage(rand.IntN(opts.maxMessage)+10), logpipe.Properties{
			"seq": seq,
			"rnd": rand.Int64(),
		})
	}
	return nil
}

// hostLoop calls Update every tick until the producers finish and the queue is empty,
// returning how long the producers ran
func hostLoop(ctx context.Context, m *logpipe.Manager, tick time.Duration, producersDone <-chan struct{}) time.Duration {
	start := time.Now()
	last := start
	var produced time.Duration
	done := producersDone

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n[Signal received] stopping host loop")
			return time.Since(start)
		case <-done:
			produced = time.Since(start)
			done = nil
		case now := <-ticker.C:
			if _, err := m.Update(now.Sub(last).Seconds()); err != nil {
				fmt.Fprintf(os.Stderr, "update: %v\n", err)
			}
			last = now

			stats := m.Stats()
			fmt.Printf("\rpending %-9d processed %-10d dropped %-8d", stats.Pending, stats.Processed, stats.Dropped)
			if done == nil && stats.Pending == 0 {
				return produced
			}
		}
	}
}

func printStats(s logpipe.Stats, elapsed time.Duration) {
	fmt.Printf("enqueued        %d\n", s.Enqueued)
	fmt.Printf("processed       %d\n", s.Processed)
	fmt.Printf("dropped         %d\n", s.Dropped)
	fmt.Printf("flushes         %d\n", s.Flushes)
	fmt.Printf("skipped flushes %d\n", s.SkippedFlushes)
	fmt.Printf("sink failures   %d\n", s.SinkFailures)
	if secs := elapsed.Seconds(); secs > 0 {
		fmt.Printf("throughput      %.0f records/s\n", float64(s.Processed)/secs)
	}
}

func randomMessage(size int) string {
	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 "
	var sb strings.Builder
	sb.Grow(size)
	for range size {
		sb.WriteByte(chars[rand.IntN(len(chars))])
	}
	return sb.String()
}
