// Package telemetry provides publishers for pipeline flush and record events.
package telemetry

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lixenwraith/logpipe"
)

const metricsPrefix = "logpipe_"

// Prometheus exports pipeline events as Prometheus metrics.
// Every metric carries a constant "pipeline" label so several managers can share a registry.
type Prometheus struct {
	received      *prometheus.CounterVec
	processed     prometheus.Counter
	dropped       prometheus.Counter
	sinkFailures  prometheus.Counter
	flushes       prometheus.Counter
	backlog       prometheus.Gauge
	flushDuration prometheus.Histogram
}

// NewPrometheus registers the pipeline metrics with reg. A nil reg uses the default registerer.
// Registering the same pipeline name twice on one registry panics.
func NewPrometheus(reg prometheus.Registerer, pipeline string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	labels := prometheus.Labels{"pipeline": pipeline}

	return &Prometheus{
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Name:        metricsPrefix + "records_received_total",
			Help:        "Number of records accepted into the queue grouped by level",
			ConstLabels: labels,
		}, []string{"level"}),
		processed: factory.NewCounter(prometheus.CounterOpts{
			Name:        metricsPrefix + "records_processed_total",
			Help:        "Number of records drained and fanned out to sinks",
			ConstLabels: labels,
		}),
		dropped: factory.NewCounter(prometheus.CounterOpts{
			Name:        metricsPrefix + "records_dropped_total",
			Help:        "Number of records discarded by the queue capacity policy",
			ConstLabels: labels,
		}),
		sinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name:        metricsPrefix + "sink_failures_total",
			Help:        "Number of failed sink batch writes",
			ConstLabels: labels,
		}),
		flushes: factory.NewCounter(prometheus.CounterOpts{
			Name:        metricsPrefix + "flushes_total",
			Help:        "Number of flushes that published an event",
			ConstLabels: labels,
		}),
		backlog: factory.NewGauge(prometheus.GaugeOpts{
			Name:        metricsPrefix + "backlog_records",
			Help:        "Records still queued after the last flush",
			ConstLabels: labels,
		}),
		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:        metricsPrefix + "flush_duration_seconds",
			Help:        "Time spent draining and fanning out one batch",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
	}
}

// FlushCompleted implements logpipe.Telemetry
func (p *Prometheus) FlushCompleted(e logpipe.FlushEvent) {
	p.flushes.Inc()
	p.processed.Add(float64(e.RecordsProcessed))
	p.dropped.Add(float64(e.RecordsDropped))
	p.sinkFailures.Add(float64(e.SinkFailures))
	p.backlog.Set(float64(e.RecordsRemaining))
	p.flushDuration.Observe(e.ProcessingTime.Seconds())
}

// RecordReceived implements logpipe.Telemetry
func (p *Prometheus) RecordReceived(e logpipe.RecordEvent) {
	p.received.WithLabelValues(strings.ToLower(logpipe.LevelName(e.Level))).Inc()
}
