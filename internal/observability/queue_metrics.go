package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// QueueCollector exposes metrics for the navigator's pending-mutation
// queue, which applies asynchronous completions between ticks.
type QueueCollector struct {
	gatherer prometheus.Gatherer

	MutationsQueued  prometheus.Gauge
	MutationsApplied prometheus.Counter
	DrainDuration    prometheus.Histogram
}

// NewQueueCollector registers queue metrics against the provided registerer.
func NewQueueCollector(reg prometheus.Registerer) (*QueueCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	queued, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyframe_mutations_queued",
		Help: "Frame-graph mutations waiting for the next tick.",
	}), "skyframe_mutations_queued")
	if err != nil {
		return nil, err
	}

	applied, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "skyframe_mutations_applied_total",
		Help: "Cumulative number of queued mutations applied at tick start.",
	}), "skyframe_mutations_applied_total")
	if err != nil {
		return nil, err
	}

	drain, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "skyframe_mutation_drain_duration_seconds",
		Help:    "Time spent applying queued mutations at the start of a tick.",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.005, 0.01, 0.05, 0.1},
	}), "skyframe_mutation_drain_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &QueueCollector{
		gatherer:         gatherer,
		MutationsQueued:  queued,
		MutationsApplied: applied,
		DrainDuration:    drain,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *QueueCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// SetQueued updates the queue depth gauge.
func (c *QueueCollector) SetQueued(count int) {
	if c == nil || c.MutationsQueued == nil {
		return
	}
	c.MutationsQueued.Set(float64(count))
}

// ObserveDrain records a drain of n mutations that took d.
func (c *QueueCollector) ObserveDrain(n int, d time.Duration) {
	if c == nil {
		return
	}
	if c.MutationsApplied != nil && n > 0 {
		c.MutationsApplied.Add(float64(n))
	}
	if c.DrainDuration != nil {
		c.DrainDuration.Observe(d.Seconds())
	}
}
