// Package telemetry provides reactive.Observer implementations that export
// engine activity as Prometheus metrics and OpenTelemetry spans.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/reactive/pkg/reactive"
)

// MetricsConfig configures the Prometheus observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "reactive").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the flush duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "reactive",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a reactive.Observer that records engine activity.
//
// Metrics collected:
//   - reactive_flushes_total: Counter of flushes by result ("ok", "error")
//   - reactive_flush_duration_seconds: Histogram of flush duration
//   - reactive_flush_rounds: Histogram of propagation rounds per flush
//   - reactive_computations_total: Counter of memo/effect evaluations by
//     kind and outcome ("run", "skip")
//   - reactive_disposed_nodes_total: Counter of nodes released by scope disposal
//   - reactive_discarded_results_total: Counter of async results dropped
//     because their scope was gone or a newer request superseded them
type Metrics struct {
	flushes       *prometheus.CounterVec
	flushDuration prometheus.Histogram
	flushRounds   prometheus.Histogram
	computations  *prometheus.CounterVec
	disposed      prometheus.Counter
	discarded     prometheus.Counter
}

// NewMetrics creates and registers the engine metrics.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	rt := reactive.NewRuntime(reactive.WithObserver(
//	    telemetry.NewMetrics(telemetry.WithRegistry(reg)),
//	))
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of propagation flushes",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		flushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushRounds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_rounds",
			Help:        "Propagation rounds per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),

		computations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "computations_total",
			Help:        "Memo and effect evaluations during flushes",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "outcome"}),

		disposed: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "disposed_nodes_total",
			Help:        "Total number of nodes released by scope disposal",
			ConstLabels: config.ConstLabels,
		}),

		discarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "discarded_results_total",
			Help:        "Total number of async results dropped after disposal or supersession",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ObserveFlush implements reactive.Observer.
func (m *Metrics) ObserveFlush(_ context.Context, stats reactive.FlushStats) {
	result := "ok"
	if stats.Err != nil {
		result = "error"
	}
	m.flushes.WithLabelValues(result).Inc()
	m.flushDuration.Observe(stats.Duration.Seconds())
	m.flushRounds.Observe(float64(stats.Rounds))

	m.computations.WithLabelValues("memo", "run").Add(float64(stats.MemoRuns))
	m.computations.WithLabelValues("memo", "skip").Add(float64(stats.MemoSkips))
	m.computations.WithLabelValues("effect", "run").Add(float64(stats.EffectRuns))
	m.computations.WithLabelValues("effect", "skip").Add(float64(stats.EffectSkips))
}

// ObserveDispose implements reactive.Observer.
func (m *Metrics) ObserveDispose(_ context.Context, nodes int) {
	m.disposed.Add(float64(nodes))
}

// ObserveDiscard implements reactive.Observer.
func (m *Metrics) ObserveDiscard(context.Context, string) {
	m.discarded.Inc()
}

var _ reactive.Observer = (*Metrics)(nil)
