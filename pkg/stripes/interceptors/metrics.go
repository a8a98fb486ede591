package interceptors

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stripes-go/stripes/pkg/stripes/action"
	"github.com/stripes-go/stripes/pkg/stripes/lifecycle"
)

// MetricsConfig configures the Prometheus interceptor
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "stripes")
	Namespace string
	// Buckets are the stage duration histogram buckets
	Buckets []float64
	// Registry receives the collectors (default: prometheus.DefaultRegisterer)
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus interceptor
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) { c.Namespace = namespace }
}

// WithBuckets sets the histogram buckets
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) { c.Buckets = buckets }
}

// WithRegistry sets the Prometheus registerer
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) { c.Registry = registry }
}

// Metrics counts stage outcomes and observes stage durations. Collectors
// are registered once per Metrics value, so create one per registry.
type Metrics struct {
	stages   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// NewMetrics creates the interceptor and registers its collectors
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "stripes",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		stages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "stage_total",
			Help:      "Lifecycle stages executed, by outcome",
		}, []string{"stage", "outcome"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "stage_duration_seconds",
			Help:      "Lifecycle stage duration in seconds",
			Buckets:   config.Buckets,
		}, []string{"stage"}),

		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "events_total",
			Help:      "Events handled, by action bean and event",
		}, []string{"bean", "event"}),
	}
}

// Name implements lifecycle.Named
func (m *Metrics) Name() string { return "metrics" }

// Intercept implements lifecycle.Interceptor
func (m *Metrics) Intercept(ec *lifecycle.ExecutionContext) (action.Resolution, error) {
	start := time.Now()
	res, err := ec.Proceed()
	stage := ec.Stage.String()

	m.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	m.stages.WithLabelValues(stage, outcome(ec.Stage, res, err)).Inc()

	if ec.Stage == lifecycle.EventHandling && err == nil && ec.Definition != nil && ec.Context != nil {
		m.events.WithLabelValues(ec.Definition.Name, ec.Context.EventName).Inc()
	}
	return res, err
}

func outcome(stage lifecycle.Stage, res action.Resolution, err error) string {
	switch {
	case err != nil:
		return "error"
	case res != nil && stage != lifecycle.ResolutionExecution && stage != lifecycle.EventHandling:
		return "short_circuit"
	default:
		return "ok"
	}
}
