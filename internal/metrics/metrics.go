package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/olehluchkiv/scopescan/internal/engine"
)

const namespace = "scopescan"

// Collector records scope resolution metrics. It implements engine.Recorder.
//
// Metrics:
//   - scopescan_visits_total: candidate visits by scope and outcome
//   - scopescan_entities_added_total: entities newly added per scope
//   - scopescan_resolution_failures_total: scopes whose containers failed to resolve
//   - scopescan_types_visited: candidate types visited by the last run
//   - scopescan_run_duration_seconds: wall time of complete runs
type Collector struct {
	registry *prometheus.Registry

	visitsTotal        *prometheus.CounterVec
	entitiesAdded      *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
	typesVisited       prometheus.Gauge
	runDuration        prometheus.Histogram
}

// NewCollector registers the scope metrics with registry. A nil registry gets
// a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		visitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "visits_total",
				Help:      "Total number of candidate type visits by outcome",
			},
			[]string{"scope", "outcome"},
		),
		entitiesAdded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "entities_added_total",
				Help:      "Total number of scope entities added to a result set",
			},
			[]string{"scope"},
		),
		resolutionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolution_failures_total",
				Help:      "Total number of scopes that could not be resolved",
			},
			[]string{"scope"},
		),
		typesVisited: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "types_visited",
			Help:      "Number of candidate types visited by the most recent run",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete analysis run in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}),
	}

	registry.MustRegister(
		c.visitsTotal,
		c.entitiesAdded,
		c.resolutionFailures,
		c.typesVisited,
		c.runDuration,
	)
	return c
}

// ObserveVisit implements engine.Recorder.
func (c *Collector) ObserveVisit(scope string, outcome engine.Outcome, added int) {
	c.visitsTotal.WithLabelValues(scope, outcome.String()).Inc()
	if added > 0 {
		c.entitiesAdded.WithLabelValues(scope).Add(float64(added))
	}
}

// RecordResolutionFailure counts a scope whose analyzer could not be built.
func (c *Collector) RecordResolutionFailure(scope string) {
	c.resolutionFailures.WithLabelValues(scope).Inc()
}

// RecordRun records a finished run.
func (c *Collector) RecordRun(visited int64, d time.Duration) {
	c.typesVisited.Set(float64(visited))
	c.runDuration.Observe(d.Seconds())
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler returns the Prometheus exposition handler for this collector.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

var _ engine.Recorder = (*Collector)(nil)
