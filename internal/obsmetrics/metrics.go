// Package obsmetrics exposes Prometheus metrics for the orchestration
// engine: concurrency levels, per-node latency, and retry counts.
package obsmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the fixed set of Prometheus collectors the engine updates
// during a run. All names are namespaced "wand_".
type Metrics struct {
	inflightNodes prometheus.Gauge
	nodeLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	runResults    *prometheus.CounterVec
}

// New registers and returns the engine's metrics against registry. A nil
// registry uses prometheus.DefaultRegisterer.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		inflightNodes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "wand",
			Name:      "inflight_nodes",
			Help:      "Current number of nodes executing concurrently across all runs",
		}),
		nodeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wand",
			Name:      "node_latency_ms",
			Help:      "Node attempt duration in milliseconds",
			Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 30000},
		}, []string{"node_id", "status"}), // status: success, error
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wand",
			Name:      "node_retries_total",
			Help:      "Cumulative count of node retry attempts",
		}, []string{"node_id"}),
		runResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wand",
			Name:      "run_results_total",
			Help:      "Cumulative count of run outcomes",
		}, []string{"outcome"}), // outcome: success, cancelled, failed
	}
}

// NodeStarted increments the in-flight gauge; the returned func must be
// called exactly once when the attempt finishes, recording its latency
// and decrementing the gauge.
func (m *Metrics) NodeStarted(nodeID string) (done func(status string)) {
	if m == nil {
		return func(string) {}
	}
	m.inflightNodes.Inc()
	start := time.Now()
	return func(status string) {
		m.inflightNodes.Dec()
		m.nodeLatency.WithLabelValues(nodeID, status).Observe(float64(time.Since(start).Milliseconds()))
	}
}

// Retried records one retry attempt for nodeID.
func (m *Metrics) Retried(nodeID string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(nodeID).Inc()
}

// RunFinished records the terminal outcome of a run.
func (m *Metrics) RunFinished(outcome string) {
	if m == nil {
		return
	}
	m.runResults.WithLabelValues(outcome).Inc()
}
