// Package metrics exposes Prometheus collectors for mission runs. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nova"

type Metrics struct {
	registry *prometheus.Registry

	nodeExecutions  *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	runs            *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	guardrailScores prometheus.Histogram
	substitutions   prometheus.Counter
	sandboxTimeouts *prometheus.CounterVec
	dispatches      *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		nodeExecutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Node executions by node type and outcome.",
		}, []string{"node_type", "outcome"}),
		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Node execution latency by node type.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 9),
		}, []string{"node_type"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Mission runs by source and final status.",
		}, []string{"source", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Mission run latency by final status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		guardrailScores: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guardrail_score",
			Help:      "Quality score of text presented for dispatch.",
			Buckets:   prometheus.LinearBuckets(0, 10, 11),
		}),
		substitutions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guardrail_fallback_substitutions_total",
			Help:      "Outputs replaced by the evidence fallback.",
		}),
		sandboxTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sandbox_timeouts_total",
			Help:      "Sandbox evaluations interrupted by their time budget.",
		}, []string{"node_type"}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_results_total",
			Help:      "Per-recipient dispatch results by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.nodeExecutions,
		m.nodeDuration,
		m.runs,
		m.runDuration,
		m.guardrailScores,
		m.substitutions,
		m.sandboxTimeouts,
		m.dispatches,
	)

	return m
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}

	return "failed"
}

func (m *Metrics) ObserveNode(nodeType string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.nodeExecutions.WithLabelValues(nodeType, outcome(ok)).Inc()
	m.nodeDuration.WithLabelValues(nodeType).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveRun(source, status string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.runs.WithLabelValues(source, status).Inc()
	m.runDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveGuardrail(score int, substituted bool) {
	if m == nil {
		return
	}

	m.guardrailScores.Observe(float64(score))

	if substituted {
		m.substitutions.Inc()
	}
}

func (m *Metrics) SandboxTimeout(nodeType string) {
	if m == nil {
		return
	}

	m.sandboxTimeouts.WithLabelValues(nodeType).Inc()
}

func (m *Metrics) ObserveDispatch(channel string, ok bool) {
	if m == nil {
		return
	}

	m.dispatches.WithLabelValues(channel, outcome(ok)).Inc()
}
