// Package metrics exposes prometheus counters for the message core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Receipt outcomes.
const (
	ReceiptIgnored    = "ignored"
	ReceiptUnresolved = "unresolved"
	ReceiptRecorded   = "recorded"
	ReceiptDuplicate  = "duplicate"
	ReceiptReadByAll  = "read_by_all"
)

// Metrics holds the counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	receipts    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	deletions   *prometheus.CounterVec
	jobs        *prometheus.CounterVec
}

// New creates the counters on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		receipts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailcore",
			Name:      "read_receipts_total",
			Help:      "Read receipts processed, by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailcore",
			Name:      "state_transitions_total",
			Help:      "Persisted message state changes, by target state.",
		}, []string{"state"}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailcore",
			Name:      "deletions_total",
			Help:      "Deletion pipeline steps, by stage.",
		}, []string{"stage"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailcore",
			Name:      "jobs_total",
			Help:      "Job executions, by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		m.receipts, m.transitions, m.deletions, m.jobs,
	)
	return m
}

// Receipt counts one processed read receipt.
func (m *Metrics) Receipt(outcome string) {
	if m == nil {
		return
	}
	m.receipts.WithLabelValues(outcome).Inc()
}

// Transition counts one state write.
func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

// Deletion counts n messages passing a deletion stage.
func (m *Metrics) Deletion(stage string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deletions.WithLabelValues(stage).Add(float64(n))
}

// Job counts one job execution.
func (m *Metrics) Job(action, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(action, outcome).Inc()
}

// Registry returns the registry backing the counters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
