package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "blood_connect"

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	RequestsCreated     prometheus.Counter
	ResponsesSubmitted  prometheus.Counter
	Adjudications       *prometheus.CounterVec
	OptimisticRetries   prometheus.Counter
	OptimisticConflicts prometheus.Counter
	IndexRepairs        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Tests pass a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blood_requests_created_total",
			Help:      "Blood requests created by hospitals.",
		}),
		ResponsesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "donor_responses_submitted_total",
			Help:      "Donor responses appended to requests.",
		}),
		Adjudications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "adjudications_total",
			Help:      "Hospital-side decisions by action.",
		}, []string{"action"}),
		OptimisticRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_lock_retries_total",
			Help:      "Versioned writes retried after losing a race.",
		}),
		OptimisticConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_lock_conflicts_total",
			Help:      "Mutations abandoned after exhausting retries.",
		}),
		IndexRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_repairs_total",
			Help:      "Index entries fixed by reconciliation.",
		}, []string{"index", "kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.RequestsCreated,
		m.ResponsesSubmitted,
		m.Adjudications,
		m.OptimisticRetries,
		m.OptimisticConflicts,
		m.IndexRepairs,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// NewWithRuntime is New plus the Go runtime and process collectors.
func NewWithRuntime() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
