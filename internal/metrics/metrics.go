package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for opsdesk.
type Metrics struct {
	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec
	APIErrorsTotal            *prometheus.CounterVec

	// Domain counters
	TemplateMutationsTotal *prometheus.CounterVec
	TestSendsTotal         prometheus.Counter
	UserMutationsTotal     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsdesk_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		APIErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_api_errors_total",
				Help: "Total number of API error responses",
			},
			[]string{"method", "path", "status"},
		),
		TemplateMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_template_mutations_total",
				Help: "Total number of template mutations by action",
			},
			[]string{"action"},
		),
		TestSendsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "opsdesk_test_sends_total",
				Help: "Total number of template test emails dispatched",
			},
		),
		UserMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsdesk_user_mutations_total",
				Help: "Total number of user mutations by action",
			},
			[]string{"action"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.APIErrorsTotal,
		m.TemplateMutationsTotal,
		m.TestSendsTotal,
		m.UserMutationsTotal,
	)

	return m
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal installs m as the process-wide metrics instance.
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the process-wide metrics instance, or nil when metrics are
// disabled.
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}
