package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the Prometheus instruments for the core flows.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	AuditAppends    prometheus.Counter
	AccessDenials   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers the instruments on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_login_attempts_total",
			Help: "Login attempts by step and outcome.",
		}, []string{"step", "outcome"}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_evidence_transitions_total",
			Help: "Evidence workflow transitions by action and outcome.",
		}, []string{"action", "outcome"}),
		AuditAppends: factory.NewCounter(prometheus.CounterOpts{
			Name: "custodia_audit_entries_total",
			Help: "Entries appended to the audit ledger.",
		}),
		AccessDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custodia_access_denials_total",
			Help: "Authorization denials by gate.",
		}, []string{"gate"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custodia_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
}
