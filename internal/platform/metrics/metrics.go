package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the gateway's mediation layer.
type Metrics struct {
	// Outbound forwards by service and outcome class
	ForwardsTotal *prometheus.CounterVec

	// Outbound forward latency by service
	ForwardLatency *prometheus.HistogramVec

	// Orchestration step outcomes by step name and outcome class
	OrchestrationSteps *prometheus.CounterVec

	// Health probe results by service and status
	HealthProbes *prometheus.CounterVec

	// Requests rejected by admission control
	AdmissionRejected prometheus.Counter

	// Authentication and authorization failures by kind
	AuthFailures *prometheus.CounterVec
}

// New creates a Metrics instance with all gateway metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		ForwardsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexgate_forwards_total",
			Help: "Total downstream forwards by service and outcome class",
		}, []string{"service", "class"}),

		ForwardLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lexgate_forward_duration_seconds",
			Help:    "Duration of downstream forwards by service",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"service"}),

		OrchestrationSteps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexgate_orchestration_steps_total",
			Help: "Orchestration step outcomes by step name and class",
		}, []string{"step", "class"}),

		HealthProbes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexgate_health_probes_total",
			Help: "Health probe results by service and reported status",
		}, []string{"service", "status"}),

		AdmissionRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexgate_admission_rejected_total",
			Help: "Requests rejected by admission control",
		}),

		AuthFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lexgate_auth_failures_total",
			Help: "Authentication and authorization failures by kind",
		}, []string{"kind"}),
	}
}

// ObserveForward records one downstream forward with its latency.
func (m *Metrics) ObserveForward(service, class string, d time.Duration) {
	if m != nil {
		m.ForwardsTotal.WithLabelValues(service, class).Inc()
		m.ForwardLatency.WithLabelValues(service).Observe(d.Seconds())
	}
}

// IncrementStep records one orchestration step outcome.
func (m *Metrics) IncrementStep(step, class string) {
	if m != nil {
		m.OrchestrationSteps.WithLabelValues(step, class).Inc()
	}
}

// IncrementHealthProbe records one health probe result.
func (m *Metrics) IncrementHealthProbe(service, status string) {
	if m != nil {
		m.HealthProbes.WithLabelValues(service, status).Inc()
	}
}

// IncrementAdmissionRejected records one rejected request.
func (m *Metrics) IncrementAdmissionRejected() {
	if m != nil {
		m.AdmissionRejected.Inc()
	}
}

// IncrementAuthFailure records one authentication or authorization failure.
func (m *Metrics) IncrementAuthFailure(kind string) {
	if m != nil {
		m.AuthFailures.WithLabelValues(kind).Inc()
	}
}
