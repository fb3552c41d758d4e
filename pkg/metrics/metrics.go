package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "custody_signer"

// Metrics contains the Prometheus collectors for signing and monitoring.
type Metrics struct {
	// Poll loop metrics, labelled by loop name
	PollAttempts    *prometheus.CounterVec
	TransientErrors *prometheus.CounterVec

	// Signing job metrics
	SigningJobsSubmitted prometheus.Counter
	SigningJobOutcomes   *prometheus.CounterVec
	SigningDuration      prometheus.Histogram

	// Transaction monitor metrics
	MonitorOutcomes *prometheus.CounterVec

	// Identity resolution metrics
	IdentityResolutions prometheus.Counter
}

// NewMetrics registers collectors on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers collectors on registry, or on the default
// registerer when registry is nil.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		PollAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_attempts_total",
			Help:      "The total number of status polls issued",
		}, []string{"loop"}),
		TransientErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_transient_errors_total",
			Help:      "The total number of status polls that failed and were retried",
		}, []string{"loop"}),
		SigningJobsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signing_jobs_submitted_total",
			Help:      "The total number of signing jobs submitted to custody",
		}),
		SigningJobOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signing_job_outcomes_total",
			Help:      "Signing job outcomes by result",
		}, []string{"outcome"}),
		SigningDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "signing_duration_seconds",
			Help:      "Time from job submission to a terminal result",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		MonitorOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_outcomes_total",
			Help:      "Transaction monitoring outcomes by result",
		}, []string{"outcome"}),
		IdentityResolutions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_resolutions_total",
			Help:      "The number of address queries issued to custody",
		}),
	}
}

// Outcome labels.
const (
	Outcome_Success       = "success"
	Outcome_Rejected      = "rejected"
	Outcome_Timeout       = "timeout"
	Outcome_Aborted       = "aborted"
	Outcome_InvalidFormat = "invalid_format"
	Outcome_CustodyFailed = "custody_failed"
	Outcome_ChainFailed   = "chain_failed"
	Outcome_QueryFailed   = "query_failed"
	Outcome_Error         = "error"
)

func (m *Metrics) ObservePollAttempt(loop string) {
	m.PollAttempts.WithLabelValues(loop).Inc()
}

func (m *Metrics) ObserveTransientError(loop string) {
	m.TransientErrors.WithLabelValues(loop).Inc()
}

func (m *Metrics) ObserveSigningSubmitted() {
	m.SigningJobsSubmitted.Inc()
}

func (m *Metrics) ObserveSigningOutcome(outcome string, elapsed time.Duration) {
	m.SigningJobOutcomes.WithLabelValues(outcome).Inc()
	m.SigningDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveMonitorOutcome(outcome string) {
	m.MonitorOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveIdentityResolution() {
	m.IdentityResolutions.Inc()
}
