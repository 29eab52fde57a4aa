package limits

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the limits package.
//
// Labels carry provider names and deny reasons only. User identifiers,
// hashed or otherwise, never become labels: they would leak identity and
// explode cardinality.
type Metrics struct {
	checks        *prometheus.CounterVec
	denials       *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	failOpenTotal prometheus.Counter
	checkDuration *prometheus.HistogramVec
}

// NewMetrics creates Metrics registered on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates Metrics registered on a caller-supplied
// registry. Tests use this to avoid duplicate registration on the global
// registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodgate_limits_checks_total",
				Help: "Total number of rate limit checks performed",
			},
			[]string{"provider", "result"},
		),

		denials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodgate_limits_denials_total",
				Help: "Total number of denied checks by reason",
			},
			[]string{"provider", "reason"},
		),

		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "floodgate_limits_store_errors_total",
				Help: "Total number of shared-store failures by operation and kind",
			},
			[]string{"operation", "kind"},
		),

		failOpenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "floodgate_limits_fail_open_total",
				Help: "Total number of checks admitted because the store failed and fail-open is enabled",
			},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "floodgate_limits_check_duration_seconds",
				Help:    "Duration of limiter operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12), // 100µs to ~400ms
			},
			[]string{"operation"},
		),
	}
}

// RecordCheck records one check verdict.
func (m *Metrics) RecordCheck(provider string, allowed bool) {
	if m == nil {
		return
	}
	result := "allowed"
	if !allowed {
		result = "denied"
	}
	m.checks.WithLabelValues(provider, result).Inc()
}

// RecordDenial records a denial by reason.
func (m *Metrics) RecordDenial(provider string, reason string) {
	if m == nil {
		return
	}
	m.denials.WithLabelValues(provider, reason).Inc()
}

// RecordStoreError records a shared-store failure.
func (m *Metrics) RecordStoreError(operation string, kind string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation, kind).Inc()
}

// RecordFailOpen records a check admitted under the fail-open policy.
func (m *Metrics) RecordFailOpen() {
	if m == nil {
		return
	}
	m.failOpenTotal.Inc()
}

// RecordDuration records the duration of a limiter operation.
func (m *Metrics) RecordDuration(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(operation).Observe(seconds)
}
