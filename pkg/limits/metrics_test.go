package limits

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// ============================================================================
// Metrics Tests
// ============================================================================

func TestMetrics_RecordCheck(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordCheck("openai", true)
	m.RecordCheck("openai", true)
	m.RecordCheck("openai", false)

	allowed := testutil.ToFloat64(m.checks.WithLabelValues("openai", "allowed"))
	if allowed != 2 {
		t.Errorf("Expected 2 allowed checks, got %v", allowed)
	}
	denied := testutil.ToFloat64(m.checks.WithLabelValues("openai", "denied"))
	if denied != 1 {
		t.Errorf("Expected 1 denied check, got %v", denied)
	}
}

func TestMetrics_RecordDenialAndStoreError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg)

	m.RecordDenial("openai", ReasonRequests)
	m.RecordDenial("openai", ReasonTokens)
	m.RecordStoreError("count", "timeout")
	m.RecordFailOpen()

	if got := testutil.ToFloat64(m.denials.WithLabelValues("openai", ReasonRequests)); got != 1 {
		t.Errorf("Expected 1 request denial, got %v", got)
	}
	if got := testutil.ToFloat64(m.storeErrors.WithLabelValues("count", "timeout")); got != 1 {
		t.Errorf("Expected 1 store error, got %v", got)
	}
	if got := testutil.ToFloat64(m.failOpenTotal); got != 1 {
		t.Errorf("Expected 1 fail-open admission, got %v", got)
	}
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	// Instrumentation is optional; a nil Metrics must be inert.
	m.RecordCheck("openai", true)
	m.RecordDenial("openai", ReasonRequests)
	m.RecordStoreError("count", "timeout")
	m.RecordFailOpen()
	m.RecordDuration("check", 0.001)
}
