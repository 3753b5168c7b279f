package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ComplianceMetrics counts the events regulators and operators watch:
// workflow transitions, ledger appends, signature verifications, and the
// integrity failures that should never happen.
type ComplianceMetrics struct {
	transitions   *prometheus.CounterVec
	guardFailures *prometheus.CounterVec
	auditAppends  prometheus.Counter
	verifications *prometheus.CounterVec
	integrity     prometheus.Counter
}

// NewComplianceMetrics registers the engine metrics on the provided registerer.
func NewComplianceMetrics(reg prometheus.Registerer) *ComplianceMetrics {
	if reg == nil {
		return &ComplianceMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Committed request state transitions.",
	}, []string{"request_type", "action"})
	guardFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_guard_failures_total",
		Help: "Transitions rejected by a guard check.",
	}, []string{"request_type", "action"})
	auditAppends := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_entries_total",
		Help: "Audit ledger entries appended.",
	})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signature_verifications_total",
		Help: "Signature integrity checks by result.",
	}, []string{"result"})
	integrity := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "integrity_failures_total",
		Help: "Detected tampering or mutation attempts on immutable records.",
	})
	reg.MustRegister(transitions, guardFailures, auditAppends, verifications, integrity)
	return &ComplianceMetrics{
		transitions:   transitions,
		guardFailures: guardFailures,
		auditAppends:  auditAppends,
		verifications: verifications,
		integrity:     integrity,
	}
}

// IncTransition records a committed transition.
func (c *ComplianceMetrics) IncTransition(requestType, action string) {
	if c == nil || c.transitions == nil {
		return
	}
	c.transitions.WithLabelValues(requestType, action).Inc()
}

// IncGuardFailure records a transition stopped by a guard.
func (c *ComplianceMetrics) IncGuardFailure(requestType, action string) {
	if c == nil || c.guardFailures == nil {
		return
	}
	c.guardFailures.WithLabelValues(requestType, action).Inc()
}

// IncAuditAppend records one ledger append.
func (c *ComplianceMetrics) IncAuditAppend() {
	if c == nil || c.auditAppends == nil {
		return
	}
	c.auditAppends.Inc()
}

// IncVerification records a signature verification outcome.
func (c *ComplianceMetrics) IncVerification(result string) {
	if c == nil || c.verifications == nil {
		return
	}
	c.verifications.WithLabelValues(result).Inc()
}

// IncIntegrityFailure records a tamper detection or blocked mutation.
func (c *ComplianceMetrics) IncIntegrityFailure() {
	if c == nil || c.integrity == nil {
		return
	}
	c.integrity.Inc()
}
