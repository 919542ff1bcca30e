package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the audit pipeline.
type Metrics struct {
	RecordsBuilt      *prometheus.CounterVec
	RecordsPersisted  *prometheus.CounterVec
	RecordsRejected   *prometheus.CounterVec
	FieldDegradations *prometheus.CounterVec
	NotifyFailures    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RecordsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hookaudit_records_built_total",
			Help: "Audit records sealed, by kind",
		}, []string{"kind"}),
		RecordsPersisted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hookaudit_records_persisted_total",
			Help: "Audit records saved to the repository, by kind",
		}, []string{"kind"}),
		RecordsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hookaudit_records_rejected_total",
			Help: "Submissions that did not produce a stored record, by reason",
		}, []string{"reason"}),
		FieldDegradations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hookaudit_field_degradations_total",
			Help: "Normalized fields that fell back to a sentinel, by field",
		}, []string{"field"}),
		NotifyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hookaudit_notify_failures_total",
			Help: "Failed notification deliveries, by sink",
		}, []string{"sink"}),
	}
}

// IncrementBuilt records a sealed record of the given kind.
func (m *Metrics) IncrementBuilt(kind string) {
	m.RecordsBuilt.WithLabelValues(kind).Inc()
}

// IncrementPersisted records a stored record of the given kind.
func (m *Metrics) IncrementPersisted(kind string) {
	m.RecordsPersisted.WithLabelValues(kind).Inc()
}

// IncrementRejected records a submission dropped for reason.
func (m *Metrics) IncrementRejected(reason string) {
	m.RecordsRejected.WithLabelValues(reason).Inc()
}

// ObserveDegraded counts each degraded field name.
func (m *Metrics) ObserveDegraded(fields []string) {
	for _, f := range fields {
		m.FieldDegradations.WithLabelValues(f).Inc()
	}
}

// IncrementNotifyFailure records a failed delivery to sink.
func (m *Metrics) IncrementNotifyFailure(sink string) {
	m.NotifyFailures.WithLabelValues(sink).Inc()
}
