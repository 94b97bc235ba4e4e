package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trade desk engine.
type Metrics struct {
	// Service operation latency by operation and aggregate kind
	OperationDuration *prometheus.HistogramVec

	// Typed operation failures by operation and aggregate kind
	OperationErrors *prometheus.CounterVec

	// Domain events appended to the outbox
	EventsAppended *prometheus.CounterVec

	// Outbox relay activity
	RelayPublished prometheus.Counter
	RelayFailures  prometheus.Counter
	RelayBatchSize prometheus.Histogram

	// Broadcasts delivered, labelled by channel family
	Broadcasts *prometheus.CounterVec

	// EOD sweep activity
	SweepExpired  *prometheus.CounterVec
	SweepErrors   *prometheus.CounterVec
	SweepDuration prometheus.Histogram

	// Risk precheck outcomes by kind and status
	RiskPrechecks *prometheus.CounterVec

	// Search indexing failures on the best-effort audit path
	IndexFailures prometheus.Counter
}

// New creates a new Metrics instance with all engine metrics registered.
func New() *Metrics {
	return &Metrics{
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradedesk_operation_duration_seconds",
			Help:    "Duration of trade desk service operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation", "kind"}),

		OperationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_operation_errors_total",
			Help: "Total failed trade desk service operations",
		}, []string{"operation", "kind"}),

		EventsAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_events_appended_total",
			Help: "Domain events appended to the outbox by type",
		}, []string{"event_type"}),

		RelayPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradedesk_relay_published_total",
			Help: "Outbox rows published to the broadcast transport",
		}),

		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradedesk_relay_failures_total",
			Help: "Outbox rows that failed publication and await retry",
		}),

		RelayBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradedesk_relay_batch_size",
			Help:    "Unpublished rows picked up per relay tick",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		Broadcasts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_broadcasts_total",
			Help: "Broadcast deliveries by channel family",
		}, []string{"family"}),

		SweepExpired: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_sweep_expired_total",
			Help: "Aggregates expired by the EOD sweep",
		}, []string{"kind"}),

		SweepErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_sweep_errors_total",
			Help: "Rows the EOD sweep failed to expire",
		}, []string{"kind"}),

		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradedesk_sweep_duration_seconds",
			Help:    "Duration of one full EOD sweep",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		RiskPrechecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradedesk_risk_prechecks_total",
			Help: "Risk precheck outcomes by aggregate kind and status",
		}, []string{"kind", "status"}),

		IndexFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradedesk_index_failures_total",
			Help: "Events that failed best-effort search indexing",
		}),
	}
}

// ObserveOperation records the duration of a service operation.
func (m *Metrics) ObserveOperation(operation, kind string, d time.Duration) {
	if m != nil {
		m.OperationDuration.WithLabelValues(operation, kind).Observe(d.Seconds())
	}
}

// IncrementOperationError records a failed service operation.
func (m *Metrics) IncrementOperationError(operation, kind string) {
	if m != nil {
		m.OperationErrors.WithLabelValues(operation, kind).Inc()
	}
}

// IncrementEventsAppended records outbox appends by event type.
func (m *Metrics) IncrementEventsAppended(eventType string) {
	if m != nil {
		m.EventsAppended.WithLabelValues(eventType).Inc()
	}
}

// IncrementRelayPublished records one fully published outbox row.
func (m *Metrics) IncrementRelayPublished() {
	if m != nil {
		m.RelayPublished.Inc()
	}
}

// IncrementRelayFailure records an outbox row left for the next tick.
func (m *Metrics) IncrementRelayFailure() {
	if m != nil {
		m.RelayFailures.Inc()
	}
}

// ObserveRelayBatch records the size of one relay batch.
func (m *Metrics) ObserveRelayBatch(n int) {
	if m != nil {
		m.RelayBatchSize.Observe(float64(n))
	}
}

// IncrementBroadcast records one delivered (channel, event) pair. Only the
// channel family goes into the label to keep cardinality bounded.
func (m *Metrics) IncrementBroadcast(channel string) {
	if m != nil {
		family := channel
		if i := strings.Index(channel, ":"); i > 0 {
			family = channel[:i]
		}
		m.Broadcasts.WithLabelValues(family).Inc()
	}
}

// IncrementSweepExpired records one aggregate expired by the sweep.
func (m *Metrics) IncrementSweepExpired(kind string) {
	if m != nil {
		m.SweepExpired.WithLabelValues(kind).Inc()
	}
}

// IncrementSweepError records one row the sweep could not expire.
func (m *Metrics) IncrementSweepError(kind string) {
	if m != nil {
		m.SweepErrors.WithLabelValues(kind).Inc()
	}
}

// ObserveSweep records the duration of a full sweep.
func (m *Metrics) ObserveSweep(d time.Duration) {
	if m != nil {
		m.SweepDuration.Observe(d.Seconds())
	}
}

// IncrementRiskPrecheck records a precheck outcome.
func (m *Metrics) IncrementRiskPrecheck(kind, status string) {
	if m != nil {
		m.RiskPrechecks.WithLabelValues(kind, status).Inc()
	}
}

// IncrementIndexFailure records a failed best-effort index write.
func (m *Metrics) IncrementIndexFailure() {
	if m != nil {
		m.IndexFailures.Inc()
	}
}
