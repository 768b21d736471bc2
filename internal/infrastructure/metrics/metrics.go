package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/transferengine/internal/domain"
)

// Metrics holds the engine's Prometheus collectors. It implements
// usecase.MetricsRecorder.
type Metrics struct {
	// Transfer metrics
	TransfersSubmitted     prometheus.Counter
	TransferOutcomes       *prometheus.CounterVec
	TransferDuration       prometheus.Histogram
	TransfersCompensated   *prometheus.CounterVec
	TransfersIndeterminate prometheus.Counter

	// Recovery metrics
	RecoveryResumes *prometheus.CounterVec

	// Storage metrics
	PostingRetries prometheus.Counter

	// Outbox metrics
	EventsPublished *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		TransfersSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "transferengine_transfers_submitted_total",
			Help: "Total number of transfer intents accepted for processing",
		}),
		TransferOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transferengine_transfer_outcomes_total",
				Help: "Transfer outcomes by status and reason",
			},
			[]string{"status", "reason"},
		),
		TransferDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transferengine_transfer_duration_seconds",
			Help:    "Time from submission to a reported outcome",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		TransfersCompensated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transferengine_transfers_compensated_total",
				Help: "Transfers whose debit was reversed, by reason",
			},
			[]string{"reason"},
		),
		TransfersIndeterminate: factory.NewCounter(prometheus.CounterOpts{
			Name: "transferengine_transfers_indeterminate_total",
			Help: "Submissions answered before the transfer reached a terminal state",
		}),
		RecoveryResumes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transferengine_recovery_resumes_total",
				Help: "Records resumed by recovery, by starting and final state",
			},
			[]string{"from", "to"},
		),
		PostingRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "transferengine_posting_retries_total",
			Help: "Posting attempts retried after a transient storage error",
		}),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transferengine_outbox_events_published_total",
				Help: "Outbox events handed to the broker, by event type and result",
			},
			[]string{"event_type", "result"},
		),
	}
}

// TransferSubmitted counts an accepted intent.
func (m *Metrics) TransferSubmitted() {
	m.TransfersSubmitted.Inc()
}

// TransferSettled records the reported outcome and its latency.
func (m *Metrics) TransferSettled(outcome domain.TransferOutcome, duration time.Duration) {
	m.TransferOutcomes.WithLabelValues(string(outcome.Status), string(outcome.Reason)).Inc()
	m.TransferDuration.Observe(duration.Seconds())

	if outcome.Reason == domain.ReasonIndeterminate {
		m.TransfersIndeterminate.Inc()
	}
}

// TransferCompensated counts a completed compensation.
func (m *Metrics) TransferCompensated(reason domain.Reason) {
	m.TransfersCompensated.WithLabelValues(string(reason)).Inc()
}

// RecoveryResumed counts a record moved by recovery.
func (m *Metrics) RecoveryResumed(from, to domain.TransferState) {
	m.RecoveryResumes.WithLabelValues(string(from), string(to)).Inc()
}

// PostingRetried counts a retried posting attempt.
func (m *Metrics) PostingRetried() {
	m.PostingRetries.Inc()
}

// EventPublished counts an outbox publish attempt.
func (m *Metrics) EventPublished(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}
