package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

var _ usecase.MetricsRecorder = (*Metrics)(nil)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.TransferSubmitted()
	m.PostingRetried()

	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	if len(metricFamilies) == 0 {
		t.Fatalf("expected registered metrics, got none")
	}
}

func TestTransferSettledLabels(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TransferSettled(domain.TransferOutcome{Status: domain.OutcomeSuccess}, 20*time.Millisecond)
	m.TransferSettled(domain.TransferOutcome{Status: domain.OutcomeRejected, Reason: domain.ReasonInsufficientFunds}, time.Millisecond)
	m.TransferSettled(domain.TransferOutcome{Status: domain.OutcomeFailed, Reason: domain.ReasonIndeterminate}, time.Second)

	if got := testutil.ToFloat64(m.TransferOutcomes.WithLabelValues("REJECTED", "INSUFFICIENT_FUNDS")); got != 1 {
		t.Errorf("expected one rejected outcome, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransfersIndeterminate); got != 1 {
		t.Errorf("expected one indeterminate outcome, got %v", got)
	}
	if got := testutil.CollectAndCount(m.TransferDuration); got != 1 {
		t.Errorf("expected one duration histogram, got %d", got)
	}
}

func TestRecoveryAndPublishCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecoveryResumed(domain.TransferStateDebited, domain.TransferStateCommitted)
	m.TransferCompensated(domain.ReasonCreditTimeout)
	m.EventPublished(domain.EventTypeTransferCommitted, nil)
	m.EventPublished(domain.EventTypeTransferCommitted, errors.New("broker down"))

	if got := testutil.ToFloat64(m.RecoveryResumes.WithLabelValues("DEBITED", "COMMITTED")); got != 1 {
		t.Errorf("expected one resume, got %v", got)
	}
	if got := testutil.ToFloat64(m.TransfersCompensated.WithLabelValues("CREDIT_TIMEOUT")); got != 1 {
		t.Errorf("expected one compensation, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsPublished.WithLabelValues("transfer.committed", "error")); got != 1 {
		t.Errorf("expected one failed publish, got %v", got)
	}
}
