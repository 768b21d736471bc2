package usecase

import (
	"time"

	"github.com/iho/transferengine/internal/domain"
)

// MetricsRecorder receives engine events for instrumentation.
type MetricsRecorder interface {
	TransferSubmitted()
	TransferSettled(outcome domain.TransferOutcome, duration time.Duration)
	TransferCompensated(reason domain.Reason)
	RecoveryResumed(from, to domain.TransferState)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) TransferSubmitted() {}
func (NopMetrics) TransferSettled(domain.TransferOutcome, time.Duration) {}
func (NopMetrics) TransferCompensated(domain.Reason) {}
func (NopMetrics) RecoveryResumed(domain.TransferState, domain.TransferState) {}
