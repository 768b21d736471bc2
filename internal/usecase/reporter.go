package usecase

import "github.com/iho/transferengine/internal/domain"

// ReportOutcome maps a journaled record onto the closed outcome set.
// Internal states never leak: anything not yet terminal is reported as
// FAILED(INDETERMINATE) until recovery settles it.
func ReportOutcome(record *domain.TransferRecord) domain.TransferOutcome {
	outcome := domain.TransferOutcome{
		TransferID:     record.ID,
		IdempotencyKey: record.IdempotencyKey,
		OwnerID:        record.OwnerID,
	}

	switch record.State {
	case domain.TransferStateCommitted:
		outcome.Status = domain.OutcomeSuccess
	case domain.TransferStateFailed:
		outcome.Reason = record.FailureReason
		if record.FailureReason.IsRejection() {
			outcome.Status = domain.OutcomeRejected
		} else {
			outcome.Status = domain.OutcomeFailed
		}
	case domain.TransferStateCompensated:
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = record.FailureReason
	default:
		outcome.Status = domain.OutcomeFailed
		outcome.Reason = domain.ReasonIndeterminate
	}

	return outcome
}

// indeterminate is returned when the true state is not yet known.
func indeterminate(record *domain.TransferRecord, key string) domain.TransferOutcome {
	outcome := domain.TransferOutcome{
		Status:         domain.OutcomeFailed,
		Reason:         domain.ReasonIndeterminate,
		IdempotencyKey: key,
	}
	if record != nil {
		outcome.TransferID = record.ID
		outcome.OwnerID = record.OwnerID
	}
	return outcome
}
