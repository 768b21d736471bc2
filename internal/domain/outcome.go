package domain

// Reason explains why a transfer did not succeed.
type Reason string

const (
	ReasonAccountUnavailable      Reason = "ACCOUNT_UNAVAILABLE"
	ReasonSameAccount             Reason = "SAME_ACCOUNT"
	ReasonInvalidAmount           Reason = "INVALID_AMOUNT"
	ReasonInsufficientFunds       Reason = "INSUFFICIENT_FUNDS"
	ReasonNotAccountOwner         Reason = "NOT_ACCOUNT_OWNER"
	ReasonDestinationUnavailable  Reason = "DESTINATION_UNAVAILABLE"
	ReasonConcurrentBalanceChange Reason = "CONCURRENT_BALANCE_CHANGE"
	ReasonCreditTimeout           Reason = "CREDIT_TIMEOUT"
	ReasonExpired                 Reason = "EXPIRED"
	ReasonIndeterminate           Reason = "INDETERMINATE"
)

// IsRejection reports whether the reason is a pre-execution rejection,
// i.e. one that never produces a posting.
func (r Reason) IsRejection() bool {
	switch r {
	case ReasonAccountUnavailable, ReasonSameAccount, ReasonInvalidAmount,
		ReasonInsufficientFunds, ReasonNotAccountOwner:
		return true
	}
	return false
}

// OutcomeStatus is the closed set of results visible to callers.
type OutcomeStatus string

const (
	OutcomeSuccess  OutcomeStatus = "SUCCESS"
	OutcomeRejected OutcomeStatus = "REJECTED"
	OutcomeFailed   OutcomeStatus = "FAILED"
)

// TransferOutcome is what a caller learns about a transfer.
type TransferOutcome struct {
	Status         OutcomeStatus
	Reason         Reason
	TransferID     string
	IdempotencyKey string
	// OwnerID scopes status lookups; it is never shown to other callers.
	OwnerID        string
}

// Rejected builds a rejection outcome for an intent that never reached the journal.
func Rejected(reason Reason, idempotencyKey string) TransferOutcome {
	return TransferOutcome{
		Status:         OutcomeRejected,
		Reason:         reason,
		IdempotencyKey: idempotencyKey,
	}
}
