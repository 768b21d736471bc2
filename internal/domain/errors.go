package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountUnavailable = errors.New("account is not available for postings")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidStatus      = errors.New("invalid account status")

	// Transfer errors
	ErrSameAccount            = errors.New("cannot transfer to same account")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrTransferNotFound       = errors.New("transfer not found")
	ErrPostingNotFound        = errors.New("posting not found")
	ErrInvalidStateTransition = errors.New("invalid transfer state transition")
	ErrStateConflict          = errors.New("transfer state changed concurrently")
	ErrSettlementConflict     = errors.New("transfer already settled by the opposite posting")
	ErrTransferVoided         = errors.New("transfer debit was voided")
	ErrDebitApplied           = errors.New("transfer debit already applied")

	// Idempotency errors
	ErrMissingIdempotencyKey   = errors.New("idempotency key is required")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already journaled")
	ErrIdempotencyConflict     = errors.New("idempotency key reused with a different request")

	// ErrFatalStorage signals that durability could not be confirmed. The
	// outcome is indeterminate until recovery resolves it.
	ErrFatalStorage = errors.New("storage durability failure")
)

// ReasonFromError maps an engine error to the closed reason set.
// It returns an empty reason for errors outside the taxonomy.
func ReasonFromError(err error) Reason {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAccountUnavailable):
		return ReasonAccountUnavailable
	case errors.Is(err, ErrSameAccount):
		return ReasonSameAccount
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrAmountTooLarge):
		return ReasonInvalidAmount
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrNotAccountOwner):
		return ReasonNotAccountOwner
	default:
		return ""
	}
}
