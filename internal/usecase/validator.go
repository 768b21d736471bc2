package usecase

import (
	"github.com/iho/transferengine/internal/domain"
)

// TransferValidator performs the read-only pre-execution checks on an
// intent. The ledger re-checks the balance conditions atomically when the
// debit is applied, so a passing validation is advisory.
type TransferValidator struct{}

// Validate returns nil when the intent may proceed. Checks short-circuit in
// order: account availability, same account, amount, funds.
// A nil source or destination means the account was not found.
func (TransferValidator) Validate(intent domain.TransferIntent, source, destination *domain.Account) error {
	if source == nil || !source.IsActive() {
		return domain.ErrAccountUnavailable
	}

	if destination == nil || !destination.IsActive() {
		return domain.ErrAccountUnavailable
	}

	if intent.SourceAccountID == intent.DestinationAccountID {
		return domain.ErrSameAccount
	}

	if err := domain.ValidateAmount(intent.Amount); err != nil {
		return err
	}

	if source.Balance.LessThan(intent.Amount) {
		return domain.ErrInsufficientFunds
	}

	return nil
}
