package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType is the product kind of a customer account.
type AccountType string

const (
	AccountTypeCurrent AccountType = "CURRENT"
	AccountTypeSavings AccountType = "SAVINGS"
)

// IsValid reports whether t is one of the supported account types.
func (t AccountType) IsValid() bool {
	return t == AccountTypeCurrent || t == AccountTypeSavings
}

// AccountStatus controls whether an account may take part in postings.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// IsValid reports whether s is a known status.
func (s AccountStatus) IsValid() bool {
	switch s {
	case AccountStatusActive, AccountStatusFrozen, AccountStatusClosed:
		return true
	}
	return false
}

// Account represents a customer account held in the ledger.
type Account struct {
	ID        string
	OwnerID   string
	Type      AccountType
	Balance   decimal.Decimal
	Status    AccountStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account accepts postings.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CheckPreconditions verifies that delta can be applied to the account
// under the given preconditions.
func (a *Account) CheckPreconditions(delta decimal.Decimal, pre PostingPreconditions) error {
	if pre.RequireActive && !a.IsActive() {
		return ErrAccountUnavailable
	}

	if pre.RequireSufficientFunds && a.Balance.Add(delta).IsNegative() {
		return ErrInsufficientFunds
	}

	return nil
}

// ApplyDelta returns the balance after applying a signed delta.
func (a *Account) ApplyDelta(delta decimal.Decimal) decimal.Decimal {
	return a.Balance.Add(delta)
}
