package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestAccount_CheckPreconditions(t *testing.T) {
	tests := []struct {
		name        string
		balance     decimal.Decimal
		status      AccountStatus
		delta       decimal.Decimal
		pre         PostingPreconditions
		expectError error
	}{
		{
			name:    "debit within balance",
			balance: decimal.NewFromInt(100),
			status:  AccountStatusActive,
			delta:   decimal.NewFromInt(-50),
			pre:     PostingPreconditions{RequireActive: true, RequireSufficientFunds: true},
		},
		{
			name:    "debit exact balance",
			balance: decimal.NewFromInt(100),
			status:  AccountStatusActive,
			delta:   decimal.NewFromInt(-100),
			pre:     PostingPreconditions{RequireActive: true, RequireSufficientFunds: true},
		},
		{
			name:        "debit more than balance",
			balance:     decimal.NewFromInt(100),
			status:      AccountStatusActive,
			delta:       decimal.NewFromInt(-150),
			pre:         PostingPreconditions{RequireActive: true, RequireSufficientFunds: true},
			expectError: ErrInsufficientFunds,
		},
		{
			name:        "frozen account",
			balance:     decimal.NewFromInt(100),
			status:      AccountStatusFrozen,
			delta:       decimal.NewFromInt(10),
			pre:         PostingPreconditions{RequireActive: true},
			expectError: ErrAccountUnavailable,
		},
		{
			name:    "closed account without preconditions",
			balance: decimal.NewFromInt(0),
			status:  AccountStatusClosed,
			delta:   decimal.NewFromInt(10),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := &Account{Balance: tt.balance, Status: tt.status}

			err := acc.CheckPreconditions(tt.delta, tt.pre)
			if tt.expectError == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.expectError != nil && !errors.Is(err, tt.expectError) {
				t.Errorf("expected error %v, got %v", tt.expectError, err)
			}
		})
	}
}

func TestAccount_ApplyDelta(t *testing.T) {
	acc := &Account{Balance: decimal.NewFromInt(100)}

	if got := acc.ApplyDelta(decimal.NewFromInt(-30)); !got.Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected balance 70, got %s", got)
	}

	if got := acc.ApplyDelta(decimal.NewFromInt(30)); !got.Equal(decimal.NewFromInt(130)) {
		t.Errorf("expected balance 130, got %s", got)
	}
}

func TestAccountTypeAndStatus_IsValid(t *testing.T) {
	if !AccountTypeCurrent.IsValid() || !AccountTypeSavings.IsValid() {
		t.Error("expected CURRENT and SAVINGS to be valid")
	}
	if AccountType("BROKERAGE").IsValid() {
		t.Error("expected unknown type to be invalid")
	}
	if AccountStatus("DORMANT").IsValid() {
		t.Error("expected unknown status to be invalid")
	}
}
