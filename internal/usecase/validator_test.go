package usecase_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

func TestTransferValidator_Order(t *testing.T) {
	active := func(id, balance string) *domain.Account {
		return &domain.Account{ID: id, Status: domain.AccountStatusActive, Balance: decimal.RequireFromString(balance)}
	}
	frozen := &domain.Account{ID: "f", Status: domain.AccountStatusFrozen}

	tests := []struct {
		name    string
		intent  domain.TransferIntent
		source  *domain.Account
		dest    *domain.Account
		wantErr error
	}{
		{"ok", intent("o", "a", "b", "5", "k"), active("a", "5"), active("b", "0"), nil},
		{"missing source", intent("o", "a", "b", "5", "k"), nil, active("b", "0"), domain.ErrAccountUnavailable},
		{"frozen destination", intent("o", "a", "f", "5", "k"), active("a", "5"), frozen, domain.ErrAccountUnavailable},
		{"missing account beats same account", intent("o", "a", "a", "5", "k"), nil, nil, domain.ErrAccountUnavailable},
		{"same account beats amount", intent("o", "a", "a", "-1", "k"), active("a", "5"), active("a", "5"), domain.ErrSameAccount},
		{"amount beats funds", intent("o", "a", "b", "0", "k"), active("a", "0"), active("b", "0"), domain.ErrInvalidAmount},
		{"too large", intent("o", "a", "b", "1000000000.01", "k"), active("a", "5"), active("b", "0"), domain.ErrAmountTooLarge},
		{"insufficient", intent("o", "a", "b", "5.01", "k"), active("a", "5"), active("b", "0"), domain.ErrInsufficientFunds},
	}

	var v usecase.TransferValidator
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.intent, tt.source, tt.dest)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestReportOutcome(t *testing.T) {
	tests := []struct {
		state      domain.TransferState
		reason     domain.Reason
		wantStatus domain.OutcomeStatus
		wantReason domain.Reason
	}{
		{domain.TransferStateCommitted, "", domain.OutcomeSuccess, ""},
		{domain.TransferStateFailed, domain.ReasonInsufficientFunds, domain.OutcomeRejected, domain.ReasonInsufficientFunds},
		{domain.TransferStateFailed, domain.ReasonAccountUnavailable, domain.OutcomeRejected, domain.ReasonAccountUnavailable},
		{domain.TransferStateFailed, domain.ReasonExpired, domain.OutcomeFailed, domain.ReasonExpired},
		{domain.TransferStateCompensated, domain.ReasonDestinationUnavailable, domain.OutcomeFailed, domain.ReasonDestinationUnavailable},
		{domain.TransferStatePending, "", domain.OutcomeFailed, domain.ReasonIndeterminate},
		{domain.TransferStateDebited, "", domain.OutcomeFailed, domain.ReasonIndeterminate},
		{domain.TransferStateCompensating, domain.ReasonCreditTimeout, domain.OutcomeFailed, domain.ReasonIndeterminate},
	}

	for _, tt := range tests {
		t.Run(string(tt.state)+"/"+string(tt.reason), func(t *testing.T) {
			got := usecase.ReportOutcome(&domain.TransferRecord{
				ID:             "t-1",
				IdempotencyKey: "k-1",
				State:          tt.state,
				FailureReason:  tt.reason,
			})

			if got.Status != tt.wantStatus || got.Reason != tt.wantReason {
				t.Errorf("expected %s(%s), got %s(%s)", tt.wantStatus, tt.wantReason, got.Status, got.Reason)
			}
			if got.TransferID != "t-1" || got.IdempotencyKey != "k-1" {
				t.Errorf("identifiers not carried over: %+v", got)
			}
		})
	}
}
