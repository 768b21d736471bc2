package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestValidateAmount(t *testing.T) {
	t.Parallel()

	if err := ValidateAmount(decimal.RequireFromString("100.25")); err != nil {
		t.Fatalf("expected valid amount, got %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("1.500")); err != nil {
		t.Fatalf("expected trailing zeros to be accepted, got %v", err)
	}
	if err := ValidateAmount(decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := ValidateAmount(decimal.RequireFromString("0.001")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for excess precision, got %v", err)
	}

	huge := decimal.RequireFromString(MaxTransferAmount).Add(decimal.NewFromInt(1))
	if err := ValidateAmount(huge); !errors.Is(err, ErrAmountTooLarge) {
		t.Fatalf("expected ErrAmountTooLarge, got %v", err)
	}
}

func TestValidateMemo(t *testing.T) {
	t.Parallel()

	if err := ValidateMemo(""); err != nil {
		t.Fatalf("expected empty memo to be allowed, got %v", err)
	}
	if err := ValidateMemo(strings.Repeat("é", MaxMemoLength)); err != nil {
		t.Fatalf("expected memo at the limit to be allowed, got %v", err)
	}
	if err := ValidateMemo(strings.Repeat("x", MaxMemoLength+1)); !errors.Is(err, ErrInvalidMemo) {
		t.Fatalf("expected ErrInvalidMemo, got %v", err)
	}
}

func TestValidateIdempotencyKey(t *testing.T) {
	t.Parallel()

	if err := ValidateIdempotencyKey("  "); !errors.Is(err, ErrMissingIdempotencyKey) {
		t.Fatalf("expected ErrMissingIdempotencyKey, got %v", err)
	}
	if err := ValidateIdempotencyKey(strings.Repeat("k", MaxIdempotencyKeyLen+1)); !errors.Is(err, ErrInvalidIdempotencyKey) {
		t.Fatalf("expected ErrInvalidIdempotencyKey, got %v", err)
	}
}

func TestValidateInitialDeposit(t *testing.T) {
	t.Parallel()

	if err := ValidateInitialDeposit(decimal.Zero); err != nil {
		t.Fatalf("expected zero deposit to be allowed, got %v", err)
	}
	if err := ValidateInitialDeposit(decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidInitialDeposit) {
		t.Fatalf("expected ErrInvalidInitialDeposit, got %v", err)
	}
}

func TestReasonFromError(t *testing.T) {
	t.Parallel()

	cases := map[error]Reason{
		ErrAccountNotFound:    ReasonAccountUnavailable,
		ErrAccountUnavailable: ReasonAccountUnavailable,
		ErrSameAccount:        ReasonSameAccount,
		ErrAmountTooLarge:     ReasonInvalidAmount,
		ErrInsufficientFunds:  ReasonInsufficientFunds,
		ErrNotAccountOwner:    ReasonNotAccountOwner,
		ErrFatalStorage:       "",
	}

	for err, want := range cases {
		if got := ReasonFromError(err); got != want {
			t.Errorf("ReasonFromError(%v) = %q, want %q", err, got, want)
		}
	}
}

func TestValidatePagination(t *testing.T) {
	t.Parallel()

	limit, offset, _ := ValidatePagination(0, -5)
	if limit != 50 || offset != 0 {
		t.Fatalf("expected defaults 50/0, got %d/%d", limit, offset)
	}

	limit, _, _ = ValidatePagination(5000, 0)
	if limit != 1000 {
		t.Fatalf("expected limit capped at 1000, got %d", limit)
	}
}
