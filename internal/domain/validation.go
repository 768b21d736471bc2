package domain

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Validation errors
var (
	ErrAmountTooLarge        = errors.New("amount exceeds maximum allowed")
	ErrInvalidMemo           = errors.New("invalid memo")
	ErrInvalidIdempotencyKey = errors.New("invalid idempotency key")
	ErrInvalidOwnerID        = errors.New("invalid owner id")
	ErrInvalidInitialDeposit = errors.New("initial deposit must not be negative")
)

// Validation constants
const (
	// LedgerScale is the number of decimal places the ledger stores.
	LedgerScale          = 2
	MaxTransferAmount    = "1000000000" // 1 billion
	MaxMemoLength        = 140
	MaxIdempotencyKeyLen = 128
)

var maxTransferAmount = decimal.RequireFromString(MaxTransferAmount)

// ValidateAmount validates a transfer amount: strictly positive, at most
// LedgerScale decimal places, and under the per-transfer ceiling.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(LedgerScale)) {
		return fmt.Errorf("%w: at most %d decimal places are supported", ErrInvalidAmount, LedgerScale)
	}

	if amount.GreaterThan(maxTransferAmount) {
		return fmt.Errorf("%w: maximum amount is %s", ErrAmountTooLarge, MaxTransferAmount)
	}

	return nil
}

// ValidateMemo validates the optional free-text memo.
func ValidateMemo(memo string) error {
	if utf8.RuneCountInString(memo) > MaxMemoLength {
		return fmt.Errorf("%w: memo exceeds %d characters", ErrInvalidMemo, MaxMemoLength)
	}
	return nil
}

// ValidateIdempotencyKey validates the client-supplied dedup token.
func ValidateIdempotencyKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMissingIdempotencyKey
	}

	if len(key) > MaxIdempotencyKeyLen {
		return fmt.Errorf("%w: key exceeds %d bytes", ErrInvalidIdempotencyKey, MaxIdempotencyKeyLen)
	}

	return nil
}

// ValidateInitialDeposit validates the funding amount of a new account.
func ValidateInitialDeposit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidInitialDeposit
	}

	if !amount.Equal(amount.Truncate(LedgerScale)) {
		return fmt.Errorf("%w: at most %d decimal places are supported", ErrInvalidAmount, LedgerScale)
	}

	return nil
}

// ValidatePagination validates and limits pagination parameters
func ValidatePagination(limit, offset int) (int, int, error) {
	const MaxPageSize = 1000
	const DefaultPageSize = 50

	if limit <= 0 {
		limit = DefaultPageSize
	}

	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}
