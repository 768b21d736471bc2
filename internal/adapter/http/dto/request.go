package dto

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate runs the struct tag rules and flattens the failures into one error.
func Validate(req any) error {
	err := validatorInstance().Struct(req)
	if err == nil {
		return nil
	}

	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s=%s", f.Field(), f.Tag(), f.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: must satisfy %s", f.Field(), f.Tag()))
	}
	return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
}

// SubmitTransferRequest is the body of POST /transfers. The idempotency
// key may come from the body or the Idempotency-Key header.
type SubmitTransferRequest struct {
	SourceAccountID      string          `json:"source_account_id" validate:"required,max=64"`
	DestinationAccountID string          `json:"destination_account_id" validate:"required,max=64"`
	Amount               decimal.Decimal `json:"amount"`
	Memo                 string          `json:"memo,omitempty" validate:"max=140"`
	IdempotencyKey       string          `json:"idempotency_key,omitempty" validate:"max=128"`
}

// ToIntent converts the request into a transfer intent for owner.
func (r *SubmitTransferRequest) ToIntent(ownerID, headerKey string) domain.TransferIntent {
	key := r.IdempotencyKey
	if key == "" {
		key = headerKey
	}
	return domain.TransferIntent{
		OwnerID:              ownerID,
		SourceAccountID:      r.SourceAccountID,
		DestinationAccountID: r.DestinationAccountID,
		Amount:               r.Amount,
		Memo:                 r.Memo,
		IdempotencyKey:       key,
	}
}

// OpenAccountRequest represents a request to open an account.
type OpenAccountRequest struct {
	OwnerID        string          `json:"owner_id" validate:"required,max=64"`
	Type           string          `json:"type" validate:"required,oneof=CURRENT SAVINGS"`
	InitialDeposit decimal.Decimal `json:"initial_deposit"`
}

// ToUseCaseInput converts to use case input.
func (r *OpenAccountRequest) ToUseCaseInput() usecase.OpenAccountInput {
	return usecase.OpenAccountInput{
		OwnerID:        r.OwnerID,
		Type:           domain.AccountType(r.Type),
		InitialDeposit: r.InitialDeposit,
	}
}

// SetAccountStatusRequest changes an account's status.
type SetAccountStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE FROZEN CLOSED"`
}
