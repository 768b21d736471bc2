package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	accountRepo AccountRepository
	ledger      LedgerStore
	outboxRepo  OutboxRepository
	idGen       IDGenerator
	clock       Clock
	logger      zerolog.Logger
}

// NewAccountUseCase creates a new AccountUseCase. outboxRepo may be nil.
func NewAccountUseCase(
	accountRepo AccountRepository,
	ledger LedgerStore,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	clock Clock,
	logger zerolog.Logger,
) *AccountUseCase {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AccountUseCase{
		accountRepo: accountRepo,
		ledger:      ledger,
		outboxRepo:  outboxRepo,
		idGen:       idGen,
		clock:       clock,
		logger:      logger.With().Str("component", "accounts").Logger(),
	}
}

// OpenAccountInput represents input for opening an account.
type OpenAccountInput struct {
	OwnerID        string
	Type           domain.AccountType
	InitialDeposit decimal.Decimal
}

// OpenAccount creates an ACTIVE account. A positive initial deposit is
// booked as an OPENING posting so every balance is backed by postings.
func (uc *AccountUseCase) OpenAccount(ctx context.Context, input OpenAccountInput) (*domain.Account, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, domain.ErrInvalidOwnerID
	}

	if !input.Type.IsValid() {
		return nil, domain.ErrInvalidAccountType
	}

	if err := domain.ValidateInitialDeposit(input.InitialDeposit); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	account := &domain.Account{
		ID:        uc.idGen.Generate(),
		OwnerID:   input.OwnerID,
		Type:      input.Type,
		Balance:   decimal.Zero,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := uc.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if input.InitialDeposit.IsPositive() {
		posting, err := uc.ledger.ApplyPosting(ctx, domain.PostingRequest{
			AccountID:  account.ID,
			TransferID: account.ID,
			Kind:       domain.PostingKindOpening,
			Delta:      input.InitialDeposit,
		})
		if err != nil {
			return nil, fmt.Errorf("book opening deposit for %s: %w", account.ID, err)
		}
		account.Balance = posting.AccountCurrentBalance
		account.Version = posting.AccountVersion
	}

	if uc.outboxRepo != nil {
		event := &domain.OutboxEvent{
			ID:            uc.idGen.Generate(),
			AggregateID:   account.ID,
			AggregateType: domain.AggregateTypeAccount,
			EventType:     domain.EventTypeAccountOpened,
			Payload: map[string]any{
				"account_id":      account.ID,
				"owner_id":        account.OwnerID,
				"type":            string(account.Type),
				"initial_deposit": input.InitialDeposit.StringFixed(domain.LedgerScale),
			},
			CreatedAt: now,
		}
		if err := uc.outboxRepo.Create(ctx, event); err != nil {
			uc.logger.Warn().Err(err).Str("account_id", account.ID).Msg("failed to record account.opened event")
		}
	}

	uc.logger.Info().
		Str("account_id", account.ID).
		Str("owner_id", account.OwnerID).
		Msg("account opened")

	return account, nil
}

// GetAccount retrieves an account by ID. A non-empty ownerID hides
// accounts that belong to someone else.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id, ownerID string) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !visibleTo(account.OwnerID, ownerID) {
		return nil, domain.ErrAccountNotFound
	}

	return account, nil
}

// ListAccountsByOwner lists the accounts of one owner.
func (uc *AccountUseCase) ListAccountsByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	return uc.accountRepo.ListByOwner(ctx, ownerID)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Limit, input.Offset)
}

// SetAccountStatus freezes, closes or reactivates an account. In-flight
// transfers observe the new status at their next posting.
func (uc *AccountUseCase) SetAccountStatus(ctx context.Context, id string, status domain.AccountStatus) (*domain.Account, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}

	if err := uc.accountRepo.SetStatus(ctx, id, status, uc.clock.Now()); err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("account_id", id).
		Str("status", string(status)).
		Msg("account status changed")

	return uc.accountRepo.GetByID(ctx, id)
}

// ListPostingsInput represents input for listing an account's postings.
type ListPostingsInput struct {
	AccountID string
	OwnerID   string
	Limit     int
	Offset    int
}

// ListAccountPostings lists the posting history of an account, newest first.
func (uc *AccountUseCase) ListAccountPostings(ctx context.Context, input ListPostingsInput) ([]*domain.Posting, error) {
	if _, err := uc.GetAccount(ctx, input.AccountID, input.OwnerID); err != nil {
		return nil, err
	}

	if input.Limit <= 0 {
		input.Limit = 20
	}

	if input.Limit > 100 {
		input.Limit = 100
	}

	return uc.ledger.ListPostingsByAccount(ctx, input.AccountID, input.Limit, input.Offset)
}
