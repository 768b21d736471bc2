package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/infrastructure/postgres/generated"
	"github.com/iho/transferengine/internal/usecase"
)

const (
	constraintPostingTransferKind = "uq_postings_transfer_kind"
	constraintPostingSettlement   = "uq_postings_settlement"
)

// LedgerStore implements usecase.LedgerStore. Every posting runs in its own
// transaction holding the account row lock.
type LedgerStore struct {
	queries   *generated.Queries
	txManager *TxManager
	retrier   usecase.Retrier
	idGen     usecase.IDGenerator
	clock     usecase.Clock
}

// NewLedgerStore creates a new LedgerStore.
func NewLedgerStore(pool Pool, retrier usecase.Retrier, idGen usecase.IDGenerator, clock usecase.Clock) *LedgerStore {
	if clock == nil {
		clock = usecase.SystemClock{}
	}

	return &LedgerStore{
		queries:   generated.New(pool),
		txManager: NewTxManager(pool),
		retrier:   retrier,
		idGen:     idGen,
		clock:     clock,
	}
}

// ApplyPosting locks the account row, re-checks the preconditions and
// writes the posting together with the new balance.
func (s *LedgerStore) ApplyPosting(ctx context.Context, req domain.PostingRequest) (*domain.Posting, error) {
	var posting *domain.Posting

	err := s.retrier.Retry(ctx, func() error {
		return s.txManager.RunInTx(ctx, func(q *generated.Queries) error {
			p, err := s.applyPosting(ctx, q, req)
			if err != nil {
				return err
			}
			posting = p
			return nil
		})
	})
	if err == nil {
		return posting, nil
	}

	switch {
	case constraintViolation(err, constraintPostingSettlement):
		return nil, domain.ErrSettlementConflict
	case constraintViolation(err, constraintPostingTransferKind):
		// A concurrent replay of the same leg won the insert.
		return s.GetPosting(ctx, req.TransferID, req.Kind)
	}

	return nil, err
}

func (s *LedgerStore) applyPosting(ctx context.Context, q *generated.Queries, req domain.PostingRequest) (*domain.Posting, error) {
	row, err := q.GetAccountByIDForUpdate(ctx, req.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lock account: %w", err)
	}

	existing, err := q.GetPostingByTransferAndKind(ctx, generated.GetPostingByTransferAndKindParams{
		TransferID: req.TransferID,
		Kind:       string(req.Kind),
	})
	if err == nil {
		return rowToPosting(existing), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lookup posting: %w", err)
	}

	if req.Kind == domain.PostingKindDebit {
		voided, err := q.IsTransferVoided(ctx, req.TransferID)
		if err != nil {
			return nil, fmt.Errorf("lookup void: %w", err)
		}
		if voided {
			return nil, domain.ErrTransferVoided
		}
	}

	if opposite, ok := oppositeSettlement(req.Kind); ok {
		_, err := q.GetPostingByTransferAndKind(ctx, generated.GetPostingByTransferAndKindParams{
			TransferID: req.TransferID,
			Kind:       string(opposite),
		})
		if err == nil {
			return nil, domain.ErrSettlementConflict
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("lookup settlement: %w", err)
		}
	}

	account := rowToAccount(row)
	if err := account.CheckPreconditions(req.Delta, req.Preconditions); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	posting := &domain.Posting{
		ID:                     s.idGen.Generate(),
		AccountID:              account.ID,
		TransferID:             req.TransferID,
		Kind:                   req.Kind,
		Amount:                 req.Delta,
		AccountPreviousBalance: account.Balance,
		AccountCurrentBalance:  account.ApplyDelta(req.Delta),
		AccountVersion:         account.Version + 1,
		CreatedAt:              now,
	}

	if err := q.CreatePosting(ctx, generated.CreatePostingParams{
		ID:                     posting.ID,
		AccountID:              posting.AccountID,
		TransferID:             posting.TransferID,
		Kind:                   string(posting.Kind),
		Amount:                 decimalToNumeric(posting.Amount),
		AccountPreviousBalance: decimalToNumeric(posting.AccountPreviousBalance),
		AccountCurrentBalance:  decimalToNumeric(posting.AccountCurrentBalance),
		AccountVersion:         posting.AccountVersion,
		CreatedAt:              timeToPgTimestamptz(now),
	}); err != nil {
		return nil, fmt.Errorf("insert posting: %w", err)
	}

	if err := q.UpdateAccountBalance(ctx, generated.UpdateAccountBalanceParams{
		ID:        account.ID,
		Balance:   decimalToNumeric(posting.AccountCurrentBalance),
		Version:   posting.AccountVersion,
		UpdatedAt: timeToPgTimestamptz(now),
	}); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	return posting, nil
}

// VoidDebit records the void under the source account lock, the same lock
// a debit takes, so exactly one of them wins.
func (s *LedgerStore) VoidDebit(ctx context.Context, transferID, accountID string) error {
	return s.retrier.Retry(ctx, func() error {
		return s.txManager.RunInTx(ctx, func(q *generated.Queries) error {
			if _, err := q.GetAccountByIDForUpdate(ctx, accountID); err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("lock account: %w", err)
			}

			_, err := q.GetPostingByTransferAndKind(ctx, generated.GetPostingByTransferAndKindParams{
				TransferID: transferID,
				Kind:       string(domain.PostingKindDebit),
			})
			if err == nil {
				return domain.ErrDebitApplied
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("lookup debit: %w", err)
			}

			return q.CreateTransferVoid(ctx, generated.CreateTransferVoidParams{
				TransferID: transferID,
				AccountID:  accountID,
				VoidedAt:   timeToPgTimestamptz(s.clock.Now()),
			})
		})
	})
}

// GetPosting returns the posting of a transfer leg.
func (s *LedgerStore) GetPosting(ctx context.Context, transferID string, kind domain.PostingKind) (*domain.Posting, error) {
	row, err := s.queries.GetPostingByTransferAndKind(ctx, generated.GetPostingByTransferAndKindParams{
		TransferID: transferID,
		Kind:       string(kind),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPostingNotFound
		}
		return nil, err
	}

	return rowToPosting(row), nil
}

// ListPostingsByTransfer returns a transfer's postings in application order.
func (s *LedgerStore) ListPostingsByTransfer(ctx context.Context, transferID string) ([]*domain.Posting, error) {
	rows, err := s.queries.ListPostingsByTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}

	return rowsToPostings(rows), nil
}

// ListPostingsByAccount returns a page of the account's postings, newest first.
func (s *LedgerStore) ListPostingsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Posting, error) {
	rows, err := s.queries.ListPostingsByAccount(ctx, generated.ListPostingsByAccountParams{
		AccountID: accountID,
		Limit:     int32(limit),
		Offset:    int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToPostings(rows), nil
}

// SumPostings returns the sum of every posting against the account.
func (s *LedgerStore) SumPostings(ctx context.Context, accountID string) (decimal.Decimal, error) {
	total, err := s.queries.SumPostingsByAccount(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	return numericToDecimal(total), nil
}

func oppositeSettlement(kind domain.PostingKind) (domain.PostingKind, bool) {
	switch kind {
	case domain.PostingKindCredit:
		return domain.PostingKindCompensation, true
	case domain.PostingKindCompensation:
		return domain.PostingKindCredit, true
	}
	return "", false
}

func rowsToPostings(rows []generated.Posting) []*domain.Posting {
	postings := make([]*domain.Posting, 0, len(rows))
	for _, row := range rows {
		postings = append(postings, rowToPosting(row))
	}

	return postings
}

func rowToPosting(row generated.Posting) *domain.Posting {
	return &domain.Posting{
		ID:                     row.ID,
		AccountID:              row.AccountID,
		TransferID:             row.TransferID,
		Kind:                   domain.PostingKind(row.Kind),
		Amount:                 numericToDecimal(row.Amount),
		AccountPreviousBalance: numericToDecimal(row.AccountPreviousBalance),
		AccountCurrentBalance:  numericToDecimal(row.AccountCurrentBalance),
		AccountVersion:         row.AccountVersion,
		CreatedAt:              row.CreatedAt.Time,
	}
}
