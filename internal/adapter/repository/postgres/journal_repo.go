package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/infrastructure/postgres/generated"
	"github.com/iho/transferengine/internal/usecase"
)

const constraintIdempotencyKey = "uq_transfer_records_idempotency_key"

var errNoTransition = errors.New("compare-and-set matched no row")

// JournalRepository implements usecase.JournalRepository over the
// transfer_records and transfer_transitions tables.
type JournalRepository struct {
	queries   *generated.Queries
	txManager *TxManager
}

// NewJournalRepository creates a new JournalRepository.
func NewJournalRepository(pool Pool) *JournalRepository {
	return &JournalRepository{
		queries:   generated.New(pool),
		txManager: NewTxManager(pool),
	}
}

// Create journals a new PENDING record.
func (r *JournalRepository) Create(ctx context.Context, record *domain.TransferRecord) error {
	err := r.queries.CreateTransferRecord(ctx, generated.CreateTransferRecordParams{
		ID:                   record.ID,
		OwnerID:              record.OwnerID,
		SourceAccountID:      record.SourceAccountID,
		DestinationAccountID: record.DestinationAccountID,
		Amount:               decimalToNumeric(record.Amount),
		Memo:                 record.Memo,
		IdempotencyKey:       record.IdempotencyKey,
		RequestHash:          record.RequestHash,
		State:                string(record.State),
		FailureReason:        string(record.FailureReason),
		CreatedAt:            timeToPgTimestamptz(record.CreatedAt),
		UpdatedAt:            timeToPgTimestamptz(record.UpdatedAt),
	})
	if constraintViolation(err, constraintIdempotencyKey) {
		return domain.ErrDuplicateIdempotencyKey
	}

	return err
}

// GetByID returns the record with its transition history.
func (r *JournalRepository) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	row, err := r.queries.GetTransferRecordByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}

	return r.withHistory(ctx, row)
}

// GetByIdempotencyKey returns the record journaled under key.
func (r *JournalRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	row, err := r.queries.GetTransferRecordByIdempotencyKey(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, err
	}

	return r.withHistory(ctx, row)
}

// Transition moves the record from in.From to in.To. The history row and
// the optional outbox event commit in the same transaction.
func (r *JournalRepository) Transition(ctx context.Context, in usecase.TransitionInput) (*domain.TransferRecord, error) {
	if !in.From.CanTransitionTo(in.To) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, in.From, in.To)
	}

	var updated generated.TransferRecord
	err := r.txManager.RunInTx(ctx, func(q *generated.Queries) error {
		row, err := q.TransitionTransferRecord(ctx, generated.TransitionTransferRecordParams{
			ToState:               string(in.To),
			Reason:                string(in.Reason),
			DebitPostingID:        stringToPgText(in.DebitPostingID),
			CreditPostingID:       stringToPgText(in.CreditPostingID),
			CompensationPostingID: stringToPgText(in.CompensationPostingID),
			UpdatedAt:             timeToPgTimestamptz(in.At),
			ID:                    in.TransferID,
			FromState:             string(in.From),
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errNoTransition
			}
			return err
		}

		if err := q.CreateTransferTransition(ctx, generated.CreateTransferTransitionParams{
			TransferID: in.TransferID,
			FromState:  string(in.From),
			ToState:    string(in.To),
			Reason:     string(in.Reason),
			CreatedAt:  timeToPgTimestamptz(in.At),
		}); err != nil {
			return fmt.Errorf("record transition: %w", err)
		}

		if in.Event != nil {
			if err := createOutboxEvent(ctx, q, in.Event); err != nil {
				return fmt.Errorf("write outbox event: %w", err)
			}
		}

		updated = row
		return nil
	})
	if errors.Is(err, errNoTransition) {
		if _, getErr := r.queries.GetTransferRecordByID(ctx, in.TransferID); getErr != nil {
			if errors.Is(getErr, pgx.ErrNoRows) {
				return nil, domain.ErrTransferNotFound
			}
			return nil, getErr
		}
		return nil, domain.ErrStateConflict
	}
	if err != nil {
		return nil, err
	}

	return r.withHistory(ctx, updated)
}

// ListStale returns non-terminal records not updated since olderThan.
func (r *JournalRepository) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error) {
	rows, err := r.queries.ListStaleTransferRecords(ctx, generated.ListStaleTransferRecordsParams{
		UpdatedAt: timeToPgTimestamptz(olderThan),
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, err
	}

	return rowsToRecords(rows), nil
}

// ListByState returns a page of records in state, oldest first.
func (r *JournalRepository) ListByState(ctx context.Context, state domain.TransferState, limit, offset int) ([]*domain.TransferRecord, error) {
	rows, err := r.queries.ListTransferRecordsByState(ctx, generated.ListTransferRecordsByStateParams{
		State:  string(state),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, err
	}

	return rowsToRecords(rows), nil
}

func (r *JournalRepository) withHistory(ctx context.Context, row generated.TransferRecord) (*domain.TransferRecord, error) {
	record := rowToRecord(row)

	transitions, err := r.queries.ListTransferTransitions(ctx, row.ID)
	if err != nil {
		return nil, fmt.Errorf("load transitions: %w", err)
	}

	for _, t := range transitions {
		record.Transitions = append(record.Transitions, domain.StateTransition{
			From:   domain.TransferState(t.FromState),
			To:     domain.TransferState(t.ToState),
			Reason: domain.Reason(t.Reason),
			At:     t.CreatedAt.Time,
		})
	}

	return record, nil
}

func rowsToRecords(rows []generated.TransferRecord) []*domain.TransferRecord {
	records := make([]*domain.TransferRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowToRecord(row))
	}

	return records
}

func rowToRecord(row generated.TransferRecord) *domain.TransferRecord {
	return &domain.TransferRecord{
		ID:                    row.ID,
		OwnerID:               row.OwnerID,
		SourceAccountID:       row.SourceAccountID,
		DestinationAccountID:  row.DestinationAccountID,
		Amount:                numericToDecimal(row.Amount),
		Memo:                  row.Memo,
		IdempotencyKey:        row.IdempotencyKey,
		RequestHash:           row.RequestHash,
		State:                 domain.TransferState(row.State),
		FailureReason:         domain.Reason(row.FailureReason),
		DebitPostingID:        pgTextToString(row.DebitPostingID),
		CreditPostingID:       pgTextToString(row.CreditPostingID),
		CompensationPostingID: pgTextToString(row.CompensationPostingID),
		CreatedAt:             row.CreatedAt.Time,
		UpdatedAt:             row.UpdatedAt.Time,
	}
}
