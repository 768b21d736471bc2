package postgres

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedIDs struct{ id string }

func (g fixedIDs) Generate() string { return g.id }

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testTime }

func numeric(cents int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(cents), Exp: -2, Valid: true}
}

func ts() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: testTime, Valid: true}
}

func accountRows(balanceCents int64, status string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "owner_id", "type", "balance", "status", "version", "created_at", "updated_at"}).
		AddRow("acc-1", "owner-1", "CURRENT", numeric(balanceCents), status, int64(3), ts(), ts())
}

func postingRows(kind string, amountCents int64) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "account_id", "transfer_id", "kind", "amount",
		"account_previous_balance", "account_current_balance", "account_version", "created_at",
	}).AddRow("pst-1", "acc-1", "trf-1", kind, numeric(amountCents), numeric(1000), numeric(1000+amountCents), int64(4), ts())
}

func recordRows(state string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "owner_id", "source_account_id", "destination_account_id", "amount", "memo",
		"idempotency_key", "request_hash", "state", "failure_reason",
		"debit_posting_id", "credit_posting_id", "compensation_posting_id", "created_at", "updated_at",
	}).AddRow("trf-1", "owner-1", "acc-1", "acc-2", numeric(2500), "rent", "key-1", "hash",
		state, "", pgtype.Text{String: "pst-1", Valid: true}, pgtype.Text{}, pgtype.Text{}, ts(), ts())
}

func voidRows(voided bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"voided"}).AddRow(voided)
}

func emptyTransitions() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "transfer_id", "from_state", "to_state", "reason", "created_at"})
}

func newTestLedger(pool pgxmock.PgxPoolIface) *LedgerStore {
	return NewLedgerStore(pool, NewRetrier(RetrierConfig{}, zerolog.Nop(), nil), fixedIDs{id: "pst-new"}, fixedClock{})
}

func TestDecimalNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "12.34", "-7.50", "1000000.01"} {
		d := decimal.RequireFromString(s)
		if got := numericToDecimal(decimalToNumeric(d)); !got.Equal(d) {
			t.Errorf("round trip of %s gave %s", s, got)
		}
	}

	if got := numericToDecimal(pgtype.Numeric{}); !got.IsZero() {
		t.Errorf("expected NULL numeric to map to zero, got %s", got)
	}
}

func TestAccountRepositoryGetByIDNotFound(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery(`FROM accounts WHERE id = \$1;`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewAccountRepository(mockPool).GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestAccountRepositoryGetByID(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectQuery(`FROM accounts WHERE id = \$1;`).
		WithArgs("acc-1").
		WillReturnRows(accountRows(1050, "ACTIVE"))

	account, err := NewAccountRepository(mockPool).GetByID(context.Background(), "acc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !account.Balance.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("expected balance 10.50, got %s", account.Balance)
	}
	if account.Status != domain.AccountStatusActive || account.Version != 3 {
		t.Errorf("unexpected account %+v", account)
	}
}

func TestAccountRepositorySetStatusMissing(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectExec("UPDATE accounts SET status").
		WithArgs("missing", "FROZEN", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewAccountRepository(mockPool).SetStatus(context.Background(), "missing", domain.AccountStatusFrozen, testTime)
	if !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLedgerStoreApplyPostingInsufficientFunds(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "DEBIT").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectQuery("FROM transfer_voids").WithArgs("trf-1").WillReturnRows(voidRows(false))
	mockPool.ExpectRollback()

	_, err := newTestLedger(mockPool).ApplyPosting(context.Background(), domain.PostingRequest{
		AccountID:  "acc-1",
		TransferID: "trf-1",
		Kind:       domain.PostingKindDebit,
		Delta:      decimal.RequireFromString("-25.00"),
		Preconditions: domain.PostingPreconditions{
			RequireActive:          true,
			RequireSufficientFunds: true,
		},
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreApplyPostingWritesBalance(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "DEBIT").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectQuery("FROM transfer_voids").WithArgs("trf-1").WillReturnRows(voidRows(false))
	mockPool.ExpectExec("INSERT INTO postings").
		WithArgs("pst-new", "acc-1", "trf-1", "DEBIT",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), int64(4), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("UPDATE accounts SET balance").
		WithArgs("acc-1", pgxmock.AnyArg(), int64(4), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mockPool.ExpectCommit()

	posting, err := newTestLedger(mockPool).ApplyPosting(context.Background(), domain.PostingRequest{
		AccountID:     "acc-1",
		TransferID:    "trf-1",
		Kind:          domain.PostingKindDebit,
		Delta:         decimal.RequireFromString("-2.50"),
		Preconditions: domain.PostingPreconditions{RequireActive: true, RequireSufficientFunds: true},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !posting.AccountCurrentBalance.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("expected balance 7.50 after posting, got %s", posting.AccountCurrentBalance)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreApplyPostingReplay(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "FROZEN"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "CREDIT").
		WillReturnRows(postingRows("CREDIT", 250))
	mockPool.ExpectCommit()

	posting, err := newTestLedger(mockPool).ApplyPosting(context.Background(), domain.PostingRequest{
		AccountID:     "acc-1",
		TransferID:    "trf-1",
		Kind:          domain.PostingKindCredit,
		Delta:         decimal.RequireFromString("2.50"),
		Preconditions: domain.PostingPreconditions{RequireActive: true},
	})
	if err != nil {
		t.Fatalf("replay must not re-check preconditions: %v", err)
	}
	if posting.ID != "pst-1" {
		t.Errorf("expected original posting, got %s", posting.ID)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreApplyPostingSettlementConflict(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "COMPENSATION").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "CREDIT").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectExec("INSERT INTO postings").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintPostingSettlement})
	mockPool.ExpectRollback()

	_, err := newTestLedger(mockPool).ApplyPosting(context.Background(), domain.PostingRequest{
		AccountID:  "acc-1",
		TransferID: "trf-1",
		Kind:       domain.PostingKindCompensation,
		Delta:      decimal.RequireFromString("2.50"),
	})
	if !errors.Is(err, domain.ErrSettlementConflict) {
		t.Fatalf("expected ErrSettlementConflict, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreApplyPostingRefusesVoidedDebit(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "DEBIT").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectQuery("FROM transfer_voids").WithArgs("trf-1").WillReturnRows(voidRows(true))
	mockPool.ExpectRollback()

	_, err := newTestLedger(mockPool).ApplyPosting(context.Background(), domain.PostingRequest{
		AccountID:     "acc-1",
		TransferID:    "trf-1",
		Kind:          domain.PostingKindDebit,
		Delta:         decimal.RequireFromString("-2.50"),
		Preconditions: domain.PostingPreconditions{RequireActive: true, RequireSufficientFunds: true},
	})
	if !errors.Is(err, domain.ErrTransferVoided) {
		t.Fatalf("expected ErrTransferVoided, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreVoidDebit(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "DEBIT").
		WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectExec("INSERT INTO transfer_voids").
		WithArgs("trf-1", "acc-1", ts()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()

	if err := newTestLedger(mockPool).VoidDebit(context.Background(), "trf-1", "acc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestLedgerStoreVoidDebitAfterDebit(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("FOR UPDATE").WithArgs("acc-1").WillReturnRows(accountRows(1000, "ACTIVE"))
	mockPool.ExpectQuery("FROM postings WHERE transfer_id").
		WithArgs("trf-1", "DEBIT").
		WillReturnRows(postingRows("DEBIT", -250))
	mockPool.ExpectRollback()

	err := newTestLedger(mockPool).VoidDebit(context.Background(), "trf-1", "acc-1")
	if !errors.Is(err, domain.ErrDebitApplied) {
		t.Fatalf("expected ErrDebitApplied, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestJournalRepositoryCreateDuplicateKey(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectExec("INSERT INTO transfer_records").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation, ConstraintName: constraintIdempotencyKey})

	record := domain.NewTransferRecord("trf-1", domain.TransferIntent{
		OwnerID:              "owner-1",
		SourceAccountID:      "acc-1",
		DestinationAccountID: "acc-2",
		Amount:               decimal.RequireFromString("25.00"),
		IdempotencyKey:       "key-1",
	}, testTime)

	err := NewJournalRepository(mockPool).Create(context.Background(), record)
	if !errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		t.Fatalf("expected ErrDuplicateIdempotencyKey, got %v", err)
	}
}

func TestJournalRepositoryTransitionRejectsInvalidEdge(t *testing.T) {
	mockPool := newMockPool(t)

	_, err := NewJournalRepository(mockPool).Transition(context.Background(), usecase.TransitionInput{
		TransferID: "trf-1",
		From:       domain.TransferStatePending,
		To:         domain.TransferStateCommitted,
		At:         testTime,
	})
	if !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestJournalRepositoryTransitionConflict(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("UPDATE transfer_records").WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()
	mockPool.ExpectQuery(`FROM transfer_records WHERE id = \$1`).
		WithArgs("trf-1").
		WillReturnRows(recordRows("COMMITTED"))

	_, err := NewJournalRepository(mockPool).Transition(context.Background(), usecase.TransitionInput{
		TransferID: "trf-1",
		From:       domain.TransferStateDebited,
		To:         domain.TransferStateCompensating,
		Reason:     domain.ReasonCreditTimeout,
		At:         testTime,
	})
	if !errors.Is(err, domain.ErrStateConflict) {
		t.Fatalf("expected ErrStateConflict, got %v", err)
	}

	assertExpectations(t, mockPool)
}

func TestJournalRepositoryTransitionMissing(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("UPDATE transfer_records").WillReturnError(pgx.ErrNoRows)
	mockPool.ExpectRollback()
	mockPool.ExpectQuery(`FROM transfer_records WHERE id = \$1`).
		WithArgs("trf-404").
		WillReturnError(pgx.ErrNoRows)

	_, err := NewJournalRepository(mockPool).Transition(context.Background(), usecase.TransitionInput{
		TransferID: "trf-404",
		From:       domain.TransferStatePending,
		To:         domain.TransferStateFailed,
		At:         testTime,
	})
	if !errors.Is(err, domain.ErrTransferNotFound) {
		t.Fatalf("expected ErrTransferNotFound, got %v", err)
	}
}

func TestJournalRepositoryTransitionWritesHistoryAndEvent(t *testing.T) {
	mockPool := newMockPool(t)
	mockPool.ExpectBegin()
	mockPool.ExpectQuery("UPDATE transfer_records").WillReturnRows(recordRows("FAILED"))
	mockPool.ExpectExec("INSERT INTO transfer_transitions").
		WithArgs("trf-1", "PENDING", "FAILED", "EXPIRED", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec("INSERT INTO outbox_events").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectCommit()
	mockPool.ExpectQuery("FROM transfer_transitions").
		WithArgs("trf-1").
		WillReturnRows(emptyTransitions().AddRow(int64(1), "trf-1", "PENDING", "FAILED", "EXPIRED", ts()))

	record, err := NewJournalRepository(mockPool).Transition(context.Background(), usecase.TransitionInput{
		TransferID: "trf-1",
		From:       domain.TransferStatePending,
		To:         domain.TransferStateFailed,
		Reason:     domain.ReasonExpired,
		At:         testTime,
		Event: &domain.OutboxEvent{
			ID:            "evt-1",
			AggregateID:   "trf-1",
			AggregateType: domain.AggregateTypeTransfer,
			EventType:     domain.EventTypeTransferFailed,
			Payload:       map[string]any{"state": "FAILED"},
			CreatedAt:     testTime,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.State != domain.TransferStateFailed {
		t.Errorf("expected FAILED, got %s", record.State)
	}
	if record.DebitPostingID == nil || *record.DebitPostingID != "pst-1" {
		t.Errorf("expected debit posting id to be loaded")
	}
	if len(record.Transitions) != 1 || record.Transitions[0].Reason != domain.ReasonExpired {
		t.Errorf("expected one EXPIRED transition, got %+v", record.Transitions)
	}

	assertExpectations(t, mockPool)
}
