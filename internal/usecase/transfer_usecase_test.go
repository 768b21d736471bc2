package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

func TestSubmitTransfer_Success(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "100.00")
	dst := e.openAccount(t, "bob", "5.00")

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "40.25", "k-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeSuccess, outcome.Status)
	assert.Empty(t, outcome.Reason)
	assert.Equal(t, "k-1", outcome.IdempotencyKey)
	require.NotEmpty(t, outcome.TransferID)

	requireDecimal(t, "59.75", e.balance(t, src))
	requireDecimal(t, "45.25", e.balance(t, dst))
	assert.Equal(t, []domain.PostingKind{domain.PostingKindDebit, domain.PostingKindCredit}, e.postingKinds(t, outcome.TransferID))

	record, err := e.journal.GetByID(ctx, outcome.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCommitted, record.State)
	require.NotNil(t, record.DebitPostingID)
	require.NotNil(t, record.CreditPostingID)
	assert.Nil(t, record.CompensationPostingID)
	assert.Len(t, record.Transitions, 2)

	var committed int
	for _, ev := range e.outbox.Events() {
		if ev.EventType == domain.EventTypeTransferCommitted && ev.AggregateID == outcome.TransferID {
			committed++
		}
	}
	assert.Equal(t, 1, committed)
}

func TestSubmitTransfer_PreExecutionRejections(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "10.00")
	dst := e.openAccount(t, "bob", "0")
	frozen := e.openAccount(t, "bob", "0")
	_, err := e.accounts.SetAccountStatus(ctx, frozen, domain.AccountStatusFrozen)
	require.NoError(t, err)

	tests := []struct {
		name   string
		intent domain.TransferIntent
		reason domain.Reason
	}{
		{"insufficient funds", intent("alice", src, dst, "10.01", "r-1"), domain.ReasonInsufficientFunds},
		{"same account", intent("alice", src, src, "1", "r-2"), domain.ReasonSameAccount},
		{"zero amount", intent("alice", src, dst, "0", "r-3"), domain.ReasonInvalidAmount},
		{"too many decimals", intent("alice", src, dst, "0.001", "r-4"), domain.ReasonInvalidAmount},
		{"unknown destination", intent("alice", src, "missing", "1", "r-5"), domain.ReasonAccountUnavailable},
		{"frozen destination", intent("alice", src, frozen, "1", "r-6"), domain.ReasonAccountUnavailable},
		{"not the owner", intent("mallory", src, dst, "1", "r-7"), domain.ReasonNotAccountOwner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := e.transfers.SubmitTransfer(ctx, tt.intent)
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeRejected, outcome.Status)
			assert.Equal(t, tt.reason, outcome.Reason)

			_, err = e.journal.GetByIdempotencyKey(ctx, tt.intent.IdempotencyKey)
			assert.ErrorIs(t, err, domain.ErrTransferNotFound)
		})
	}

	requireDecimal(t, "10.00", e.balance(t, src))
	postings, err := e.store.ListPostingsByAccount(ctx, src, 100, 0)
	require.NoError(t, err)
	assert.Len(t, postings, 1, "only the opening posting")
}

func TestSubmitTransfer_InvalidInput(t *testing.T) {
	e := newEngine(t)

	_, err := e.transfers.SubmitTransfer(context.Background(), intent("alice", "a", "b", "1", ""))
	assert.ErrorIs(t, err, domain.ErrMissingIdempotencyKey)
}

func TestSubmitTransfer_DestinationFrozenMidFlight(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "100")
	dst := e.openAccount(t, "bob", "0")

	e.ledger.after = func(req domain.PostingRequest, _ *domain.Posting) {
		if req.Kind == domain.PostingKindDebit {
			assert.NoError(t, e.store.SetStatus(ctx, dst, domain.AccountStatusFrozen, e.clock.Now()))
		}
	}

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "30", "k-frozen"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ReasonDestinationUnavailable, outcome.Reason)
	requireDecimal(t, "100", e.balance(t, src))
	requireDecimal(t, "0", e.balance(t, dst))
	assert.Equal(t,
		[]domain.PostingKind{domain.PostingKindDebit, domain.PostingKindCompensation},
		e.postingKinds(t, outcome.TransferID),
	)

	record, err := e.journal.GetByID(ctx, outcome.TransferID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateCompensated, record.State)

	var states []domain.TransferState
	for _, tr := range record.Transitions {
		states = append(states, tr.To)
	}
	assert.Equal(t, []domain.TransferState{
		domain.TransferStateDebited,
		domain.TransferStateCompensating,
		domain.TransferStateCompensated,
	}, states)
}

func TestSubmitTransfer_CreditTimeoutCompensates(t *testing.T) {
	e := newEngine(t, withCreditTimeout(30*time.Millisecond))
	ctx := context.Background()

	src := e.openAccount(t, "alice", "50")
	dst := e.openAccount(t, "bob", "0")

	e.ledger.before = func(ctx context.Context, req domain.PostingRequest) error {
		if req.Kind == domain.PostingKindCredit {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "20", "k-timeout"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ReasonCreditTimeout, outcome.Reason)
	requireDecimal(t, "50", e.balance(t, src))
	requireDecimal(t, "0", e.balance(t, dst))
}

func TestSubmitTransfer_CreditStorageFailureCompensates(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "50")
	dst := e.openAccount(t, "bob", "0")

	e.ledger.before = func(_ context.Context, req domain.PostingRequest) error {
		if req.Kind == domain.PostingKindCredit {
			return errConnReset
		}
		return nil
	}

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "20", "k-conflict"))
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ReasonConcurrentBalanceChange, outcome.Reason)
	requireDecimal(t, "50", e.balance(t, src))
}

func TestSubmitTransfer_IdempotentResubmission(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "100")
	dst := e.openAccount(t, "bob", "0")
	in := intent("alice", src, dst, "100", "k-dup")

	first, err := e.transfers.SubmitTransfer(ctx, in)
	require.NoError(t, err)
	second, err := e.transfers.SubmitTransfer(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.OutcomeSuccess, second.Status)
	requireDecimal(t, "0", e.balance(t, src))
	requireDecimal(t, "100", e.balance(t, dst))
	assert.Len(t, e.postingKinds(t, first.TransferID), 2)
}

func TestSubmitTransfer_ConcurrentDuplicates(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "100")
	dst := e.openAccount(t, "bob", "0")
	in := intent("alice", src, dst, "100", "k-race")

	const callers = 20
	outcomes := make([]domain.TransferOutcome, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = e.transfers.SubmitTransfer(ctx, in)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0], outcomes[i])
	}
	assert.Equal(t, domain.OutcomeSuccess, outcomes[0].Status)
	requireDecimal(t, "0", e.balance(t, src))
	requireDecimal(t, "100", e.balance(t, dst))
	assert.Len(t, e.postingKinds(t, outcomes[0].TransferID), 2)
}

func TestSubmitTransfer_IdempotencyConflict(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "100")
	dst := e.openAccount(t, "bob", "0")

	_, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "10", "k-reuse"))
	require.NoError(t, err)

	_, err = e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "11", "k-reuse"))
	assert.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	requireDecimal(t, "90", e.balance(t, src))
}

func TestSubmitTransfer_ConcurrentDrain(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "50")

	const transfers = 100
	outcomes := make([]domain.TransferOutcome, transfers)
	dsts := make([]string, transfers)
	for i := range dsts {
		dsts[i] = e.openAccount(t, fmt.Sprintf("payee-%d", i), "0")
	}

	var wg sync.WaitGroup
	for i := 0; i < transfers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dsts[i], "1", fmt.Sprintf("drain-%d", i)))
			assert.NoError(t, err)
			outcomes[i] = out
		}(i)
	}
	wg.Wait()

	var success, insufficient int
	for _, out := range outcomes {
		switch {
		case out.Status == domain.OutcomeSuccess:
			success++
		case out.Status == domain.OutcomeRejected && out.Reason == domain.ReasonInsufficientFunds:
			insufficient++
		default:
			t.Errorf("unexpected outcome %+v", out)
		}
	}

	assert.Equal(t, 50, success)
	assert.Equal(t, 50, insufficient)
	requireDecimal(t, "0", e.balance(t, src))

	credited := decimal.Zero
	for i, dst := range dsts {
		balance := e.balance(t, dst)
		if outcomes[i].Status == domain.OutcomeSuccess {
			requireDecimal(t, "1", balance)
		} else {
			requireDecimal(t, "0", balance)
		}
		credited = credited.Add(balance)
	}
	requireDecimal(t, "50", credited)

	postings, err := e.store.ListPostingsByAccount(ctx, src, 1000, 0)
	require.NoError(t, err)
	for _, p := range postings {
		assert.False(t, p.AccountCurrentBalance.IsNegative(), "balance went negative at posting %s", p.ID)
	}
}

func TestSubmitTransfer_StalledDebitDoesNotBlockOtherAccounts(t *testing.T) {
	e := newEngine(t, withDebitTimeout(time.Minute))
	ctx := context.Background()

	stalledSrc := e.openAccount(t, "alice", "10")
	stalledDst := e.openAccount(t, "bob", "0")
	src := e.openAccount(t, "carol", "10")
	dst := e.openAccount(t, "dave", "0")

	entered := make(chan struct{})
	release := make(chan struct{})
	e.ledger.before = func(ctx context.Context, req domain.PostingRequest) error {
		if req.AccountID == stalledSrc && req.Kind == domain.PostingKindDebit {
			close(entered)
			<-release
		}
		return nil
	}

	stalled := make(chan domain.TransferOutcome, 1)
	go func() {
		out, err := e.transfers.SubmitTransfer(ctx, intent("alice", stalledSrc, stalledDst, "5", "k-stalled"))
		assert.NoError(t, err)
		stalled <- out
	}()
	<-entered

	out, err := e.transfers.SubmitTransfer(ctx, intent("carol", src, dst, "4", "k-free"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, out.Status)
	requireDecimal(t, "4", e.balance(t, dst))

	close(release)
	assert.Equal(t, domain.OutcomeSuccess, (<-stalled).Status)
	requireDecimal(t, "5", e.balance(t, stalledDst))
}

func TestSubmitTransfer_SubmitTimeoutIsIndeterminate(t *testing.T) {
	e := newEngine(t, withSubmitTimeout(50*time.Millisecond))
	ctx := context.Background()

	src := e.openAccount(t, "alice", "10")
	dst := e.openAccount(t, "bob", "0")

	release := make(chan struct{})
	e.ledger.before = func(_ context.Context, req domain.PostingRequest) error {
		if req.Kind == domain.PostingKindCredit {
			<-release
		}
		return nil
	}

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "10", "k-slow"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ReasonIndeterminate, outcome.Reason)
	require.NotEmpty(t, outcome.TransferID)

	close(release)

	require.Eventually(t, func() bool {
		status, err := e.transfers.GetTransferStatus(ctx, usecase.StatusQuery{TransferID: outcome.TransferID})
		return err == nil && status.Status == domain.OutcomeSuccess
	}, 2*time.Second, 10*time.Millisecond)

	requireDecimal(t, "10", e.balance(t, dst))
}

func TestSubmitTransfer_JournalFailureAfterCredit(t *testing.T) {
	e := newEngine(t, withJournalFailure(domain.TransferStateCommitted))
	ctx := context.Background()

	src := e.openAccount(t, "alice", "10")
	dst := e.openAccount(t, "bob", "0")

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "4", "k-crash"))
	require.ErrorIs(t, err, domain.ErrFatalStorage)
	assert.Equal(t, domain.OutcomeFailed, outcome.Status)
	assert.Equal(t, domain.ReasonIndeterminate, outcome.Reason)

	record, err := e.journal.GetByIdempotencyKey(ctx, "k-crash")
	require.NoError(t, err)
	assert.Equal(t, domain.TransferStateDebited, record.State)

	e.clock.Advance(testGrace + time.Second)
	report, err := e.recovery.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Committed)

	status, err := e.transfers.GetTransferStatus(ctx, usecase.StatusQuery{IdempotencyKey: "k-crash"})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeSuccess, status.Status)

	requireDecimal(t, "6", e.balance(t, src))
	requireDecimal(t, "4", e.balance(t, dst))
	assert.Equal(t, []domain.PostingKind{domain.PostingKindDebit, domain.PostingKindCredit}, e.postingKinds(t, record.ID))
}

func TestGetTransferStatus_Scoping(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	src := e.openAccount(t, "alice", "10")
	dst := e.openAccount(t, "bob", "0")

	outcome, err := e.transfers.SubmitTransfer(ctx, intent("alice", src, dst, "1", "k-scope"))
	require.NoError(t, err)

	status, err := e.transfers.GetTransferStatus(ctx, usecase.StatusQuery{IdempotencyKey: "k-scope", OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, outcome.TransferID, status.TransferID)

	_, err = e.transfers.GetTransferStatus(ctx, usecase.StatusQuery{TransferID: outcome.TransferID, OwnerID: "bob"})
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)

	_, err = e.transfers.GetTransferStatus(ctx, usecase.StatusQuery{})
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)

	postings, err := e.transfers.ListTransferPostings(ctx, outcome.TransferID, "alice")
	require.NoError(t, err)
	assert.Len(t, postings, 2)

	record, err := e.transfers.GetTransfer(ctx, outcome.TransferID, "")
	require.NoError(t, err)
	assert.Len(t, record.Transitions, 2)
}
