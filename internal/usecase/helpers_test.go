package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iho/transferengine/internal/adapter/repository/memory"
	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

var errConnReset = errors.New("connection reset by peer")

type seqIDGen struct{ n atomic.Int64 }

func (g *seqIDGen) Generate() string {
	return fmt.Sprintf("id-%08d", g.n.Add(1))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// hookLedger lets a test interfere with postings.
type hookLedger struct {
	*memory.Ledger
	before func(ctx context.Context, req domain.PostingRequest) error
	after  func(req domain.PostingRequest, p *domain.Posting)
}

func (l *hookLedger) ApplyPosting(ctx context.Context, req domain.PostingRequest) (*domain.Posting, error) {
	if l.before != nil {
		if err := l.before(ctx, req); err != nil {
			return nil, err
		}
	}
	p, err := l.Ledger.ApplyPosting(ctx, req)
	if err == nil && l.after != nil {
		l.after(req, p)
	}
	return p, err
}

// faultyJournal fails the first transition into failOn, as if the process
// died right before journaling it.
type faultyJournal struct {
	*memory.Journal
	failOn domain.TransferState
	failed atomic.Bool
}

func (j *faultyJournal) Transition(ctx context.Context, in usecase.TransitionInput) (*domain.TransferRecord, error) {
	if in.To == j.failOn && j.failed.CompareAndSwap(false, true) {
		return nil, errConnReset
	}
	return j.Journal.Transition(ctx, in)
}

type engine struct {
	clock     *fakeClock
	store     *memory.Ledger
	ledger    *hookLedger
	journal   *memory.Journal
	outbox    *memory.Outbox
	executor  *usecase.TransferExecutor
	transfers *usecase.TransferUseCase
	accounts  *usecase.AccountUseCase
	recovery  *usecase.RecoveryUseCase
	recon     *usecase.ReconciliationUseCase
}

type engineOption func(*engineConfig)

type engineConfig struct {
	journalFailOn domain.TransferState
	submit        usecase.TransferConfig
	exec          usecase.ExecutorConfig
	locker        usecase.Locker
	cache         usecase.OutcomeCache
}

func withJournalFailure(state domain.TransferState) engineOption {
	return func(c *engineConfig) { c.journalFailOn = state }
}

func withSubmitTimeout(d time.Duration) engineOption {
	return func(c *engineConfig) { c.submit.SubmitTimeout = d }
}

func withDebitTimeout(d time.Duration) engineOption {
	return func(c *engineConfig) { c.exec.DebitTimeout = d }
}

func withCreditTimeout(d time.Duration) engineOption {
	return func(c *engineConfig) { c.exec.CreditTimeout = d }
}

func withLocker(l usecase.Locker) engineOption {
	return func(c *engineConfig) { c.locker = l }
}

func withCache(cache usecase.OutcomeCache) engineOption {
	return func(c *engineConfig) { c.cache = cache }
}

const testGrace = time.Minute

func newEngine(t *testing.T, opts ...engineOption) *engine {
	t.Helper()

	cfg := engineConfig{
		submit: usecase.TransferConfig{SubmitTimeout: 5 * time.Second},
		exec: usecase.ExecutorConfig{
			DebitTimeout:        time.Second,
			CreditTimeout:       time.Second,
			CompensationTimeout: time.Second,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	clock := newFakeClock()
	ids := &seqIDGen{}
	logger := zerolog.Nop()

	store := memory.NewLedger(ids, clock)
	ledger := &hookLedger{Ledger: store}
	outbox := memory.NewOutbox()
	journal := memory.NewJournal(outbox)

	var journalRepo usecase.JournalRepository = journal
	if cfg.journalFailOn != "" {
		journalRepo = &faultyJournal{Journal: journal, failOn: cfg.journalFailOn}
	}

	executor := usecase.NewTransferExecutor(ledger, journalRepo, ids, clock, nil, logger, cfg.exec)
	recovery := usecase.NewRecoveryUseCase(journalRepo, executor, cfg.locker, clock, nil, logger, usecase.RecoveryConfig{
		Grace:     testGrace,
		BatchSize: 50,
	})

	return &engine{
		clock:     clock,
		store:     store,
		ledger:    ledger,
		journal:   journal,
		outbox:    outbox,
		executor:  executor,
		transfers: usecase.NewTransferUseCase(store, journalRepo, ledger, executor, cfg.cache, ids, clock, nil, logger, cfg.submit),
		accounts:  usecase.NewAccountUseCase(store, ledger, outbox, ids, clock, logger),
		recovery:  recovery,
		recon:     usecase.NewReconciliationUseCase(store, ledger, journal, clock),
	}
}

func (e *engine) openAccount(t *testing.T, owner string, deposit string) string {
	t.Helper()

	account, err := e.accounts.OpenAccount(context.Background(), usecase.OpenAccountInput{
		OwnerID:        owner,
		Type:           domain.AccountTypeCurrent,
		InitialDeposit: decimal.RequireFromString(deposit),
	})
	require.NoError(t, err)
	return account.ID
}

func (e *engine) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()

	account, err := e.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func (e *engine) postingKinds(t *testing.T, transferID string) []domain.PostingKind {
	t.Helper()

	postings, err := e.store.ListPostingsByTransfer(context.Background(), transferID)
	require.NoError(t, err)

	kinds := make([]domain.PostingKind, 0, len(postings))
	for _, p := range postings {
		kinds = append(kinds, p.Kind)
	}
	return kinds
}

func intent(owner, src, dst, amount, key string) domain.TransferIntent {
	return domain.TransferIntent{
		OwnerID:              owner,
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               decimal.RequireFromString(amount),
		IdempotencyKey:       key,
	}
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "expected %s, got %s", want, got)
}
