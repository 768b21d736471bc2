// Package memory provides process-local storage adapters. State is lost on
// restart, so it suits local runs and tests only.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

type postingKey struct {
	transferID string
	kind       domain.PostingKind
}

type accountSlot struct {
	// mu serializes postings against this account and guards account.
	// Lock order is slot.mu before Ledger.mu.
	mu      sync.Mutex
	account domain.Account
}

func (s *accountSlot) snapshot() *domain.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	account := s.account
	return &account
}

// Ledger holds the account directory and the posting log. It implements
// usecase.AccountRepository and usecase.LedgerStore.
type Ledger struct {
	// mu guards the maps only; balances live under the slot mutexes.
	mu        sync.RWMutex
	accounts  map[string]*accountSlot
	postings  map[postingKey]*domain.Posting
	byAccount map[string][]*domain.Posting
	byTrans   map[string][]*domain.Posting
	voided    map[string]struct{}
	idGen     usecase.IDGenerator
	clock     usecase.Clock
}

// NewLedger creates an empty Ledger.
func NewLedger(idGen usecase.IDGenerator, clock usecase.Clock) *Ledger {
	if clock == nil {
		clock = usecase.SystemClock{}
	}
	return &Ledger{
		accounts:  make(map[string]*accountSlot),
		postings:  make(map[postingKey]*domain.Posting),
		byAccount: make(map[string][]*domain.Posting),
		byTrans:   make(map[string][]*domain.Posting),
		voided:    make(map[string]struct{}),
		idGen:     idGen,
		clock:     clock,
	}
}

// Create adds an account to the directory.
func (l *Ledger) Create(ctx context.Context, account *domain.Account) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.accounts[account.ID]; ok {
		return domain.ErrAccountUnavailable
	}
	l.accounts[account.ID] = &accountSlot{account: *account}
	return nil
}

// GetByID returns a snapshot of the account.
func (l *Ledger) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	slot, ok := l.slot(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return slot.snapshot(), nil
}

// ListByOwner returns the owner's accounts ordered by creation.
func (l *Ledger) ListByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	all := l.snapshot()

	result := make([]*domain.Account, 0)
	for _, a := range all {
		if a.OwnerID == ownerID {
			result = append(result, a)
		}
	}
	return result, nil
}

// List returns a page of accounts ordered by creation.
func (l *Ledger) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	return page(l.snapshot(), limit, offset), nil
}

// SetStatus changes the account status.
func (l *Ledger) SetStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error {
	slot, ok := l.slot(id)
	if !ok {
		return domain.ErrAccountNotFound
	}

	slot.mu.Lock()
	slot.account.Status = status
	slot.account.UpdatedAt = updatedAt
	slot.mu.Unlock()
	return nil
}

// ApplyPosting applies a posting under the account's exclusive section.
// The directory lock is held only to read and insert postings, so postings
// against disjoint accounts run in parallel.
func (l *Ledger) ApplyPosting(ctx context.Context, req domain.PostingRequest) (*domain.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slot, ok := l.slot(req.AccountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	key := postingKey{transferID: req.TransferID, kind: req.Kind}

	l.mu.RLock()
	existing, replay := l.postings[key]
	err := l.claimable(req)
	l.mu.RUnlock()

	if replay {
		p := *existing
		return &p, nil
	}
	if err != nil {
		return nil, err
	}

	if err := slot.account.CheckPreconditions(req.Delta, req.Preconditions); err != nil {
		return nil, err
	}

	now := l.clock.Now()
	posting := &domain.Posting{
		ID:                     l.idGen.Generate(),
		AccountID:              req.AccountID,
		TransferID:             req.TransferID,
		Kind:                   req.Kind,
		Amount:                 req.Delta,
		AccountPreviousBalance: slot.account.Balance,
		AccountCurrentBalance:  slot.account.ApplyDelta(req.Delta),
		AccountVersion:         slot.account.Version + 1,
		CreatedAt:              now,
	}

	// The settlement legs of one transfer may live on different accounts,
	// so the exclusivity check is repeated together with the insert.
	l.mu.Lock()
	if err := l.claimable(req); err != nil {
		l.mu.Unlock()
		return nil, err
	}
	l.postings[key] = posting
	l.byAccount[req.AccountID] = append(l.byAccount[req.AccountID], posting)
	l.byTrans[req.TransferID] = append(l.byTrans[req.TransferID], posting)
	l.mu.Unlock()

	slot.account.Balance = posting.AccountCurrentBalance
	slot.account.Version = posting.AccountVersion
	slot.account.UpdatedAt = now

	p := *posting
	return &p, nil
}

// VoidDebit bars the transfer's debit. It takes the source account slot,
// the same section a debit runs in, so exactly one of them wins.
func (l *Ledger) VoidDebit(ctx context.Context, transferID, accountID string) error {
	if slot, ok := l.slot(accountID); ok {
		slot.mu.Lock()
		defer slot.mu.Unlock()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.postings[postingKey{transferID: transferID, kind: domain.PostingKindDebit}]; ok {
		return domain.ErrDebitApplied
	}
	l.voided[transferID] = struct{}{}
	return nil
}

// claimable reports why req may not be inserted. Caller holds l.mu.
func (l *Ledger) claimable(req domain.PostingRequest) error {
	var opposite domain.PostingKind
	switch req.Kind {
	case domain.PostingKindDebit:
		if _, ok := l.voided[req.TransferID]; ok {
			return domain.ErrTransferVoided
		}
		return nil
	case domain.PostingKindCredit:
		opposite = domain.PostingKindCompensation
	case domain.PostingKindCompensation:
		opposite = domain.PostingKindCredit
	default:
		return nil
	}
	if _, ok := l.postings[postingKey{transferID: req.TransferID, kind: opposite}]; ok {
		return domain.ErrSettlementConflict
	}
	return nil
}

func (l *Ledger) slot(id string) (*accountSlot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	slot, ok := l.accounts[id]
	return slot, ok
}

// GetPosting returns the posting of a transfer leg.
func (l *Ledger) GetPosting(ctx context.Context, transferID string, kind domain.PostingKind) (*domain.Posting, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	posting, ok := l.postings[postingKey{transferID: transferID, kind: kind}]
	if !ok {
		return nil, domain.ErrPostingNotFound
	}
	p := *posting
	return &p, nil
}

// ListPostingsByTransfer returns a transfer's postings in application order.
func (l *Ledger) ListPostingsByTransfer(ctx context.Context, transferID string) ([]*domain.Posting, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return copyPostings(l.byTrans[transferID]), nil
}

// ListPostingsByAccount returns a page of the account's postings, newest first.
func (l *Ledger) ListPostingsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Posting, error) {
	l.mu.RLock()
	postings := copyPostings(l.byAccount[accountID])
	l.mu.RUnlock()

	for i, j := 0, len(postings)-1; i < j; i, j = i+1, j-1 {
		postings[i], postings[j] = postings[j], postings[i]
	}
	return page(postings, limit, offset), nil
}

// SumPostings returns the sum of every posting against the account.
func (l *Ledger) SumPostings(ctx context.Context, accountID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	sum := decimal.Zero
	for _, p := range l.byAccount[accountID] {
		sum = sum.Add(p.Amount)
	}
	return sum, nil
}

func (l *Ledger) snapshot() []*domain.Account {
	l.mu.RLock()
	slots := make([]*accountSlot, 0, len(l.accounts))
	for _, slot := range l.accounts {
		slots = append(slots, slot)
	}
	l.mu.RUnlock()

	all := make([]*domain.Account, 0, len(slots))
	for _, slot := range slots {
		all = append(all, slot.snapshot())
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	return all
}

func copyPostings(src []*domain.Posting) []*domain.Posting {
	out := make([]*domain.Posting, 0, len(src))
	for _, p := range src {
		c := *p
		out = append(out, &c)
	}
	return out
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
