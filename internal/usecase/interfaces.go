package usecase

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/transferengine/internal/domain"
)

// AccountRepository is the account directory.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*domain.Account, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Account, error)
	SetStatus(ctx context.Context, id string, status domain.AccountStatus, updatedAt time.Time) error
}

// LedgerStore owns balances and the posting log. ApplyPosting is the only
// way a balance changes.
type LedgerStore interface {
	// ApplyPosting atomically re-checks the preconditions and applies the
	// delta under a per-account exclusive section. Replaying a
	// (TransferID, Kind) pair returns the original posting.
	ApplyPosting(ctx context.Context, req domain.PostingRequest) (*domain.Posting, error)
	GetPosting(ctx context.Context, transferID string, kind domain.PostingKind) (*domain.Posting, error)
	ListPostingsByTransfer(ctx context.Context, transferID string) ([]*domain.Posting, error)
	ListPostingsByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.Posting, error)
	SumPostings(ctx context.Context, accountID string) (decimal.Decimal, error)
	// VoidDebit bars the transfer's DEBIT posting from ever being applied;
	// a later debit fails with domain.ErrTransferVoided. It fails with
	// domain.ErrDebitApplied when the debit already exists.
	VoidDebit(ctx context.Context, transferID, accountID string) error
}

// TransitionInput describes a compare-and-set move of a journaled record.
type TransitionInput struct {
	TransferID            string
	From                  domain.TransferState
	To                    domain.TransferState
	Reason                domain.Reason
	DebitPostingID        *string
	CreditPostingID       *string
	CompensationPostingID *string
	At                    time.Time
	// Event, when set, is written atomically with the transition.
	Event                 *domain.OutboxEvent
}

// JournalRepository is the durable, append-only log of transfer records.
type JournalRepository interface {
	// Create journals a new PENDING record. It returns
	// domain.ErrDuplicateIdempotencyKey when the key is already journaled.
	Create(ctx context.Context, record *domain.TransferRecord) error
	GetByID(ctx context.Context, id string) (*domain.TransferRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error)
	// Transition applies the move only if the record is still in From and
	// returns domain.ErrStateConflict otherwise.
	Transition(ctx context.Context, in TransitionInput) (*domain.TransferRecord, error)
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error)
	ListByState(ctx context.Context, state domain.TransferState, limit, offset int) ([]*domain.TransferRecord, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// IDGenerator generates unique, monotonically increasing IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier retries an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// OutcomeCache caches terminal outcomes for status lookups.
type OutcomeCache interface {
	Get(ctx context.Context, key string) (*domain.TransferOutcome, error)
	Set(ctx context.Context, key string, outcome domain.TransferOutcome, ttl time.Duration) error
}

// Locker provides a mutual-exclusion section shared by all instances.
type Locker interface {
	// TryLock runs fn while holding name. It returns acquired=false without
	// running fn when another holder owns the lock.
	TryLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (acquired bool, err error)
}

// IdempotencyStore handles idempotency key storage for HTTP response replay.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a claim so the request can be retried.
	Release(ctx context.Context, key string) error
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
