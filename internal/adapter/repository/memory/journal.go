package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iho/transferengine/internal/domain"
	"github.com/iho/transferengine/internal/usecase"
)

// Journal is an in-memory usecase.JournalRepository.
type Journal struct {
	mu      sync.RWMutex
	records map[string]*domain.TransferRecord
	byKey   map[string]string
	outbox  eventSink
}

// eventSink receives the events recorded alongside transitions.
type eventSink interface {
	Create(ctx context.Context, event *domain.OutboxEvent) error
}

// NewJournal creates an empty Journal. Terminal transition events are
// appended to outbox when it is not nil.
func NewJournal(outbox eventSink) *Journal {
	return &Journal{
		records: make(map[string]*domain.TransferRecord),
		byKey:   make(map[string]string),
		outbox:  outbox,
	}
}

// Create journals a new record.
func (j *Journal) Create(ctx context.Context, record *domain.TransferRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, ok := j.byKey[record.IdempotencyKey]; ok {
		return domain.ErrDuplicateIdempotencyKey
	}

	j.records[record.ID] = record.Clone()
	j.byKey[record.IdempotencyKey] = record.ID
	return nil
}

// GetByID returns a copy of the record.
func (j *Journal) GetByID(ctx context.Context, id string) (*domain.TransferRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	record, ok := j.records[id]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return record.Clone(), nil
}

// GetByIdempotencyKey returns a copy of the record journaled under key.
func (j *Journal) GetByIdempotencyKey(ctx context.Context, key string) (*domain.TransferRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	id, ok := j.byKey[key]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}
	return j.records[id].Clone(), nil
}

// Transition applies a compare-and-set state change.
func (j *Journal) Transition(ctx context.Context, in usecase.TransitionInput) (*domain.TransferRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	current, ok := j.records[in.TransferID]
	if !ok {
		return nil, domain.ErrTransferNotFound
	}

	if current.State != in.From {
		return nil, domain.ErrStateConflict
	}

	next := current.Clone()
	if err := next.Transition(in.To, in.Reason, in.At); err != nil {
		return nil, err
	}

	if in.DebitPostingID != nil {
		next.DebitPostingID = in.DebitPostingID
	}
	if in.CreditPostingID != nil {
		next.CreditPostingID = in.CreditPostingID
	}
	if in.CompensationPostingID != nil {
		next.CompensationPostingID = in.CompensationPostingID
	}

	if in.Event != nil && j.outbox != nil {
		if err := j.outbox.Create(ctx, in.Event); err != nil {
			return nil, err
		}
	}

	j.records[in.TransferID] = next

	return next.Clone(), nil
}

// ListStale returns non-terminal records not updated since olderThan,
// least recently updated first.
func (j *Journal) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*domain.TransferRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var stale []*domain.TransferRecord
	for _, r := range j.records {
		if !r.State.IsTerminal() && r.UpdatedAt.Before(olderThan) {
			stale = append(stale, r.Clone())
		}
	}

	sort.Slice(stale, func(a, b int) bool {
		return stale[a].UpdatedAt.Before(stale[b].UpdatedAt)
	})

	return page(stale, limit, 0), nil
}

// ListByState returns a page of records in state, oldest first.
func (j *Journal) ListByState(ctx context.Context, state domain.TransferState, limit, offset int) ([]*domain.TransferRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var matched []*domain.TransferRecord
	for _, r := range j.records {
		if r.State == state {
			matched = append(matched, r.Clone())
		}
	}

	sort.Slice(matched, func(a, b int) bool {
		if matched[a].CreatedAt.Equal(matched[b].CreatedAt) {
			return matched[a].ID < matched[b].ID
		}
		return matched[a].CreatedAt.Before(matched[b].CreatedAt)
	})

	return page(matched, limit, offset), nil
}
