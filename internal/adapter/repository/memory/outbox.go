package memory

import (
	"context"
	"sync"
	"time"

	"github.com/iho/transferengine/internal/domain"
)

// Outbox is an in-memory usecase.OutboxRepository.
type Outbox struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

// NewOutbox creates an empty Outbox.
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Create appends an event.
func (o *Outbox) Create(ctx context.Context, event *domain.OutboxEvent) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	e := *event
	o.events = append(o.events, &e)
	return nil
}

// GetUnpublished returns up to limit unpublished events, oldest first.
func (o *Outbox) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var pending []*domain.OutboxEvent
	for _, e := range o.events {
		if e.Published {
			continue
		}
		c := *e
		pending = append(pending, &c)
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// MarkPublished flags an event as delivered.
func (o *Outbox) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, e := range o.events {
		if e.ID == id {
			at := publishedAt
			e.Published = true
			e.PublishedAt = &at
			return nil
		}
	}
	return nil
}

// DeletePublished drops events published before the cutoff.
func (o *Outbox) DeletePublished(ctx context.Context, before time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	kept := o.events[:0]
	for _, e := range o.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	o.events = kept
	return nil
}

// Events returns a copy of every stored event.
func (o *Outbox) Events() []*domain.OutboxEvent {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*domain.OutboxEvent, 0, len(o.events))
	for _, e := range o.events {
		c := *e
		out = append(out, &c)
	}
	return out
}
