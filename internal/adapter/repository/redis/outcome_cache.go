package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/transferengine/internal/domain"
)

// OutcomeCache implements usecase.OutcomeCache. Only terminal outcomes are
// written, so entries never need invalidation.
type OutcomeCache struct {
	client redis.UniversalClient
	prefix string
}

// NewOutcomeCache creates a new OutcomeCache.
func NewOutcomeCache(client redis.UniversalClient) *OutcomeCache {
	return &OutcomeCache{
		client: client,
		prefix: "outcome:",
	}
}

type cachedOutcome struct {
	Status         domain.OutcomeStatus `json:"status"`
	Reason         domain.Reason        `json:"reason,omitempty"`
	TransferID     string               `json:"transfer_id"`
	IdempotencyKey string               `json:"idempotency_key"`
	OwnerID        string               `json:"owner_id"`
}

// Get returns the cached outcome, or nil without error on a miss.
func (c *OutcomeCache) Get(ctx context.Context, key string) (*domain.TransferOutcome, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached cachedOutcome
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}

	return &domain.TransferOutcome{
		Status:         cached.Status,
		Reason:         cached.Reason,
		TransferID:     cached.TransferID,
		IdempotencyKey: cached.IdempotencyKey,
		OwnerID:        cached.OwnerID,
	}, nil
}

// Set stores outcome with ttl.
func (c *OutcomeCache) Set(ctx context.Context, key string, outcome domain.TransferOutcome, ttl time.Duration) error {
	data, err := json.Marshal(cachedOutcome{
		Status:         outcome.Status,
		Reason:         outcome.Reason,
		TransferID:     outcome.TransferID,
		IdempotencyKey: outcome.IdempotencyKey,
		OwnerID:        outcome.OwnerID,
	})
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.prefix+key, data, ttl).Err()
}
