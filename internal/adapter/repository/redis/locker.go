package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker implements usecase.Locker with a single-attempt redsync mutex.
type Locker struct {
	rs     *redsync.Redsync
	logger zerolog.Logger
}

// NewLocker creates a Locker backed by client.
func NewLocker(client goredislib.UniversalClient, logger zerolog.Logger) *Locker {
	return &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		logger: logger.With().Str("component", "locker").Logger(),
	}
}

// TryLock runs fn while holding name. Contention is not an error.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)

	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) ||
			strings.Contains(err.Error(), "lock already taken") {
			l.logger.Debug().Str("lock", name).Msg("lock held elsewhere")
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}

	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			l.logger.Warn().Err(err).Str("lock", name).Msg("failed to release lock")
		}
	}()

	return true, fn(ctx)
}
