package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/transferengine/internal/infrastructure/postgres/generated"
)

// Pool is the subset of *pgxpool.Pool the repositories use.
type Pool interface {
	generated.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager runs units of work inside a single database transaction.
type TxManager struct {
	pool Pool
}

// NewTxManager creates a new TxManager.
func NewTxManager(pool Pool) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx begins a transaction, hands fn a query set bound to it and commits
// when fn returns nil. Any error rolls the transaction back.
func (m *TxManager) RunInTx(ctx context.Context, fn func(q *generated.Queries) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
	}()

	if err = fn(generated.New(tx)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
