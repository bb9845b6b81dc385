package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"stashbox/internal/types"
)

// TxBeginner is the subset of *pgxpool.Pool needed to open transactions.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a database transaction. The transaction is committed
// if fn returns nil and rolled back otherwise. The DBTX passed to fn is the
// transaction, so repositories constructed over it participate in the same
// atomic unit.
//
// A panic inside fn rolls the transaction back and is re-raised.
func WithTx(ctx context.Context, pool TxBeginner, fn func(q DBTX) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			// The original error is what matters; the rollback failure is
			// attached for diagnostics only.
			return fmt.Errorf("%w (rollback also failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}
