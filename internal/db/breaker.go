package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker/v2"

	"stashbox/internal/types"
)

// BreakerDB decorates a DBTX with a circuit breaker so that a struggling
// database sheds load quickly instead of stacking up timed-out requests.
// When the circuit is open, calls fail immediately with an
// infrastructure_unavailable error; context deadline overruns surface as
// infrastructure_timeout.
//
// The decorator wraps the pool, not individual transactions: statements inside
// WithTx run on the raw pgx.Tx and are covered by the breaker only at the
// Begin boundary of the caller.
type BreakerDB struct {
	db      DBTX
	breaker *gobreaker.CircuitBreaker[any]
}

// NewBreakerDB wraps the given DBTX with a named circuit breaker.
// The breaker opens after 5 consecutive failures and probes again after 30s.
func NewBreakerDB(name string, db DBTX) *BreakerDB {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			// Expected single-row misses must not trip the breaker.
			return err == nil || errors.Is(err, pgx.ErrNoRows)
		},
	})

	return &BreakerDB{db: db, breaker: cb}
}

// Exec executes a statement through the breaker.
func (b *BreakerDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.db.Exec(ctx, sql, arguments...)
	})
	if err != nil {
		return pgconn.CommandTag{}, mapBreakerError(err)
	}
	return result.(pgconn.CommandTag), nil
}

// Query executes a query through the breaker.
func (b *BreakerDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	result, err := b.breaker.Execute(func() (any, error) {
		return b.db.Query(ctx, sql, args...)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return result.(pgx.Rows), nil
}

// QueryRow returns a row that defers the query itself to Scan, which pgx
// callers invoke exactly once. Running query and scan together inside the
// breaker means read failures count toward opening the circuit, and an open
// circuit fails without touching the database.
func (b *BreakerDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &breakerRow{db: b, ctx: ctx, sql: sql, args: args}
}

type breakerRow struct {
	db   *BreakerDB
	ctx  context.Context
	sql  string
	args []any
}

func (r *breakerRow) Scan(dest ...any) error {
	_, err := r.db.breaker.Execute(func() (any, error) {
		return nil, r.db.db.QueryRow(r.ctx, r.sql, r.args...).Scan(dest...)
	})
	if err != nil {
		return mapBreakerError(err)
	}
	return nil
}

// mapBreakerError translates breaker and context failures into the
// infrastructure error taxonomy. Other errors pass through unchanged for the
// repository layer to classify.
func mapBreakerError(err error) error {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return types.NewAppError(
			types.ErrCodeInfraUnavailable,
			"database temporarily unavailable",
			err,
		)
	case errors.Is(err, context.DeadlineExceeded):
		return types.NewAppError(
			types.ErrCodeInfraTimeout,
			"database operation timed out",
			err,
		)
	default:
		return err
	}
}
