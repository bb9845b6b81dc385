package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"stashbox/internal/types"
)

// SubscriptionRepository provides data access for the subscriptions table.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `s.id, s.account_id, s.plan_tier, s.state, s.usage,
	s.billing_period_anchor, s.version, s.created_at, s.updated_at`

// scanSubscription scans a single subscription row. The usage column is JSONB
// and decodes directly into the snapshot map.
func scanSubscription(row pgx.Row) (*types.Subscription, error) {
	var sub types.Subscription
	err := row.Scan(
		&sub.ID,
		&sub.AccountID,
		&sub.PlanTier,
		&sub.State,
		&sub.Usage,
		&sub.BillingPeriodAnchor,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sub.Usage == nil {
		sub.Usage = types.UsageSnapshot{}
	}
	return &sub, nil
}

// Create inserts a new subscription record at version 1.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *types.Subscription) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subscriptions (id, account_id, plan_tier, state, usage,
		 billing_period_anchor, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 1, NOW(), NOW())`,
		sub.ID,
		sub.AccountID,
		sub.PlanTier,
		sub.State,
		sub.Usage,
		sub.BillingPeriodAnchor,
	)
	if err != nil {
		return wrapDBError(err, "failed to create subscription")
	}
	return nil
}

// Get retrieves a subscription by its ID.
// Returns not_found_subscription if no subscription exists.
func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.id = $1`,
		id,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, wrapDBError(err, "failed to retrieve subscription")
	}
	return sub, nil
}

// GetByAccountID retrieves the subscription owned by the given account.
func (r *SubscriptionRepository) GetByAccountID(ctx context.Context, accountID string) (*types.Subscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM subscriptions s
		 WHERE s.account_id = $1`,
		accountID,
	)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
		}
		return nil, wrapDBError(err, "failed to retrieve subscription")
	}
	return sub, nil
}

// Save persists the subscription's mutable state using optimistic concurrency.
// The update only applies when the stored version matches expectedVersion; on
// success the stored version is incremented and sub.Version is updated to
// match. A zero-row update means either the row is gone (not_found) or another
// writer advanced the version first (conflict_concurrent_update), distinguished
// by a follow-up existence check.
func (r *SubscriptionRepository) Save(ctx context.Context, sub *types.Subscription, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE subscriptions
		 SET plan_tier = $1,
		     state = $2,
		     usage = $3,
		     billing_period_anchor = $4,
		     version = version + 1,
		     updated_at = NOW()
		 WHERE id = $5 AND version = $6`,
		sub.PlanTier,
		sub.State,
		sub.Usage,
		sub.BillingPeriodAnchor,
		sub.ID,
		expectedVersion,
	)
	if err != nil {
		return wrapDBError(err, "failed to save subscription")
	}
	if tag.RowsAffected() == 0 {
		return r.classifySaveMiss(ctx, sub.ID)
	}
	sub.Version = expectedVersion + 1
	return nil
}

// classifySaveMiss runs after a zero-row optimistic update to decide between
// not-found and version conflict.
func (r *SubscriptionRepository) classifySaveMiss(ctx context.Context, id string) error {
	var exists bool
	row := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM subscriptions WHERE id = $1)`,
		id,
	)
	if err := row.Scan(&exists); err != nil {
		return wrapDBError(err, "failed to verify subscription after conflicting save")
	}
	if !exists {
		return types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
	}
	return types.NewAppError(types.ErrCodeConflictConcurrent,
		"subscription was modified concurrently, retry with fresh state", nil)
}

// Delete removes the subscription row, guarded by the version the caller
// read when it checked the deletion precondition. Zero rows means the
// subscription was mutated (or removed) concurrently and the delete must not
// proceed on stale state.
func (r *SubscriptionRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM subscriptions WHERE id = $1 AND version = $2`,
		id, expectedVersion,
	)
	if err != nil {
		return wrapDBError(err, "failed to delete subscription")
	}
	if tag.RowsAffected() == 0 {
		return r.classifySaveMiss(ctx, id)
	}
	return nil
}
