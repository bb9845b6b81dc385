package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"stashbox/internal/types"
)

// AccountRepository provides data access for the accounts table.
type AccountRepository struct {
	db DBTX
}

// NewAccountRepository creates a new AccountRepository backed by the given
// database connection (pool or transaction).
func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

// accountColumns defines the standard set of columns selected for account
// queries. Used consistently across all query methods to avoid column drift.
const accountColumns = `a.id, a.business_name, a.business_information,
	a.subscription_id, a.created_at, a.updated_at`

// scanAccount scans a single account row into a types.Account struct.
// The columns must match the order defined in accountColumns.
func scanAccount(row pgx.Row) (*types.Account, error) {
	var acc types.Account
	err := row.Scan(
		&acc.ID,
		&acc.BusinessName,
		&acc.BusinessInformation,
		&acc.SubscriptionID,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// Create inserts a new account record. The caller must set the ID (prefixed
// UUID, e.g. "acc_...") and required fields before calling.
func (r *AccountRepository) Create(ctx context.Context, acc *types.Account) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (id, business_name, business_information,
		 subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())`,
		acc.ID,
		acc.BusinessName,
		acc.BusinessInformation,
		acc.SubscriptionID,
	)
	if err != nil {
		return wrapDBError(err, "failed to create account")
	}
	return nil
}

// GetByID retrieves an account by its ID.
// Returns not_found_account if no account exists.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.id = $1`,
		id,
	)

	acc, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
		}
		return nil, wrapDBError(err, "failed to retrieve account")
	}
	return acc, nil
}

// Update writes the mutable profile fields (business_name,
// business_information). The updated_at timestamp is set by the database.
func (r *AccountRepository) Update(ctx context.Context, acc *types.Account) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET business_name = $1,
		     business_information = $2,
		     updated_at = NOW()
		 WHERE id = $3`,
		acc.BusinessName,
		acc.BusinessInformation,
		acc.ID,
	)
	if err != nil {
		return wrapDBError(err, "failed to update account")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// SetSubscriptionID links or unlinks the account's subscription reference.
// Pass nil to clear the reference.
func (r *AccountRepository) SetSubscriptionID(ctx context.Context, accountID string, subscriptionID *string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE accounts
		 SET subscription_id = $1,
		     updated_at = NOW()
		 WHERE id = $2`,
		subscriptionID,
		accountID,
	)
	if err != nil {
		return wrapDBError(err, "failed to set account subscription reference")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// Delete removes the account row. The caller is responsible for deleting the
// owned subscription within the same transaction.
func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM accounts WHERE id = $1`,
		id,
	)
	if err != nil {
		return wrapDBError(err, "failed to delete account")
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", nil)
	}
	return nil
}

// wrapDBError classifies a low-level database error. AppErrors produced by
// lower layers (the circuit breaker, timeout mapping) pass through unchanged;
// everything else becomes internal_database_error.
func wrapDBError(err error, msg string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewAppError(types.ErrCodeInfraTimeout, "database operation timed out", err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, msg, err)
}
