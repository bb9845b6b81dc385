// Package account implements account lifecycle operations: signup, profile
// reads and updates, and account deletion. Every account owns exactly one
// subscription; the two are created and destroyed together.
package account

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"stashbox/internal/types"
)

// Repo defines the account data access methods needed by the service.
type Repo interface {
	Create(ctx context.Context, acc *types.Account) error
	GetByID(ctx context.Context, id string) (*types.Account, error)
	Update(ctx context.Context, acc *types.Account) error
	SetSubscriptionID(ctx context.Context, accountID string, subscriptionID *string) error
	Delete(ctx context.Context, id string) error
}

// SubscriptionRepo defines the subscription data access methods needed by
// the account service. Lifecycle transitions live in the subscription
// service; this only covers creation and teardown alongside the account.
type SubscriptionRepo interface {
	Create(ctx context.Context, sub *types.Subscription) error
	GetByAccountID(ctx context.Context, accountID string) (*types.Subscription, error)
	Delete(ctx context.Context, id string, expectedVersion int64) error
}

// TxManager abstracts transactional execution for the account service.
// The callback receives transaction-scoped repositories so that account and
// subscription writes commit or roll back together.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, accounts Repo, subs SubscriptionRepo) error) error
}

// Service implements the account lifecycle operations.
type Service struct {
	repo    Repo
	subRepo SubscriptionRepo
	tx      TxManager
	clock   types.Clock
	logger  *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Repo             Repo
	SubscriptionRepo SubscriptionRepo
	TxManager        TxManager
	Clock            types.Clock
	Logger           *slog.Logger
}

// NewService creates a new account Service.
// If Clock is nil, RealClock is used. If Logger is nil, slog.Default() is used.
func NewService(cfg ServiceConfig) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    cfg.Repo,
		subRepo: cfg.SubscriptionRepo,
		tx:      cfg.TxManager,
		clock:   clock,
		logger:  logger,
	}
}

// CreateParams carries the signup inputs.
type CreateParams struct {
	BusinessName        string
	BusinessInformation string
	// Tier is the requested signup tier; empty means Free.
	Tier types.PlanTier
}

// Create provisions a new account together with its subscription in a single
// transaction. The subscription starts Active on the requested tier (Free by
// default) with all usage at zero.
func (s *Service) Create(ctx context.Context, params CreateParams) (*types.Account, *types.Subscription, error) {
	name := strings.TrimSpace(params.BusinessName)
	if name == "" {
		return nil, nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"business_name is required", nil)
	}

	tier := params.Tier
	if tier == "" {
		tier = types.PlanFree
	}
	if !tier.Valid() {
		return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTier,
			"unknown plan tier", nil, map[string]any{"tier": string(tier)})
	}

	now := s.clock.Now()
	accID := "acc_" + uuid.New().String()
	subID := "sub_" + uuid.New().String()

	acc := &types.Account{
		ID:                  accID,
		BusinessName:        name,
		BusinessInformation: params.BusinessInformation,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	sub := &types.Subscription{
		ID:        subID,
		AccountID: accID,
		PlanTier:  tier,
		State:     types.SubStateActive,
		Usage: types.UsageSnapshot{
			types.MetricStorageBytes:  0,
			types.MetricSeats:         0,
			types.MetricAPICallsDaily: 0,
		},
		BillingPeriodAnchor: now,
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	// The account row is inserted first with a NULL subscription reference,
	// then linked once the subscription row exists.
	err := s.tx.RunInTx(ctx, func(ctx context.Context, accounts Repo, subs SubscriptionRepo) error {
		if err := accounts.Create(ctx, acc); err != nil {
			return err
		}
		if err := subs.Create(ctx, sub); err != nil {
			return err
		}
		return accounts.SetSubscriptionID(ctx, accID, &subID)
	})
	if err != nil {
		return nil, nil, err
	}

	acc.SubscriptionID = &subID
	s.logger.InfoContext(ctx, "account created",
		"account_id", accID,
		"subscription_id", subID,
		"tier", string(tier),
	)
	return acc, sub, nil
}

// Get loads an account and its subscription concurrently. When both lookups
// fail for a missing account, the account's not-found wins so callers see a
// stable error code.
func (s *Service) Get(ctx context.Context, accountID string) (*types.Account, *types.Subscription, error) {
	var (
		acc    *types.Account
		sub    *types.Subscription
		accErr error
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acc, accErr = s.repo.GetByID(gCtx, accountID)
		return accErr
	})
	g.Go(func() error {
		var err error
		sub, err = s.subRepo.GetByAccountID(gCtx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		if types.IsCode(accErr, types.ErrCodeNotFoundAccount) {
			return nil, nil, accErr
		}
		return nil, nil, err
	}
	return acc, sub, nil
}

// UpdateParams carries the partial profile update. Nil fields are unchanged.
type UpdateParams struct {
	BusinessName        *string
	BusinessInformation *string
}

// Update applies a partial update to the account profile.
func (s *Service) Update(ctx context.Context, accountID string, params UpdateParams) (*types.Account, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if params.BusinessName != nil {
		name := strings.TrimSpace(*params.BusinessName)
		if name == "" {
			return nil, types.NewAppError(types.ErrCodeValidationMissingField,
				"business_name cannot be empty", nil)
		}
		acc.BusinessName = name
	}
	if params.BusinessInformation != nil {
		acc.BusinessInformation = *params.BusinessInformation
	}

	if err := s.repo.Update(ctx, acc); err != nil {
		return nil, err
	}
	acc.UpdatedAt = s.clock.Now()
	return acc, nil
}

// UpdateBusinessInformation replaces the account's business information blob.
func (s *Service) UpdateBusinessInformation(ctx context.Context, accountID string, info string) (*types.Account, error) {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	acc.BusinessInformation = info
	if err := s.repo.Update(ctx, acc); err != nil {
		return nil, err
	}
	acc.UpdatedAt = s.clock.Now()
	return acc, nil
}

// Delete removes the account and its subscription. Deletion is refused while
// the subscription is Active on a paid tier; the caller must cancel first.
func (s *Service) Delete(ctx context.Context, accountID string) error {
	acc, err := s.repo.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	sub, err := s.subRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundSubscription) {
			return err
		}
		sub = nil
	}

	if sub != nil && sub.State == types.SubStateActive && sub.PlanTier != types.PlanFree {
		return types.NewAppErrorWithDetails(types.ErrCodeBillingActiveSubscription,
			"account has an active paid subscription, cancel it before deleting", nil,
			map[string]any{"subscription_id": sub.ID, "tier": string(sub.PlanTier)})
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context, accounts Repo, subs SubscriptionRepo) error {
		if sub != nil {
			// Clear the reference first so the subscription row can go.
			if err := accounts.SetSubscriptionID(ctx, accountID, nil); err != nil {
				return err
			}
			// The version read at precondition time guards the delete: a
			// lifecycle transition committed since then rolls everything back
			// as a concurrent-modification conflict instead of destroying an
			// active paid subscription.
			if err := subs.Delete(ctx, sub.ID, sub.Version); err != nil {
				return err
			}
		}
		return accounts.Delete(ctx, accountID)
	})
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "account deleted", "account_id", acc.ID)
	return nil
}
