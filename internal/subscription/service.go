// Package subscription implements the subscription lifecycle state machine:
// tier changes, cancellation, and usage recording and evaluation. All
// mutations go through optimistic concurrency on the subscription version.
package subscription

import (
	"context"
	"log/slog"

	"stashbox/internal/plans"
	"stashbox/internal/types"
	"stashbox/internal/usage"
)

// Repo defines the subscription data access methods needed by the service.
// Save applies the mutation only when the stored version still matches
// expectedVersion; a losing writer gets conflict_concurrent_modification.
type Repo interface {
	Get(ctx context.Context, id string) (*types.Subscription, error)
	GetByAccountID(ctx context.Context, accountID string) (*types.Subscription, error)
	Save(ctx context.Context, sub *types.Subscription, expectedVersion int64) error
}

// Service implements the subscription lifecycle operations.
type Service struct {
	repo      Repo
	catalog   plans.Catalog
	evaluator *usage.Evaluator
	clock     types.Clock
	logger    *slog.Logger
}

// ServiceConfig holds the dependencies for creating a Service.
type ServiceConfig struct {
	Repo      Repo
	Catalog   plans.Catalog
	Evaluator *usage.Evaluator
	Clock     types.Clock
	Logger    *slog.Logger
}

// NewService creates a new subscription Service.
// If Evaluator is nil, a default evaluator is used. If Clock is nil,
// RealClock is used. If Logger is nil, slog.Default() is used.
func NewService(cfg ServiceConfig) *Service {
	evaluator := cfg.Evaluator
	if evaluator == nil {
		evaluator = usage.NewEvaluator()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      cfg.Repo,
		catalog:   cfg.Catalog,
		evaluator: evaluator,
		clock:     clock,
		logger:    logger,
	}
}

// Get returns the subscription by id.
func (s *Service) Get(ctx context.Context, subscriptionID string) (*types.Subscription, error) {
	return s.repo.Get(ctx, subscriptionID)
}

// Upgrade moves an Active subscription to a strictly higher tier. Usage
// carries forward unchanged; upgrades never require a quota check.
func (s *Service) Upgrade(ctx context.Context, subscriptionID string, target types.PlanTier) (*types.Subscription, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := requireActive(sub); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTier,
			"unknown plan tier", nil, map[string]any{"tier": string(target)})
	}
	if err := s.catalog.CanUpgrade(sub.PlanTier, target); err != nil {
		return nil, err
	}

	from := sub.PlanTier
	sub.PlanTier = target
	if err := s.repo.Save(ctx, sub, sub.Version); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription upgraded",
		"subscription_id", sub.ID,
		"from", string(from),
		"to", string(target),
	)
	return sub, nil
}

// Downgrade moves an Active subscription to the adjacent lower tier or Free.
// Current usage is evaluated against the target tier's limits first: any
// metric that would classify as exceeded blocks the downgrade. Usage is never
// truncated to fit.
func (s *Service) Downgrade(ctx context.Context, subscriptionID string, target types.PlanTier) (*types.Subscription, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := requireActive(sub); err != nil {
		return nil, err
	}
	if !target.Valid() {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidTier,
			"unknown plan tier", nil, map[string]any{"tier": string(target)})
	}
	if err := s.catalog.CanDowngrade(sub.PlanTier, target); err != nil {
		return nil, err
	}

	targetLimits, err := s.catalog.LimitsFor(target)
	if err != nil {
		return nil, err
	}
	report := s.evaluator.Evaluate(target, sub.Usage, targetLimits)
	if exceeded := report.Exceeded(); len(exceeded) > 0 {
		names := make([]string, 0, len(exceeded))
		for _, m := range exceeded {
			names = append(names, string(m.Metric))
		}
		return nil, types.NewAppErrorWithDetails(types.ErrCodeConflictQuotaExceeded,
			"current usage exceeds the target tier's limits, reduce usage first", nil,
			map[string]any{
				"target_tier":      string(target),
				"exceeded_metrics": names,
			})
	}

	from := sub.PlanTier
	sub.PlanTier = target
	if err := s.repo.Save(ctx, sub, sub.Version); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription downgraded",
		"subscription_id", sub.ID,
		"from", string(from),
		"to", string(target),
	)
	return sub, nil
}

// Cancel moves an Active subscription to Canceled. Canceled is terminal;
// cancelling twice is rejected so client logic errors surface instead of
// being silently absorbed.
func (s *Service) Cancel(ctx context.Context, subscriptionID string) (*types.Subscription, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.State == types.SubStateCanceled {
		return nil, types.NewAppError(types.ErrCodeConflictInvalidTransition,
			"subscription is already canceled", nil)
	}

	sub.State = types.SubStateCanceled
	if err := s.repo.Save(ctx, sub, sub.Version); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription canceled", "subscription_id", sub.ID)
	return sub, nil
}

// GetUsageStatus returns the usage evaluation for the subscription's current
// tier. Read-only; works for canceled subscriptions too.
func (s *Service) GetUsageStatus(ctx context.Context, subscriptionID string) (*types.Subscription, *types.UsageStatusReport, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	return s.statusFor(sub)
}

// GetUsageStatusByAccount returns the usage evaluation for the subscription
// owned by the given account.
func (s *Service) GetUsageStatusByAccount(ctx context.Context, accountID string) (*types.Subscription, *types.UsageStatusReport, error) {
	sub, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	return s.statusFor(sub)
}

func (s *Service) statusFor(sub *types.Subscription) (*types.Subscription, *types.UsageStatusReport, error) {
	limits, err := s.catalog.LimitsFor(sub.PlanTier)
	if err != nil {
		return nil, nil, err
	}
	report := s.evaluator.Evaluate(sub.PlanTier, sub.Usage, limits)
	return sub, &report, nil
}

// RecordUsage replaces the given usage values on an Active subscription and
// returns the resulting evaluation. Values are absolute counters, not deltas.
// Recording values above the current limits is accepted; the report simply
// classifies them as exceeded. Negative values and unknown metrics are
// rejected.
func (s *Service) RecordUsage(ctx context.Context, subscriptionID string, values map[types.Metric]int64) (*types.Subscription, *types.UsageStatusReport, error) {
	if len(values) == 0 {
		return nil, nil, types.NewAppError(types.ErrCodeValidationInvalidUsage,
			"at least one usage value is required", nil)
	}
	for metric, v := range values {
		if !metric.Valid() {
			return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidUsage,
				"unknown usage metric", nil, map[string]any{"metric": string(metric)})
		}
		if v < 0 {
			return nil, nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidUsage,
				"usage values cannot be negative", nil,
				map[string]any{"metric": string(metric), "value": v})
		}
	}

	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, nil, err
	}
	if sub.State == types.SubStateCanceled {
		return nil, nil, types.NewAppError(types.ErrCodeConflictInvalidTransition,
			"cannot record usage on a canceled subscription", nil)
	}

	if sub.Usage == nil {
		sub.Usage = types.UsageSnapshot{}
	}
	for metric, v := range values {
		sub.Usage[metric] = v
	}

	if err := s.repo.Save(ctx, sub, sub.Version); err != nil {
		return nil, nil, err
	}
	return s.statusFor(sub)
}

func requireActive(sub *types.Subscription) error {
	if sub.State != types.SubStateActive {
		return types.NewAppErrorWithDetails(types.ErrCodeConflictInvalidTransition,
			"subscription is not active", nil,
			map[string]any{"state": string(sub.State)})
	}
	return nil
}
