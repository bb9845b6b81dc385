// Package plans provides the plan catalog: the authoritative limits for each
// subscription tier and the rules governing tier transitions.
package plans

import "stashbox/internal/types"

// Catalog defines the authoritative limits for each tier and validates tier
// transitions. This is the single source of truth for what each plan allows.
type Catalog interface {
	// LimitsFor returns the per-metric quota limits for the given tier.
	// Unknown tiers return an internal_unknown_tier error; tiers reaching this
	// layer have already passed request validation, so an unknown value here
	// indicates corrupt persisted state.
	LimitsFor(tier types.PlanTier) (types.PlanLimits, error)

	// CanUpgrade reports whether moving from one tier to a strictly higher
	// tier is allowed. Returns nil when the transition is permitted.
	CanUpgrade(from, to types.PlanTier) error

	// CanDowngrade reports whether moving from one tier to the adjacent lower
	// tier or directly to Free is allowed. Returns nil when permitted.
	// Quota preconditions against the target tier are checked by the caller.
	CanDowngrade(from, to types.PlanTier) error
}

// tierRank orders tiers by capability. Used for upgrade/downgrade direction
// checks; the rank values themselves are not exposed.
var tierRank = map[types.PlanTier]int{
	types.PlanFree:       0,
	types.PlanBasic:      1,
	types.PlanPro:        2,
	types.PlanEnterprise: 3,
}

// tierDefaults defines the hardcoded per-metric limits for each tier.
//
//	| Tier       | Storage       | Seats | API Calls/Day |
//	|------------|---------------|-------|---------------|
//	| Free       | 5 GiB         | 3     | 100           |
//	| Basic      | 100 GiB       | 10    | 1,000         |
//	| Pro        | 1 TiB         | 50    | 10,000        |
//	| Enterprise | 0 (unlimited) | 0     | 0             |
//
// Enterprise uses 0 to represent "unlimited" -- enforcement code must treat
// types.UnlimitedQuota as no limit.
var tierDefaults = map[types.PlanTier]types.PlanLimits{
	types.PlanFree: {
		types.MetricStorageBytes:  5 << 30,
		types.MetricSeats:         3,
		types.MetricAPICallsDaily: 100,
	},
	types.PlanBasic: {
		types.MetricStorageBytes:  100 << 30,
		types.MetricSeats:         10,
		types.MetricAPICallsDaily: 1000,
	},
	types.PlanPro: {
		types.MetricStorageBytes:  1 << 40,
		types.MetricSeats:         50,
		types.MetricAPICallsDaily: 10000,
	},
	types.PlanEnterprise: {
		types.MetricStorageBytes:  types.UnlimitedQuota,
		types.MetricSeats:         types.UnlimitedQuota,
		types.MetricAPICallsDaily: types.UnlimitedQuota,
	},
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	limits map[types.PlanTier]types.PlanLimits
}

// NewStaticCatalog returns a Catalog backed by the hardcoded tier limits.
// This is the standard production implementation; no database or external
// service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults so callers cannot mutate the package-level variable.
	m := make(map[types.PlanTier]types.PlanLimits, len(tierDefaults))
	for tier, limits := range tierDefaults {
		cp := make(types.PlanLimits, len(limits))
		for metric, v := range limits {
			cp[metric] = v
		}
		m[tier] = cp
	}
	return &staticCatalog{limits: m}
}

// LimitsFor returns the quota limits for the given tier. The returned map is
// a copy; mutating it does not affect the catalog.
func (c *staticCatalog) LimitsFor(tier types.PlanTier) (types.PlanLimits, error) {
	limits, ok := c.limits[tier]
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnknownTier,
			"plan tier has no catalog entry: "+string(tier),
			nil,
		)
	}
	cp := make(types.PlanLimits, len(limits))
	for metric, v := range limits {
		cp[metric] = v
	}
	return cp, nil
}

// CanUpgrade permits moves to any strictly higher tier. Same-tier and
// downward moves are rejected as invalid transitions.
func (c *staticCatalog) CanUpgrade(from, to types.PlanTier) error {
	fromRank, toRank, err := ranks(from, to)
	if err != nil {
		return err
	}
	if toRank <= fromRank {
		return types.NewAppErrorWithDetails(
			types.ErrCodeConflictInvalidTransition,
			"upgrade target must be a higher tier",
			nil,
			map[string]any{"from": string(from), "to": string(to)},
		)
	}
	return nil
}

// CanDowngrade permits moves to the adjacent lower tier or directly to Free.
// All other moves, including same-tier and upward moves, are rejected.
func (c *staticCatalog) CanDowngrade(from, to types.PlanTier) error {
	fromRank, toRank, err := ranks(from, to)
	if err != nil {
		return err
	}
	if toRank >= fromRank {
		return types.NewAppErrorWithDetails(
			types.ErrCodeConflictInvalidTransition,
			"downgrade target must be a lower tier",
			nil,
			map[string]any{"from": string(from), "to": string(to)},
		)
	}
	if toRank != fromRank-1 && to != types.PlanFree {
		return types.NewAppErrorWithDetails(
			types.ErrCodeConflictInvalidTransition,
			"downgrade target must be the adjacent lower tier or free",
			nil,
			map[string]any{"from": string(from), "to": string(to)},
		)
	}
	return nil
}

// ranks resolves the rank of both tiers, rejecting unknown values.
func ranks(from, to types.PlanTier) (int, int, error) {
	fromRank, ok := tierRank[from]
	if !ok {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidTier,
			"unknown plan tier: "+string(from),
			nil,
		)
	}
	toRank, ok := tierRank[to]
	if !ok {
		return 0, 0, types.NewAppError(
			types.ErrCodeValidationInvalidTier,
			"unknown plan tier: "+string(to),
			nil,
		)
	}
	return fromRank, toRank, nil
}
