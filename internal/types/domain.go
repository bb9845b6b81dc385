package types

import "time"

// Account is the identity and business profile of a StashBox customer.
// An Account owns at most one Subscription, referenced one-directionally by
// id; the Subscription never holds a live pointer back. Lookups traverse by
// id through the repositories, never a cyclic in-memory graph.
type Account struct {
	ID                  string    `json:"id"`
	BusinessName        string    `json:"business_name"`
	BusinessInformation string    `json:"business_information"`
	SubscriptionID      *string   `json:"subscription_id,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Subscription tracks an account's plan tier, lifecycle state, and usage
// counters. Version is the optimistic-concurrency token: every successful
// save increments it, and saves carry the version read at load time so that
// concurrent mutations on the same subscription cannot both apply.
type Subscription struct {
	ID        string            `json:"id"`
	AccountID string            `json:"account_id"`
	PlanTier  PlanTier          `json:"plan_tier"`
	State     SubscriptionState `json:"state"`
	Usage     UsageSnapshot     `json:"usage"`
	// BillingPeriodAnchor marks when the usage counters last reset.
	BillingPeriodAnchor time.Time `json:"billing_period_anchor"`
	Version             int64     `json:"version"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// UsageSnapshot is the current measured consumption per metric.
// Values are always non-negative and are compared only against the limits of
// the subscription's current tier.
type UsageSnapshot map[Metric]int64

// Clone returns an independent copy of the snapshot. Nil stays nil.
func (u UsageSnapshot) Clone() UsageSnapshot {
	if u == nil {
		return nil
	}
	out := make(UsageSnapshot, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// UnlimitedQuota is the sentinel limit value meaning "unbounded".
// Enforcement code must treat it as no limit.
const UnlimitedQuota int64 = 0

// PlanLimits maps each metric to its maximum permitted value under a tier.
// A value of UnlimitedQuota (0) means the metric is unbounded.
type PlanLimits map[Metric]int64

// MetricStatus is the per-metric slice of a usage status report.
// Limit is 0 for unbounded metrics, in which case Percentage is 0 and the
// classification is always Within.
type MetricStatus struct {
	Metric         Metric              `json:"metric"`
	Used           int64               `json:"used"`
	Limit          int64               `json:"limit"`
	Unbounded      bool                `json:"unbounded"`
	Percentage     float64             `json:"percentage"`
	Classification UsageClassification `json:"classification"`
}

// UsageStatusReport is the derived (never persisted) evaluation of a usage
// snapshot against a tier's limits. Overall is the worst-case classification
// across all metrics.
type UsageStatusReport struct {
	Tier        PlanTier            `json:"tier"`
	Metrics     []MetricStatus      `json:"metrics"`
	Overall     UsageClassification `json:"overall"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
}

// Exceeded returns the metrics classified as Exceeded, in report order.
// Used by the downgrade precondition to explain exactly what blocks the move.
func (r *UsageStatusReport) Exceeded() []MetricStatus {
	var out []MetricStatus
	for _, m := range r.Metrics {
		if m.Classification == UsageExceeded {
			out = append(out, m)
		}
	}
	return out
}

// ResponseMeta contains non-blocking metadata returned with API responses.
type ResponseMeta struct {
	Warnings []string `json:"warnings,omitempty"`
}
