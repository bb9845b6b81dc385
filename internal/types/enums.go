package types

// PlanTier identifies the subscription plan for an account.
// Tiers are ordered by capability: Free < Basic < Pro < Enterprise.
// The ordering itself lives in the plans catalog; these constants only name
// the closed set of valid values.
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanBasic      PlanTier = "basic"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
)

// Valid reports whether the tier is one of the known plan tiers.
func (t PlanTier) Valid() bool {
	switch t {
	case PlanFree, PlanBasic, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// SubscriptionState represents the lifecycle state of a subscription.
// Canceled is terminal: no usage accrual and no tier transitions are allowed
// afterwards; reactivation goes through a fresh creation flow.
type SubscriptionState string

const (
	SubStateActive   SubscriptionState = "active"
	SubStateCanceled SubscriptionState = "canceled"
)

// Valid reports whether the state is a known lifecycle state.
func (s SubscriptionState) Valid() bool {
	switch s {
	case SubStateActive, SubStateCanceled:
		return true
	}
	return false
}

// Metric identifies a quota-governed usage dimension.
type Metric string

const (
	MetricStorageBytes  Metric = "storage_bytes"
	MetricSeats         Metric = "seats"
	MetricAPICallsDaily Metric = "api_calls_daily"
)

// Valid reports whether the metric is one of the known usage dimensions.
func (m Metric) Valid() bool {
	switch m {
	case MetricStorageBytes, MetricSeats, MetricAPICallsDaily:
		return true
	}
	return false
}

// UsageClassification describes how a metric's consumption compares to its limit.
type UsageClassification string

const (
	UsageWithin    UsageClassification = "within"
	UsageNearLimit UsageClassification = "near_limit"
	UsageExceeded  UsageClassification = "exceeded"
)

// classificationSeverity orders classifications from best to worst so that the
// overall report classification can be computed as a worst-case fold.
var classificationSeverity = map[UsageClassification]int{
	UsageWithin:    0,
	UsageNearLimit: 1,
	UsageExceeded:  2,
}

// Worse returns the more severe of two classifications.
func (c UsageClassification) Worse(other UsageClassification) UsageClassification {
	if classificationSeverity[other] > classificationSeverity[c] {
		return other
	}
	return c
}
