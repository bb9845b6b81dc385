package types

import "testing"

func TestPlanTierValid(t *testing.T) {
	for _, tier := range []PlanTier{PlanFree, PlanBasic, PlanPro, PlanEnterprise} {
		if !tier.Valid() {
			t.Errorf("Valid(%q) = false, want true", tier)
		}
	}
	for _, tier := range []PlanTier{"", "gold", "FREE", "Free ", "premium"} {
		if tier.Valid() {
			t.Errorf("Valid(%q) = true, want false", tier)
		}
	}
}

func TestSubscriptionStateValid(t *testing.T) {
	if !SubStateActive.Valid() || !SubStateCanceled.Valid() {
		t.Error("known states must be valid")
	}
	for _, s := range []SubscriptionState{"", "paused", "ACTIVE"} {
		if s.Valid() {
			t.Errorf("Valid(%q) = true, want false", s)
		}
	}
}

func TestMetricValid(t *testing.T) {
	for _, m := range []Metric{MetricStorageBytes, MetricSeats, MetricAPICallsDaily} {
		if !m.Valid() {
			t.Errorf("Valid(%q) = false, want true", m)
		}
	}
	if Metric("bandwidth_bytes").Valid() {
		t.Error("unknown metric must be invalid")
	}
}

func TestUsageClassificationWorse(t *testing.T) {
	tests := []struct {
		a, b, want UsageClassification
	}{
		{UsageWithin, UsageWithin, UsageWithin},
		{UsageWithin, UsageNearLimit, UsageNearLimit},
		{UsageNearLimit, UsageWithin, UsageNearLimit},
		{UsageNearLimit, UsageExceeded, UsageExceeded},
		{UsageExceeded, UsageWithin, UsageExceeded},
		{UsageExceeded, UsageExceeded, UsageExceeded},
	}
	for _, tt := range tests {
		if got := tt.a.Worse(tt.b); got != tt.want {
			t.Errorf("%q.Worse(%q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
