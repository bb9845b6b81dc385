// Package usage classifies a subscription's consumption against its plan
// limits. The evaluator is pure: it performs no I/O and holds no state, so a
// single instance is safe for concurrent use.
package usage

import (
	"sort"
	"time"

	"stashbox/internal/types"
)

// nearLimitThreshold is the fraction of a limit at which a metric is flagged
// as approaching exhaustion. At or above 80% (but not over the limit) the
// metric classifies as near_limit.
const nearLimitThreshold = 0.8

// Evaluator classifies usage snapshots against plan limits.
type Evaluator struct {
	now func() time.Time
}

// NewEvaluator returns an Evaluator using wall-clock time for report
// timestamps.
func NewEvaluator() *Evaluator {
	return &Evaluator{now: time.Now}
}

// newEvaluatorAt returns an Evaluator with an injected clock for tests.
func newEvaluatorAt(now func() time.Time) *Evaluator {
	return &Evaluator{now: now}
}

// Evaluate produces a usage status report for the given snapshot under the
// given tier limits.
//
// Classification rules per metric:
//   - A limit of types.UnlimitedQuota means the metric is unbounded and always
//     classifies as within.
//   - used > limit classifies as exceeded. Consumption exactly at the limit is
//     allowed.
//   - used/limit >= 0.8 (and not exceeded) classifies as near_limit.
//   - Otherwise within.
//
// Metrics absent from limits are not enforced and do not appear in the report.
// Metrics absent from the snapshot evaluate with used = 0. The overall
// classification is the worst case across all reported metrics. Metrics are
// reported in stable name order so that responses are deterministic.
func (e *Evaluator) Evaluate(tier types.PlanTier, snapshot types.UsageSnapshot, limits types.PlanLimits) types.UsageStatusReport {
	report := types.UsageStatusReport{
		Tier:        tier,
		Overall:     types.UsageWithin,
		EvaluatedAt: e.now().UTC(),
	}

	metrics := make([]types.Metric, 0, len(limits))
	for metric := range limits {
		metrics = append(metrics, metric)
	}
	sort.Slice(metrics, func(i, j int) bool { return metrics[i] < metrics[j] })

	for _, metric := range metrics {
		limit := limits[metric]
		used := snapshot[metric]

		status := types.MetricStatus{
			Metric: metric,
			Used:   used,
			Limit:  limit,
		}

		if limit == types.UnlimitedQuota {
			status.Unbounded = true
			status.Classification = types.UsageWithin
		} else {
			status.Percentage = float64(used) / float64(limit)
			switch {
			case used > limit:
				status.Classification = types.UsageExceeded
			case status.Percentage >= nearLimitThreshold:
				status.Classification = types.UsageNearLimit
			default:
				status.Classification = types.UsageWithin
			}
		}

		report.Metrics = append(report.Metrics, status)
		report.Overall = report.Overall.Worse(status.Classification)
	}

	return report
}
