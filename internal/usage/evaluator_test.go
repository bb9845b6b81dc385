package usage

import (
	"testing"
	"time"

	"stashbox/internal/types"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testEvaluator() *Evaluator {
	return newEvaluatorAt(func() time.Time { return fixedNow })
}

func basicLimits() types.PlanLimits {
	return types.PlanLimits{
		types.MetricStorageBytes:  1000,
		types.MetricSeats:         10,
		types.MetricAPICallsDaily: 100,
	}
}

func metricStatus(t *testing.T, report types.UsageStatusReport, metric types.Metric) types.MetricStatus {
	t.Helper()
	for _, m := range report.Metrics {
		if m.Metric == metric {
			return m
		}
	}
	t.Fatalf("metric %s not found in report", metric)
	return types.MetricStatus{}
}

func TestEvaluate_AllWithin(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricStorageBytes:  100,
		types.MetricSeats:         2,
		types.MetricAPICallsDaily: 50,
	}, basicLimits())

	if report.Overall != types.UsageWithin {
		t.Errorf("overall = %s, want within", report.Overall)
	}
	if len(report.Metrics) != 3 {
		t.Fatalf("expected 3 metrics, got %d", len(report.Metrics))
	}
	for _, m := range report.Metrics {
		if m.Classification != types.UsageWithin {
			t.Errorf("metric %s = %s, want within", m.Metric, m.Classification)
		}
	}
	if !report.EvaluatedAt.Equal(fixedNow) {
		t.Errorf("EvaluatedAt = %v, want %v", report.EvaluatedAt, fixedNow)
	}
	if report.Tier != types.PlanBasic {
		t.Errorf("tier = %s, want basic", report.Tier)
	}
}

func TestEvaluate_NearLimitAtEightyPercent(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricSeats: 8, // exactly 80% of 10
	}, basicLimits())

	seats := metricStatus(t, report, types.MetricSeats)
	if seats.Classification != types.UsageNearLimit {
		t.Errorf("seats at exactly 80%% = %s, want near_limit", seats.Classification)
	}
	if report.Overall != types.UsageNearLimit {
		t.Errorf("overall = %s, want near_limit", report.Overall)
	}
}

func TestEvaluate_JustBelowThresholdIsWithin(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricStorageBytes: 799, // 79.9% of 1000
	}, basicLimits())

	storage := metricStatus(t, report, types.MetricStorageBytes)
	if storage.Classification != types.UsageWithin {
		t.Errorf("storage at 79.9%% = %s, want within", storage.Classification)
	}
}

func TestEvaluate_AtLimitIsNearLimitNotExceeded(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricSeats: 10, // exactly at limit
	}, basicLimits())

	seats := metricStatus(t, report, types.MetricSeats)
	if seats.Classification != types.UsageNearLimit {
		t.Errorf("seats exactly at limit = %s, want near_limit (at-limit is allowed)", seats.Classification)
	}
}

func TestEvaluate_OverLimitIsExceeded(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricSeats: 11,
	}, basicLimits())

	seats := metricStatus(t, report, types.MetricSeats)
	if seats.Classification != types.UsageExceeded {
		t.Errorf("seats over limit = %s, want exceeded", seats.Classification)
	}
	if report.Overall != types.UsageExceeded {
		t.Errorf("overall = %s, want exceeded", report.Overall)
	}
}

func TestEvaluate_UnlimitedAlwaysWithin(t *testing.T) {
	e := testEvaluator()

	limits := types.PlanLimits{
		types.MetricStorageBytes: types.UnlimitedQuota,
	}
	report := e.Evaluate(types.PlanEnterprise, types.UsageSnapshot{
		types.MetricStorageBytes: 1 << 50,
	}, limits)

	storage := metricStatus(t, report, types.MetricStorageBytes)
	if !storage.Unbounded {
		t.Error("expected unbounded flag for unlimited metric")
	}
	if storage.Classification != types.UsageWithin {
		t.Errorf("unlimited metric = %s, want within", storage.Classification)
	}
	if report.Overall != types.UsageWithin {
		t.Errorf("overall = %s, want within", report.Overall)
	}
}

func TestEvaluate_MissingSnapshotMetricIsZero(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{}, basicLimits())

	for _, m := range report.Metrics {
		if m.Used != 0 {
			t.Errorf("metric %s used = %d, want 0", m.Metric, m.Used)
		}
		if m.Classification != types.UsageWithin {
			t.Errorf("metric %s = %s, want within", m.Metric, m.Classification)
		}
	}
}

func TestEvaluate_UnenforcedMetricIgnored(t *testing.T) {
	e := testEvaluator()

	// Snapshot tracks a metric the limits don't enforce.
	limits := types.PlanLimits{types.MetricSeats: 10}
	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricSeats:        2,
		types.MetricStorageBytes: 1 << 40,
	}, limits)

	if len(report.Metrics) != 1 {
		t.Fatalf("expected 1 reported metric, got %d", len(report.Metrics))
	}
	if report.Metrics[0].Metric != types.MetricSeats {
		t.Errorf("reported metric = %s, want seats", report.Metrics[0].Metric)
	}
	if report.Overall != types.UsageWithin {
		t.Errorf("overall = %s, want within", report.Overall)
	}
}

func TestEvaluate_OverallIsWorstCase(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricStorageBytes:  100,  // within
		types.MetricSeats:         9,    // near_limit
		types.MetricAPICallsDaily: 200,  // exceeded
	}, basicLimits())

	if report.Overall != types.UsageExceeded {
		t.Errorf("overall = %s, want exceeded (worst case)", report.Overall)
	}
}

func TestEvaluate_DeterministicMetricOrder(t *testing.T) {
	e := testEvaluator()

	first := e.Evaluate(types.PlanBasic, types.UsageSnapshot{}, basicLimits())
	for i := 0; i < 10; i++ {
		next := e.Evaluate(types.PlanBasic, types.UsageSnapshot{}, basicLimits())
		for j := range first.Metrics {
			if next.Metrics[j].Metric != first.Metrics[j].Metric {
				t.Fatalf("metric order not deterministic: run %d differs at index %d", i, j)
			}
		}
	}
}

// Monotonicity: raising usage for one metric never improves any classification.
func TestEvaluate_Monotonic(t *testing.T) {
	e := testEvaluator()

	severity := map[types.UsageClassification]int{
		types.UsageWithin:    0,
		types.UsageNearLimit: 1,
		types.UsageExceeded:  2,
	}

	prev := -1
	for used := int64(0); used <= 15; used++ {
		report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
			types.MetricSeats: used,
		}, basicLimits())

		seats := metricStatus(t, report, types.MetricSeats)
		cur := severity[seats.Classification]
		if cur < prev {
			t.Fatalf("classification improved as usage rose: used=%d went to %s", used, seats.Classification)
		}
		prev = cur
	}
}

func TestEvaluate_PercentagePopulated(t *testing.T) {
	e := testEvaluator()

	report := e.Evaluate(types.PlanBasic, types.UsageSnapshot{
		types.MetricSeats: 5,
	}, basicLimits())

	seats := metricStatus(t, report, types.MetricSeats)
	if seats.Percentage != 0.5 {
		t.Errorf("percentage = %f, want 0.5", seats.Percentage)
	}
}
