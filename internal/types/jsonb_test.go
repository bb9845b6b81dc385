package types

import "testing"

func TestUsageSnapshotScan(t *testing.T) {
	var u UsageSnapshot
	err := u.Scan([]byte(`{"storage_bytes": 1024, "seats": 3}`))
	if err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if u[MetricStorageBytes] != 1024 {
		t.Errorf("storage_bytes = %d, want 1024", u[MetricStorageBytes])
	}
	if u[MetricSeats] != 3 {
		t.Errorf("seats = %d, want 3", u[MetricSeats])
	}
}

func TestUsageSnapshotScanString(t *testing.T) {
	// Some drivers deliver JSONB as string.
	var u UsageSnapshot
	if err := u.Scan(`{"api_calls_daily": 99}`); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if u[MetricAPICallsDaily] != 99 {
		t.Errorf("api_calls_daily = %d, want 99", u[MetricAPICallsDaily])
	}
}

func TestUsageSnapshotScanNil(t *testing.T) {
	u := UsageSnapshot{MetricSeats: 1}
	if err := u.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if u != nil {
		t.Errorf("Scan(nil) should reset the snapshot, got %v", u)
	}
}

func TestUsageSnapshotScanUnsupportedType(t *testing.T) {
	var u UsageSnapshot
	if err := u.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestUsageSnapshotValueNil(t *testing.T) {
	var u UsageSnapshot
	v, err := u.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	// Stored as an empty object, never SQL NULL.
	if string(v.([]byte)) != "{}" {
		t.Errorf("nil snapshot Value = %s, want {}", v)
	}
}

func TestPlanLimitsScan(t *testing.T) {
	var pl PlanLimits
	if err := pl.Scan([]byte(`{"storage_bytes": 5368709120, "seats": 3}`)); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}
	if pl[MetricStorageBytes] != 5<<30 {
		t.Errorf("storage_bytes limit = %d, want %d", pl[MetricStorageBytes], int64(5<<30))
	}
}

func TestUsageSnapshotClone(t *testing.T) {
	original := UsageSnapshot{MetricSeats: 2}
	clone := original.Clone()
	clone[MetricSeats] = 99

	if original[MetricSeats] != 2 {
		t.Error("mutating the clone must not affect the original")
	}

	var nilSnapshot UsageSnapshot
	if nilSnapshot.Clone() != nil {
		t.Error("Clone of nil should stay nil")
	}
}
