package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// mockCloudWatchClient records PutMetricData calls for verification. Calls
// arrive from the collector's flush goroutine, so access is mutex-guarded.
type mockCloudWatchClient struct {
	mu        sync.Mutex
	calls     []*cloudwatch.PutMetricDataInput
	returnErr error
}

func (m *mockCloudWatchClient) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)
	if m.returnErr != nil {
		return nil, m.returnErr
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func (m *mockCloudWatchClient) allDatums() []cwtypes.MetricDatum {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cwtypes.MetricDatum
	for _, call := range m.calls {
		out = append(out, call.MetricData...)
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCloudWatchMetrics_RecordRequest_PublishesOnClose(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, "StashBox", discardLogger())

	metrics.RecordRequest("GET", "/v1/accounts/acc_1", "200", 42*time.Millisecond)
	metrics.Close()

	datums := cw.allDatums()
	if len(datums) != 2 {
		t.Fatalf("expected 2 datums (count + latency), got %d", len(datums))
	}

	cw.mu.Lock()
	ns := *cw.calls[0].Namespace
	cw.mu.Unlock()
	if ns != "StashBox" {
		t.Errorf("expected namespace StashBox, got %q", ns)
	}

	count := datums[0]
	if *count.MetricName != "RequestCount" {
		t.Errorf("expected RequestCount, got %q", *count.MetricName)
	}
	if *count.Value != 1.0 {
		t.Errorf("expected count value 1.0, got %f", *count.Value)
	}
	if count.Unit != cwtypes.StandardUnitCount {
		t.Errorf("expected unit Count, got %s", count.Unit)
	}
	if len(count.Dimensions) != 3 {
		t.Fatalf("expected 3 dimensions on count, got %d", len(count.Dimensions))
	}

	latency := datums[1]
	if *latency.MetricName != "RequestLatency" {
		t.Errorf("expected RequestLatency, got %q", *latency.MetricName)
	}
	if *latency.Value != 42.0 {
		t.Errorf("expected latency 42ms, got %f", *latency.Value)
	}
	if latency.Unit != cwtypes.StandardUnitMilliseconds {
		t.Errorf("expected unit Milliseconds, got %s", latency.Unit)
	}
	if len(latency.Dimensions) != 2 {
		t.Fatalf("expected 2 dimensions on latency, got %d", len(latency.Dimensions))
	}
}

func TestCloudWatchMetrics_BatchesAtLimit(t *testing.T) {
	cw := &mockCloudWatchClient{}
	metrics := NewCloudWatchMetrics(cw, "StashBox", discardLogger())

	// 15 requests produce 30 datums: one full batch of 20 plus 10 on close.
	for i := 0; i < 15; i++ {
		metrics.RecordRequest("GET", "/health", "200", time.Millisecond)
	}
	metrics.Close()

	datums := cw.allDatums()
	if len(datums) != 30 {
		t.Fatalf("expected 30 datums, got %d", len(datums))
	}

	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, call := range cw.calls {
		if len(call.MetricData) > cwMaxBatchSize {
			t.Errorf("batch of %d exceeds limit %d", len(call.MetricData), cwMaxBatchSize)
		}
	}
}

func TestCloudWatchMetrics_PublishErrorDoesNotPanic(t *testing.T) {
	cw := &mockCloudWatchClient{returnErr: errors.New("throttled")}
	metrics := NewCloudWatchMetrics(cw, "StashBox", discardLogger())

	metrics.RecordRequest("POST", "/v1/accounts", "201", 5*time.Millisecond)
	metrics.Close()

	cw.mu.Lock()
	defer cw.mu.Unlock()
	if len(cw.calls) != 1 {
		t.Fatalf("expected 1 call despite error, got %d", len(cw.calls))
	}
}

func TestNoopMetrics_RecordRequest(t *testing.T) {
	// Must be callable without setup or side effects.
	NoopMetrics{}.RecordRequest("GET", "/health", "200", time.Millisecond)
}
