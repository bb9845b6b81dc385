// Package telemetry provides metrics collectors for API request telemetry.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const (
	// cwMaxBatchSize is the CloudWatch PutMetricData limit per request.
	cwMaxBatchSize = 20
	// flushInterval bounds how long buffered datums wait before publishing.
	flushInterval = 10 * time.Second
	// publishTimeout bounds each PutMetricData call.
	publishTimeout = 5 * time.Second
	// bufferSize is the channel capacity; datums are dropped when full so the
	// request path never blocks on metric delivery.
	bufferSize = 1024
)

// CloudWatchMetrics implements core.MetricsCollector by publishing request
// count and latency datums to CloudWatch. Datums are buffered and flushed in
// batches from a background goroutine.
//
// Metrics emitted:
//   - RequestCount: Dims {Method, Endpoint, Status} -- one per request
//   - RequestLatency: Dims {Method, Endpoint} -- request duration in ms
type CloudWatchMetrics struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	datums chan cwtypes.MetricDatum
	done   chan struct{}
}

// NewCloudWatchMetrics creates a collector publishing to the given namespace
// and starts its background flush loop. Call Close on shutdown to flush
// remaining datums.
func NewCloudWatchMetrics(client CloudWatchClient, namespace string, logger *slog.Logger) *CloudWatchMetrics {
	m := &CloudWatchMetrics{
		client:    client,
		namespace: namespace,
		logger:    logger,
		datums:    make(chan cwtypes.MetricDatum, bufferSize),
		done:      make(chan struct{}),
	}
	go m.flushLoop()
	return m
}

// RecordRequest buffers count and latency datums for the request. Never blocks:
// datums are dropped when the buffer is full.
func (m *CloudWatchMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	now := time.Now().UTC()

	count := cwtypes.MetricDatum{
		MetricName: aws.String("RequestCount"),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(now),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Method"), Value: aws.String(method)},
			{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
			{Name: aws.String("Status"), Value: aws.String(status)},
		},
	}
	latency := cwtypes.MetricDatum{
		MetricName: aws.String("RequestLatency"),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Timestamp:  aws.Time(now),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String("Method"), Value: aws.String(method)},
			{Name: aws.String("Endpoint"), Value: aws.String(endpoint)},
		},
	}

	for _, d := range []cwtypes.MetricDatum{count, latency} {
		select {
		case m.datums <- d:
		default:
			m.logger.Warn("metric buffer full, dropping datum",
				"metric", aws.ToString(d.MetricName),
			)
		}
	}
}

// Close stops the flush loop and publishes any buffered datums.
func (m *CloudWatchMetrics) Close() {
	close(m.datums)
	<-m.done
}

func (m *CloudWatchMetrics) flushLoop() {
	defer close(m.done)

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]cwtypes.MetricDatum, 0, cwMaxBatchSize)
	for {
		select {
		case d, ok := <-m.datums:
			if !ok {
				m.publish(batch)
				return
			}
			batch = append(batch, d)
			if len(batch) >= cwMaxBatchSize {
				m.publish(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				m.publish(batch)
				batch = batch[:0]
			}
		}
	}
}

func (m *CloudWatchMetrics) publish(batch []cwtypes.MetricDatum) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: batch,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Error("failed to publish request metrics",
			"error", err.Error(),
			"datums", len(batch),
		)
	}
}

// NoopMetrics implements core.MetricsCollector with no-op recording, used
// when metrics are disabled or in local development.
type NoopMetrics struct{}

func (NoopMetrics) RecordRequest(_, _, _ string, _ time.Duration) {}
