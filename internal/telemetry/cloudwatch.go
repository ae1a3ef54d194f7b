// Package telemetry publishes operational metrics to CloudWatch: assessment
// tier counts, sync cycle durations, and API request latency.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"flightrisk/internal/types"
)

// Metric and dimension names.
const (
	metricAssessment      = "AssessmentCount"
	metricSyncDuration    = "SyncDuration"
	metricRequestDuration = "RequestDuration"

	dimTier     = "Tier"
	dimOp       = "Operation"
	dimMethod   = "Method"
	dimEndpoint = "Endpoint"
	dimStatus   = "Status"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher emits metrics to a CloudWatch namespace. Publish failures are
// logged and swallowed; telemetry never takes down the caller.
type Publisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

var _ types.MetricsPublisher = (*Publisher)(nil)

// NewPublisher creates a Publisher for the given namespace.
func NewPublisher(client CloudWatchClient, namespace string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, namespace: namespace, logger: logger}
}

// CountTier increments the per-tier assessment counter.
func (p *Publisher) CountTier(ctx context.Context, tier types.RiskTier) {
	p.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricAssessment),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimTier), Value: aws.String(string(tier))},
		},
	})
}

// RecordSyncDuration records how long one poller or worker cycle took, in
// milliseconds, with the operation name as a dimension.
func (p *Publisher) RecordSyncDuration(ctx context.Context, op string, d time.Duration) {
	p.put(ctx, cwtypes.MetricDatum{
		MetricName: aws.String(metricSyncDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimOp), Value: aws.String(op)},
		},
	})
}

// RecordRequest records one API request's latency with method, endpoint, and
// status dimensions. Satisfies the server chassis' metrics hook.
func (p *Publisher) RecordRequest(method, endpoint, status string, d time.Duration) {
	p.put(context.Background(), cwtypes.MetricDatum{
		MetricName: aws.String(metricRequestDuration),
		Value:      aws.Float64(float64(d.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(dimMethod), Value: aws.String(method)},
			{Name: aws.String(dimEndpoint), Value: aws.String(endpoint)},
			{Name: aws.String(dimStatus), Value: aws.String(status)},
		},
	})
}

func (p *Publisher) put(ctx context.Context, datum cwtypes.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	}
	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		p.logger.WarnContext(ctx, "failed to publish metric",
			"metric", aws.ToString(datum.MetricName), "error", err)
	}
}
