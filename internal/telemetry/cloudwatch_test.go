package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

type mockCloudWatch struct {
	calls []*cloudwatch.PutMetricDataInput
	err   error
}

func (m *mockCloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func dimension(datum cwtypes.MetricDatum, name string) string {
	for _, d := range datum.Dimensions {
		if aws.ToString(d.Name) == name {
			return aws.ToString(d.Value)
		}
	}
	return ""
}

func TestPublisher_CountTier(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewPublisher(mock, "FlightRisk", nil)

	p.CountTier(context.Background(), types.TierHigh)

	require.Len(t, mock.calls, 1)
	call := mock.calls[0]
	assert.Equal(t, "FlightRisk", aws.ToString(call.Namespace))

	require.Len(t, call.MetricData, 1)
	datum := call.MetricData[0]
	assert.Equal(t, metricAssessment, aws.ToString(datum.MetricName))
	assert.Equal(t, float64(1), aws.ToFloat64(datum.Value))
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	assert.Equal(t, "High", dimension(datum, dimTier))
}

func TestPublisher_RecordSyncDuration(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewPublisher(mock, "FlightRisk", nil)

	p.RecordSyncDuration(context.Background(), "board_sync", 2500*time.Millisecond)

	require.Len(t, mock.calls, 1)
	datum := mock.calls[0].MetricData[0]
	assert.Equal(t, metricSyncDuration, aws.ToString(datum.MetricName))
	assert.Equal(t, float64(2500), aws.ToFloat64(datum.Value))
	assert.Equal(t, cwtypes.StandardUnitMilliseconds, datum.Unit)
	assert.Equal(t, "board_sync", dimension(datum, dimOp))
}

func TestPublisher_RecordRequest(t *testing.T) {
	mock := &mockCloudWatch{}
	p := NewPublisher(mock, "FlightRisk", nil)

	p.RecordRequest("GET", "/v1/flights", "200", 45*time.Millisecond)

	require.Len(t, mock.calls, 1)
	datum := mock.calls[0].MetricData[0]
	assert.Equal(t, metricRequestDuration, aws.ToString(datum.MetricName))
	assert.Equal(t, float64(45), aws.ToFloat64(datum.Value))
	assert.Equal(t, "GET", dimension(datum, dimMethod))
	assert.Equal(t, "/v1/flights", dimension(datum, dimEndpoint))
	assert.Equal(t, "200", dimension(datum, dimStatus))
}

func TestPublisher_PublishFailureIsSwallowed(t *testing.T) {
	mock := &mockCloudWatch{err: assert.AnError}
	p := NewPublisher(mock, "FlightRisk", nil)

	assert.NotPanics(t, func() {
		p.CountTier(context.Background(), types.TierLow)
		p.RecordSyncDuration(context.Background(), "board_sync", time.Second)
		p.RecordRequest("GET", "/health", "503", time.Millisecond)
	})
	assert.Len(t, mock.calls, 3)
}
