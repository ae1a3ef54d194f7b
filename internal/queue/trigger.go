// Package queue provides the SQS producer and consumer for rescore work:
// the poller enqueues batches when fresh weather lands, the rescore worker
// drains them.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"flightrisk/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RescoreDispatcher implements types.RescoreTrigger over a single SQS queue.
// It serializes a RescoreMessage and sends it with the reason as a message
// attribute so operators can see why a batch exists without opening the body.
type RescoreDispatcher struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewRescoreDispatcher creates a dispatcher for the given queue URL.
func NewRescoreDispatcher(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *RescoreDispatcher {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RescoreDispatcher{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// TriggerRescore enqueues a whole-day rescore: every active flight scheduled
// on day gets re-assessed by the worker.
func (d *RescoreDispatcher) TriggerRescore(ctx context.Context, day time.Time, reason string) error {
	msg := types.RescoreMessage{
		BatchID:    fmt.Sprintf("day_%s", uuid.NewString()),
		TraceID:    uuid.NewString(),
		Day:        day.UTC().Truncate(24 * time.Hour),
		Action:     types.RescoreActionDay,
		Reason:     reason,
		EnqueuedAt: d.clock.Now().UTC(),
	}
	return d.send(ctx, msg, reason)
}

// TriggerRescoreFlights enqueues a targeted rescore for specific flight IDs,
// used when a single flight's schedule data changes.
func (d *RescoreDispatcher) TriggerRescoreFlights(ctx context.Context, flightIDs []string, reason string) error {
	if len(flightIDs) == 0 {
		return nil
	}
	msg := types.RescoreMessage{
		BatchID:           fmt.Sprintf("targeted_%s", uuid.NewString()),
		TraceID:           uuid.NewString(),
		Action:            types.RescoreActionFlights,
		SpecificFlightIDs: flightIDs,
		Reason:            reason,
		EnqueuedAt:        d.clock.Now().UTC(),
	}
	return d.send(ctx, msg, reason)
}

func (d *RescoreDispatcher) send(ctx context.Context, msg types.RescoreMessage, reason string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal RescoreMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := d.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send RescoreMessage to %s: %w", d.queueURL, err)
	}

	d.logger.InfoContext(ctx, "rescore message sent",
		"queue_url", d.queueURL,
		"batch_id", msg.BatchID,
		"trace_id", msg.TraceID,
		"action", string(msg.Action),
		"flight_ids", msg.SpecificFlightIDs,
		"reason", reason,
	)

	return nil
}
