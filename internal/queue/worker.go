package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"flightrisk/internal/types"
)

// Receive tuning. Long polling keeps the idle worker cheap; the visibility
// timeout must outlast the slowest batch.
const (
	receiveMaxMessages    = 5
	receiveWaitSeconds    = 20
	visibilityTimeoutSecs = 120
	receiveBackoff        = 5 * time.Second
)

// SQSReceiver abstracts the SQS consumer operations for testability.
type SQSReceiver interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// flightLister is the slice of the active flight repository the worker needs
// to expand a batch into concrete flights.
type flightLister interface {
	ListForDay(ctx context.Context, day time.Time) ([]types.ActiveFlight, error)
	ListByIDs(ctx context.Context, ids []string) ([]types.ActiveFlight, error)
}

// scorer re-assesses one flight.
type scorer interface {
	Assess(ctx context.Context, f types.ActiveFlight) (*types.RiskScore, error)
}

// Worker drains the rescore queue: each message expands to a set of active
// flights which are re-assessed one by one. A message is deleted only after
// every flight in it was attempted; per-flight failures are logged and do not
// fail the batch, since the next weather refresh triggers another pass anyway.
type Worker struct {
	client   SQSReceiver
	queueURL string
	flights  flightLister
	scorer   scorer
	metrics  types.MetricsPublisher
	logger   *slog.Logger
}

// NewWorker creates a rescore worker. metrics may be nil.
func NewWorker(client SQSReceiver, queueURL string, flights flightLister, scorer scorer,
	metrics types.MetricsPublisher, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		client:   client,
		queueURL: queueURL,
		flights:  flights,
		scorer:   scorer,
		metrics:  metrics,
		logger:   logger,
	}
}

// Run polls the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "rescore worker started", "queue_url", w.queueURL)
	for {
		if err := w.Poll(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				w.logger.InfoContext(ctx, "rescore worker stopping")
				return nil
			}
			w.logger.ErrorContext(ctx, "receive failed, backing off", "error", err)
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Poll performs one receive round: fetch up to receiveMaxMessages, process
// each, delete the ones that were handled.
func (w *Worker) Poll(ctx context.Context) error {
	out, err := w.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(w.queueURL),
		MaxNumberOfMessages: receiveMaxMessages,
		WaitTimeSeconds:     receiveWaitSeconds,
		VisibilityTimeout:   visibilityTimeoutSecs,
	})
	if err != nil {
		return err
	}

	for _, raw := range out.Messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var msg types.RescoreMessage
		if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &msg); err != nil {
			// Poison message. Delete it so it does not cycle forever.
			w.logger.ErrorContext(ctx, "dropping unparseable rescore message", "error", err)
			w.delete(ctx, raw.ReceiptHandle)
			continue
		}

		if err := w.handle(ctx, msg); err != nil {
			w.logger.ErrorContext(ctx, "rescore batch failed, leaving message for redelivery",
				"batch_id", msg.BatchID, "trace_id", msg.TraceID, "error", err)
			continue
		}
		w.delete(ctx, raw.ReceiptHandle)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg types.RescoreMessage) error {
	start := time.Now()

	var (
		flights []types.ActiveFlight
		err     error
	)
	switch msg.Action {
	case types.RescoreActionFlights:
		flights, err = w.flights.ListByIDs(ctx, msg.SpecificFlightIDs)
	case types.RescoreActionDay:
		flights, err = w.flights.ListForDay(ctx, msg.Day)
	default:
		w.logger.WarnContext(ctx, "unknown rescore action, skipping",
			"batch_id", msg.BatchID, "action", string(msg.Action))
		return nil
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, f := range flights {
		if f.IsCancelled() {
			continue
		}
		if _, err := w.scorer.Assess(ctx, f); err != nil {
			failed++
			w.logger.WarnContext(ctx, "rescore failed for flight",
				"batch_id", msg.BatchID, "flight_id", f.ID, "error", err)
		}
	}

	if w.metrics != nil {
		w.metrics.RecordSyncDuration(ctx, "rescore_batch", time.Since(start))
	}
	w.logger.InfoContext(ctx, "rescore batch processed",
		"batch_id", msg.BatchID,
		"trace_id", msg.TraceID,
		"action", string(msg.Action),
		"flights", len(flights),
		"failed", failed,
		"reason", msg.Reason,
	)
	return nil
}

func (w *Worker) delete(ctx context.Context, receiptHandle *string) {
	_, err := w.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(w.queueURL),
		ReceiptHandle: receiptHandle,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "failed to delete processed message", "error", err)
	}
}
