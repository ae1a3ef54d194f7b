package types

import "time"

// RescoreAction tells the worker what to do with a rescore batch.
type RescoreAction string

const (
	// RescoreActionDay re-scores every active flight scheduled on Day.
	RescoreActionDay RescoreAction = "rescore_day"
	// RescoreActionFlights re-scores only the flights in SpecificFlightIDs.
	RescoreActionFlights RescoreAction = "rescore_flights"
)

// RescoreMessage is the SQS payload dispatched to the rescore worker when
// fresh weather invalidates previously computed scores.
type RescoreMessage struct {
	BatchID           string        `json:"batch_id"`
	TraceID           string        `json:"trace_id"`
	Day               time.Time     `json:"day"`
	Action            RescoreAction `json:"action"`
	SpecificFlightIDs []string      `json:"specific_flight_ids,omitempty"`
	Reason            string        `json:"reason,omitempty"`
	EnqueuedAt        time.Time     `json:"enqueued_at"`
}
