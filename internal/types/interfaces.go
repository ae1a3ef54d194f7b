package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// WeatherSource supplies weather snapshots per airport. Implementations may
// blend live observations and forecasts; the engine treats each snapshot as a
// single point-in-time truth.
type WeatherSource interface {
	// Snapshot returns the weather at the given airport for the given time.
	// A provider outage degrades to a snapshot with absent fields, not an
	// error, whenever partial data is available.
	Snapshot(ctx context.Context, airport string, at time.Time) (*WeatherSnapshot, error)
}

// ScheduleSource supplies the flight board for the home airport.
type ScheduleSource interface {
	// Flights returns arrivals and departures for the home airport whose
	// scheduled time falls within [from, to).
	Flights(ctx context.Context, from, to time.Time) ([]ActiveFlight, error)
}

// AnalogStore exposes the historical record collection to the engine. The
// store only needs to return records plausibly near the query weather;
// tolerance-exact filtering happens in the engine.
type AnalogStore interface {
	// Candidates returns historical records whose recorded weather is broadly
	// near either of the query snapshots. Either snapshot may be nil.
	Candidates(ctx context.Context, home, remote *WeatherSnapshot, limit int) ([]HistoricalFlightRecord, error)
}

// RescoreTrigger enqueues batch re-scoring work for downstream workers.
type RescoreTrigger interface {
	TriggerRescore(ctx context.Context, day time.Time, reason string) error
}

// MetricsPublisher records operational telemetry.
type MetricsPublisher interface {
	// CountTier increments the per-tier assessment counter.
	CountTier(ctx context.Context, tier RiskTier)
	// RecordSyncDuration records how long one poller sync cycle took.
	RecordSyncDuration(ctx context.Context, op string, d time.Duration)
}
