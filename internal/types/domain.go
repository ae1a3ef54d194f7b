package types

import (
	"time"
)

// LegRole identifies which end of a flight leg the home airport occupies.
type LegRole string

const (
	// LegArrival means the home airport is the flight's destination.
	LegArrival LegRole = "arrival"
	// LegDeparture means the home airport is the flight's origin.
	LegDeparture LegRole = "departure"
)

// FlightDescriptor identifies a single scheduled flight leg as seen from the
// home airport. The home airport is always one of Origin/Destination; the
// remote airport is whichever is not the home airport.
type FlightDescriptor struct {
	Number        string    `json:"number"`
	ScheduledTime time.Time `json:"scheduled_time"`
	Role          LegRole   `json:"role"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
}

// RemoteAirport returns the non-home end of the leg for the given home
// airport code, and false if the home airport is on neither end (a caller
// contract violation).
func (f FlightDescriptor) RemoteAirport(home string) (string, bool) {
	switch home {
	case f.Origin:
		return f.Destination, true
	case f.Destination:
		return f.Origin, true
	default:
		return "", false
	}
}

// HistoricalFlightRecord is one completed flight with the weather observed at
// both ends of the leg at flight time. Records are immutable once written and
// accumulate over the system's operating lifetime.
type HistoricalFlightRecord struct {
	ID           string           `json:"id" db:"id"`
	FlightNumber string           `json:"flight_number" db:"flight_number"`
	FlightDate   time.Time        `json:"flight_date" db:"flight_date"`
	Cancelled    bool             `json:"cancelled" db:"is_cancelled"`
	HomeWeather  *WeatherSnapshot `json:"home_weather,omitempty" db:"home_weather"`
	OtherWeather *WeatherSnapshot `json:"other_weather,omitempty" db:"other_weather"`
}

// ActiveFlight is a cached row from the schedule provider: a current or
// upcoming flight on the board, refreshed by the poller.
type ActiveFlight struct {
	ID            string     `json:"id" db:"flight_id"`
	Number        string     `json:"number" db:"number"`
	Airline       string     `json:"airline" db:"airline"`
	Origin        string     `json:"origin" db:"origin"`
	Destination   string     `json:"destination" db:"destination"`
	Role          LegRole    `json:"role" db:"role"`
	ScheduledTime time.Time  `json:"scheduled_time" db:"scheduled_time"`
	ActualTime    *time.Time `json:"actual_time,omitempty" db:"actual_time"`
	RevisedTime   *time.Time `json:"revised_time,omitempty" db:"revised_time"`
	Status        string     `json:"status" db:"status"`
	AircraftReg   string     `json:"aircraft_reg,omitempty" db:"aircraft_reg"`
	AircraftModel string     `json:"aircraft_model,omitempty" db:"aircraft_model"`
	LastUpdated   time.Time  `json:"last_updated" db:"last_updated"`
}

// IsCancelled reports whether the provider status marks the flight cancelled.
// Providers are inconsistent about spelling.
func (f ActiveFlight) IsCancelled() bool {
	switch f.Status {
	case "cancelled", "canceled", "Cancelled", "Canceled", "CANCELLED", "CANCELED":
		return true
	}
	return false
}

// Descriptor converts an ActiveFlight into the engine's input shape.
func (f ActiveFlight) Descriptor() FlightDescriptor {
	return FlightDescriptor{
		Number:        f.Number,
		ScheduledTime: f.ScheduledTime,
		Role:          f.Role,
		Origin:        f.Origin,
		Destination:   f.Destination,
	}
}

// RunwayPlan maps an airport code to the magnetic headings (degrees) of its
// physical runways. A runway contributes two usable headings 180 degrees
// apart; only one need be listed since crosswind magnitude is symmetric.
type RunwayPlan map[string][]float64

// HeadingsFor returns the configured runway headings for an airport, or nil
// when the airport is not in the plan.
func (p RunwayPlan) HeadingsFor(airport string) []float64 {
	return p[airport]
}

// PredictionRecord captures one scored flight for later verification against
// the eventual outcome.
type PredictionRecord struct {
	FlightID       string    `json:"flight_id" db:"flight_id"`
	Number         string    `json:"number" db:"number"`
	ScheduledTime  time.Time `json:"scheduled_time" db:"scheduled_time"`
	Status         string    `json:"status" db:"status"`
	PredictedScore float64   `json:"predicted_score" db:"predicted_score"`
	PredictedTier  RiskTier  `json:"predicted_tier" db:"predicted_tier"`
	VisibilityMi   *float64  `json:"visibility_miles,omitempty" db:"weather_visibility"`
	WindKnots      *float64  `json:"wind_knots,omitempty" db:"weather_wind"`
	TemperatureF   *float64  `json:"temperature_f,omitempty" db:"weather_temp"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
}
