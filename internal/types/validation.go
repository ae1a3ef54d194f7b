package types

import (
	"fmt"
	"time"
)

// Airport code length bounds. IATA codes are 3 letters, ICAO codes 4.
const (
	MinAirportCodeLen = 3
	MaxAirportCodeLen = 4
)

// ValidAirportCode reports whether the code looks like an IATA or ICAO
// airport identifier (3-4 uppercase ASCII letters).
func ValidAirportCode(code string) bool {
	if len(code) < MinAirportCodeLen || len(code) > MaxAirportCodeLen {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// ValidateDescriptor checks the caller contract on a flight descriptor for
// the given home airport: both endpoints must be plausible airport codes and
// the home airport must be one of them. Violations are caller errors, never
// retried.
func ValidateDescriptor(f FlightDescriptor, home string) error {
	if !ValidAirportCode(f.Origin) {
		return NewAppError(ErrCodeValidationAirportCode,
			fmt.Sprintf("invalid origin airport code %q", f.Origin), nil)
	}
	if !ValidAirportCode(f.Destination) {
		return NewAppError(ErrCodeValidationAirportCode,
			fmt.Sprintf("invalid destination airport code %q", f.Destination), nil)
	}
	if f.ScheduledTime.IsZero() {
		return NewAppError(ErrCodeValidationMissingField,
			"scheduled time is required", nil)
	}
	if f.Role != LegArrival && f.Role != LegDeparture {
		return NewAppError(ErrCodeValidationMissingField,
			fmt.Sprintf("invalid leg role %q", f.Role), nil)
	}
	if _, ok := f.RemoteAirport(home); !ok {
		return NewAppError(ErrCodeValidationFlightLeg,
			fmt.Sprintf("home airport %s is neither origin %s nor destination %s",
				home, f.Origin, f.Destination), nil)
	}
	return nil
}

// ValidateTimeRange ensures to is after from and the window is bounded.
func ValidateTimeRange(from, to time.Time, max time.Duration) error {
	if !to.After(from) {
		return NewAppError(ErrCodeValidationTimeRange, "end must be after start", nil)
	}
	if max > 0 && to.Sub(from) > max {
		return NewAppError(ErrCodeValidationTimeRange,
			fmt.Sprintf("window exceeds maximum of %s", max), nil)
	}
	return nil
}
