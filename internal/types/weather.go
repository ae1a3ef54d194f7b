package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WeatherSnapshot is a single point-in-time observation or forecast for one
// airport. Every numeric field is optional: a nil pointer means "unknown",
// which is distinct from zero and must never contribute a scoring penalty.
type WeatherSnapshot struct {
	Airport   string    `json:"airport"`
	Timestamp time.Time `json:"timestamp"`

	VisibilityMiles  *float64 `json:"visibility_miles,omitempty"`
	WindSpeedKnots   *float64 `json:"wind_speed_knots,omitempty"`
	WindGustKnots    *float64 `json:"wind_gust_knots,omitempty"`
	WindDirectionDeg *float64 `json:"wind_direction,omitempty"`
	TemperatureF     *float64 `json:"temperature_f,omitempty"`
	PrecipitationIn  *float64 `json:"precipitation_in,omitempty"`
	SnowDepthIn      *float64 `json:"snow_depth_in,omitempty"`
	CloudCoverPct    *float64 `json:"cloud_cover_pct,omitempty"`
	PressureMb       *float64 `json:"pressure_mb,omitempty"`
	HumidityPct      *float64 `json:"humidity_pct,omitempty"`

	Conditions  string `json:"conditions,omitempty"`
	WeatherCode *int   `json:"weather_code,omitempty"`

	// Source identifies the provider that produced this snapshot
	// (e.g. "metar", "open-meteo"). Informational only.
	Source string `json:"source,omitempty"`
}

// EffectiveWindKnots returns the gust speed when a gust is reported and
// exceeds the sustained wind, otherwise the sustained wind. Gusts are
// authoritative for gust-sensitive rules. Returns nil when neither is known.
func (w *WeatherSnapshot) EffectiveWindKnots() *float64 {
	if w == nil {
		return nil
	}
	if w.WindGustKnots != nil {
		if w.WindSpeedKnots == nil || *w.WindGustKnots > *w.WindSpeedKnots {
			return w.WindGustKnots
		}
	}
	return w.WindSpeedKnots
}

// Scan implements sql.Scanner so snapshots can be read from JSONB columns.
func (w *WeatherSnapshot) Scan(value interface{}) error {
	if value == nil {
		*w = WeatherSnapshot{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("weather snapshot: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, w)
}

// Value implements driver.Valuer so snapshots can be written to JSONB columns.
func (w WeatherSnapshot) Value() (driver.Value, error) {
	return json.Marshal(w)
}

// Float64 returns a pointer to v. Convenience for building snapshots.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
