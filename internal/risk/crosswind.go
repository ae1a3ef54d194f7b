// Package risk implements the cancellation risk engine: a deterministic,
// explainable heuristic that turns a flight descriptor, weather snapshots for
// both ends of the leg, and a set of historical analog records into a bounded
// risk score with an audit trail.
//
// Everything in this package is pure computation: no I/O, no shared mutable
// state, safe for concurrent use. Fetching weather, persisting records, and
// deciding when to score are the callers' concerns.
package risk

import (
	"math"

	"flightrisk/internal/types"
)

// MinCrosswindKnots computes the smallest crosswind component an aircraft
// would experience across the configured runway headings: pilots pick the
// runway that minimizes crosswind. The second return is false when no
// headings are configured.
//
// For each heading h the crosswind is |speed * sin(angle(windDir, h))| with
// the angle normalized to [0, 180] degrees. A single-heading runway set works
// the same way; reciprocal headings need not be listed because the magnitude
// is symmetric.
func MinCrosswindKnots(windDirDeg, windSpeedKnots float64, headings []float64) (float64, bool) {
	if len(headings) == 0 {
		return 0, false
	}
	min := math.Inf(1)
	for _, h := range headings {
		diff := math.Abs(windDirDeg - h)
		if diff > 180 {
			diff = 360 - diff
		}
		xw := math.Abs(windSpeedKnots * math.Sin(diff*math.Pi/180))
		if xw < min {
			min = xw
		}
	}
	return min, true
}

// CrosswindFor derives the crosswind for a snapshot against an airport's
// runway headings. The gust speed is preferred over sustained wind when a
// gust is reported and exceeds it. Returns nil when wind direction, wind
// speed, or the runway configuration is unknown.
func CrosswindFor(w *types.WeatherSnapshot, headings []float64) *float64 {
	if w == nil || w.WindDirectionDeg == nil {
		return nil
	}
	speed := w.EffectiveWindKnots()
	if speed == nil {
		return nil
	}
	xw, ok := MinCrosswindKnots(*w.WindDirectionDeg, *speed, headings)
	if !ok {
		return nil
	}
	return &xw
}
