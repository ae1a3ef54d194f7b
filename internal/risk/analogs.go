package risk

import (
	"flightrisk/internal/types"
)

// Minimum analog counts before a context's empirical rate is trusted.
// Remote-airport history is sparser, so its floor is lower; both floors
// apply to the final matched set after tolerance filtering.
const (
	MinHomeMatches   = 10
	MinRemoteMatches = 5
)

// Tolerances define how close a historical record's weather must be to the
// query snapshot, per numeric dimension, for the record to count as an
// analog.
type Tolerances struct {
	WindKnots       float64
	SnowDepthIn     float64
	PrecipIn        float64
	VisibilityMiles float64
}

// DefaultTolerances returns the standard analog matching windows.
func DefaultTolerances() Tolerances {
	return Tolerances{
		WindKnots:       5,
		SnowDepthIn:     2,
		PrecipIn:        0.1,
		VisibilityMiles: 0.5,
	}
}

// ContextStats aggregates analog matching for one weather context (the home
// airport's conditions, or the remote airport's).
type ContextStats struct {
	Matched   int `json:"matched"`
	Cancelled int `json:"cancelled"`
}

// Rate returns the empirical cancellation percentage among matched analogs.
// Only meaningful when Matched > 0.
func (s ContextStats) Rate() float64 {
	if s.Matched == 0 {
		return 0
	}
	return float64(s.Cancelled) / float64(s.Matched) * 100
}

// AnalogSignal is the outcome of querying the historical record set: an
// empirical cancellation rate when enough analogs exist, or no signal at all.
// "No signal" is not an error and must remain distinguishable from a genuine
// 0% finding.
type AnalogSignal struct {
	Home         ContextStats
	Remote       ContextStats
	HomeUsable   bool
	RemoteUsable bool
	// Rate is the blended empirical cancellation percentage. Valid only when
	// HasSignal is true.
	Rate      float64
	HasSignal bool
}

// Matcher performs tolerance-windowed analog matching over a historical
// record collection. It is stateless apart from its immutable configuration
// and safe for concurrent use.
type Matcher struct {
	tol       Tolerances
	minHome   int
	minRemote int
}

// NewMatcher creates a Matcher with the given tolerances and the standard
// minimum match counts.
func NewMatcher(tol Tolerances) *Matcher {
	return &Matcher{tol: tol, minHome: MinHomeMatches, minRemote: MinRemoteMatches}
}

// Match evaluates every candidate record against the query snapshots in two
// independent contexts and blends the resulting rates:
//
//   - both contexts above their floor: arithmetic mean of the two rates
//   - exactly one above its floor: that rate alone
//   - neither: no signal
//
// Either query snapshot may be nil; its context then simply yields no
// matches.
func (m *Matcher) Match(home, remote *types.WeatherSnapshot, records []types.HistoricalFlightRecord) AnalogSignal {
	var sig AnalogSignal

	for i := range records {
		rec := &records[i]
		if m.snapshotMatches(home, rec.HomeWeather) {
			sig.Home.Matched++
			if rec.Cancelled {
				sig.Home.Cancelled++
			}
		}
		if m.snapshotMatches(remote, rec.OtherWeather) {
			sig.Remote.Matched++
			if rec.Cancelled {
				sig.Remote.Cancelled++
			}
		}
	}

	sig.HomeUsable = sig.Home.Matched >= m.minHome
	sig.RemoteUsable = sig.Remote.Matched >= m.minRemote

	switch {
	case sig.HomeUsable && sig.RemoteUsable:
		sig.Rate = (sig.Home.Rate() + sig.Remote.Rate()) / 2
		sig.HasSignal = true
	case sig.HomeUsable:
		sig.Rate = sig.Home.Rate()
		sig.HasSignal = true
	case sig.RemoteUsable:
		sig.Rate = sig.Remote.Rate()
		sig.HasSignal = true
	}

	return sig
}

// snapshotMatches reports whether a candidate snapshot is an analog of the
// query snapshot. A dimension absent on either side is excluded from the
// comparison rather than disqualifying the candidate, but at least one
// numeric dimension must be comparable: matching on zero real evidence is
// not a match.
func (m *Matcher) snapshotMatches(query, candidate *types.WeatherSnapshot) bool {
	if query == nil || candidate == nil {
		return false
	}

	comparable := 0
	within := func(q, c *float64, tol float64) bool {
		if q == nil || c == nil {
			return true
		}
		comparable++
		diff := *q - *c
		if diff < 0 {
			diff = -diff
		}
		return diff <= tol
	}

	if !within(query.EffectiveWindKnots(), candidate.EffectiveWindKnots(), m.tol.WindKnots) {
		return false
	}
	if !within(query.SnowDepthIn, candidate.SnowDepthIn, m.tol.SnowDepthIn) {
		return false
	}
	if !within(query.PrecipitationIn, candidate.PrecipitationIn, m.tol.PrecipIn) {
		return false
	}
	if !within(query.VisibilityMiles, candidate.VisibilityMiles, m.tol.VisibilityMiles) {
		return false
	}

	return comparable > 0
}
