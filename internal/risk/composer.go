package risk

import (
	"fmt"
	"math"

	"flightrisk/internal/types"
)

// Remote-airport weather weights. An arrival's remote airport is its origin,
// which must be able to depart before anything can arrive; a departure's
// remote airport is its destination, which must be able to accept the
// landing.
const (
	RemoteWeightArrival   = 0.7
	RemoteWeightDeparture = 0.6
)

// maxScore caps the final score. Nothing is certain.
const maxScore = 99.0

// baselineFactorFloor is the baseline percentage above which a seasonal
// factor is surfaced in the explanation.
const baselineFactorFloor = 10.0

// Engine composes the seasonal baseline, per-airport weather scores, and the
// historical analog signal into a RiskScore. An Engine is immutable after
// construction and safe for concurrent use; every Assess call is independent
// and side-effect-free.
type Engine struct {
	home      string
	baselines SeasonalBaselines
	runways   types.RunwayPlan
	matcher   *Matcher
}

// NewEngine builds an Engine for one home airport. The baseline table must
// cover all twelve months; the runway plan should include every airport the
// engine will score, since airports without configured headings get no
// crosswind assessment.
func NewEngine(home string, baselines SeasonalBaselines, runways types.RunwayPlan) (*Engine, error) {
	if !types.ValidAirportCode(home) {
		return nil, types.NewAppError(types.ErrCodeValidationAirportCode,
			fmt.Sprintf("invalid home airport code %q", home), nil)
	}
	if err := baselines.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		home:      home,
		baselines: baselines,
		runways:   runways,
		matcher:   NewMatcher(DefaultTolerances()),
	}, nil
}

// Home returns the airport this engine instance scores for.
func (e *Engine) Home() string { return e.home }

// Assess scores one flight. homeWx and remoteWx are the snapshots at the
// home airport and at the other end of the leg; either may be nil, which
// degrades to an all-fields-absent snapshot rather than an error. records is
// the candidate set from the historical store.
//
// A descriptor whose home airport is on neither end of the leg is a caller
// contract violation and returns an AppError.
func (e *Engine) Assess(
	flight types.FlightDescriptor,
	homeWx, remoteWx *types.WeatherSnapshot,
	records []types.HistoricalFlightRecord,
) (*types.RiskScore, error) {
	if err := types.ValidateDescriptor(flight, e.home); err != nil {
		return nil, err
	}
	remoteAirport, _ := flight.RemoteAirport(e.home)

	var detailed []types.Factor

	// 1. Seasonal baseline.
	baseline := e.baselines.Rate(flight.ScheduledTime.Month())
	if baseline > baselineFactorFloor {
		detailed = append(detailed, types.Factor{
			Category: types.FactorSeasonal,
			Description: fmt.Sprintf("Seasonal Baseline: %.1f%% (High for %s)",
				baseline, flight.ScheduledTime.Month().String()[:3]),
			Details: map[string]any{
				"month":    flight.ScheduledTime.Month().String(),
				"baseline": baseline,
			},
		})
	}

	// 2-4. Weather at both ends, remote weighted down.
	homeScore, homeFactors := ScoreAirport(homeWx, e.runways.HeadingsFor(e.home))
	remoteScore, remoteFactors := ScoreAirport(remoteWx, e.runways.HeadingsFor(remoteAirport))

	weight := RemoteWeightDeparture
	if flight.Role == types.LegArrival {
		weight = RemoteWeightArrival
	}
	weather := homeScore + remoteScore*weight

	detailed = append(detailed, homeFactors...)
	for _, f := range remoteFactors {
		f.Description = fmt.Sprintf("%s: %s", remoteAirport, f.Description)
		detailed = append(detailed, f)
	}

	// 5-7. Historical analog signal, blended by averaging against the
	// pre-historical score. No signal means an adjustment of exactly zero
	// and no history factor, which keeps "no data" distinguishable from a
	// genuine 0% finding.
	sig := e.matcher.Match(homeWx, remoteWx, records)
	pre := baseline + weather

	var adjustment float64
	if sig.HasSignal {
		adjustment = (sig.Rate+pre)/2 - pre
		detailed = append(detailed, historyFactor(sig, remoteAirport))
	}

	// 8-9. Clamp and tier.
	final := math.Min(pre+adjustment, maxScore)
	final = math.Max(final, 0)

	factors := make([]string, 0, len(detailed))
	for _, f := range detailed {
		factors = append(factors, f.Description)
	}

	return &types.RiskScore{
		Score: final,
		Tier:  types.TierForScore(final),
		Breakdown: types.ScoreBreakdown{
			SeasonalBaseline:  baseline,
			WeatherScore:      weather,
			HistoryAdjustment: adjustment,
			FinalScore:        final,
		},
		Factors:  factors,
		Detailed: detailed,
	}, nil
}

// historyFactor synthesizes the explanation entry for a usable analog signal.
func historyFactor(sig AnalogSignal, remoteAirport string) types.Factor {
	var desc string
	switch {
	case sig.HomeUsable && sig.RemoteUsable:
		desc = fmt.Sprintf("History: %.0f%% cancelled in similar conditions (%d/%d local, %d/%d at %s)",
			sig.Rate, sig.Home.Cancelled, sig.Home.Matched,
			sig.Remote.Cancelled, sig.Remote.Matched, remoteAirport)
	case sig.HomeUsable:
		desc = fmt.Sprintf("History: %.0f%% cancelled in similar local conditions (%d/%d)",
			sig.Rate, sig.Home.Cancelled, sig.Home.Matched)
	default:
		desc = fmt.Sprintf("History: %.0f%% cancelled in similar conditions at %s (%d/%d)",
			sig.Rate, remoteAirport, sig.Remote.Cancelled, sig.Remote.Matched)
	}
	return types.Factor{
		Category:    types.FactorHistory,
		Description: desc,
		Details: map[string]any{
			"rate":              sig.Rate,
			"home_matched":      sig.Home.Matched,
			"home_cancelled":    sig.Home.Cancelled,
			"remote_matched":    sig.Remote.Matched,
			"remote_cancelled":  sig.Remote.Cancelled,
			"home_usable":       sig.HomeUsable,
			"remote_usable":     sig.RemoteUsable,
		},
	}
}
