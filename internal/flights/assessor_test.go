package flights

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/risk"
	"flightrisk/internal/types"
)

type stubAnalogs struct {
	records []types.HistoricalFlightRecord
	err     error
	gotHome *types.WeatherSnapshot
}

func (s *stubAnalogs) Candidates(_ context.Context, home, _ *types.WeatherSnapshot, _ int) ([]types.HistoricalFlightRecord, error) {
	s.gotHome = home
	return s.records, s.err
}

type stubPredictions struct {
	recorded []*types.PredictionRecord
	err      error
}

func (s *stubPredictions) Record(_ context.Context, rec *types.PredictionRecord) error {
	if s.err != nil {
		return s.err
	}
	s.recorded = append(s.recorded, rec)
	return nil
}

type stubMetrics struct {
	tiers []types.RiskTier
}

func (s *stubMetrics) CountTier(_ context.Context, tier types.RiskTier) {
	s.tiers = append(s.tiers, tier)
}

func (s *stubMetrics) RecordSyncDuration(context.Context, string, time.Duration) {}

func testEngine(t *testing.T) *risk.Engine {
	t.Helper()
	e, err := risk.NewEngine("KPUW", risk.DefaultSeasonalBaselines(),
		types.RunwayPlan{"KPUW": {50, 230}, "KSEA": {160, 340}})
	require.NoError(t, err)
	return e
}

func TestAssessor_Assess(t *testing.T) {
	sched := time.Date(2026, 7, 10, 17, 0, 0, 0, time.UTC)
	f := boardFlight("AS 2211_a", "AS 2211", "Expected", sched, types.LegArrival)

	weather := stubWeather{snaps: map[string]*types.WeatherSnapshot{
		"KPUW": {Airport: "KPUW", VisibilityMiles: types.Float64(0.4), TemperatureF: types.Float64(30),
			WindSpeedKnots: types.Float64(5)},
		"KSEA": {Airport: "KSEA", VisibilityMiles: types.Float64(10)},
	}}
	analogs := &stubAnalogs{}
	predictions := &stubPredictions{}
	metrics := &stubMetrics{}

	a := NewAssessor(testEngine(t), weather, analogs, predictions, metrics, nil)

	score, err := a.Assess(context.Background(), f)
	require.NoError(t, err)

	// July baseline 0.4 plus the 60-point sub-half-mile visibility penalty.
	assert.InDelta(t, 60.4, score.Score, 1e-9)
	assert.Equal(t, types.TierMedium, score.Tier)

	require.NotNil(t, analogs.gotHome, "query snapshots flow into the prefilter")
	assert.Equal(t, "KPUW", analogs.gotHome.Airport)

	require.Len(t, predictions.recorded, 1)
	rec := predictions.recorded[0]
	assert.Equal(t, "AS 2211_a", rec.FlightID)
	assert.Equal(t, types.TierMedium, rec.PredictedTier)
	require.NotNil(t, rec.VisibilityMi)
	assert.InDelta(t, 0.4, *rec.VisibilityMi, 1e-9)
	require.NotNil(t, rec.TemperatureF)
	assert.InDelta(t, 30, *rec.TemperatureF, 1e-9)

	assert.Equal(t, []types.RiskTier{types.TierMedium}, metrics.tiers)
}

func TestAssessor_Assess_WeatherOutageDegrades(t *testing.T) {
	sched := time.Date(2026, 10, 10, 17, 0, 0, 0, time.UTC)
	f := boardFlight("AS 2211_a", "AS 2211", "Expected", sched, types.LegArrival)

	a := NewAssessor(testEngine(t), stubWeather{err: assert.AnError},
		&stubAnalogs{}, &stubPredictions{}, nil, nil)

	score, err := a.Assess(context.Background(), f)
	require.NoError(t, err, "no weather still yields a baseline score")
	assert.InDelta(t, 0.1, score.Score, 1e-9, "October baseline only")
	assert.Equal(t, types.TierLow, score.Tier)
}

func TestAssessor_Assess_StoreFailureIsFatal(t *testing.T) {
	sched := time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC)
	f := boardFlight("AS 2211_a", "AS 2211", "Expected", sched, types.LegArrival)

	a := NewAssessor(testEngine(t), stubWeather{},
		&stubAnalogs{err: types.NewAppError(types.ErrCodeInternalDB, "db down", nil)},
		&stubPredictions{}, nil, nil)

	_, err := a.Assess(context.Background(), f)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestAssessor_Assess_HomeNotOnLeg(t *testing.T) {
	f := types.ActiveFlight{
		ID: "x", Number: "AS 1", Origin: "KSEA", Destination: "KBOI",
		Role: types.LegArrival, ScheduledTime: time.Date(2026, 1, 10, 17, 0, 0, 0, time.UTC),
	}

	a := NewAssessor(testEngine(t), stubWeather{}, &stubAnalogs{}, &stubPredictions{}, nil, nil)

	_, err := a.Assess(context.Background(), f)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationFlightLeg, appErr.Code)
}

func TestAssessor_Assess_PredictionFailureNotFatal(t *testing.T) {
	sched := time.Date(2026, 5, 10, 17, 0, 0, 0, time.UTC)
	f := boardFlight("AS 2211_a", "AS 2211", "Expected", sched, types.LegDeparture)

	a := NewAssessor(testEngine(t), stubWeather{}, &stubAnalogs{},
		&stubPredictions{err: assert.AnError}, nil, nil)

	score, err := a.Assess(context.Background(), f)
	require.NoError(t, err)
	assert.NotNil(t, score)
}
