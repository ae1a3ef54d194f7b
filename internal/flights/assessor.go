package flights

import (
	"context"
	"log/slog"
	"time"

	"flightrisk/internal/risk"
	"flightrisk/internal/types"
)

// candidateLimit bounds the analog prefilter per assessment.
const candidateLimit = 2000

// predictionWriter appends scored flights to the prediction log.
type predictionWriter interface {
	Record(ctx context.Context, rec *types.PredictionRecord) error
}

// Assessor scores flights: it gathers the weather at both ends of the leg and
// the historical analog candidates, runs the engine, and records the outcome
// in the prediction log for later verification.
type Assessor struct {
	engine      *risk.Engine
	weather     types.WeatherSource
	analogs     types.AnalogStore
	predictions predictionWriter
	metrics     types.MetricsPublisher
	logger      *slog.Logger
}

// NewAssessor wires an assessor. predictions and metrics may be nil; scoring
// then runs without the audit trail.
func NewAssessor(engine *risk.Engine, weather types.WeatherSource, analogs types.AnalogStore,
	predictions predictionWriter, metrics types.MetricsPublisher, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assessor{
		engine:      engine,
		weather:     weather,
		analogs:     analogs,
		predictions: predictions,
		metrics:     metrics,
		logger:      logger,
	}
}

// Assess scores one flight against current data. Weather outages degrade to
// nil snapshots; an analog store failure is a real error since the engine
// cannot distinguish "store down" from "no similar days on record".
func (a *Assessor) Assess(ctx context.Context, f types.ActiveFlight) (*types.RiskScore, error) {
	home := a.engine.Home()
	desc := f.Descriptor()
	remote, ok := desc.RemoteAirport(home)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationFlightLeg,
			"home airport is on neither end of the leg", nil)
	}

	homeWx := a.snapshotOrNil(ctx, home, f.ScheduledTime)
	remoteWx := a.snapshotOrNil(ctx, remote, f.ScheduledTime)

	records, err := a.analogs.Candidates(ctx, homeWx, remoteWx, candidateLimit)
	if err != nil {
		return nil, err
	}

	score, err := a.engine.Assess(desc, homeWx, remoteWx, records)
	if err != nil {
		return nil, err
	}

	a.recordPrediction(ctx, f, homeWx, score)
	if a.metrics != nil {
		a.metrics.CountTier(ctx, score.Tier)
	}

	a.logger.InfoContext(ctx, "assessed flight risk",
		"flight_id", f.ID, "score", score.Score, "tier", score.Tier)
	return score, nil
}

func (a *Assessor) snapshotOrNil(ctx context.Context, airport string, at time.Time) *types.WeatherSnapshot {
	snap, err := a.weather.Snapshot(ctx, airport, at)
	if err != nil {
		a.logger.WarnContext(ctx, "no weather for assessment",
			"airport", airport, "at", at, "error", err)
		return nil
	}
	return snap
}

// recordPrediction appends the audit row. Failures are logged, never fatal;
// the score already exists and the caller gets it either way.
func (a *Assessor) recordPrediction(ctx context.Context, f types.ActiveFlight, homeWx *types.WeatherSnapshot, score *types.RiskScore) {
	if a.predictions == nil {
		return
	}

	rec := &types.PredictionRecord{
		FlightID:       f.ID,
		Number:         f.Number,
		ScheduledTime:  f.ScheduledTime,
		Status:         f.Status,
		PredictedScore: score.Score,
		PredictedTier:  score.Tier,
	}
	if homeWx != nil {
		rec.VisibilityMi = homeWx.VisibilityMiles
		rec.WindKnots = homeWx.WindSpeedKnots
		rec.TemperatureF = homeWx.TemperatureF
	}

	if err := a.predictions.Record(ctx, rec); err != nil {
		a.logger.WarnContext(ctx, "failed to record prediction",
			"flight_id", f.ID, "error", err)
	}
}
