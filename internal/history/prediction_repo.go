package history

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"flightrisk/internal/db"
	"flightrisk/internal/types"
)

// PredictionLogRepo provides data access for the prediction_log table. Every
// scored flight is appended here so predictions can later be checked against
// the outcome.
type PredictionLogRepo struct {
	db db.DBTX
}

// NewPredictionLogRepo creates a repository backed by the given database
// connection (pool or transaction).
func NewPredictionLogRepo(db db.DBTX) *PredictionLogRepo {
	return &PredictionLogRepo{db: db}
}

const predColumns = `p.flight_id, p.number, p.scheduled_time, p.status,
	p.predicted_score, p.predicted_tier,
	p.weather_visibility, p.weather_wind, p.weather_temp, p.recorded_at`

func scanPredictionFromRows(rows pgx.Rows) (types.PredictionRecord, error) {
	var rec types.PredictionRecord
	err := rows.Scan(
		&rec.FlightID,
		&rec.Number,
		&rec.ScheduledTime,
		&rec.Status,
		&rec.PredictedScore,
		&rec.PredictedTier,
		&rec.VisibilityMi,
		&rec.WindKnots,
		&rec.TemperatureF,
		&rec.RecordedAt,
	)
	return rec, err
}

// Record appends one prediction. The same flight may be recorded repeatedly
// as re-scores run; each row is a separate observation.
func (r *PredictionLogRepo) Record(ctx context.Context, rec *types.PredictionRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO prediction_log (
			flight_id, number, scheduled_time, status,
			predicted_score, predicted_tier,
			weather_visibility, weather_wind, weather_temp, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		rec.FlightID,
		rec.Number,
		rec.ScheduledTime,
		rec.Status,
		rec.PredictedScore,
		rec.PredictedTier,
		rec.VisibilityMi,
		rec.WindKnots,
		rec.TemperatureF,
		nilIfZeroTime(rec.RecordedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record prediction", err)
	}
	return nil
}

// LatestForFlight returns the most recent prediction for one flight. Returns
// ErrCodeNotFoundFlight when the flight was never scored.
func (r *PredictionLogRepo) LatestForFlight(ctx context.Context, flightID string) (*types.PredictionRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT p.flight_id, p.number, p.scheduled_time, p.status,
		        p.predicted_score, p.predicted_tier,
		        p.weather_visibility, p.weather_wind, p.weather_temp, p.recorded_at
		 FROM prediction_log p
		 WHERE p.flight_id = $1
		 ORDER BY p.recorded_at DESC
		 LIMIT 1`,
		flightID,
	)

	var rec types.PredictionRecord
	err := row.Scan(
		&rec.FlightID,
		&rec.Number,
		&rec.ScheduledTime,
		&rec.Status,
		&rec.PredictedScore,
		&rec.PredictedTier,
		&rec.VisibilityMi,
		&rec.WindKnots,
		&rec.TemperatureF,
		&rec.RecordedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundFlight, "no prediction recorded for flight", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve prediction", err)
	}
	return &rec, nil
}

// ListRange returns predictions recorded within [start, end), newest first,
// capped at limit rows.
func (r *PredictionLogRepo) ListRange(ctx context.Context, start, end time.Time, limit int) ([]types.PredictionRecord, error) {
	if !end.After(start) {
		return nil, types.NewAppError(types.ErrCodeValidationTimeRange, "end must be after start", nil)
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+predColumns+`
		 FROM prediction_log p
		 WHERE p.recorded_at >= $1 AND p.recorded_at < $2
		 ORDER BY p.recorded_at DESC
		 LIMIT $3`,
		start, end, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list predictions", err)
	}
	defer rows.Close()

	var results []types.PredictionRecord
	for rows.Next() {
		rec, scanErr := scanPredictionFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan prediction row", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating prediction rows", err)
	}

	return results, nil
}

// PruneBefore removes prediction rows recorded before the cutoff. Returns the
// number of rows removed.
func (r *PredictionLogRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM prediction_log WHERE recorded_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to prune prediction log", err)
	}
	return tag.RowsAffected(), nil
}

// nilIfZeroTime maps the zero time to nil so the DB default applies.
func nilIfZeroTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
