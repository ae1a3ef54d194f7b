// Package history provides PostgreSQL-backed persistence for the flight
// history: completed flights with their observed weather (the analog record
// collection), the active flight board cache, and the prediction log.
package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"flightrisk/internal/db"
	"flightrisk/internal/types"
)

// DefaultCandidateLimit bounds how many historical records one assessment
// pulls from the store. Matching is done in memory by the engine, so the
// store only prefilters coarsely.
const DefaultCandidateLimit = 2000

// MonthlyStat aggregates completed flights for one calendar month across all
// recorded years.
type MonthlyStat struct {
	Month     time.Month `json:"month"`
	Total     int        `json:"total"`
	Cancelled int        `json:"cancelled"`
	Rate      float64    `json:"rate"`
}

// Coverage describes the span of the historical record collection.
type Coverage struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
	Total    int       `json:"total"`
}

// HistoricalFlightRepo provides data access for the historical_flights table.
// It satisfies types.AnalogStore for the engine.
type HistoricalFlightRepo struct {
	db db.DBTX
}

// NewHistoricalFlightRepo creates a repository backed by the given database
// connection (pool or transaction).
func NewHistoricalFlightRepo(db db.DBTX) *HistoricalFlightRepo {
	return &HistoricalFlightRepo{db: db}
}

const histColumns = `h.id, h.flight_number, h.flight_date, h.is_cancelled,
	h.home_weather, h.other_weather`

func scanHistoricalFromRows(rows pgx.Rows) (types.HistoricalFlightRecord, error) {
	var rec types.HistoricalFlightRecord
	var homeWx, otherWx *types.WeatherSnapshot

	err := rows.Scan(
		&rec.ID,
		&rec.FlightNumber,
		&rec.FlightDate,
		&rec.Cancelled,
		&homeWx,
		&otherWx,
	)
	if err != nil {
		return rec, err
	}
	rec.HomeWeather = homeWx
	rec.OtherWeather = otherWx
	return rec, nil
}

// Insert records a completed flight. Re-inserting the same flight number and
// date overwrites the previous record, so a late status correction from the
// provider wins.
func (r *HistoricalFlightRepo) Insert(ctx context.Context, rec *types.HistoricalFlightRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO historical_flights (
			id, flight_number, flight_date, is_cancelled,
			home_weather, other_weather, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (flight_number, flight_date) DO UPDATE SET
			is_cancelled = EXCLUDED.is_cancelled,
			home_weather = EXCLUDED.home_weather,
			other_weather = EXCLUDED.other_weather,
			recorded_at = NOW()`,
		rec.ID,
		rec.FlightNumber,
		rec.FlightDate,
		rec.Cancelled,
		rec.HomeWeather,
		rec.OtherWeather,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert historical flight", err)
	}
	return nil
}

// Candidates returns historical records whose recorded weather is broadly
// near either query snapshot, newest first. The bands here are deliberately
// twice the engine's matching tolerances; exact tolerance filtering happens
// in the engine, this query only keeps the result set small.
func (r *HistoricalFlightRepo) Candidates(ctx context.Context, home, remote *types.WeatherSnapshot, limit int) ([]types.HistoricalFlightRecord, error) {
	if limit <= 0 {
		limit = DefaultCandidateLimit
	}

	var args []any
	argIdx := 1

	band := func(column, field string, center, width float64) string {
		cond := fmt.Sprintf(
			"((%s->>'%s') IS NULL OR abs((%s->>'%s')::float8 - $%d) <= $%d)",
			column, field, column, field, argIdx, argIdx+1)
		args = append(args, center, width)
		argIdx += 2
		return cond
	}

	contextBand := func(column string, q *types.WeatherSnapshot) string {
		if q == nil {
			return ""
		}
		var conds []string
		if q.VisibilityMiles != nil {
			conds = append(conds, band(column, "visibility_miles", *q.VisibilityMiles, 1.0))
		}
		if wind := q.EffectiveWindKnots(); wind != nil {
			conds = append(conds, band(column, "wind_speed_knots", *wind, 10.0))
		}
		if q.SnowDepthIn != nil {
			conds = append(conds, band(column, "snow_depth_in", *q.SnowDepthIn, 4.0))
		}
		if len(conds) == 0 {
			return ""
		}
		return fmt.Sprintf("(%s IS NOT NULL AND %s)", column, strings.Join(conds, " AND "))
	}

	var contexts []string
	if c := contextBand("h.home_weather", home); c != "" {
		contexts = append(contexts, c)
	}
	if c := contextBand("h.other_weather", remote); c != "" {
		contexts = append(contexts, c)
	}

	whereClause := ""
	if len(contexts) > 0 {
		whereClause = "WHERE " + strings.Join(contexts, " OR ")
	}

	query := fmt.Sprintf(
		`SELECT %s
		 FROM historical_flights h
		 %s
		 ORDER BY h.flight_date DESC
		 LIMIT $%d`,
		histColumns, whereClause, argIdx,
	)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query analog candidates", err)
	}
	defer rows.Close()

	var results []types.HistoricalFlightRecord
	for rows.Next() {
		rec, scanErr := scanHistoricalFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan historical flight row", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating historical flight rows", err)
	}

	return results, nil
}

// CoverageRange reports the earliest and latest recorded flight dates and the
// total record count. An empty collection returns a zero Coverage, not an
// error.
func (r *HistoricalFlightRepo) CoverageRange(ctx context.Context) (Coverage, error) {
	var cov Coverage
	var earliest, latest *time.Time

	err := r.db.QueryRow(ctx,
		`SELECT MIN(flight_date), MAX(flight_date), COUNT(*)
		 FROM historical_flights`,
	).Scan(&earliest, &latest, &cov.Total)
	if err != nil {
		return Coverage{}, types.NewAppError(types.ErrCodeInternalDB, "failed to query history coverage", err)
	}

	if earliest != nil {
		cov.Earliest = *earliest
	}
	if latest != nil {
		cov.Latest = *latest
	}
	return cov, nil
}

// MonthlyStats aggregates cancellation counts per calendar month across all
// recorded years, in month order. Months with no records are omitted.
func (r *HistoricalFlightRepo) MonthlyStats(ctx context.Context) ([]MonthlyStat, error) {
	rows, err := r.db.Query(ctx,
		`SELECT EXTRACT(MONTH FROM flight_date)::int AS month,
		        COUNT(*)::int AS total,
		        COUNT(*) FILTER (WHERE is_cancelled)::int AS cancelled
		 FROM historical_flights
		 GROUP BY month
		 ORDER BY month`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query monthly stats", err)
	}
	defer rows.Close()

	var results []MonthlyStat
	for rows.Next() {
		var monthNum int
		var stat MonthlyStat
		if err := rows.Scan(&monthNum, &stat.Total, &stat.Cancelled); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan monthly stat row", err)
		}
		stat.Month = time.Month(monthNum)
		if stat.Total > 0 {
			stat.Rate = float64(stat.Cancelled) / float64(stat.Total) * 100
		}
		results = append(results, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating monthly stat rows", err)
	}

	return results, nil
}

// RecentRate returns the cancellation rate (percent) over flights on or after
// the given date, with the sample size. Zero flights yields a zero rate.
func (r *HistoricalFlightRepo) RecentRate(ctx context.Context, since time.Time) (rate float64, sample int, err error) {
	var cancelled int
	err = r.db.QueryRow(ctx,
		`SELECT COUNT(*)::int, COUNT(*) FILTER (WHERE is_cancelled)::int
		 FROM historical_flights
		 WHERE flight_date >= $1`,
		since,
	).Scan(&sample, &cancelled)
	if err != nil {
		return 0, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to query recent cancellation rate", err)
	}
	if sample > 0 {
		rate = float64(cancelled) / float64(sample) * 100
	}
	return rate, sample, nil
}

// ListRange returns records with flight dates in [start, end), newest first.
// Used by the backup exporter.
func (r *HistoricalFlightRepo) ListRange(ctx context.Context, start, end time.Time) ([]types.HistoricalFlightRecord, error) {
	if !end.After(start) {
		return nil, types.NewAppError(types.ErrCodeValidationTimeRange, "end must be after start", nil)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+histColumns+`
		 FROM historical_flights h
		 WHERE h.flight_date >= $1 AND h.flight_date < $2
		 ORDER BY h.flight_date DESC`,
		start, end,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list historical flights", err)
	}
	defer rows.Close()

	var results []types.HistoricalFlightRecord
	for rows.Next() {
		rec, scanErr := scanHistoricalFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan historical flight row", scanErr)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating historical flight rows", err)
	}

	return results, nil
}

// GetByFlightDate retrieves one record by flight number and date. Returns
// ErrCodeNotFoundFlight when absent.
func (r *HistoricalFlightRepo) GetByFlightDate(ctx context.Context, number string, date time.Time) (*types.HistoricalFlightRecord, error) {
	rows := r.db.QueryRow(ctx,
		`SELECT h.id, h.flight_number, h.flight_date, h.is_cancelled,
		        h.home_weather, h.other_weather
		 FROM historical_flights h
		 WHERE h.flight_number = $1 AND h.flight_date = $2`,
		number, date,
	)

	var rec types.HistoricalFlightRecord
	var homeWx, otherWx *types.WeatherSnapshot
	err := rows.Scan(&rec.ID, &rec.FlightNumber, &rec.FlightDate, &rec.Cancelled, &homeWx, &otherWx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundFlight, "historical flight not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve historical flight", err)
	}
	rec.HomeWeather = homeWx
	rec.OtherWeather = otherWx
	return &rec, nil
}
