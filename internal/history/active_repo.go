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

// ActiveFlightRepo provides data access for the active_flights table, the
// cached flight board refreshed by the poller.
type ActiveFlightRepo struct {
	db db.DBTX
}

// NewActiveFlightRepo creates a repository backed by the given database
// connection (pool or transaction).
func NewActiveFlightRepo(db db.DBTX) *ActiveFlightRepo {
	return &ActiveFlightRepo{db: db}
}

const activeColumns = `f.flight_id, f.number, f.airline, f.origin, f.destination,
	f.role, f.scheduled_time, f.actual_time, f.revised_time, f.status,
	f.aircraft_reg, f.aircraft_model, f.last_updated`

func scanActiveFromRows(rows pgx.Rows) (types.ActiveFlight, error) {
	var f types.ActiveFlight
	var airline, aircraftReg, aircraftModel *string

	err := rows.Scan(
		&f.ID,
		&f.Number,
		&airline,
		&f.Origin,
		&f.Destination,
		&f.Role,
		&f.ScheduledTime,
		&f.ActualTime,
		&f.RevisedTime,
		&f.Status,
		&aircraftReg,
		&aircraftModel,
		&f.LastUpdated,
	)
	if err != nil {
		return f, err
	}

	if airline != nil {
		f.Airline = *airline
	}
	if aircraftReg != nil {
		f.AircraftReg = *aircraftReg
	}
	if aircraftModel != nil {
		f.AircraftModel = *aircraftModel
	}
	return f, nil
}

// UpsertBatch writes a batch of flights from the schedule provider in one
// statement, keyed on the provider's flight id. Returns the number of rows
// written.
func (r *ActiveFlightRepo) UpsertBatch(ctx context.Context, flights []types.ActiveFlight) (int64, error) {
	if len(flights) == 0 {
		return 0, nil
	}

	const colCount = 12
	var sb strings.Builder
	sb.WriteString(`INSERT INTO active_flights (
		flight_id, number, airline, origin, destination,
		role, scheduled_time, actual_time, revised_time, status,
		aircraft_reg, aircraft_model, last_updated
	) VALUES `)

	args := make([]any, 0, len(flights)*colCount)
	for i, f := range flights {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * colCount
		sb.WriteString("(")
		for j := 0; j < colCount; j++ {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", base+j+1))
		}
		sb.WriteString(", NOW())")

		args = append(args,
			f.ID,
			f.Number,
			nilIfEmpty(f.Airline),
			f.Origin,
			f.Destination,
			f.Role,
			f.ScheduledTime,
			f.ActualTime,
			f.RevisedTime,
			f.Status,
			nilIfEmpty(f.AircraftReg),
			nilIfEmpty(f.AircraftModel),
		)
	}

	sb.WriteString(` ON CONFLICT (flight_id) DO UPDATE SET
		actual_time = EXCLUDED.actual_time,
		revised_time = EXCLUDED.revised_time,
		status = EXCLUDED.status,
		aircraft_reg = EXCLUDED.aircraft_reg,
		aircraft_model = EXCLUDED.aircraft_model,
		last_updated = NOW()`)

	tag, err := r.db.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to upsert active flights", err)
	}
	return tag.RowsAffected(), nil
}

// ListForDay returns the board for one UTC day ordered by scheduled time.
func (r *ActiveFlightRepo) ListForDay(ctx context.Context, day time.Time) ([]types.ActiveFlight, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)
	return r.listWindow(ctx, start, end)
}

// ListWindow returns flights scheduled within [from, to) ordered by scheduled
// time.
func (r *ActiveFlightRepo) ListWindow(ctx context.Context, from, to time.Time) ([]types.ActiveFlight, error) {
	if !to.After(from) {
		return nil, types.NewAppError(types.ErrCodeValidationTimeRange, "to must be after from", nil)
	}
	return r.listWindow(ctx, from, to)
}

func (r *ActiveFlightRepo) listWindow(ctx context.Context, from, to time.Time) ([]types.ActiveFlight, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+activeColumns+`
		 FROM active_flights f
		 WHERE f.scheduled_time >= $1 AND f.scheduled_time < $2
		 ORDER BY f.scheduled_time`,
		from, to,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list active flights", err)
	}
	defer rows.Close()

	var results []types.ActiveFlight
	for rows.Next() {
		f, scanErr := scanActiveFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan active flight row", scanErr)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating active flight rows", err)
	}

	return results, nil
}

// GetByID retrieves one flight by provider id. Returns ErrCodeNotFoundFlight
// when absent.
func (r *ActiveFlightRepo) GetByID(ctx context.Context, flightID string) (*types.ActiveFlight, error) {
	row := r.db.QueryRow(ctx,
		`SELECT f.flight_id, f.number, f.airline, f.origin, f.destination,
		        f.role, f.scheduled_time, f.actual_time, f.revised_time, f.status,
		        f.aircraft_reg, f.aircraft_model, f.last_updated
		 FROM active_flights f
		 WHERE f.flight_id = $1`,
		flightID,
	)

	var f types.ActiveFlight
	var airline, aircraftReg, aircraftModel *string
	err := row.Scan(
		&f.ID, &f.Number, &airline, &f.Origin, &f.Destination,
		&f.Role, &f.ScheduledTime, &f.ActualTime, &f.RevisedTime, &f.Status,
		&aircraftReg, &aircraftModel, &f.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundFlight, "flight not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve active flight", err)
	}

	if airline != nil {
		f.Airline = *airline
	}
	if aircraftReg != nil {
		f.AircraftReg = *aircraftReg
	}
	if aircraftModel != nil {
		f.AircraftModel = *aircraftModel
	}
	return &f, nil
}

// ListByIDs performs a vectorized fetch of flights by provider id. Missing
// ids are simply absent from the result, not an error.
func (r *ActiveFlightRepo) ListByIDs(ctx context.Context, ids []string) ([]types.ActiveFlight, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+activeColumns+`
		 FROM active_flights f
		 WHERE f.flight_id = ANY($1)
		 ORDER BY f.scheduled_time`,
		ids,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to batch get active flights", err)
	}
	defer rows.Close()

	var results []types.ActiveFlight
	for rows.Next() {
		f, scanErr := scanActiveFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan active flight row", scanErr)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating active flight rows", err)
	}

	return results, nil
}

// ListFinishedBefore returns flights whose scheduled time passed the cutoff
// and whose status marks them terminal (landed, departed, or cancelled).
// These are the rows the poller completes into history.
func (r *ActiveFlightRepo) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]types.ActiveFlight, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+activeColumns+`
		 FROM active_flights f
		 WHERE f.scheduled_time < $1
		 ORDER BY f.scheduled_time`,
		cutoff,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list finished flights", err)
	}
	defer rows.Close()

	var results []types.ActiveFlight
	for rows.Next() {
		f, scanErr := scanActiveFromRows(rows)
		if scanErr != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan active flight row", scanErr)
		}
		results = append(results, f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating finished flight rows", err)
	}

	return results, nil
}

// DeleteByIDs removes flights from the board after they have been completed
// into history. Returns the number of rows removed.
func (r *ActiveFlightRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM active_flights WHERE flight_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete completed flights", err)
	}
	return tag.RowsAffected(), nil
}

// nilIfEmpty maps "" to nil for nullable text columns.
func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
