package flights

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"flightrisk/internal/types"
)

// completionGrace is how long after its scheduled time a flight must be
// before the poller tries to complete it into history. Late departures inside
// the grace window stay on the board.
const completionGrace = 2 * time.Hour

// board is the slice of the active flight repository the syncer needs.
type board interface {
	UpsertBatch(ctx context.Context, flights []types.ActiveFlight) (int64, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]types.ActiveFlight, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// recordWriter appends completed flights to the historical collection.
type recordWriter interface {
	Insert(ctx context.Context, rec *types.HistoricalFlightRecord) error
}

// statusSource resolves final statuses the primary provider never delivered.
type statusSource interface {
	Status(ctx context.Context, flightNumber string, date time.Time) (string, error)
}

// Syncer keeps the active board current and retires finished flights into the
// historical record collection, attaching the weather observed at both ends.
type Syncer struct {
	schedule types.ScheduleSource
	weather  types.WeatherSource
	board    board
	records  recordWriter
	backup   statusSource
	home     string
	clock    types.Clock
	logger   *slog.Logger
}

// NewSyncer wires a sync service. backup may be nil when no fallback status
// provider is configured; flights the primary never resolves then stay on the
// board.
func NewSyncer(schedule types.ScheduleSource, weather types.WeatherSource, board board,
	records recordWriter, backup statusSource, home string, clock types.Clock, logger *slog.Logger) *Syncer {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		schedule: schedule,
		weather:  weather,
		board:    board,
		records:  records,
		backup:   backup,
		home:     home,
		clock:    clock,
		logger:   logger,
	}
}

// SyncBoard refreshes the board from the schedule provider for [from, to).
// Returns how many rows were written.
func (s *Syncer) SyncBoard(ctx context.Context, from, to time.Time) (int64, error) {
	flights, err := s.schedule.Flights(ctx, from, to)
	if err != nil {
		return 0, err
	}

	written, err := s.board.UpsertBatch(ctx, flights)
	if err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "synced flight board",
		"from", from, "to", to, "fetched", len(flights), "written", written)
	return written, nil
}

// CompleteFinished moves flights past the completion grace window off the
// board and into history with a weather snapshot for each end of the leg.
// Flights whose outcome cannot be determined stay on the board for the next
// cycle. Returns how many flights were completed.
func (s *Syncer) CompleteFinished(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-completionGrace)
	finished, err := s.board.ListFinishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(finished) == 0 {
		return 0, nil
	}

	var completed []string
	for _, f := range finished {
		status, ok := s.resolveStatus(ctx, f)
		if !ok {
			continue
		}

		rec := &types.HistoricalFlightRecord{
			ID:           f.ID,
			FlightNumber: f.Number,
			FlightDate:   f.ScheduledTime,
			Cancelled:    cancelledStatus(status),
		}
		rec.HomeWeather = s.snapshotOrNil(ctx, s.home, f.ScheduledTime)
		if remote, ok := f.Descriptor().RemoteAirport(s.home); ok {
			rec.OtherWeather = s.snapshotOrNil(ctx, remote, f.ScheduledTime)
		}

		if err := s.records.Insert(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "failed to record completed flight",
				"flight_id", f.ID, "error", err)
			continue
		}
		completed = append(completed, f.ID)
	}

	if len(completed) > 0 {
		if _, err := s.board.DeleteByIDs(ctx, completed); err != nil {
			return 0, err
		}
	}

	s.logger.InfoContext(ctx, "completed finished flights",
		"eligible", len(finished), "completed", len(completed))
	return len(completed), nil
}

// resolveStatus returns the flight's final status, consulting the backup
// provider when the primary left it indeterminate. The second return is false
// when no outcome could be established.
func (s *Syncer) resolveStatus(ctx context.Context, f types.ActiveFlight) (string, bool) {
	if !indeterminate(f.Status) {
		return f.Status, true
	}
	if s.backup == nil {
		s.logger.WarnContext(ctx, "flight outcome unknown and no backup provider configured",
			"flight_id", f.ID, "status", f.Status)
		return "", false
	}

	status, err := s.backup.Status(ctx, f.Number, f.ScheduledTime)
	if err != nil {
		s.logger.WarnContext(ctx, "backup status lookup failed",
			"flight_id", f.ID, "error", err)
		return "", false
	}
	if indeterminate(status) {
		s.logger.WarnContext(ctx, "flight outcome still unknown after backup lookup",
			"flight_id", f.ID)
		return "", false
	}
	return status, true
}

// snapshotOrNil fetches weather for one end of the leg; a provider failure
// degrades to a record without that end's weather.
func (s *Syncer) snapshotOrNil(ctx context.Context, airport string, at time.Time) *types.WeatherSnapshot {
	snap, err := s.weather.Snapshot(ctx, airport, at)
	if err != nil {
		s.logger.WarnContext(ctx, "no weather available for completed flight",
			"airport", airport, "at", at, "error", err)
		return nil
	}
	return snap
}

func cancelledStatus(status string) bool {
	switch strings.ToLower(status) {
	case "cancelled", "canceled":
		return true
	}
	return false
}
