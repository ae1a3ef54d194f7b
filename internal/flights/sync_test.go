package flights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

type stubClock struct{ at time.Time }

func (c stubClock) Now() time.Time { return c.at }

type stubSchedule struct {
	flights []types.ActiveFlight
	err     error
}

func (s stubSchedule) Flights(context.Context, time.Time, time.Time) ([]types.ActiveFlight, error) {
	return s.flights, s.err
}

type stubWeather struct {
	snaps map[string]*types.WeatherSnapshot
	err   error
}

func (s stubWeather) Snapshot(_ context.Context, airport string, at time.Time) (*types.WeatherSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	if snap, ok := s.snaps[airport]; ok {
		return snap, nil
	}
	return &types.WeatherSnapshot{Airport: airport, Timestamp: at}, nil
}

type stubBoard struct {
	upserted  []types.ActiveFlight
	upsertErr error
	finished  []types.ActiveFlight
	listErr   error
	deleted   []string
	deleteErr error
}

func (b *stubBoard) UpsertBatch(_ context.Context, flights []types.ActiveFlight) (int64, error) {
	if b.upsertErr != nil {
		return 0, b.upsertErr
	}
	b.upserted = append(b.upserted, flights...)
	return int64(len(flights)), nil
}

func (b *stubBoard) ListFinishedBefore(context.Context, time.Time) ([]types.ActiveFlight, error) {
	return b.finished, b.listErr
}

func (b *stubBoard) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	if b.deleteErr != nil {
		return 0, b.deleteErr
	}
	b.deleted = append(b.deleted, ids...)
	return int64(len(ids)), nil
}

type stubRecords struct {
	inserted  []*types.HistoricalFlightRecord
	insertErr error
}

func (r *stubRecords) Insert(_ context.Context, rec *types.HistoricalFlightRecord) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.inserted = append(r.inserted, rec)
	return nil
}

type stubStatus struct {
	statuses map[string]string
	err      error
	calls    int
}

func (s *stubStatus) Status(_ context.Context, number string, _ time.Time) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.statuses[number], nil
}

func boardFlight(id, number, status string, sched time.Time, role types.LegRole) types.ActiveFlight {
	origin, destination := "KSEA", "KPUW"
	if role == types.LegDeparture {
		origin, destination = "KPUW", "KSEA"
	}
	return types.ActiveFlight{
		ID:            id,
		Number:        number,
		Origin:        origin,
		Destination:   destination,
		Role:          role,
		ScheduledTime: sched,
		Status:        status,
	}
}

func TestSyncer_SyncBoard(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	sched := stubSchedule{flights: []types.ActiveFlight{
		boardFlight("AS 2211_x", "AS 2211", "Expected", now.Add(time.Hour), types.LegArrival),
	}}
	board := &stubBoard{}

	s := NewSyncer(sched, stubWeather{}, board, &stubRecords{}, nil, "KPUW", stubClock{at: now}, nil)

	written, err := s.SyncBoard(context.Background(), now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, written)
	require.Len(t, board.upserted, 1)
	assert.Equal(t, "AS 2211", board.upserted[0].Number)
}

func TestSyncer_SyncBoard_ProviderError(t *testing.T) {
	s := NewSyncer(stubSchedule{err: errors.New("down")}, stubWeather{}, &stubBoard{},
		&stubRecords{}, nil, "KPUW", nil, nil)

	_, err := s.SyncBoard(context.Background(), time.Now(), time.Now().Add(time.Hour))
	require.Error(t, err)
}

func TestSyncer_CompleteFinished_RecordsWeatherBothEnds(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	sched := now.Add(-5 * time.Hour)

	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Landed", sched, types.LegArrival),
		boardFlight("AS 2212_b", "AS 2212", "Cancelled", sched, types.LegDeparture),
	}}
	records := &stubRecords{}
	weather := stubWeather{snaps: map[string]*types.WeatherSnapshot{
		"KPUW": {Airport: "KPUW", VisibilityMiles: types.Float64(2)},
		"KSEA": {Airport: "KSEA", VisibilityMiles: types.Float64(9)},
	}}

	s := NewSyncer(stubSchedule{}, weather, board, records, nil, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, records.inserted, 2)
	landed := records.inserted[0]
	assert.Equal(t, "AS 2211_a", landed.ID)
	assert.False(t, landed.Cancelled)
	require.NotNil(t, landed.HomeWeather)
	assert.Equal(t, "KPUW", landed.HomeWeather.Airport)
	require.NotNil(t, landed.OtherWeather)
	assert.Equal(t, "KSEA", landed.OtherWeather.Airport)

	cancelled := records.inserted[1]
	assert.True(t, cancelled.Cancelled)

	assert.Equal(t, []string{"AS 2211_a", "AS 2212_b"}, board.deleted)
}

func TestSyncer_CompleteFinished_BackupResolvesUnknown(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	sched := now.Add(-5 * time.Hour)

	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Unknown", sched, types.LegArrival),
	}}
	records := &stubRecords{}
	backup := &stubStatus{statuses: map[string]string{"AS 2211": "cancelled"}}

	s := NewSyncer(stubSchedule{}, stubWeather{}, board, records, backup, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, backup.calls)
	require.Len(t, records.inserted, 1)
	assert.True(t, records.inserted[0].Cancelled)
}

func TestSyncer_CompleteFinished_UnresolvedStaysOnBoard(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	sched := now.Add(-5 * time.Hour)

	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Unknown", sched, types.LegArrival),
	}}
	records := &stubRecords{}
	// Backup has no record either.
	backup := &stubStatus{statuses: map[string]string{}}

	s := NewSyncer(stubSchedule{}, stubWeather{}, board, records, backup, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, records.inserted)
	assert.Empty(t, board.deleted)
}

func TestSyncer_CompleteFinished_NoBackupConfigured(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Expected", now.Add(-5*time.Hour), types.LegArrival),
	}}

	s := NewSyncer(stubSchedule{}, stubWeather{}, board, &stubRecords{}, nil, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSyncer_CompleteFinished_WeatherOutageDegrades(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Landed", now.Add(-5*time.Hour), types.LegArrival),
	}}
	records := &stubRecords{}

	s := NewSyncer(stubSchedule{}, stubWeather{err: errors.New("all providers down")},
		board, records, nil, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err, "weather outage must not block completion")
	assert.Equal(t, 1, n)
	require.Len(t, records.inserted, 1)
	assert.Nil(t, records.inserted[0].HomeWeather)
	assert.Nil(t, records.inserted[0].OtherWeather)
}

func TestSyncer_CompleteFinished_InsertFailureKeepsFlight(t *testing.T) {
	now := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	board := &stubBoard{finished: []types.ActiveFlight{
		boardFlight("AS 2211_a", "AS 2211", "Landed", now.Add(-5*time.Hour), types.LegArrival),
	}}
	records := &stubRecords{insertErr: errors.New("db down")}

	s := NewSyncer(stubSchedule{}, stubWeather{}, board, records, nil, "KPUW", stubClock{at: now}, nil)

	n, err := s.CompleteFinished(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, board.deleted, "not deleted until recorded")
}

func TestCancelledStatus(t *testing.T) {
	assert.True(t, cancelledStatus("cancelled"))
	assert.True(t, cancelledStatus("Canceled"))
	assert.False(t, cancelledStatus("Landed"))
	assert.False(t, cancelledStatus(""))
}
