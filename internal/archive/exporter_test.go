package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/history"
	"flightrisk/internal/types"
)

type stubHistory struct {
	records  []types.HistoricalFlightRecord
	coverage history.Coverage
	err      error
	gotStart time.Time
	gotEnd   time.Time
}

func (s *stubHistory) ListRange(_ context.Context, start, end time.Time) ([]types.HistoricalFlightRecord, error) {
	s.gotStart, s.gotEnd = start, end
	return s.records, s.err
}

func (s *stubHistory) CoverageRange(context.Context) (history.Coverage, error) {
	return s.coverage, s.err
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testRecords() []types.HistoricalFlightRecord {
	return []types.HistoricalFlightRecord{
		{
			ID:           "AS 2211_2026-01-05",
			FlightNumber: "AS 2211",
			FlightDate:   time.Date(2026, 1, 5, 17, 55, 0, 0, time.UTC),
			Cancelled:    true,
			HomeWeather: &types.WeatherSnapshot{
				Airport:         "KPUW",
				VisibilityMiles: types.Float64(0.25),
			},
		},
		{
			ID:           "AS 2212_2026-01-06",
			FlightNumber: "AS 2212",
			FlightDate:   time.Date(2026, 1, 6, 6, 30, 0, 0, time.UTC),
		},
	}
}

func TestExporter_Export_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	repo := &stubHistory{
		records: testRecords(),
		coverage: history.Coverage{
			Earliest: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Latest:   time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
			Total:    2,
		},
	}

	e := NewExporter(repo, dir, 24*time.Hour, fixedClock{now: now}, nil)

	path, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "history_20260110T120000Z.json.gz"), path)

	assert.Equal(t, repo.coverage.Earliest, repo.gotStart)
	assert.Equal(t, repo.coverage.Latest.Add(24*time.Hour), repo.gotEnd)

	records, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "AS 2211_2026-01-05", records[0].ID)
	assert.True(t, records[0].Cancelled)
	require.NotNil(t, records[0].HomeWeather)
	require.NotNil(t, records[0].HomeWeather.VisibilityMiles)
	assert.InDelta(t, 0.25, *records[0].HomeWeather.VisibilityMiles, 1e-9)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no tmp file left behind")
}

func TestExporter_Export_EmptyCollection(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(&stubHistory{}, dir, 24*time.Hour,
		fixedClock{now: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)}, nil)

	path, err := e.Export(context.Background())
	require.NoError(t, err)

	records, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExporter_Export_RepoError(t *testing.T) {
	e := NewExporter(&stubHistory{err: assert.AnError}, t.TempDir(), 24*time.Hour, nil, nil)
	_, err := e.Export(context.Background())
	assert.Error(t, err)
}

func TestExporter_Prune(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	for _, name := range []string{
		"history_20250110T120000Z.json.gz",
		"history_20260109T120000Z.json.gz",
		"history_20260110T060000Z.json.gz",
		"notes.txt",
		"history_garbage.json.gz",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	e := NewExporter(&stubHistory{}, dir, 48*time.Hour, fixedClock{now: now}, nil)

	removed, err := e.Prune(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed, "only the year-old archive is expired")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.NotContains(t, names, "history_20250110T120000Z.json.gz")
	assert.Contains(t, names, "history_20260109T120000Z.json.gz")
	assert.Contains(t, names, "notes.txt", "non-archive files are untouched")
	assert.Contains(t, names, "history_garbage.json.gz", "unparseable stamps are untouched")
}

func TestExporter_Prune_MissingDirIsNoop(t *testing.T) {
	e := NewExporter(&stubHistory{}, filepath.Join(t.TempDir(), "nope"), time.Hour, nil, nil)
	removed, err := e.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReadSnapshot_NotGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history_20260110T120000Z.json.gz")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err := ReadSnapshot(path)
	assert.Error(t, err)
}

func TestParseStamp(t *testing.T) {
	ts, ok := parseStamp("history_20260110T120000Z.json.gz")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC), ts)

	for _, name := range []string{"history_.json.gz", "backup.json.gz", "history_20260110T120000Z.json"} {
		_, ok := parseStamp(name)
		assert.False(t, ok, name)
	}
}
