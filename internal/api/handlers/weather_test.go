package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

type stubConditions struct {
	snaps       map[string]*types.WeatherSnapshot
	gotAirports []string
	gotAt       time.Time
}

func (s *stubConditions) SnapshotAll(_ context.Context, airports []string, at time.Time) map[string]*types.WeatherSnapshot {
	s.gotAirports = airports
	s.gotAt = at
	return s.snaps
}

func newWeatherRouter(h *WeatherHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func TestWeatherHandler_HandleCurrent(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	source := &stubConditions{snaps: map[string]*types.WeatherSnapshot{
		"KPUW": {Airport: "KPUW", VisibilityMiles: types.Float64(2.5)},
		"KSEA": nil,
	}}

	h := NewWeatherHandler(source, []string{"KPUW", "KSEA"}, stubClock{now: now}, nil)
	srv := httptest.NewServer(newWeatherRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/weather")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body weatherResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Contains(t, body.Airports, "KPUW")
	require.NotNil(t, body.Airports["KPUW"])
	require.NotNil(t, body.Airports["KPUW"].VisibilityMiles)
	assert.InDelta(t, 2.5, *body.Airports["KPUW"].VisibilityMiles, 1e-9)
	assert.Nil(t, body.Airports["KSEA"], "an airport with no data is present but null")
	assert.Equal(t, now, body.GeneratedAt)

	assert.Equal(t, []string{"KPUW", "KSEA"}, source.gotAirports)
	assert.Equal(t, now, source.gotAt)
}

func TestWeatherHandler_HandleCurrent_ExplicitTime(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	source := &stubConditions{}

	h := NewWeatherHandler(source, []string{"KPUW"}, stubClock{now: now}, nil)
	srv := httptest.NewServer(newWeatherRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/weather?at=2026-01-11T06:00:00Z")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, time.Date(2026, 1, 11, 6, 0, 0, 0, time.UTC), source.gotAt)
}

func TestWeatherHandler_HandleCurrent_BadTime(t *testing.T) {
	h := NewWeatherHandler(&stubConditions{}, []string{"KPUW"}, nil, nil)
	srv := httptest.NewServer(newWeatherRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/weather?at=tomorrow")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
