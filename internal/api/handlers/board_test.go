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

type stubClock struct {
	now time.Time
}

func (c stubClock) Now() time.Time { return c.now }

type stubBoardStore struct {
	flights    []types.ActiveFlight
	listErr    error
	getErr     error
	gotFrom    time.Time
	gotTo      time.Time
	gotFlights []string
}

func (s *stubBoardStore) ListWindow(_ context.Context, from, to time.Time) ([]types.ActiveFlight, error) {
	s.gotFrom, s.gotTo = from, to
	return s.flights, s.listErr
}

func (s *stubBoardStore) GetByID(_ context.Context, flightID string) (*types.ActiveFlight, error) {
	s.gotFlights = append(s.gotFlights, flightID)
	if s.getErr != nil {
		return nil, s.getErr
	}
	for i := range s.flights {
		if s.flights[i].ID == flightID {
			return &s.flights[i], nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundFlight, "flight not found", nil)
}

type stubAssessor struct {
	scores map[string]*types.RiskScore
	errs   map[string]error
}

func (s *stubAssessor) Assess(_ context.Context, f types.ActiveFlight) (*types.RiskScore, error) {
	if err := s.errs[f.ID]; err != nil {
		return nil, err
	}
	if score, ok := s.scores[f.ID]; ok {
		return score, nil
	}
	return &types.RiskScore{Score: 1, Tier: types.TierLow}, nil
}

func testRow(id, number, status, reg string, role types.LegRole, sched time.Time) types.ActiveFlight {
	origin, dest := "KSEA", "KPUW"
	if role == types.LegDeparture {
		origin, dest = "KPUW", "KSEA"
	}
	return types.ActiveFlight{
		ID:            id,
		Number:        number,
		Airline:       "Alaska",
		Origin:        origin,
		Destination:   dest,
		Role:          role,
		ScheduledTime: sched,
		Status:        status,
		AircraftReg:   reg,
	}
}

func newFlightRouter(h *FlightHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		h.RegisterRoutes(r)
	})
	return r
}

func TestFlightHandler_HandleBoard(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := &stubBoardStore{flights: []types.ActiveFlight{
		testRow("AS 2211_a", "AS 2211", "Expected", "N449QX", types.LegArrival, now.Add(time.Hour)),
		testRow("AS 2212_d", "AS 2212", "Expected", "N449QX", types.LegDeparture, now.Add(3*time.Hour)),
	}}
	assessor := &stubAssessor{scores: map[string]*types.RiskScore{
		"AS 2211_a": {Score: 72.5, Tier: types.TierHigh},
	}}

	h := NewFlightHandler(store, assessor, stubClock{now: now}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body boardResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Len(t, body.Flights, 2)
	require.NotNil(t, body.Flights[0].Risk)
	assert.InDelta(t, 72.5, body.Flights[0].Risk.Score, 1e-9)
	assert.Equal(t, types.TierHigh, body.Flights[0].Risk.Tier)
	assert.Equal(t, now, body.GeneratedAt)

	assert.Equal(t, now.Add(-defaultBoardLookback), store.gotFrom)
	assert.Equal(t, now.Add(defaultBoardLookahead), store.gotTo)
}

func TestFlightHandler_HandleBoard_ExplicitWindow(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := &stubBoardStore{}
	h := NewFlightHandler(store, &stubAssessor{}, stubClock{now: now}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights?from=2026-01-09T00:00:00Z&to=2026-01-09T12:00:00Z")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC), store.gotFrom)
	assert.Equal(t, time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC), store.gotTo)
}

func TestFlightHandler_HandleBoard_BadTimeParam(t *testing.T) {
	h := NewFlightHandler(&stubBoardStore{}, &stubAssessor{}, stubClock{now: time.Now()}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights?from=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(types.ErrCodeValidationTimeRange), body.Error.Code)
}

func TestFlightHandler_HandleBoard_AssessFailureOmitsRisk(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := &stubBoardStore{flights: []types.ActiveFlight{
		testRow("AS 2211_a", "AS 2211", "Expected", "", types.LegArrival, now.Add(time.Hour)),
	}}
	assessor := &stubAssessor{errs: map[string]error{"AS 2211_a": assert.AnError}}

	h := NewFlightHandler(store, assessor, stubClock{now: now}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "a broken assessor must not take the board down")

	var body boardResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Flights, 1)
	assert.Nil(t, body.Flights[0].Risk)
}

func TestFlightHandler_HandleGetFlight_NotFound(t *testing.T) {
	h := NewFlightHandler(&stubBoardStore{}, &stubAssessor{}, stubClock{now: time.Now()}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestFlightHandler_HandleFlightRisk(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	store := &stubBoardStore{flights: []types.ActiveFlight{
		testRow("AS 2211_a", "AS 2211", "Expected", "", types.LegArrival, now.Add(time.Hour)),
	}}
	assessor := &stubAssessor{scores: map[string]*types.RiskScore{
		"AS 2211_a": {Score: 38, Tier: types.TierLow},
	}}

	h := NewFlightHandler(store, assessor, stubClock{now: now}, nil)
	srv := httptest.NewServer(newFlightRouter(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/flights/AS 2211_a/risk")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Flight *types.ActiveFlight `json:"flight"`
		Risk   *types.RiskScore    `json:"risk"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotNil(t, body.Flight)
	assert.Equal(t, "AS 2211_a", body.Flight.ID)
	require.NotNil(t, body.Risk)
	assert.Equal(t, types.TierLow, body.Risk.Tier)
}

func TestMarkInboundCancellations(t *testing.T) {
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	board := []BoardFlight{
		{ActiveFlight: testRow("in1", "AS 2211", "Cancelled", "N449QX", types.LegArrival, base)},
		{ActiveFlight: testRow("out1", "AS 2212", "Expected", "N449QX", types.LegDeparture, base.Add(2*time.Hour))},
		{ActiveFlight: testRow("in2", "AS 2213", "Arrived", "N449QX", types.LegArrival, base.Add(4*time.Hour))},
		{ActiveFlight: testRow("out2", "AS 2214", "Expected", "N449QX", types.LegDeparture, base.Add(6*time.Hour))},
		{ActiveFlight: testRow("out3", "AS 2299", "Expected", "N123AB", types.LegDeparture, base.Add(2*time.Hour))},
		{ActiveFlight: testRow("out4", "AS 2300", "Cancelled", "", types.LegDeparture, base.Add(3*time.Hour))},
	}

	markInboundCancellations(board)

	assert.True(t, board[1].InboundCancelled, "departure after a cancelled inbound is flagged")
	assert.False(t, board[3].InboundCancelled, "a later clean arrival clears the registration")
	assert.False(t, board[4].InboundCancelled, "other registrations are unaffected")
	assert.False(t, board[5].InboundCancelled, "already-cancelled departures are not double flagged")
}

func TestMarkInboundCancellations_CancelledDepartureNotFlagged(t *testing.T) {
	base := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	board := []BoardFlight{
		{ActiveFlight: testRow("in1", "AS 2211", "Cancelled", "N449QX", types.LegArrival, base)},
		{ActiveFlight: testRow("out1", "AS 2212", "Cancelled", "N449QX", types.LegDeparture, base.Add(time.Hour))},
	}
	markInboundCancellations(board)
	assert.False(t, board[1].InboundCancelled)
}
