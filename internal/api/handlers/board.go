// Package handlers contains the HTTP handler implementations for the flight
// risk API: the live board with per-flight risk, single-flight assessment,
// current weather, and history statistics.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"flightrisk/internal/core"
	"flightrisk/internal/types"
)

// Default board window around now.
const (
	defaultBoardLookback  = 6 * time.Hour
	defaultBoardLookahead = 24 * time.Hour
)

// boardStore is the slice of the active flight repository the board handler
// needs. Defined locally per the handler injection pattern.
type boardStore interface {
	ListWindow(ctx context.Context, from, to time.Time) ([]types.ActiveFlight, error)
	GetByID(ctx context.Context, flightID string) (*types.ActiveFlight, error)
}

// riskAssessor scores one flight against current weather and history.
type riskAssessor interface {
	Assess(ctx context.Context, f types.ActiveFlight) (*types.RiskScore, error)
}

// FlightHandler serves the flight board and per-flight risk endpoints.
type FlightHandler struct {
	store    boardStore
	assessor riskAssessor
	clock    types.Clock
	logger   *slog.Logger
}

// NewFlightHandler creates a FlightHandler with the provided dependencies.
func NewFlightHandler(store boardStore, assessor riskAssessor, clock types.Clock, logger *slog.Logger) *FlightHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FlightHandler{store: store, assessor: assessor, clock: clock, logger: logger}
}

// RegisterRoutes mounts the flight endpoints onto the /v1 group.
func (h *FlightHandler) RegisterRoutes(r chi.Router) {
	r.Route("/flights", func(r chi.Router) {
		r.Get("/", h.HandleBoard)
		r.Get("/{flightID}", h.HandleGetFlight)
		r.Get("/{flightID}/risk", h.HandleFlightRisk)
	})
}

// BoardFlight is one board row: the flight plus its current risk assessment.
// Risk is omitted when assessment failed; the board stays usable through
// partial outages.
type BoardFlight struct {
	types.ActiveFlight
	Risk *types.RiskScore `json:"risk,omitempty"`
	// InboundCancelled marks departures whose aircraft's inbound leg was
	// cancelled. The airframe isn't here, whatever the schedule claims.
	InboundCancelled bool `json:"inbound_cancelled,omitempty"`
}

type boardResponse struct {
	Flights     []BoardFlight `json:"flights"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// HandleBoard handles GET /v1/flights. Optional from/to query parameters
// (RFC 3339) override the default window around now.
func (h *FlightHandler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	from, to := now.Add(-defaultBoardLookback), now.Add(defaultBoardLookahead)

	var err error
	if from, err = timeParam(r, "from", from); err != nil {
		core.Error(w, r, err)
		return
	}
	if to, err = timeParam(r, "to", to); err != nil {
		core.Error(w, r, err)
		return
	}

	flights, err := h.store.ListWindow(r.Context(), from, to)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	board := make([]BoardFlight, 0, len(flights))
	for _, f := range flights {
		row := BoardFlight{ActiveFlight: f}

		score, assessErr := h.assessor.Assess(r.Context(), f)
		if assessErr != nil {
			h.logger.WarnContext(r.Context(), "board row assessment failed",
				"flight_id", f.ID, "error", assessErr)
		} else {
			row.Risk = score
		}
		board = append(board, row)
	}
	markInboundCancellations(board)

	core.JSON(w, r, http.StatusOK, boardResponse{Flights: board, GeneratedAt: now})
}

// HandleGetFlight handles GET /v1/flights/{flightID}.
func (h *FlightHandler) HandleGetFlight(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetByID(r.Context(), chi.URLParam(r, "flightID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, f)
}

// HandleFlightRisk handles GET /v1/flights/{flightID}/risk. Runs a fresh
// assessment rather than serving the prediction log; the caller wants the
// current answer.
func (h *FlightHandler) HandleFlightRisk(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetByID(r.Context(), chi.URLParam(r, "flightID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	score, err := h.assessor.Assess(r.Context(), *f)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, struct {
		Flight *types.ActiveFlight `json:"flight"`
		Risk   *types.RiskScore    `json:"risk"`
	}{Flight: f, Risk: score})
}

// markInboundCancellations flags departures whose aircraft registration last
// arrived cancelled. Rows are in scheduled-time order; the most recent
// arrival before each departure wins.
func markInboundCancellations(board []BoardFlight) {
	lastArrivalCancelled := make(map[string]bool)
	for i := range board {
		f := &board[i]
		if f.AircraftReg == "" {
			continue
		}
		switch f.Role {
		case types.LegArrival:
			lastArrivalCancelled[f.AircraftReg] = f.IsCancelled()
		case types.LegDeparture:
			if lastArrivalCancelled[f.AircraftReg] && !f.IsCancelled() {
				f.InboundCancelled = true
			}
		}
	}
}

// timeParam parses an optional RFC 3339 query parameter, returning the
// fallback when absent.
func timeParam(r *http.Request, name string, fallback time.Time) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationTimeRange,
			name+" must be RFC 3339", err)
	}
	return ts.UTC(), nil
}
