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

// conditionsSource fans a snapshot query out across airports. Airports with
// no data come back nil.
type conditionsSource interface {
	SnapshotAll(ctx context.Context, airports []string, at time.Time) map[string]*types.WeatherSnapshot
}

// WeatherHandler serves current conditions for the home airport and the
// configured route airports.
type WeatherHandler struct {
	source   conditionsSource
	airports []string
	clock    types.Clock
	logger   *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler. airports is the home airport
// plus the tracked remotes, in display order.
func NewWeatherHandler(source conditionsSource, airports []string, clock types.Clock, logger *slog.Logger) *WeatherHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{source: source, airports: airports, clock: clock, logger: logger}
}

// RegisterRoutes mounts the weather endpoint onto the /v1 group.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Get("/weather", h.HandleCurrent)
}

type weatherResponse struct {
	Airports    map[string]*types.WeatherSnapshot `json:"airports"`
	GeneratedAt time.Time                         `json:"generated_at"`
}

// HandleCurrent handles GET /v1/weather. An optional at query parameter
// (RFC 3339) asks for conditions at another time, e.g. a forecast hour.
func (h *WeatherHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()

	at, err := timeParam(r, "at", now)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snapshots := h.source.SnapshotAll(r.Context(), h.airports, at)
	core.JSON(w, r, http.StatusOK, weatherResponse{Airports: snapshots, GeneratedAt: now})
}
