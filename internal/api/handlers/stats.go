package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"flightrisk/internal/core"
	"flightrisk/internal/history"
	"flightrisk/internal/types"
)

// Recent-rate window bounds, in days.
const (
	defaultRecentDays = 30
	maxRecentDays     = 3650
)

// maxPredictionRows caps one prediction log page.
const maxPredictionRows = 1000

// historyStats is the read-side of the historical flight repository used by
// the stats endpoints.
type historyStats interface {
	MonthlyStats(ctx context.Context) ([]history.MonthlyStat, error)
	CoverageRange(ctx context.Context) (history.Coverage, error)
	RecentRate(ctx context.Context, since time.Time) (rate float64, sample int, err error)
}

// predictionLog reads the recorded assessments.
type predictionLog interface {
	ListRange(ctx context.Context, start, end time.Time, limit int) ([]types.PredictionRecord, error)
}

// StatsHandler serves the history statistics and prediction log endpoints.
type StatsHandler struct {
	stats       historyStats
	predictions predictionLog
	clock       types.Clock
	logger      *slog.Logger
}

// NewStatsHandler creates a StatsHandler with the provided dependencies.
func NewStatsHandler(stats historyStats, predictions predictionLog, clock types.Clock, logger *slog.Logger) *StatsHandler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{stats: stats, predictions: predictions, clock: clock, logger: logger}
}

// RegisterRoutes mounts the stats endpoints onto the /v1 group.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/stats", func(r chi.Router) {
		r.Get("/monthly", h.HandleMonthly)
		r.Get("/coverage", h.HandleCoverage)
		r.Get("/recent-rate", h.HandleRecentRate)
		r.Get("/predictions", h.HandlePredictions)
	})
}

// HandleMonthly handles GET /v1/stats/monthly: per-calendar-month totals and
// cancellation rates across all recorded years.
func (h *StatsHandler) HandleMonthly(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.MonthlyStats(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, struct {
		Months []history.MonthlyStat `json:"months"`
	}{Months: stats})
}

// HandleCoverage handles GET /v1/stats/coverage: the span of the historical
// record collection.
func (h *StatsHandler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	coverage, err := h.stats.CoverageRange(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, coverage)
}

type recentRateResponse struct {
	Days      int       `json:"days"`
	Since     time.Time `json:"since"`
	Rate      float64   `json:"rate"`
	Sample    int       `json:"sample"`
	Generated time.Time `json:"generated_at"`
}

// HandleRecentRate handles GET /v1/stats/recent-rate?days=N.
func (h *StatsHandler) HandleRecentRate(w http.ResponseWriter, r *http.Request) {
	days := defaultRecentDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxRecentDays {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationTimeRange,
				"days must be an integer between 1 and 3650", err))
			return
		}
		days = parsed
	}

	now := h.clock.Now()
	since := now.AddDate(0, 0, -days)

	rate, sample, err := h.stats.RecentRate(r.Context(), since)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, recentRateResponse{
		Days:      days,
		Since:     since,
		Rate:      rate,
		Sample:    sample,
		Generated: now,
	})
}

// HandlePredictions handles GET /v1/stats/predictions with optional from/to
// (RFC 3339) and limit query parameters.
func (h *StatsHandler) HandlePredictions(w http.ResponseWriter, r *http.Request) {
	now := h.clock.Now()
	from, to := now.AddDate(0, 0, -7), now

	var err error
	if from, err = timeParam(r, "from", from); err != nil {
		core.Error(w, r, err)
		return
	}
	if to, err = timeParam(r, "to", to); err != nil {
		core.Error(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, parseErr := strconv.Atoi(raw)
		if parseErr != nil || parsed < 1 || parsed > maxPredictionRows {
			core.Error(w, r, types.NewAppError(types.ErrCodeValidationBatchSize,
				"limit must be an integer between 1 and 1000", parseErr))
			return
		}
		limit = parsed
	}

	records, err := h.predictions.ListRange(r.Context(), from, to, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, struct {
		Predictions []types.PredictionRecord `json:"predictions"`
	}{Predictions: records})
}
