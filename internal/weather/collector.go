package weather

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"flightrisk/internal/types"
)

// MaxObservationAge is how old a METAR observation may be before the
// collector falls back to the forecast model.
const MaxObservationAge = 90 * time.Minute

// fanOutLimit bounds concurrent provider fetches. Assessments touch at most a
// handful of airports (home plus the remote ends), so this stays small.
const fanOutLimit = 4

// Collector blends METAR observations with Open-Meteo forecasts and
// implements types.WeatherSource. METAR wins for near-now queries while the
// observation is fresh; everything else comes from the hourly forecast
// series.
type Collector struct {
	metar  *METARClient
	meteo  *OpenMeteoClient
	clock  types.Clock
	logger *slog.Logger
}

// NewCollector creates a Collector. clock and logger may be nil.
func NewCollector(metar *METARClient, meteo *OpenMeteoClient, clock types.Clock, logger *slog.Logger) *Collector {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{metar: metar, meteo: meteo, clock: clock, logger: logger}
}

// Snapshot returns the weather for one airport at the given time. A provider
// outage degrades to whatever the other provider has; only when both fail is
// an error returned.
func (c *Collector) Snapshot(ctx context.Context, airport string, at time.Time) (*types.WeatherSnapshot, error) {
	now := c.clock.Now()

	// Live observation first, for queries about roughly-now.
	if absDuration(now.Sub(at)) <= MaxObservationAge {
		obs, err := c.metar.Observations(ctx, []string{airport})
		if err != nil {
			c.logger.WarnContext(ctx, "METAR unavailable, falling back to forecast",
				"airport", airport, "error", err)
		} else if snap := obs[airport]; snap != nil && c.fresh(snap, now) {
			return snap, nil
		}
	}

	snap, err := c.meteo.SnapshotAt(ctx, airport, at)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather,
			"no weather provider available", err)
	}
	if snap == nil {
		// Outside the forecast window: unknown weather, not an error.
		c.logger.WarnContext(ctx, "requested time outside forecast window",
			"airport", airport, "at", at)
		return &types.WeatherSnapshot{Airport: airport, Timestamp: at}, nil
	}
	return snap, nil
}

// SnapshotAll fetches snapshots for several airports concurrently. Failures
// are isolated per airport: a failed airport maps to nil and the rest of the
// batch still succeeds.
func (c *Collector) SnapshotAll(ctx context.Context, airports []string, at time.Time) map[string]*types.WeatherSnapshot {
	results := make(map[string]*types.WeatherSnapshot, len(airports))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)

	for _, airport := range airports {
		g.Go(func() error {
			snap, err := c.Snapshot(gCtx, airport, at)
			if err != nil {
				c.logger.WarnContext(gCtx, "weather unavailable for airport",
					"airport", airport, "error", err)
				snap = nil
			}
			mu.Lock()
			results[airport] = snap
			mu.Unlock()
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()
	return results
}

// fresh reports whether an observation is recent enough to beat the forecast.
func (c *Collector) fresh(snap *types.WeatherSnapshot, now time.Time) bool {
	if snap.Timestamp.IsZero() {
		return false
	}
	return now.Sub(snap.Timestamp) <= MaxObservationAge
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
