// Package flights integrates the flight schedule provider: a client for the
// airport FIDS-style API and the sync service that keeps the local board and
// the history collection current.
package flights

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"flightrisk/internal/external"
	"flightrisk/internal/types"
)

// ScheduleClient fetches arrivals and departures for the home airport from an
// AeroDataBox-compatible API. It implements types.ScheduleSource.
type ScheduleClient struct {
	base    string
	apiKey  string
	apiHost string
	home    string
	// routes limits the board to legs touching these remote airports. Empty
	// means no filtering.
	routes map[string]bool
	client *external.Client
	logger *slog.Logger
}

// NewScheduleClient creates a schedule client for one home airport. routes
// may be nil to accept every leg.
func NewScheduleClient(baseURL, apiKey, apiHost, home string, routes []string, client *external.Client, logger *slog.Logger) *ScheduleClient {
	if logger == nil {
		logger = slog.Default()
	}
	var routeSet map[string]bool
	if len(routes) > 0 {
		routeSet = make(map[string]bool, len(routes))
		for _, r := range routes {
			routeSet[r] = true
		}
	}
	return &ScheduleClient{
		base:    baseURL,
		apiKey:  apiKey,
		apiHost: apiHost,
		home:    home,
		routes:  routeSet,
		client:  client,
		logger:  logger,
	}
}

// Provider response shapes. Only the fields we consume.

type scheduleResponse struct {
	Arrivals   []scheduleEntry `json:"arrivals"`
	Departures []scheduleEntry `json:"departures"`
}

type scheduleEntry struct {
	Number  string `json:"number"`
	Status  string `json:"status"`
	Airline struct {
		Name string `json:"name"`
	} `json:"airline"`
	Arrival   legTimes `json:"arrival"`
	Departure legTimes `json:"departure"`
	Aircraft  struct {
		Reg   string `json:"reg"`
		Model string `json:"model"`
	} `json:"aircraft"`
}

type legTimes struct {
	Airport struct {
		ICAO string `json:"icao"`
		IATA string `json:"iata"`
	} `json:"airport"`
	ScheduledTime providerTime `json:"scheduledTime"`
	ActualTime    providerTime `json:"actualTime"`
	RevisedTime   providerTime `json:"revisedTime"`
}

type providerTime struct {
	UTC string `json:"utc"`
}

// providerTimeLayouts covers the formats the provider has been seen to emit.
var providerTimeLayouts = []string{
	"2006-01-02 15:04Z",
	"2006-01-02T15:04Z07:00",
	time.RFC3339,
}

func (t providerTime) parse() *time.Time {
	if t.UTC == "" {
		return nil
	}
	for _, layout := range providerTimeLayouts {
		if ts, err := time.Parse(layout, t.UTC); err == nil {
			u := ts.UTC()
			return &u
		}
	}
	return nil
}

// Flights returns the home airport's board for [from, to). Legs whose remote
// airport is outside the configured routes are dropped; entries with
// unparseable scheduled times are skipped with a warning.
func (c *ScheduleClient) Flights(ctx context.Context, from, to time.Time) ([]types.ActiveFlight, error) {
	if !to.After(from) {
		return nil, types.NewAppError(types.ErrCodeValidationTimeRange, "to must be after from", nil)
	}

	const layout = "2006-01-02T15:04"
	endpoint := fmt.Sprintf("%s/%s/%s/%s", c.base, url.PathEscape(c.home),
		from.UTC().Format(layout), to.UTC().Format(layout))

	q := url.Values{}
	q.Set("withLeg", "true")
	q.Set("withCancelled", "true")
	q.Set("direction", "Both")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build schedule request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-rapidapi-key", c.apiKey)
		req.Header.Set("x-rapidapi-host", c.apiHost)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSchedule, "schedule fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewAppError(types.ErrCodeUpstreamSchedule,
			fmt.Sprintf("schedule provider returned %d", resp.StatusCode), nil)
	}

	var payload scheduleResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamSchedule, "failed to decode schedule response", err)
	}

	var flights []types.ActiveFlight
	for _, entry := range payload.Arrivals {
		if f := c.toFlight(ctx, entry, types.LegArrival); f != nil {
			flights = append(flights, *f)
		}
	}
	for _, entry := range payload.Departures {
		if f := c.toFlight(ctx, entry, types.LegDeparture); f != nil {
			flights = append(flights, *f)
		}
	}

	c.logger.InfoContext(ctx, "fetched flight board",
		"home", c.home, "from", from, "to", to, "flights", len(flights))
	return flights, nil
}

func (c *ScheduleClient) toFlight(ctx context.Context, entry scheduleEntry, role types.LegRole) *types.ActiveFlight {
	// The remote end of an arrival is where it departed from, and vice versa.
	remoteLeg := entry.Departure
	homeLeg := entry.Arrival
	if role == types.LegDeparture {
		remoteLeg = entry.Arrival
		homeLeg = entry.Departure
	}

	remote := remoteLeg.Airport.ICAO
	if remote == "" {
		remote = remoteLeg.Airport.IATA
	}
	if remote == "" {
		return nil
	}
	if c.routes != nil && !c.routes[remote] {
		return nil
	}

	sched := homeLeg.ScheduledTime.parse()
	if sched == nil {
		c.logger.WarnContext(ctx, "skipping flight with unparseable schedule",
			"number", entry.Number, "raw", homeLeg.ScheduledTime.UTC)
		return nil
	}

	origin, destination := remote, c.home
	if role == types.LegDeparture {
		origin, destination = c.home, remote
	}

	status := entry.Status
	if status == "" {
		status = "Unknown"
	}

	return &types.ActiveFlight{
		ID:            fmt.Sprintf("%s_%s", entry.Number, sched.Format(time.RFC3339)),
		Number:        entry.Number,
		Airline:       entry.Airline.Name,
		Origin:        origin,
		Destination:   destination,
		Role:          role,
		ScheduledTime: *sched,
		ActualTime:    homeLeg.ActualTime.parse(),
		RevisedTime:   homeLeg.RevisedTime.parse(),
		Status:        status,
		AircraftReg:   entry.Aircraft.Reg,
		AircraftModel: entry.Aircraft.Model,
	}
}
