package weather

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"flightrisk/internal/external"
	"flightrisk/internal/types"
)

// DefaultOpenMeteoBaseURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoBaseURL = "https://api.open-meteo.com/v1/forecast"

// Unit conversions for Open-Meteo fields.
const (
	metersToMiles  = 0.000621371
	mmToInches     = 0.0393701
	metersToInches = 39.3701
)

// Location is an airport's coordinates for forecast lookups.
type Location struct {
	Lat float64
	Lon float64
}

// OpenMeteoClient fetches hourly forecasts covering recent past and the next
// days, so the same response serves both "what was the weather then" and
// "what will it be at departure time".
type OpenMeteoClient struct {
	base      string
	client    *external.Client
	locations map[string]Location
	logger    *slog.Logger
}

// NewOpenMeteoClient creates an Open-Meteo client for the given airports.
// baseURL may be empty to use the public endpoint.
func NewOpenMeteoClient(baseURL string, client *external.Client, locations map[string]Location, logger *slog.Logger) *OpenMeteoClient {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenMeteoClient{base: baseURL, client: client, locations: locations, logger: logger}
}

type openMeteoResponse struct {
	Hourly struct {
		Time          []string   `json:"time"`
		VisibilityM   []*float64 `json:"visibility"`
		WindSpeedKn   []*float64 `json:"wind_speed_10m"`
		WindGustKn    []*float64 `json:"wind_gusts_10m"`
		WindDirection []*float64 `json:"wind_direction_10m"`
		TemperatureF  []*float64 `json:"temperature_2m"`
		PrecipMM      []*float64 `json:"precipitation"`
		SnowDepthM    []*float64 `json:"snow_depth"`
		CloudCoverPct []*float64 `json:"cloud_cover"`
		HumidityPct   []*float64 `json:"relative_humidity_2m"`
		WeatherCode   []*int     `json:"weather_code"`
	} `json:"hourly"`
}

// Hourly fetches the hourly series for one airport: the past week plus the
// next three days, keyed by UTC hour. Unknown airports return an AppError.
func (c *OpenMeteoClient) Hourly(ctx context.Context, airport string) (map[time.Time]*types.WeatherSnapshot, error) {
	loc, ok := c.locations[airport]
	if !ok {
		return nil, types.NewAppError(types.ErrCodeValidationAirportCode,
			fmt.Sprintf("no coordinates configured for airport %q", airport), nil)
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("hourly", "visibility,wind_speed_10m,wind_gusts_10m,wind_direction_10m,"+
		"temperature_2m,precipitation,snow_depth,cloud_cover,relative_humidity_2m,weather_code")
	q.Set("wind_speed_unit", "kn")
	q.Set("temperature_unit", "fahrenheit")
	q.Set("timezone", "UTC")
	q.Set("past_days", "7")
	q.Set("forecast_days", "3")

	var resp openMeteoResponse
	if err := c.client.GetJSON(ctx, c.base+"?"+q.Encode(), &resp); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "Open-Meteo fetch failed", err)
	}

	h := resp.Hourly
	series := make(map[time.Time]*types.WeatherSnapshot, len(h.Time))
	for i, ts := range h.Time {
		at, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		at = at.UTC()

		snap := &types.WeatherSnapshot{
			Airport:   airport,
			Timestamp: at,
			Source:    "open-meteo",
		}
		snap.VisibilityMiles = scale(at8(h.VisibilityM, i), metersToMiles)
		snap.WindSpeedKnots = at8(h.WindSpeedKn, i)
		snap.WindGustKnots = at8(h.WindGustKn, i)
		snap.WindDirectionDeg = at8(h.WindDirection, i)
		snap.TemperatureF = at8(h.TemperatureF, i)
		snap.PrecipitationIn = scale(at8(h.PrecipMM, i), mmToInches)
		snap.SnowDepthIn = scale(at8(h.SnowDepthM, i), metersToInches)
		snap.CloudCoverPct = at8(h.CloudCoverPct, i)
		snap.HumidityPct = at8(h.HumidityPct, i)

		if code := atInt(h.WeatherCode, i); code != nil {
			snap.WeatherCode = code
			snap.Conditions = wmoConditions(*code)
		}

		series[at] = snap
	}

	c.logger.InfoContext(ctx, "retrieved Open-Meteo hourly series",
		"airport", airport, "hours", len(series))
	return series, nil
}

// SnapshotAt fetches the series and returns the snapshot for the hour nearest
// the given time, or nil when the time falls outside the fetched window.
func (c *OpenMeteoClient) SnapshotAt(ctx context.Context, airport string, at time.Time) (*types.WeatherSnapshot, error) {
	series, err := c.Hourly(ctx, airport)
	if err != nil {
		return nil, err
	}
	return Nearest(series, at), nil
}

// Nearest picks the series entry closest to at, within one hour. Returns nil
// when nothing is close enough.
func Nearest(series map[time.Time]*types.WeatherSnapshot, at time.Time) *types.WeatherSnapshot {
	var best *types.WeatherSnapshot
	bestDelta := time.Hour + 1
	for ts, snap := range series {
		delta := at.Sub(ts)
		if delta < 0 {
			delta = -delta
		}
		if delta < bestDelta {
			best = snap
			bestDelta = delta
		}
	}
	return best
}

// wmoConditions maps WMO weather interpretation codes to readable text.
func wmoConditions(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code <= 2:
		return "Partly Cloudy"
	case code == 3:
		return "Overcast"
	case code == 45 || code == 48:
		return "Fog"
	case code >= 51 && code <= 55:
		return "Drizzle"
	case code == 56 || code == 57:
		return "Freezing Drizzle"
	case code >= 61 && code <= 65:
		return "Rain"
	case code == 66 || code == 67:
		return "Freezing Rain"
	case code >= 71 && code <= 77:
		return "Snow"
	case code >= 80 && code <= 82:
		return "Rain Showers"
	case code == 85 || code == 86:
		return "Snow Showers"
	case code >= 95:
		return "Thunderstorm"
	default:
		return ""
	}
}

func at8(s []*float64, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	return s[i]
}

func atInt(s []*int, i int) *int {
	if i >= len(s) {
		return nil
	}
	return s[i]
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	return types.Float64(*v * factor)
}
