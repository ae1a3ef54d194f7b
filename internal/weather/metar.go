// Package weather supplies WeatherSnapshots for airports by blending two
// providers: live METAR observations (preferred while fresh) and Open-Meteo
// hourly forecasts (fallback and future hours). The Collector implements
// types.WeatherSource for the rest of the system.
package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"flightrisk/internal/external"
	"flightrisk/internal/types"
)

// DefaultMETARBaseURL is the NOAA Aviation Weather METAR endpoint.
const DefaultMETARBaseURL = "https://aviationweather.gov/api/data/metar"

// METARClient fetches live observations from the NOAA Aviation Weather API.
type METARClient struct {
	base   string
	client *external.Client
	logger *slog.Logger
}

// NewMETARClient creates a METAR client. baseURL may be empty to use the NOAA
// endpoint.
func NewMETARClient(baseURL string, client *external.Client, logger *slog.Logger) *METARClient {
	if baseURL == "" {
		baseURL = DefaultMETARBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &METARClient{base: baseURL, client: client, logger: logger}
}

// metarReport mirrors the fields we use from the NOAA JSON. Numeric fields
// arrive as numbers or strings ("10+" visibility, "VRB" wind direction), so
// they decode through flexFloat.
type metarReport struct {
	ICAOID      string    `json:"icaoId"`
	Visibility  flexFloat `json:"visib"`
	WindSpeed   flexFloat `json:"wspd"`
	WindDir     flexFloat `json:"wdir"`
	WindGust    flexFloat `json:"wgst"`
	TempC       flexFloat `json:"temp"`
	DewpointC   flexFloat `json:"dewp"`
	AltimeterMb flexFloat `json:"altim"`
	PrecipIn    flexFloat `json:"precip"`
	WxString    string    `json:"wxString"`
	ReportTime  string    `json:"reportTime"`
	RawOb       string    `json:"rawOb"`
}

// Observations fetches the latest METAR for each requested airport. Airports
// with no current report are absent from the result map; that is degradation,
// not an error.
func (c *METARClient) Observations(ctx context.Context, airports []string) (map[string]*types.WeatherSnapshot, error) {
	if len(airports) == 0 {
		return map[string]*types.WeatherSnapshot{}, nil
	}

	q := url.Values{}
	q.Set("ids", strings.Join(airports, ","))
	q.Set("format", "json")

	var reports []metarReport
	if err := c.client.GetJSON(ctx, c.base+"?"+q.Encode(), &reports); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamWeather, "METAR fetch failed", err)
	}

	results := make(map[string]*types.WeatherSnapshot, len(reports))
	for _, rep := range reports {
		if rep.ICAOID == "" {
			continue
		}
		snap := rep.toSnapshot()
		results[rep.ICAOID] = snap
		c.logger.InfoContext(ctx, "retrieved METAR observation",
			"airport", rep.ICAOID,
			"visibility_miles", deref(snap.VisibilityMiles),
			"wind_knots", deref(snap.WindSpeedKnots),
			"conditions", snap.Conditions,
		)
	}

	for _, code := range airports {
		if _, ok := results[code]; !ok {
			c.logger.WarnContext(ctx, "no METAR observation available", "airport", code)
		}
	}

	return results, nil
}

func (rep metarReport) toSnapshot() *types.WeatherSnapshot {
	snap := &types.WeatherSnapshot{
		Airport:          rep.ICAOID,
		VisibilityMiles:  rep.Visibility.ptr(), // already statute miles
		WindSpeedKnots:   rep.WindSpeed.ptr(),
		WindGustKnots:    rep.WindGust.ptr(),
		WindDirectionDeg: rep.WindDir.ptr(),
		PressureMb:       rep.AltimeterMb.ptr(),
		Conditions:       parseWxString(rep.WxString),
		Source:           "metar",
	}

	if t := rep.TempC.ptr(); t != nil {
		snap.TemperatureF = types.Float64(*t*9/5 + 32)
	}

	// METAR reports last-hour precip only when there was any; absence of the
	// field is a genuine zero, not unknown.
	if p := rep.PrecipIn.ptr(); p != nil {
		snap.PrecipitationIn = p
	} else {
		snap.PrecipitationIn = types.Float64(0)
	}

	snap.HumidityPct = relativeHumidity(rep.TempC.ptr(), rep.DewpointC.ptr())

	// reportTime arrives as "2026-01-10 18:55:00" (UTC, no zone suffix) or
	// occasionally full RFC3339.
	norm := strings.Replace(rep.ReportTime, " ", "T", 1)
	if ts, err := time.Parse(time.RFC3339, norm); err == nil {
		snap.Timestamp = ts.UTC()
	} else if ts, err := time.ParseInLocation("2006-01-02T15:04:05", norm, time.UTC); err == nil {
		snap.Timestamp = ts
	}

	return snap
}

// relativeHumidity derives RH percent from temperature and dewpoint (Celsius)
// using the Magnus-Tetens approximation, clamped to [0, 100].
func relativeHumidity(tempC, dewpointC *float64) *float64 {
	if tempC == nil || dewpointC == nil {
		return nil
	}

	const a, b = 17.625, 243.04
	dewVP := math.Exp(a * *dewpointC / (b + *dewpointC))
	tempVP := math.Exp(a * *tempC / (b + *tempC))

	rh := 100 * dewVP / tempVP
	rh = math.Max(0, math.Min(100, rh))
	return &rh
}

// parseWxString maps METAR weather phenomena codes to readable text.
// Unrecognized strings pass through unchanged.
func parseWxString(wx string) string {
	if wx == "" {
		return ""
	}

	upper := strings.ToUpper(wx)

	intensity := ""
	if strings.HasPrefix(upper, "-") {
		intensity = "Light "
	} else if strings.HasPrefix(upper, "+") {
		intensity = "Heavy "
	}

	var conditions []string
	if strings.Contains(upper, "TS") {
		conditions = append(conditions, "Thunderstorm")
	}
	if strings.Contains(upper, "FG") {
		conditions = append(conditions, "Fog")
	}
	if strings.Contains(upper, "BR") {
		conditions = append(conditions, "Mist")
	}
	if strings.Contains(upper, "RA") {
		conditions = append(conditions, strings.TrimSpace(intensity+"Rain"))
	}
	if strings.Contains(upper, "SN") {
		conditions = append(conditions, strings.TrimSpace(intensity+"Snow"))
	}
	if strings.Contains(upper, "DZ") {
		conditions = append(conditions, strings.TrimSpace(intensity+"Drizzle"))
	}
	if strings.Contains(upper, "FZ") && strings.Contains(upper, "RA") {
		conditions = append(conditions, "Freezing Rain")
	} else if strings.Contains(upper, "FZ") {
		conditions = append(conditions, "Freezing")
	}
	if strings.Contains(upper, "IC") {
		conditions = append(conditions, "Ice")
	}

	if len(conditions) == 0 {
		return wx
	}
	return strings.Join(conditions, ", ")
}

// flexFloat decodes JSON values that providers emit as either numbers or
// strings. Non-numeric strings ("VRB", "10+") parse best-effort; anything
// unparseable is treated as unknown.
type flexFloat struct {
	val *float64
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == `""` {
		return nil
	}
	s = strings.Trim(s, `"`)
	s = strings.TrimSuffix(s, "+")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// "VRB" wind direction and friends: unknown, not an error.
		return nil
	}
	f.val = &v
	return nil
}

func (f flexFloat) ptr() *float64 { return f.val }

func deref(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", *v)
}
