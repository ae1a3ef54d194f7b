package risk

import (
	"fmt"

	"flightrisk/internal/types"
)

// Weather penalty thresholds and point values. These are a compatibility
// contract with downstream consumers and must not be tuned casually.
const (
	visCriticalMiles = 0.5
	visLowMiles      = 1.0
	visReducedMiles  = 3.0
	visCriticalPts   = 60.0
	visLowPts        = 40.0
	visReducedPts    = 15.0

	xwindExtremeKnots  = 25.0
	xwindHighKnots     = 15.0
	xwindModerateKnots = 10.0
	xwindExtremePts    = 50.0
	xwindHighPts       = 30.0
	xwindModeratePts   = 10.0

	snowHeavyIn       = 6.0
	snowSignificantIn = 3.0
	snowTraceIn       = 1.0
	snowHeavyPts      = 40.0
	snowSignificantPts = 25.0
	snowTracePts      = 15.0

	freezingTempF        = 32.0
	frzPrecipHeavyIn     = 0.3
	frzPrecipLightIn     = 0.1
	frzPrecipHeavyPts    = 30.0
	frzPrecipLightPts    = 20.0
	rainHeavyIn          = 0.5
	rainLightIn          = 0.1
	rainHeavyPts         = 15.0
	rainLightPts         = 8.0

	overcastCloudPct   = 90.0
	overcastVisMiles   = 5.0
	overcastPts        = 10.0
	icingHumidityPct   = 80.0
	icingComboPts      = 20.0
)

// ScoreAirport evaluates one airport's weather snapshot against its runway
// configuration and returns a non-negative penalty total plus the list of
// triggered factors, in rule order.
//
// Each rule contributes independently (penalties sum). A rule whose inputs
// are absent simply does not fire: unknown data is never a penalty and never
// a credit. A nil snapshot scores zero with no factors.
func ScoreAirport(w *types.WeatherSnapshot, headings []float64) (float64, []types.Factor) {
	if w == nil {
		return 0, nil
	}

	var score float64
	var factors []types.Factor
	add := func(pts float64, desc string, details map[string]any) {
		score += pts
		factors = append(factors, types.Factor{
			Category:    types.FactorWeather,
			Description: desc,
			Details:     details,
		})
	}

	// Visibility.
	if vis := w.VisibilityMiles; vis != nil {
		switch {
		case *vis < visCriticalMiles:
			add(visCriticalPts, fmt.Sprintf("Critical Visibility (%.1fmi)", *vis),
				map[string]any{"type": "Visibility", "value": *vis, "penalty": visCriticalPts})
		case *vis < visLowMiles:
			add(visLowPts, fmt.Sprintf("Low Visibility (%.1fmi)", *vis),
				map[string]any{"type": "Visibility", "value": *vis, "penalty": visLowPts})
		case *vis < visReducedMiles:
			add(visReducedPts, fmt.Sprintf("Reduced Visibility (%.1fmi)", *vis),
				map[string]any{"type": "Visibility", "value": *vis, "penalty": visReducedPts})
		}
	}

	// Crosswind, gust-preferred.
	if xw := CrosswindFor(w, headings); xw != nil {
		wind := w.EffectiveWindKnots()
		details := func(pts float64) map[string]any {
			return map[string]any{
				"type":           "Crosswind",
				"crosswind":      *xw,
				"wind_speed":     *wind,
				"wind_direction": *w.WindDirectionDeg,
				"penalty":        pts,
			}
		}
		switch {
		case *xw > xwindExtremeKnots:
			add(xwindExtremePts, fmt.Sprintf("Extreme Crosswind (%.1fkt, Wind %.0fkt @ %.0f°)",
				*xw, *wind, *w.WindDirectionDeg), details(xwindExtremePts))
		case *xw > xwindHighKnots:
			add(xwindHighPts, fmt.Sprintf("High Crosswind (%.1fkt, Wind %.0fkt @ %.0f°)",
				*xw, *wind, *w.WindDirectionDeg), details(xwindHighPts))
		case *xw > xwindModerateKnots:
			add(xwindModeratePts, fmt.Sprintf("Moderate Crosswind (%.1fkt, Wind %.0fkt @ %.0f°)",
				*xw, *wind, *w.WindDirectionDeg), details(xwindModeratePts))
		}
	}

	// Snow on the ground.
	if snow := w.SnowDepthIn; snow != nil {
		switch {
		case *snow > snowHeavyIn:
			add(snowHeavyPts, fmt.Sprintf("Heavy Snow Depth (%.1fin)", *snow),
				map[string]any{"type": "Snow", "value": *snow, "penalty": snowHeavyPts})
		case *snow > snowSignificantIn:
			add(snowSignificantPts, fmt.Sprintf("Significant Snow Depth (%.1fin)", *snow),
				map[string]any{"type": "Snow", "value": *snow, "penalty": snowSignificantPts})
		case *snow > snowTraceIn:
			add(snowTracePts, fmt.Sprintf("Snow on Ground (%.1fin)", *snow),
				map[string]any{"type": "Snow", "value": *snow, "penalty": snowTracePts})
		}
	}

	// Precipitation, split by freezing level. Both the rate and the
	// temperature must be known for these rules to fire.
	if precip, temp := w.PrecipitationIn, w.TemperatureF; precip != nil && temp != nil {
		if *temp < freezingTempF {
			switch {
			case *precip > frzPrecipHeavyIn:
				add(frzPrecipHeavyPts, fmt.Sprintf("Heavy Freezing Precipitation (%.2fin/hr)", *precip),
					map[string]any{"type": "FreezingPrecip", "value": *precip, "temp": *temp, "penalty": frzPrecipHeavyPts})
			case *precip > frzPrecipLightIn:
				add(frzPrecipLightPts, fmt.Sprintf("Freezing Precipitation (%.2fin/hr)", *precip),
					map[string]any{"type": "FreezingPrecip", "value": *precip, "temp": *temp, "penalty": frzPrecipLightPts})
			}
		} else {
			switch {
			case *precip > rainHeavyIn:
				add(rainHeavyPts, fmt.Sprintf("Heavy Rain (%.2fin/hr)", *precip),
					map[string]any{"type": "Rain", "value": *precip, "penalty": rainHeavyPts})
			case *precip > rainLightIn:
				add(rainLightPts, fmt.Sprintf("Rain (%.2fin/hr)", *precip),
					map[string]any{"type": "Rain", "value": *precip, "penalty": rainLightPts})
			}
		}
	}

	// Overcast ceiling with reduced visibility.
	if cloud, vis := w.CloudCoverPct, w.VisibilityMiles; cloud != nil && vis != nil {
		if *cloud > overcastCloudPct && *vis < overcastVisMiles {
			add(overcastPts, fmt.Sprintf("Overcast with Reduced Visibility (%.0f%% cloud, %.1fmi)", *cloud, *vis),
				map[string]any{"type": "Overcast", "cloud_cover": *cloud, "visibility": *vis, "penalty": overcastPts})
		}
	}

	// Icing combination: freezing, saturated air, active precipitation.
	if temp, hum, precip := w.TemperatureF, w.HumidityPct, w.PrecipitationIn; temp != nil && hum != nil && precip != nil {
		if *temp < freezingTempF && *hum > icingHumidityPct && *precip > 0 {
			add(icingComboPts, fmt.Sprintf("Icing Conditions (%.0f°F, %.0f%% humidity)", *temp, *hum),
				map[string]any{"type": "Icing", "temp": *temp, "humidity": *hum, "penalty": icingComboPts})
		}
	}

	return score, factors
}
