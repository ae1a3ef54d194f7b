package types

// RiskTier buckets a final score into a traveler-facing severity level.
type RiskTier string

const (
	TierLow    RiskTier = "Low"
	TierMedium RiskTier = "Medium"
	TierHigh   RiskTier = "High"
)

// Tier thresholds. A score below TierMediumFloor is Low; at or above
// TierHighFloor is High; in between is Medium.
const (
	TierMediumFloor = 40.0
	TierHighFloor   = 70.0
)

// TierForScore derives the tier from a final score. The tier is determined
// solely by the score.
func TierForScore(score float64) RiskTier {
	switch {
	case score >= TierHighFloor:
		return TierHigh
	case score >= TierMediumFloor:
		return TierMedium
	default:
		return TierLow
	}
}

// FactorCategory classifies a contributing factor for display grouping.
type FactorCategory string

const (
	FactorSeasonal FactorCategory = "Seasonal"
	FactorWeather  FactorCategory = "Weather"
	FactorHistory  FactorCategory = "History"
	FactorInbound  FactorCategory = "Inbound"
)

// Factor is one triggered rule with its human-readable description and the
// values that triggered it. Factors explain the score; they never drive
// control flow.
type Factor struct {
	Category    FactorCategory `json:"category"`
	Description string         `json:"description"`
	Details     map[string]any `json:"details,omitempty"`
}

// ScoreBreakdown itemizes the components that sum to the final score.
// HistoryAdjustment may be negative; the other components are never negative.
type ScoreBreakdown struct {
	SeasonalBaseline  float64 `json:"seasonal_baseline"`
	WeatherScore      float64 `json:"weather_score"`
	HistoryAdjustment float64 `json:"history_adjustment"`
	FinalScore        float64 `json:"final_score"`
}

// RiskScore is the engine's output for one flight: a bounded cancellation
// probability estimate with its audit trail. It is created fresh per
// evaluation and never mutated after construction.
type RiskScore struct {
	// Score is the estimated cancellation probability in percentage points,
	// clamped to [0, 99]. Nothing is certain.
	Score float64 `json:"score"`
	// Tier is derived solely from Score.
	Tier RiskTier `json:"risk_level"`
	// Breakdown itemizes the score components.
	Breakdown ScoreBreakdown `json:"breakdown"`
	// Factors lists the human-readable descriptions of every triggered rule,
	// home airport first, then remote, then history.
	Factors []string `json:"factors"`
	// Detailed carries the structured form of Factors.
	Detailed []Factor `json:"detailed_factors,omitempty"`
}
