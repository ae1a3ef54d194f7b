package risk

import (
	"fmt"
	"time"
)

// SeasonalBaselines maps a calendar month to the empirical baseline
// cancellation rate in percentage points. The table is immutable
// configuration injected at engine construction, so parallel engine
// instances can carry different tables.
type SeasonalBaselines map[time.Month]float64

// DefaultSeasonalBaselines returns the baseline table derived from BTS
// on-time performance data for the home airport, 2020-2025.
func DefaultSeasonalBaselines() SeasonalBaselines {
	return SeasonalBaselines{
		time.January:   4.1,
		time.February:  4.8,
		time.March:     0.5,
		time.April:     1.6,
		time.May:       0.7,
		time.June:      0.9,
		time.July:      0.4,
		time.August:    0.9,
		time.September: 0.6,
		time.October:   0.1,
		time.November:  1.7,
		time.December:  5.9,
	}
}

// Validate ensures the table covers all twelve months with non-negative
// rates. Called at engine construction to fail fast on bad configuration.
func (b SeasonalBaselines) Validate() error {
	for m := time.January; m <= time.December; m++ {
		rate, ok := b[m]
		if !ok {
			return fmt.Errorf("seasonal baselines: missing month %s", m)
		}
		if rate < 0 {
			return fmt.Errorf("seasonal baselines: negative rate %.2f for %s", rate, m)
		}
	}
	return nil
}

// Rate returns the baseline cancellation percentage for a month. Months are
// always in [January, December]; anything else is a programming error, not a
// runtime condition, so this panics rather than returning an error.
func (b SeasonalBaselines) Rate(m time.Month) float64 {
	if m < time.January || m > time.December {
		panic(fmt.Sprintf("seasonal baselines: month out of range: %d", int(m)))
	}
	return b[m]
}
