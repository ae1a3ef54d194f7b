package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightrisk/internal/types"
)

func TestMinCrosswindKnots(t *testing.T) {
	tests := []struct {
		name     string
		windDir  float64
		speed    float64
		headings []float64
		want     float64
	}{
		{
			name:     "wind aligned with runway",
			windDir:  50,
			speed:    20,
			headings: []float64{50, 230},
			want:     0,
		},
		{
			name:     "wind perpendicular to single runway",
			windDir:  140,
			speed:    20,
			headings: []float64{50},
			want:     20,
		},
		{
			name:     "picks most favorable runway",
			windDir:  90,
			speed:    20,
			headings: []float64{90, 0},
			want:     0,
		},
		{
			name:     "angle normalized past 180",
			windDir:  350,
			speed:    10,
			headings: []float64{10},
			// 340 degrees apart raw, 20 degrees normalized.
			want: 10 * math.Sin(20*math.Pi/180),
		},
		{
			name:     "45 degree component",
			windDir:  95,
			speed:    10,
			headings: []float64{50},
			want:     10 * math.Sin(45*math.Pi/180),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MinCrosswindKnots(tt.windDir, tt.speed, tt.headings)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMinCrosswindKnots_NoHeadings(t *testing.T) {
	_, ok := MinCrosswindKnots(90, 20, nil)
	assert.False(t, ok)
}

func TestCrosswindFor_GustPreferred(t *testing.T) {
	w := &types.WeatherSnapshot{
		WindSpeedKnots:   types.Float64(15),
		WindGustKnots:    types.Float64(28),
		WindDirectionDeg: types.Float64(140),
	}
	xw := CrosswindFor(w, []float64{50})
	require.NotNil(t, xw)
	assert.InDelta(t, 28, *xw, 1e-9)
}

func TestCrosswindFor_GustBelowSustainedIgnored(t *testing.T) {
	w := &types.WeatherSnapshot{
		WindSpeedKnots:   types.Float64(20),
		WindGustKnots:    types.Float64(12),
		WindDirectionDeg: types.Float64(140),
	}
	xw := CrosswindFor(w, []float64{50})
	require.NotNil(t, xw)
	assert.InDelta(t, 20, *xw, 1e-9)
}

func TestCrosswindFor_UnknownInputs(t *testing.T) {
	headings := []float64{50, 230}

	assert.Nil(t, CrosswindFor(nil, headings))
	assert.Nil(t, CrosswindFor(&types.WeatherSnapshot{
		WindSpeedKnots: types.Float64(20),
	}, headings), "missing direction")
	assert.Nil(t, CrosswindFor(&types.WeatherSnapshot{
		WindDirectionDeg: types.Float64(90),
	}, headings), "missing speed")
	assert.Nil(t, CrosswindFor(&types.WeatherSnapshot{
		WindSpeedKnots:   types.Float64(20),
		WindDirectionDeg: types.Float64(90),
	}, nil), "no runway configuration")
}
