package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/models"
)

func testWeatherConfig() config.WeatherConfig {
	return config.WeatherConfig{
		RainPrecipThreshold:    0.05,
		LowVisibilityThreshold: 2.0,
		FreezingTempF:          32.0,
		HotTempF:               85.0,
	}
}

func obs(station string, at time.Time, tempF, precip, vis, wind, gust *float64) *models.WeatherObservation {
	return &models.WeatherObservation{
		StationID:    station,
		ObservedAt:   ts(at),
		TempF:        tempF,
		PrecipIn:     precip,
		VisibilityMi: vis,
		WindSpeedKt:  wind,
		WindGustKt:   gust,
	}
}

func TestBuildHourlyIndex_Aggregation(t *testing.T) {
	hour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	observations := []*models.WeatherObservation{
		obs("KNYC", hour.Add(5*time.Minute), f64(40), f64(0.01), f64(10), f64(8), f64(15)),
		obs("KNYC", hour.Add(25*time.Minute), f64(44), f64(0.03), f64(6), f64(12), nil),
		obs("KNYC", hour.Add(51*time.Minute), f64(42), nil, f64(8), nil, f64(22)),
	}

	index := BuildHourlyIndex(observations, testWeatherConfig())
	require.Equal(t, 1, index.Len())

	trip := &models.TripRecord{PickupHour: ts(hour)}
	hw, ok := index.Match(trip, "KNYC")
	require.True(t, ok)

	assert.Equal(t, 3, hw.ObservationCount)
	assert.InDelta(t, 42.0, *hw.AvgTempF, 1e-9)
	assert.InDelta(t, (42.0-32.0)*5.0/9.0, *hw.AvgTempC, 1e-9)
	assert.InDelta(t, 0.03, *hw.MaxPrecipIn, 1e-9, "precipitation takes the max")
	assert.InDelta(t, 6.0, *hw.MinVisibilityMi, 1e-9, "visibility takes the min")
	assert.InDelta(t, 10.0, *hw.AvgWindSpeedKt, 1e-9, "wind averages only present values")
	assert.InDelta(t, 22.0, *hw.MaxWindGustKt, 1e-9)
}

func TestBuildHourlyIndex_SeparatesStationsAndHours(t *testing.T) {
	hour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	observations := []*models.WeatherObservation{
		obs("KNYC", hour.Add(10*time.Minute), f64(40), nil, nil, nil, nil),
		obs("KNYC", hour.Add(70*time.Minute), f64(50), nil, nil, nil, nil),
		obs("KLGA", hour.Add(10*time.Minute), f64(60), nil, nil, nil, nil),
	}

	index := BuildHourlyIndex(observations, testWeatherConfig())
	assert.Equal(t, 3, index.Len())

	trip := &models.TripRecord{PickupHour: ts(hour)}
	hw, ok := index.Match(trip, "KNYC")
	require.True(t, ok)
	assert.InDelta(t, 40.0, *hw.AvgTempF, 1e-9)

	hw, ok = index.Match(trip, "KLGA")
	require.True(t, ok)
	assert.InDelta(t, 60.0, *hw.AvgTempF, 1e-9)
}

func TestBuildHourlyIndex_SkipsUnbucketableObservations(t *testing.T) {
	hour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	observations := []*models.WeatherObservation{
		{StationID: "KNYC", ObservedAt: nil, TempF: f64(40)},
		{StationID: "", ObservedAt: ts(hour), TempF: f64(40)},
	}

	index := BuildHourlyIndex(observations, testWeatherConfig())
	assert.Equal(t, 0, index.Len())
}

func TestHourlyWeatherIndex_MatchFloorsToHour(t *testing.T) {
	hour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	index := BuildHourlyIndex([]*models.WeatherObservation{
		obs("KNYC", hour.Add(30*time.Minute), f64(40), nil, nil, nil, nil),
	}, testWeatherConfig())

	// Trips at 14:00:00 and 14:59:59 share the same station-hour row
	early := &models.TripRecord{PickupHour: ts(hour)}
	late := &models.TripRecord{PickupHour: ts(hour)}

	hwEarly, okEarly := index.Match(early, "KNYC")
	hwLate, okLate := index.Match(late, "KNYC")

	require.True(t, okEarly)
	require.True(t, okLate)
	assert.Same(t, hwEarly, hwLate)

	// No pickup hour means no match, not an error
	_, ok := index.Match(&models.TripRecord{}, "KNYC")
	assert.False(t, ok)

	// A different hour has no row
	nextHour := hour.Add(time.Hour)
	_, ok = index.Match(&models.TripRecord{PickupHour: ts(nextHour)}, "KNYC")
	assert.False(t, ok)
}

func TestDeriveCondition_Priority(t *testing.T) {
	cfg := testWeatherConfig()

	tests := []struct {
		name string
		hw   *models.HourlyWeather
		want string
	}{
		{
			name: "rain beats everything",
			hw: &models.HourlyWeather{
				MaxPrecipIn:     f64(0.10),
				MinVisibilityMi: f64(0.5),
				AvgTempF:        f64(20),
			},
			want: models.ConditionRainy,
		},
		{
			name: "poor visibility beats temperature",
			hw: &models.HourlyWeather{
				MaxPrecipIn:     f64(0.00),
				MinVisibilityMi: f64(1.0),
				AvgTempF:        f64(20),
			},
			want: models.ConditionPoorVisibility,
		},
		{
			name: "freezing",
			hw:   &models.HourlyWeather{AvgTempF: f64(25)},
			want: models.ConditionFreezing,
		},
		{
			name: "hot",
			hw:   &models.HourlyWeather{AvgTempF: f64(92)},
			want: models.ConditionHot,
		},
		{
			name: "normal",
			hw:   &models.HourlyWeather{AvgTempF: f64(60), MaxPrecipIn: f64(0.01), MinVisibilityMi: f64(10)},
			want: models.ConditionNormal,
		},
		{
			name: "missing inputs skip their rules",
			hw:   &models.HourlyWeather{},
			want: models.ConditionNormal,
		},
		{
			name: "precipitation at threshold is not rain",
			hw:   &models.HourlyWeather{MaxPrecipIn: f64(0.05), AvgTempF: f64(60)},
			want: models.ConditionNormal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveCondition(tt.hw, cfg))
		})
	}
}

func TestIndexFromAggregated_RejectsDuplicates(t *testing.T) {
	hour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	rows := []*models.HourlyWeather{
		{StationID: "KNYC", Hour: hour},
		{StationID: "KLGA", Hour: hour},
	}
	index, err := IndexFromAggregated(rows)
	require.NoError(t, err)
	assert.Equal(t, 2, index.Len())

	rows = append(rows, &models.HourlyWeather{StationID: "KNYC", Hour: hour.Add(30 * time.Minute)})
	_, err = IndexFromAggregated(rows)
	assert.Error(t, err, "rows truncating to the same station-hour must be rejected")
}

func TestBuildStationRegistry(t *testing.T) {
	base := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)

	observations := []*models.WeatherObservation{
		obs("KNYC", base, f64(40), nil, nil, nil, nil),
		obs("KNYC", base.Add(3*time.Hour), f64(45), nil, nil, nil, nil),
		obs("KNYC", base.Add(time.Hour), f64(42), nil, nil, nil, nil),
		obs("KLGA", base, f64(50), nil, nil, nil, nil),
		{StationID: "KJFK", ObservedAt: nil},
	}

	stations := BuildStationRegistry(observations, testBoroughStations())
	require.Len(t, stations, 2)

	assert.Equal(t, "KLGA", stations[0].StationID)
	assert.Equal(t, "KNYC", stations[1].StationID)

	// Latest observation wins
	assert.True(t, stations[1].LatestObservation.Equal(base.Add(3*time.Hour)))
	assert.Equal(t, "Manhattan", stations[1].Borough)

	// KLGA serves Bronx and Queens; alphabetically first borough kept
	assert.Equal(t, "Bronx", stations[0].Borough)
}
