package models

import (
	"strings"
	"time"
)

// asosTimestampLayout is the IEM ASOS observation timestamp format
const asosTimestampLayout = "2006-01-02 15:04"

// WeatherStation represents a weather station attached to a taxi borough
type WeatherStation struct {
	StationID string `json:"station_id" db:"station_id"`
	Name      string `json:"name" db:"name"`
	Borough   string `json:"borough" db:"borough"`
	// LatestObservation breaks ties when multiple metadata rows exist
	// for the same station id: the most recent observation wins.
	LatestObservation time.Time `json:"latest_observation" db:"latest_observation"`
}

// RawWeatherRecord represents a single line from an ASOS CSV export.
// Missing values arrive as the literal "M".
type RawWeatherRecord struct {
	Station      string
	Valid        string
	TempF        string
	PrecipIn     string
	VisibilityMi string
	WindSpeedKt  string
	WindGustKt   string
	SkyCondition string
	WxCodes      string
}

// WeatherObservation represents a typed weather data point.
// NULL values represented as pointers for "M" sentinel handling.
type WeatherObservation struct {
	StationID    string     `json:"station_id" db:"station_id"`
	ObservedAt   *time.Time `json:"observed_at,omitempty" db:"observed_at"`
	TempF        *float64   `json:"temp_f,omitempty" db:"temp_f"`
	TempC        *float64   `json:"temp_c,omitempty" db:"temp_c"`
	PrecipIn     *float64   `json:"precip_in,omitempty" db:"precip_in"`
	VisibilityMi *float64   `json:"visibility_mi,omitempty" db:"visibility_mi"`
	WindSpeedKt  *float64   `json:"wind_speed_kt,omitempty" db:"wind_speed_kt"`
	WindGustKt   *float64   `json:"wind_gust_kt,omitempty" db:"wind_gust_kt"`
	SkyCondition *string    `json:"sky_condition,omitempty" db:"sky_condition"`
	WxCodes      *string    `json:"wx_codes,omitempty" db:"wx_codes"`
}

// ToObservation converts a RawWeatherRecord to a WeatherObservation.
// Handles "M" sentinel values; Celsius is derived here, once, by the
// fixed linear conversion and never recomputed downstream.
func (r *RawWeatherRecord) ToObservation() *WeatherObservation {
	obs := &WeatherObservation{
		StationID:    strings.TrimSpace(r.Station),
		ObservedAt:   parseObservationTime(r.Valid),
		TempF:        parseWeatherValue(r.TempF),
		PrecipIn:     parseWeatherValue(r.PrecipIn),
		VisibilityMi: parseWeatherValue(r.VisibilityMi),
		WindSpeedKt:  parseWeatherValue(r.WindSpeedKt),
		WindGustKt:   parseWeatherValue(r.WindGustKt),
		SkyCondition: parseWeatherText(r.SkyCondition),
		WxCodes:      parseWeatherText(r.WxCodes),
	}

	if obs.TempF != nil {
		c := FahrenheitToCelsius(*obs.TempF)
		obs.TempC = &c
	}

	return obs
}

// FahrenheitToCelsius applies the fixed linear temperature conversion
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32.0) * 5.0 / 9.0
}

// parseObservationTime parses an ASOS timestamp, nil when malformed
func parseObservationTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || isMissing(s) {
		return nil
	}

	// Some exports carry seconds, some do not
	for _, layout := range []string{asosTimestampLayout, timestampLayout} {
		if ts, err := time.Parse(layout, s); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

// parseWeatherValue parses a numeric weather field, mapping the "M"
// missing sentinel (and friends) to nil.
func parseWeatherValue(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || isMissing(s) {
		return nil
	}
	return parseFloat(s)
}

// parseWeatherText returns a trimmed text field, nil when missing
func parseWeatherText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || isMissing(s) {
		return nil
	}
	return &s
}

func isMissing(s string) bool {
	switch s {
	case "M", "NA", "None", "null", "nan":
		return true
	}
	return false
}

// HourlyWeather aggregates all observations for one station-hour:
// mean temperature and wind speed, max precipitation and gust, min
// visibility, and the observation count.
type HourlyWeather struct {
	StationID        string     `json:"station_id" db:"station_id"`
	Hour             time.Time  `json:"hour" db:"hour"`
	AvgTempF         *float64   `json:"avg_temp_f,omitempty" db:"avg_temp_f"`
	AvgTempC         *float64   `json:"avg_temp_c,omitempty" db:"avg_temp_c"`
	MaxPrecipIn      *float64   `json:"max_precip_in,omitempty" db:"max_precip_in"`
	MinVisibilityMi  *float64   `json:"min_visibility_mi,omitempty" db:"min_visibility_mi"`
	AvgWindSpeedKt   *float64   `json:"avg_wind_speed_kt,omitempty" db:"avg_wind_speed_kt"`
	MaxWindGustKt    *float64   `json:"max_wind_gust_kt,omitempty" db:"max_wind_gust_kt"`
	ObservationCount int        `json:"observation_count" db:"observation_count"`
	Condition        *string    `json:"condition,omitempty" db:"condition"`
}

// Weather condition labels, assigned by fixed short-circuit priority
const (
	ConditionRainy          = "Rainy"
	ConditionPoorVisibility = "Poor Visibility"
	ConditionFreezing       = "Freezing"
	ConditionHot            = "Hot"
	ConditionNormal         = "Normal"
)
