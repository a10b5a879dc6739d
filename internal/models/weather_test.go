package models

import (
	"math"
	"testing"
	"time"
)

func TestRawWeatherRecord_ToObservation(t *testing.T) {
	tests := []struct {
		name        string
		record      RawWeatherRecord
		checkValues func(*testing.T, *WeatherObservation)
	}{
		{
			name: "valid record with all values",
			record: RawWeatherRecord{
				Station:      "KNYC",
				Valid:        "2024-03-15 14:51",
				TempF:        "41.0",
				PrecipIn:     "0.12",
				VisibilityMi: "10.0",
				WindSpeedKt:  "8.0",
				WindGustKt:   "17.0",
				SkyCondition: "OVC",
				WxCodes:      "RA",
			},
			checkValues: func(t *testing.T, obs *WeatherObservation) {
				if obs.StationID != "KNYC" {
					t.Errorf("StationID = %v, want KNYC", obs.StationID)
				}

				expected := time.Date(2024, 3, 15, 14, 51, 0, 0, time.UTC)
				if obs.ObservedAt == nil || !obs.ObservedAt.Equal(expected) {
					t.Errorf("ObservedAt = %v, want %v", obs.ObservedAt, expected)
				}

				if obs.TempF == nil || *obs.TempF != 41.0 {
					t.Errorf("TempF = %v, want 41.0", obs.TempF)
				}

				if obs.TempC == nil || math.Abs(*obs.TempC-5.0) > 1e-9 {
					t.Errorf("TempC = %v, want 5.0", obs.TempC)
				}

				if obs.PrecipIn == nil || *obs.PrecipIn != 0.12 {
					t.Errorf("PrecipIn = %v, want 0.12", obs.PrecipIn)
				}
			},
		},
		{
			name: "missing sentinel M maps to nil",
			record: RawWeatherRecord{
				Station:      "KLGA",
				Valid:        "2024-03-15 15:00",
				TempF:        "M",
				PrecipIn:     "M",
				VisibilityMi: "M",
				WindSpeedKt:  "M",
				WindGustKt:   "M",
				SkyCondition: "M",
				WxCodes:      "M",
			},
			checkValues: func(t *testing.T, obs *WeatherObservation) {
				if obs.TempF != nil {
					t.Error("TempF should be nil for M")
				}
				if obs.TempC != nil {
					t.Error("TempC should be nil when TempF is missing")
				}
				if obs.PrecipIn != nil {
					t.Error("PrecipIn should be nil for M")
				}
				if obs.SkyCondition != nil {
					t.Error("SkyCondition should be nil for M")
				}
			},
		},
		{
			name: "malformed timestamp maps to nil",
			record: RawWeatherRecord{
				Station: "KJFK",
				Valid:   "15/03/2024",
				TempF:   "50.0",
			},
			checkValues: func(t *testing.T, obs *WeatherObservation) {
				if obs.ObservedAt != nil {
					t.Error("ObservedAt should be nil for malformed timestamp")
				}
				if obs.TempF == nil {
					t.Error("TempF should still parse independently")
				}
			},
		},
		{
			name: "timestamp with seconds parses",
			record: RawWeatherRecord{
				Station: "KEWR",
				Valid:   "2024-03-15 14:51:00",
			},
			checkValues: func(t *testing.T, obs *WeatherObservation) {
				expected := time.Date(2024, 3, 15, 14, 51, 0, 0, time.UTC)
				if obs.ObservedAt == nil || !obs.ObservedAt.Equal(expected) {
					t.Errorf("ObservedAt = %v, want %v", obs.ObservedAt, expected)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := tt.record.ToObservation()
			tt.checkValues(t, obs)
		})
	}
}

func TestFahrenheitToCelsius(t *testing.T) {
	tests := []struct {
		name string
		f    float64
		want float64
	}{
		{"freezing point", 32.0, 0.0},
		{"boiling point", 212.0, 100.0},
		{"body temperature", 98.6, 37.0},
		{"below zero", -40.0, -40.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FahrenheitToCelsius(tt.f)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("FahrenheitToCelsius(%v) = %v, want %v", tt.f, got, tt.want)
			}
		})
	}
}
