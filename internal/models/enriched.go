package models

import (
	"fmt"
	"time"
)

// Quality tags, in classification priority order. Exactly one applies.
// Records missing a timestamp skip quality evaluation entirely and
// carry QualityNotEvaluated.
const (
	QualityDateTooOld            = "Date too old"
	QualityDateTooRecent         = "Date too recent"
	QualityInvalidDuration       = "Invalid trip duration"
	QualityZeroDistanceWithTime  = "Zero distance with duration"
	QualityNegativeFare          = "Negative fare"
	QualityInvalidPassengerCount = "Invalid passenger count"
	QualityMissingStation        = "Missing station data"
	QualityMissingWeather        = "Missing weather data"
	QualityValid                 = "Valid"
	QualityNotEvaluated          = "Not evaluated"
)

// Completeness tags. Computed independently of the quality tag.
const (
	CompletenessMissingPickup     = "Missing pickup timestamp"
	CompletenessMissingDropoff    = "Missing dropoff timestamp"
	CompletenessMissingDistance   = "Missing trip distance"
	CompletenessMissingFare       = "Missing fare amount"
	CompletenessMissingPassengers = "Missing passenger count"
	CompletenessMissingStation    = "Missing station fields"
	CompletenessMissingCondition  = "Missing weather condition"
	CompletenessComplete          = "Complete"
)

// EnrichedTrip is a trip joined with its resolved station and matched
// station-hour weather, plus both classification tags. Created once per
// normalization pass and immutable thereafter; a later run produces a
// new EnrichedTrip that supersedes or is discarded by the materializer.
type EnrichedTrip struct {
	Trip            TripRecord     `json:"trip"`
	StationID       *string        `json:"station_id,omitempty"`
	Borough         *string        `json:"borough,omitempty"`
	Weather         *HourlyWeather `json:"weather,omitempty"`
	QualityTag      string         `json:"quality_tag"`
	CompletenessTag string         `json:"completeness_tag"`
}

// FactKey is the composite business key of the fact table. At most one
// row per key exists at any time; a later run with the same key
// replaces, never duplicates, the earlier row.
type FactKey struct {
	PickupTime   time.Time
	PULocationID int64
	DOLocationID int64
	VendorID     int64
}

// Key returns the business key, or an error when a key component is
// null. Records without a full key are never materialized.
func (e *EnrichedTrip) Key() (FactKey, error) {
	t := &e.Trip
	if t.PickupTime == nil || t.PULocationID == nil || t.DOLocationID == nil || t.VendorID == nil {
		return FactKey{}, fmt.Errorf("enriched trip has incomplete business key")
	}
	return FactKey{
		PickupTime:   *t.PickupTime,
		PULocationID: *t.PULocationID,
		DOLocationID: *t.DOLocationID,
		VendorID:     *t.VendorID,
	}, nil
}

// QualityReport is one classified record in the quality report stream.
// Key fields are nullable because records rejected for missing fields
// still get reported.
type QualityReport struct {
	ID              int64      `db:"id" json:"id"`
	RunID           string     `db:"run_id" json:"run_id"`
	VendorID        *int64     `db:"vendor_id" json:"vendor_id,omitempty"`
	PickupTime      *time.Time `db:"pickup_time" json:"pickup_time,omitempty"`
	PULocationID    *int64     `db:"pu_location_id" json:"pu_location_id,omitempty"`
	DOLocationID    *int64     `db:"do_location_id" json:"do_location_id,omitempty"`
	TripDate        *time.Time `db:"trip_date" json:"trip_date,omitempty"`
	StationID       *string    `db:"station_id" json:"station_id,omitempty"`
	QualityTag      string     `db:"quality_tag" json:"quality_tag"`
	CompletenessTag string     `db:"completeness_tag" json:"completeness_tag"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// ToQualityReport projects the enriched trip into the report stream
func (e *EnrichedTrip) ToQualityReport(runID string, createdAt time.Time) *QualityReport {
	return &QualityReport{
		RunID:           runID,
		VendorID:        e.Trip.VendorID,
		PickupTime:      e.Trip.PickupTime,
		PULocationID:    e.Trip.PULocationID,
		DOLocationID:    e.Trip.DOLocationID,
		TripDate:        e.Trip.TripDate,
		StationID:       e.StationID,
		QualityTag:      e.QualityTag,
		CompletenessTag: e.CompletenessTag,
		CreatedAt:       createdAt,
	}
}

// FactRow is the persisted, flattened form of an EnrichedTrip
type FactRow struct {
	VendorID             int64      `db:"vendor_id" json:"vendor_id"`
	PickupTime           time.Time  `db:"pickup_time" json:"pickup_time"`
	DropoffTime          *time.Time `db:"dropoff_time" json:"dropoff_time,omitempty"`
	PULocationID         int64      `db:"pu_location_id" json:"pu_location_id"`
	DOLocationID         int64      `db:"do_location_id" json:"do_location_id"`
	PassengerCount       *int64     `db:"passenger_count" json:"passenger_count,omitempty"`
	TripDistance         *float64   `db:"trip_distance" json:"trip_distance,omitempty"`
	RateCodeID           *int64     `db:"rate_code_id" json:"rate_code_id,omitempty"`
	PaymentType          *int64     `db:"payment_type" json:"payment_type,omitempty"`
	FareAmount           *float64   `db:"fare_amount" json:"fare_amount,omitempty"`
	Extra                *float64   `db:"extra" json:"extra,omitempty"`
	MTATax               *float64   `db:"mta_tax" json:"mta_tax,omitempty"`
	TipAmount            *float64   `db:"tip_amount" json:"tip_amount,omitempty"`
	TollsAmount          *float64   `db:"tolls_amount" json:"tolls_amount,omitempty"`
	ImprovementSurcharge *float64   `db:"improvement_surcharge" json:"improvement_surcharge,omitempty"`
	CongestionSurcharge  *float64   `db:"congestion_surcharge" json:"congestion_surcharge,omitempty"`
	TotalAmount          *float64   `db:"total_amount" json:"total_amount,omitempty"`
	TripDate             time.Time  `db:"trip_date" json:"trip_date"`
	TripYear             *int       `db:"trip_year" json:"trip_year,omitempty"`
	TripMonth            *int       `db:"trip_month" json:"trip_month,omitempty"`
	TripDay              *int       `db:"trip_day" json:"trip_day,omitempty"`
	TripHour             *int       `db:"trip_hour" json:"trip_hour,omitempty"`
	TripWeekday          *string    `db:"trip_weekday" json:"trip_weekday,omitempty"`
	DurationSec          *float64   `db:"duration_seconds" json:"duration_seconds,omitempty"`
	PickupHour           *time.Time `db:"pickup_hour" json:"pickup_hour,omitempty"`
	StationID            *string    `db:"station_id" json:"station_id,omitempty"`
	Borough              *string    `db:"borough" json:"borough,omitempty"`
	AvgTempF             *float64   `db:"avg_temp_f" json:"avg_temp_f,omitempty"`
	AvgTempC             *float64   `db:"avg_temp_c" json:"avg_temp_c,omitempty"`
	MaxPrecipIn          *float64   `db:"max_precip_in" json:"max_precip_in,omitempty"`
	MinVisibilityMi      *float64   `db:"min_visibility_mi" json:"min_visibility_mi,omitempty"`
	AvgWindSpeedKt       *float64   `db:"avg_wind_speed_kt" json:"avg_wind_speed_kt,omitempty"`
	MaxWindGustKt        *float64   `db:"max_wind_gust_kt" json:"max_wind_gust_kt,omitempty"`
	WeatherCondition     *string    `db:"weather_condition" json:"weather_condition,omitempty"`
	QualityTag           string     `db:"quality_tag" json:"quality_tag"`
	CompletenessTag      string     `db:"completeness_tag" json:"completeness_tag"`
	ProcessedAt          time.Time  `db:"processed_at" json:"processed_at"`
}

// ToFactRow flattens an EnrichedTrip for persistence. Returns an error
// when the business key or trip date is incomplete.
func (e *EnrichedTrip) ToFactRow(processedAt time.Time) (*FactRow, error) {
	key, err := e.Key()
	if err != nil {
		return nil, err
	}
	if e.Trip.TripDate == nil {
		return nil, fmt.Errorf("enriched trip has no trip date")
	}

	row := &FactRow{
		VendorID:             key.VendorID,
		PickupTime:           key.PickupTime,
		DropoffTime:          e.Trip.DropoffTime,
		PULocationID:         key.PULocationID,
		DOLocationID:         key.DOLocationID,
		PassengerCount:       e.Trip.PassengerCount,
		TripDistance:         e.Trip.TripDistance,
		RateCodeID:           e.Trip.RateCodeID,
		PaymentType:          e.Trip.PaymentType,
		FareAmount:           e.Trip.FareAmount,
		Extra:                e.Trip.Extra,
		MTATax:               e.Trip.MTATax,
		TipAmount:            e.Trip.TipAmount,
		TollsAmount:          e.Trip.TollsAmount,
		ImprovementSurcharge: e.Trip.ImprovementSurcharge,
		CongestionSurcharge:  e.Trip.CongestionSurcharge,
		TotalAmount:          e.Trip.TotalAmount,
		TripDate:             *e.Trip.TripDate,
		TripYear:             e.Trip.TripYear,
		TripMonth:            e.Trip.TripMonth,
		TripDay:              e.Trip.TripDay,
		TripHour:             e.Trip.TripHour,
		TripWeekday:          e.Trip.TripWeekday,
		DurationSec:          e.Trip.DurationSec,
		PickupHour:           e.Trip.PickupHour,
		StationID:            e.StationID,
		Borough:              e.Borough,
		QualityTag:           e.QualityTag,
		CompletenessTag:      e.CompletenessTag,
		ProcessedAt:          processedAt,
	}

	if w := e.Weather; w != nil {
		row.AvgTempF = w.AvgTempF
		row.AvgTempC = w.AvgTempC
		row.MaxPrecipIn = w.MaxPrecipIn
		row.MinVisibilityMi = w.MinVisibilityMi
		row.AvgWindSpeedKt = w.AvgWindSpeedKt
		row.MaxWindGustKt = w.MaxWindGustKt
		row.WeatherCondition = w.Condition
	}

	return row, nil
}
