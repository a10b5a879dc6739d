package models

import (
	"strconv"
	"strings"
	"time"
)

// timestampLayout is the TLC trip record timestamp format
const timestampLayout = "2006-01-02 15:04:05"

// RawTripRecord represents a single line from a yellow taxi trip file.
// All fields are carried as strings; typing happens in ToTrip.
type RawTripRecord struct {
	VendorID             string
	PickupDatetime       string
	DropoffDatetime      string
	PassengerCount       string
	TripDistance         string
	RateCodeID           string
	PULocationID         string
	DOLocationID         string
	PaymentType          string
	FareAmount           string
	Extra                string
	MTATax               string
	TipAmount            string
	TollsAmount          string
	ImprovementSurcharge string
	CongestionSurcharge  string
	TotalAmount          string
}

// TripRecord represents a typed taxi trip. NULL values are represented
// as nil pointers; a malformed source field becomes nil, never an error.
type TripRecord struct {
	VendorID             *int64     `json:"vendor_id,omitempty" db:"vendor_id"`
	PickupTime           *time.Time `json:"pickup_time,omitempty" db:"pickup_time"`
	DropoffTime          *time.Time `json:"dropoff_time,omitempty" db:"dropoff_time"`
	PassengerCount       *int64     `json:"passenger_count,omitempty" db:"passenger_count"`
	TripDistance         *float64   `json:"trip_distance,omitempty" db:"trip_distance"`
	RateCodeID           *int64     `json:"rate_code_id,omitempty" db:"rate_code_id"`
	PULocationID         *int64     `json:"pu_location_id,omitempty" db:"pu_location_id"`
	DOLocationID         *int64     `json:"do_location_id,omitempty" db:"do_location_id"`
	PaymentType          *int64     `json:"payment_type,omitempty" db:"payment_type"`
	FareAmount           *float64   `json:"fare_amount,omitempty" db:"fare_amount"`
	Extra                *float64   `json:"extra,omitempty" db:"extra"`
	MTATax               *float64   `json:"mta_tax,omitempty" db:"mta_tax"`
	TipAmount            *float64   `json:"tip_amount,omitempty" db:"tip_amount"`
	TollsAmount          *float64   `json:"tolls_amount,omitempty" db:"tolls_amount"`
	ImprovementSurcharge *float64   `json:"improvement_surcharge,omitempty" db:"improvement_surcharge"`
	CongestionSurcharge  *float64   `json:"congestion_surcharge,omitempty" db:"congestion_surcharge"`
	TotalAmount          *float64   `json:"total_amount,omitempty" db:"total_amount"`

	// Derived attributes, computed once at normalization as pure
	// functions of the two timestamps. Never recomputed downstream.
	TripDate    *time.Time `json:"trip_date,omitempty" db:"trip_date"`
	TripYear    *int       `json:"trip_year,omitempty" db:"trip_year"`
	TripMonth   *int       `json:"trip_month,omitempty" db:"trip_month"`
	TripDay     *int       `json:"trip_day,omitempty" db:"trip_day"`
	TripHour    *int       `json:"trip_hour,omitempty" db:"trip_hour"`
	TripWeekday *string    `json:"trip_weekday,omitempty" db:"trip_weekday"`
	DurationSec *float64   `json:"duration_seconds,omitempty" db:"duration_seconds"`
	PickupHour  *time.Time `json:"pickup_hour,omitempty" db:"pickup_hour"`
}

// ToTrip converts a RawTripRecord to a typed TripRecord. Malformed
// numeric or timestamp fields map to nil and are handled downstream by
// the quality classifier.
func (r *RawTripRecord) ToTrip() *TripRecord {
	trip := &TripRecord{
		VendorID:             parseInt(r.VendorID),
		PickupTime:           parseTimestamp(r.PickupDatetime),
		DropoffTime:          parseTimestamp(r.DropoffDatetime),
		PassengerCount:       parseInt(r.PassengerCount),
		TripDistance:         parseFloat(r.TripDistance),
		RateCodeID:           parseInt(r.RateCodeID),
		PULocationID:         parseInt(r.PULocationID),
		DOLocationID:         parseInt(r.DOLocationID),
		PaymentType:          parseInt(r.PaymentType),
		FareAmount:           parseFloat(r.FareAmount),
		Extra:                parseFloat(r.Extra),
		MTATax:               parseFloat(r.MTATax),
		TipAmount:            parseFloat(r.TipAmount),
		TollsAmount:          parseFloat(r.TollsAmount),
		ImprovementSurcharge: parseFloat(r.ImprovementSurcharge),
		CongestionSurcharge:  parseFloat(r.CongestionSurcharge),
		TotalAmount:          parseFloat(r.TotalAmount),
	}

	trip.derive()
	return trip
}

// JoinEligible reports whether the record carries both timestamps.
// Absence of either short-circuits the record to incomplete before
// quality evaluation proceeds.
func (t *TripRecord) JoinEligible() bool {
	return t.PickupTime != nil && t.DropoffTime != nil
}

// derive computes the derived timestamp attributes. Pickup-based fields
// require only the pickup timestamp; duration requires both.
func (t *TripRecord) derive() {
	if t.PickupTime != nil {
		pickup := t.PickupTime.UTC()

		date := time.Date(pickup.Year(), pickup.Month(), pickup.Day(), 0, 0, 0, 0, time.UTC)
		year, month, day := pickup.Year(), int(pickup.Month()), pickup.Day()
		hour := pickup.Hour()
		weekday := pickup.Weekday().String()
		pickupHour := pickup.Truncate(time.Hour)

		t.TripDate = &date
		t.TripYear = &year
		t.TripMonth = &month
		t.TripDay = &day
		t.TripHour = &hour
		t.TripWeekday = &weekday
		t.PickupHour = &pickupHour
	}

	if t.PickupTime != nil && t.DropoffTime != nil {
		duration := t.DropoffTime.Sub(*t.PickupTime).Seconds()
		t.DurationSec = &duration
	}
}

// parseTimestamp parses a TLC timestamp, returning nil when malformed.
func parseTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	ts, err := time.Parse(timestampLayout, s)
	if err != nil {
		return nil
	}
	ts = ts.UTC()
	return &ts
}

// parseFloat parses a numeric field, returning nil when malformed.
func parseFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

// parseInt parses an integer field, returning nil when malformed.
// Integer columns arrive as "1.0" in some source months, so a float
// parse is accepted as fallback.
func parseInt(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &v
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v := int64(f)
	return &v
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
