package models

import (
	"testing"
	"time"
)

func TestRawTripRecord_ToTrip(t *testing.T) {
	tests := []struct {
		name        string
		record      RawTripRecord
		checkValues func(*testing.T, *TripRecord)
	}{
		{
			name: "valid record with all values",
			record: RawTripRecord{
				VendorID:        "2",
				PickupDatetime:  "2024-03-15 14:32:10",
				DropoffDatetime: "2024-03-15 14:51:40",
				PassengerCount:  "1",
				TripDistance:    "3.2",
				RateCodeID:      "1",
				PULocationID:    "161",
				DOLocationID:    "236",
				PaymentType:     "1",
				FareAmount:      "18.50",
				TipAmount:       "3.70",
				TotalAmount:     "25.20",
			},
			checkValues: func(t *testing.T, trip *TripRecord) {
				if trip.VendorID == nil || *trip.VendorID != 2 {
					t.Errorf("VendorID = %v, want 2", trip.VendorID)
				}

				expectedPickup := time.Date(2024, 3, 15, 14, 32, 10, 0, time.UTC)
				if trip.PickupTime == nil || !trip.PickupTime.Equal(expectedPickup) {
					t.Errorf("PickupTime = %v, want %v", trip.PickupTime, expectedPickup)
				}

				if trip.TripDistance == nil || *trip.TripDistance != 3.2 {
					t.Errorf("TripDistance = %v, want 3.2", trip.TripDistance)
				}

				if trip.FareAmount == nil || *trip.FareAmount != 18.50 {
					t.Errorf("FareAmount = %v, want 18.50", trip.FareAmount)
				}
			},
		},
		{
			name: "malformed timestamp becomes nil, not an error",
			record: RawTripRecord{
				VendorID:        "1",
				PickupDatetime:  "not-a-timestamp",
				DropoffDatetime: "2024-03-15 15:00:00",
				TripDistance:    "1.0",
			},
			checkValues: func(t *testing.T, trip *TripRecord) {
				if trip.PickupTime != nil {
					t.Error("PickupTime should be nil for malformed input")
				}

				if trip.DropoffTime == nil {
					t.Error("DropoffTime should not be nil")
				}

				// No pickup means no derived pickup attributes
				if trip.TripDate != nil {
					t.Error("TripDate should be nil without a pickup timestamp")
				}
				if trip.PickupHour != nil {
					t.Error("PickupHour should be nil without a pickup timestamp")
				}
				if trip.DurationSec != nil {
					t.Error("DurationSec should be nil without both timestamps")
				}
			},
		},
		{
			name: "malformed numeric fields become nil",
			record: RawTripRecord{
				VendorID:        "abc",
				PickupDatetime:  "2024-03-15 14:00:00",
				DropoffDatetime: "2024-03-15 14:10:00",
				PassengerCount:  "",
				TripDistance:    "N/A",
				FareAmount:      "12,50",
			},
			checkValues: func(t *testing.T, trip *TripRecord) {
				if trip.VendorID != nil {
					t.Error("VendorID should be nil for non-numeric input")
				}
				if trip.PassengerCount != nil {
					t.Error("PassengerCount should be nil for empty input")
				}
				if trip.TripDistance != nil {
					t.Error("TripDistance should be nil for N/A")
				}
				if trip.FareAmount != nil {
					t.Error("FareAmount should be nil for comma-formatted input")
				}
			},
		},
		{
			name: "float-formatted integer columns parse",
			record: RawTripRecord{
				VendorID:       "1.0",
				PassengerCount: "2.0",
				PickupDatetime: "2024-03-15 08:00:00",
			},
			checkValues: func(t *testing.T, trip *TripRecord) {
				if trip.VendorID == nil || *trip.VendorID != 1 {
					t.Errorf("VendorID = %v, want 1", trip.VendorID)
				}
				if trip.PassengerCount == nil || *trip.PassengerCount != 2 {
					t.Errorf("PassengerCount = %v, want 2", trip.PassengerCount)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := tt.record.ToTrip()
			tt.checkValues(t, trip)
		})
	}
}

func TestTripRecord_DerivedAttributes(t *testing.T) {
	record := RawTripRecord{
		VendorID:        "2",
		PickupDatetime:  "2024-03-15 14:59:59",
		DropoffDatetime: "2024-03-15 15:20:29",
	}

	trip := record.ToTrip()

	expectedDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if trip.TripDate == nil || !trip.TripDate.Equal(expectedDate) {
		t.Errorf("TripDate = %v, want %v", trip.TripDate, expectedDate)
	}

	if trip.TripYear == nil || *trip.TripYear != 2024 {
		t.Errorf("TripYear = %v, want 2024", trip.TripYear)
	}
	if trip.TripMonth == nil || *trip.TripMonth != 3 {
		t.Errorf("TripMonth = %v, want 3", trip.TripMonth)
	}
	if trip.TripDay == nil || *trip.TripDay != 15 {
		t.Errorf("TripDay = %v, want 15", trip.TripDay)
	}
	if trip.TripHour == nil || *trip.TripHour != 14 {
		t.Errorf("TripHour = %v, want 14", trip.TripHour)
	}
	if trip.TripWeekday == nil || *trip.TripWeekday != "Friday" {
		t.Errorf("TripWeekday = %v, want Friday", trip.TripWeekday)
	}

	// Floor truncation: 14:59:59 belongs to the 14:00 hour
	expectedHour := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	if trip.PickupHour == nil || !trip.PickupHour.Equal(expectedHour) {
		t.Errorf("PickupHour = %v, want %v", trip.PickupHour, expectedHour)
	}

	if trip.DurationSec == nil || *trip.DurationSec != 1230 {
		t.Errorf("DurationSec = %v, want 1230", trip.DurationSec)
	}
}

func TestTripRecord_JoinEligible(t *testing.T) {
	pickup := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	dropoff := pickup.Add(10 * time.Minute)

	tests := []struct {
		name    string
		pickup  *time.Time
		dropoff *time.Time
		want    bool
	}{
		{"both timestamps", &pickup, &dropoff, true},
		{"missing pickup", nil, &dropoff, false},
		{"missing dropoff", &pickup, nil, false},
		{"both missing", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := &TripRecord{PickupTime: tt.pickup, DropoffTime: tt.dropoff}
			if got := trip.JoinEligible(); got != tt.want {
				t.Errorf("JoinEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnrichedTrip_Key(t *testing.T) {
	pickup := time.Date(2024, 3, 15, 14, 0, 0, 0, time.UTC)
	vendor, pu, do := int64(2), int64(161), int64(236)

	complete := &EnrichedTrip{Trip: TripRecord{
		VendorID:     &vendor,
		PickupTime:   &pickup,
		PULocationID: &pu,
		DOLocationID: &do,
	}}

	key, err := complete.Key()
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if key.VendorID != 2 || key.PULocationID != 161 || key.DOLocationID != 236 {
		t.Errorf("Key() = %+v", key)
	}

	incomplete := &EnrichedTrip{Trip: TripRecord{
		VendorID:   &vendor,
		PickupTime: &pickup,
	}}
	if _, err := incomplete.Key(); err == nil {
		t.Error("Key() should fail when a key component is nil")
	}
}
