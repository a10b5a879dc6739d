package services

import (
	"time"

	"github.com/jonboulle/clockwork"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/models"
)

// qualityRule pairs a tag with its predicate. Rules are evaluated in
// slice order and the first match wins, so reordering the slice
// changes classification semantics.
type qualityRule struct {
	tag     string
	applies func(e *models.EnrichedTrip) bool
}

// QualityClassifier assigns exactly one quality tag and one
// completeness tag to every enriched trip. The two tags are computed
// independently: a Valid trip can still be incomplete, and a rejected
// trip can still be complete.
type QualityClassifier struct {
	rules []qualityRule
	cfg   config.QualityConfig
	clock clockwork.Clock
}

// NewQualityClassifier builds a classifier with the configured
// thresholds. The clock is injected so the recency window is testable.
func NewQualityClassifier(cfg config.QualityConfig, clock clockwork.Clock) *QualityClassifier {
	c := &QualityClassifier{cfg: cfg, clock: clock}
	c.rules = []qualityRule{
		{models.QualityDateTooOld, c.dateTooOld},
		{models.QualityDateTooRecent, c.dateTooRecent},
		{models.QualityInvalidDuration, c.invalidDuration},
		{models.QualityZeroDistanceWithTime, c.zeroDistanceWithTime},
		{models.QualityNegativeFare, c.negativeFare},
		{models.QualityInvalidPassengerCount, c.invalidPassengerCount},
		{models.QualityMissingStation, c.missingStation},
		{models.QualityMissingWeather, c.missingWeather},
	}
	return c
}

// Classify sets both tags on the enriched trip and returns them.
// A record missing either timestamp cannot be evaluated against the
// date and duration rules at all, so quality evaluation is skipped and
// the completeness tag carries the reason.
func (c *QualityClassifier) Classify(e *models.EnrichedTrip) (quality, completeness string) {
	completeness = c.classifyCompleteness(e)
	e.CompletenessTag = completeness

	if !e.Trip.JoinEligible() {
		quality = models.QualityNotEvaluated
		e.QualityTag = quality
		return quality, completeness
	}

	quality = models.QualityValid
	for _, rule := range c.rules {
		if rule.applies(e) {
			quality = rule.tag
			break
		}
	}
	e.QualityTag = quality
	return quality, completeness
}

// tripDates returns the pickup and dropoff calendar dates. The date
// window rules evaluate both: a trip spanning midnight into the grace
// window is just as suspect as one picked up inside it.
func tripDates(t *models.TripRecord) []time.Time {
	var dates []time.Time
	if t.TripDate != nil {
		dates = append(dates, *t.TripDate)
	}
	if t.DropoffTime != nil {
		d := t.DropoffTime
		dates = append(dates, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC))
	}
	return dates
}

func (c *QualityClassifier) dateTooOld(e *models.EnrichedTrip) bool {
	for _, d := range tripDates(&e.Trip) {
		if d.Before(c.cfg.MinValidDate) {
			return true
		}
	}
	return false
}

func (c *QualityClassifier) dateTooRecent(e *models.EnrichedTrip) bool {
	cutoff := c.clock.Now().UTC().AddDate(0, 0, -c.cfg.RecentGraceDays)
	cutoff = time.Date(cutoff.Year(), cutoff.Month(), cutoff.Day(), 0, 0, 0, 0, time.UTC)
	for _, d := range tripDates(&e.Trip) {
		if d.After(cutoff) {
			return true
		}
	}
	return false
}

func (c *QualityClassifier) invalidDuration(e *models.EnrichedTrip) bool {
	d := e.Trip.DurationSec
	if d == nil {
		return false
	}
	return *d < 0 || *d > float64(c.cfg.MaxTripDurationSec)
}

func (c *QualityClassifier) zeroDistanceWithTime(e *models.EnrichedTrip) bool {
	dist, dur := e.Trip.TripDistance, e.Trip.DurationSec
	if dist == nil || dur == nil {
		return false
	}
	return *dist <= c.cfg.MinTripDistance && *dur > float64(c.cfg.MinTripDurationSec)
}

func (c *QualityClassifier) negativeFare(e *models.EnrichedTrip) bool {
	if e.Trip.FareAmount != nil && *e.Trip.FareAmount < c.cfg.InvalidFareBelow {
		return true
	}
	return e.Trip.TotalAmount != nil && *e.Trip.TotalAmount < c.cfg.InvalidFareBelow
}

func (c *QualityClassifier) invalidPassengerCount(e *models.EnrichedTrip) bool {
	return e.Trip.PassengerCount != nil && *e.Trip.PassengerCount <= 0
}

func (c *QualityClassifier) missingStation(e *models.EnrichedTrip) bool {
	return e.StationID == nil
}

func (c *QualityClassifier) missingWeather(e *models.EnrichedTrip) bool {
	return e.Weather == nil
}

// classifyCompleteness walks the completeness checks in fixed order
// and returns the first missing field, or Complete.
func (c *QualityClassifier) classifyCompleteness(e *models.EnrichedTrip) string {
	t := &e.Trip
	switch {
	case t.PickupTime == nil:
		return models.CompletenessMissingPickup
	case t.DropoffTime == nil:
		return models.CompletenessMissingDropoff
	case t.TripDistance == nil:
		return models.CompletenessMissingDistance
	case t.FareAmount == nil:
		return models.CompletenessMissingFare
	case t.PassengerCount == nil:
		return models.CompletenessMissingPassengers
	case e.StationID == nil || e.Borough == nil:
		return models.CompletenessMissingStation
	case e.Weather == nil || e.Weather.Condition == nil:
		return models.CompletenessMissingCondition
	}
	return models.CompletenessComplete
}
