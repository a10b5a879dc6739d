package services

import (
	"fmt"
	"sort"
	"time"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/models"
)

type stationHour struct {
	station string
	hour    time.Time
}

// HourlyWeatherIndex holds exactly one aggregated weather row per
// station-hour. The map key makes duplicate station-hours structurally
// impossible, so a trip lookup can never be ambiguous.
type HourlyWeatherIndex struct {
	rows map[stationHour]*models.HourlyWeather
}

// hourlyAccumulator collects raw observations for one station-hour
// before the averages are finalized.
type hourlyAccumulator struct {
	tempSum   float64
	tempCount int
	windSum   float64
	windCount int
	maxPrecip *float64
	minVis    *float64
	maxGust   *float64
	count     int
}

func (a *hourlyAccumulator) add(obs *models.WeatherObservation) {
	a.count++
	if obs.TempF != nil {
		a.tempSum += *obs.TempF
		a.tempCount++
	}
	if obs.WindSpeedKt != nil {
		a.windSum += *obs.WindSpeedKt
		a.windCount++
	}
	if obs.PrecipIn != nil && (a.maxPrecip == nil || *obs.PrecipIn > *a.maxPrecip) {
		v := *obs.PrecipIn
		a.maxPrecip = &v
	}
	if obs.VisibilityMi != nil && (a.minVis == nil || *obs.VisibilityMi < *a.minVis) {
		v := *obs.VisibilityMi
		a.minVis = &v
	}
	if obs.WindGustKt != nil && (a.maxGust == nil || *obs.WindGustKt > *a.maxGust) {
		v := *obs.WindGustKt
		a.maxGust = &v
	}
}

// BuildHourlyIndex aggregates raw observations into one row per
// station-hour. Observations without a timestamp cannot be bucketed
// and are skipped. The weather condition label is assigned here, once
// per station-hour.
func BuildHourlyIndex(observations []*models.WeatherObservation, cfg config.WeatherConfig) *HourlyWeatherIndex {
	acc := make(map[stationHour]*hourlyAccumulator)

	for _, obs := range observations {
		if obs.ObservedAt == nil || obs.StationID == "" {
			continue
		}
		key := stationHour{
			station: obs.StationID,
			hour:    obs.ObservedAt.UTC().Truncate(time.Hour),
		}
		a, ok := acc[key]
		if !ok {
			a = &hourlyAccumulator{}
			acc[key] = a
		}
		a.add(obs)
	}

	rows := make(map[stationHour]*models.HourlyWeather, len(acc))
	for key, a := range acc {
		hw := &models.HourlyWeather{
			StationID:        key.station,
			Hour:             key.hour,
			MaxPrecipIn:      a.maxPrecip,
			MinVisibilityMi:  a.minVis,
			MaxWindGustKt:    a.maxGust,
			ObservationCount: a.count,
		}
		if a.tempCount > 0 {
			avgF := a.tempSum / float64(a.tempCount)
			avgC := models.FahrenheitToCelsius(avgF)
			hw.AvgTempF = &avgF
			hw.AvgTempC = &avgC
		}
		if a.windCount > 0 {
			avgW := a.windSum / float64(a.windCount)
			hw.AvgWindSpeedKt = &avgW
		}
		cond := deriveCondition(hw, cfg)
		hw.Condition = &cond
		rows[key] = hw
	}

	return &HourlyWeatherIndex{rows: rows}
}

// IndexFromAggregated builds an index from rows aggregated elsewhere,
// for example read back from the hourly weather table. Rows sharing a
// station-hour violate the one-row-per-key contract and are rejected.
func IndexFromAggregated(rows []*models.HourlyWeather) (*HourlyWeatherIndex, error) {
	indexed := make(map[stationHour]*models.HourlyWeather, len(rows))
	for _, row := range rows {
		key := stationHour{station: row.StationID, hour: row.Hour.UTC().Truncate(time.Hour)}
		if _, dup := indexed[key]; dup {
			return nil, fmt.Errorf("duplicate hourly weather row for station %s at %s",
				row.StationID, key.hour.Format(time.RFC3339))
		}
		indexed[key] = row
	}
	return &HourlyWeatherIndex{rows: indexed}, nil
}

// Match looks up the weather row for a trip's pickup hour at the given
// station. The pickup hour is the floor-truncated pickup timestamp
// derived during normalization; a trip at 14:00:00 and one at 14:59:59
// resolve to the same row. No match is a normal outcome, not an error.
func (idx *HourlyWeatherIndex) Match(trip *models.TripRecord, stationID string) (*models.HourlyWeather, bool) {
	if trip.PickupHour == nil || stationID == "" {
		return nil, false
	}
	hw, ok := idx.rows[stationHour{station: stationID, hour: trip.PickupHour.UTC()}]
	return hw, ok
}

// Len returns the number of distinct station-hours in the index
func (idx *HourlyWeatherIndex) Len() int {
	return len(idx.rows)
}

// HasStation reports whether any hour exists for the given station
func (idx *HourlyWeatherIndex) HasStation(stationID string) bool {
	for key := range idx.rows {
		if key.station == stationID {
			return true
		}
	}
	return false
}

// Rows returns the aggregated rows ordered by station then hour
func (idx *HourlyWeatherIndex) Rows() []*models.HourlyWeather {
	out := make([]*models.HourlyWeather, 0, len(idx.rows))
	for _, hw := range idx.rows {
		out = append(out, hw)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StationID != out[j].StationID {
			return out[i].StationID < out[j].StationID
		}
		return out[i].Hour.Before(out[j].Hour)
	})
	return out
}

// deriveCondition assigns the single condition label for a
// station-hour. Rules are checked in fixed priority order and the
// first match wins; a rule whose input is missing is skipped rather
// than treated as a match.
func deriveCondition(hw *models.HourlyWeather, cfg config.WeatherConfig) string {
	if hw.MaxPrecipIn != nil && *hw.MaxPrecipIn > cfg.RainPrecipThreshold {
		return models.ConditionRainy
	}
	if hw.MinVisibilityMi != nil && *hw.MinVisibilityMi < cfg.LowVisibilityThreshold {
		return models.ConditionPoorVisibility
	}
	if hw.AvgTempF != nil && *hw.AvgTempF < cfg.FreezingTempF {
		return models.ConditionFreezing
	}
	if hw.AvgTempF != nil && *hw.AvgTempF > cfg.HotTempF {
		return models.ConditionHot
	}
	return models.ConditionNormal
}

// BuildStationRegistry derives station metadata from the observation
// stream. When the same station appears more than once the row with
// the most recent observation wins.
func BuildStationRegistry(observations []*models.WeatherObservation, boroughStation map[string]string) []*models.WeatherStation {
	boroughs := make([]string, 0, len(boroughStation))
	for borough := range boroughStation {
		boroughs = append(boroughs, borough)
	}
	sort.Strings(boroughs)

	// A station can serve several boroughs; the alphabetically first
	// borough is kept so the registry is deterministic.
	stationBorough := make(map[string]string, len(boroughStation))
	for _, borough := range boroughs {
		station := boroughStation[borough]
		if _, ok := stationBorough[station]; !ok {
			stationBorough[station] = borough
		}
	}

	latest := make(map[string]time.Time)
	for _, obs := range observations {
		if obs.StationID == "" || obs.ObservedAt == nil {
			continue
		}
		if current, ok := latest[obs.StationID]; !ok || obs.ObservedAt.After(current) {
			latest[obs.StationID] = obs.ObservedAt.UTC()
		}
	}

	stations := make([]*models.WeatherStation, 0, len(latest))
	for id, observed := range latest {
		stations = append(stations, &models.WeatherStation{
			StationID:         id,
			Name:              id,
			Borough:           stationBorough[id],
			LatestObservation: observed,
		})
	}
	sort.Slice(stations, func(i, j int) bool { return stations[i].StationID < stations[j].StationID })
	return stations
}
