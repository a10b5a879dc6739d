package services

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ZoneStationResolver maps a taxi pickup zone to its weather station.
// The lookup path is zone -> borough -> station; one station per
// borough, not per zone. Both tables are immutable once constructed
// and the mapping is never re-derived per row.
type ZoneStationResolver struct {
	zoneBorough    map[int64]string
	boroughStation map[string]string
}

// NewZoneStationResolver creates a resolver from the two static tables
func NewZoneStationResolver(zoneBorough map[int64]string, boroughStation map[string]string) *ZoneStationResolver {
	return &ZoneStationResolver{
		zoneBorough:    zoneBorough,
		boroughStation: boroughStation,
	}
}

// Resolve maps a zone id to its weather station. Unknown zone or a
// borough without a mapped station returns ok=false: a terminal data
// state for the caller, not an error.
func (r *ZoneStationResolver) Resolve(zoneID int64) (stationID, borough string, ok bool) {
	borough, found := r.zoneBorough[zoneID]
	if !found {
		return "", "", false
	}

	stationID, found = r.boroughStation[borough]
	if !found {
		return "", borough, false
	}

	return stationID, borough, true
}

// Stations returns the distinct station ids reachable through the
// borough table, for validation against the weather dataset.
func (r *ZoneStationResolver) Stations() []string {
	seen := make(map[string]struct{}, len(r.boroughStation))
	var out []string
	for _, station := range r.boroughStation {
		if _, dup := seen[station]; dup {
			continue
		}
		seen[station] = struct{}{}
		out = append(out, station)
	}
	return out
}

// BoroughStations returns a copy of the borough to station table
func (r *ZoneStationResolver) BoroughStations() map[string]string {
	out := make(map[string]string, len(r.boroughStation))
	for borough, station := range r.boroughStation {
		out[borough] = station
	}
	return out
}

// LoadZoneLookup reads the TLC taxi zone lookup CSV
// (LocationID,Borough,Zone,service_zone) into a zone -> borough table.
func LoadZoneLookup(path string) (map[int64]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open zone lookup: %w", err)
	}
	defer f.Close()

	return parseZoneLookup(f)
}

func parseZoneLookup(r io.Reader) (map[int64]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read zone lookup header: %w", err)
	}

	idCol, boroughCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "locationid":
			idCol = i
		case "borough":
			boroughCol = i
		}
	}
	if idCol < 0 || boroughCol < 0 {
		return nil, fmt.Errorf("zone lookup header missing LocationID or Borough column")
	}

	zones := make(map[int64]string)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read zone lookup row: %w", err)
		}
		if len(record) <= idCol || len(record) <= boroughCol {
			continue
		}

		id, err := strconv.ParseInt(strings.TrimSpace(record[idCol]), 10, 64)
		if err != nil {
			continue
		}

		borough := strings.TrimSpace(record[boroughCol])
		if borough == "" || strings.EqualFold(borough, "unknown") {
			continue
		}
		zones[id] = borough
	}

	if len(zones) == 0 {
		return nil, fmt.Errorf("zone lookup contains no usable rows")
	}

	return zones, nil
}
