package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"taxi-weather-platform/internal/models"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

// IngestionService reads trip and weather CSV exports from disk and
// turns them into typed records. Parsing never rejects a malformed
// field, only a malformed row; field-level problems become nulls for
// the quality classifier to judge.
type IngestionService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains the results of an ingestion run
type IngestionResult struct {
	FilesProcessed int           `json:"files_processed"`
	RowsParsed     int           `json:"rows_parsed"`
	RowsSkipped    int           `json:"rows_skipped"`
	Duration       time.Duration `json:"duration"`
	Errors         []string      `json:"errors,omitempty"`
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(logger *logging.StructuredLogger, collector *metrics.Collector) *IngestionService {
	return &IngestionService{
		logger:  logger,
		metrics: collector,
	}
}

// ReadTripsDir reads every CSV file in the directory as yellow taxi
// trip exports. Files are processed in name order so runs are
// reproducible.
func (s *IngestionService) ReadTripsDir(ctx context.Context, dir string) ([]*models.TripRecord, *IngestionResult, error) {
	start := time.Now()
	result := &IngestionResult{}

	files, err := listCSVFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no CSV files found in %s", dir)
	}

	var trips []*models.TripRecord
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		fileTrips, skipped, err := s.readTripsFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			s.logger.Error(ctx, "[INGEST_TRIPS] Failed to read trip file", logging.Fields{
				"file": path,
			}, err)
			s.metrics.RecordPipelineError("trip_file_read")
			continue
		}

		trips = append(trips, fileTrips...)
		result.FilesProcessed++
		result.RowsParsed += len(fileTrips)
		result.RowsSkipped += skipped

		s.logger.Info(ctx, "[INGEST_TRIPS] Trip file ingested", logging.Fields{
			"file":         filepath.Base(path),
			"rows_parsed":  len(fileTrips),
			"rows_skipped": skipped,
		})
	}

	result.Duration = time.Since(start)
	s.metrics.PipelineRecordsTotal.WithLabelValues("trips").Add(float64(result.RowsParsed))
	return trips, result, nil
}

// ReadWeatherDir reads every CSV file in the directory as ASOS
// observation exports.
func (s *IngestionService) ReadWeatherDir(ctx context.Context, dir string) ([]*models.WeatherObservation, *IngestionResult, error) {
	start := time.Now()
	result := &IngestionResult{}

	files, err := listCSVFiles(dir)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no CSV files found in %s", dir)
	}

	var observations []*models.WeatherObservation
	for _, path := range files {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		obs, skipped, err := s.readWeatherFile(path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", filepath.Base(path), err))
			s.logger.Error(ctx, "[INGEST_WEATHER] Failed to read weather file", logging.Fields{
				"file": path,
			}, err)
			s.metrics.RecordPipelineError("weather_file_read")
			continue
		}

		observations = append(observations, obs...)
		result.FilesProcessed++
		result.RowsParsed += len(obs)
		result.RowsSkipped += skipped

		s.logger.Info(ctx, "[INGEST_WEATHER] Weather file ingested", logging.Fields{
			"file":         filepath.Base(path),
			"rows_parsed":  len(obs),
			"rows_skipped": skipped,
		})
	}

	result.Duration = time.Since(start)
	s.metrics.PipelineRecordsTotal.WithLabelValues("weather").Add(float64(result.RowsParsed))
	return observations, result, nil
}

func (s *IngestionService) readTripsFile(path string) ([]*models.TripRecord, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open trip file: %w", err)
	}
	defer f.Close()

	return parseTripsCSV(f)
}

func (s *IngestionService) readWeatherFile(path string) ([]*models.WeatherObservation, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open weather file: %w", err)
	}
	defer f.Close()

	return parseWeatherCSV(f)
}

// tripColumns maps TLC header names to raw record setters. Column
// order varies between source months, so the header is consulted
// instead of fixed positions.
var tripColumns = map[string]func(*models.RawTripRecord, string){
	"vendorid":              func(r *models.RawTripRecord, v string) { r.VendorID = v },
	"tpep_pickup_datetime":  func(r *models.RawTripRecord, v string) { r.PickupDatetime = v },
	"tpep_dropoff_datetime": func(r *models.RawTripRecord, v string) { r.DropoffDatetime = v },
	"passenger_count":       func(r *models.RawTripRecord, v string) { r.PassengerCount = v },
	"trip_distance":         func(r *models.RawTripRecord, v string) { r.TripDistance = v },
	"ratecodeid":            func(r *models.RawTripRecord, v string) { r.RateCodeID = v },
	"pulocationid":          func(r *models.RawTripRecord, v string) { r.PULocationID = v },
	"dolocationid":          func(r *models.RawTripRecord, v string) { r.DOLocationID = v },
	"payment_type":          func(r *models.RawTripRecord, v string) { r.PaymentType = v },
	"fare_amount":           func(r *models.RawTripRecord, v string) { r.FareAmount = v },
	"extra":                 func(r *models.RawTripRecord, v string) { r.Extra = v },
	"mta_tax":               func(r *models.RawTripRecord, v string) { r.MTATax = v },
	"tip_amount":            func(r *models.RawTripRecord, v string) { r.TipAmount = v },
	"tolls_amount":          func(r *models.RawTripRecord, v string) { r.TollsAmount = v },
	"improvement_surcharge": func(r *models.RawTripRecord, v string) { r.ImprovementSurcharge = v },
	"congestion_surcharge":  func(r *models.RawTripRecord, v string) { r.CongestionSurcharge = v },
	"total_amount":          func(r *models.RawTripRecord, v string) { r.TotalAmount = v },
}

func parseTripsCSV(r io.Reader) ([]*models.TripRecord, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read trip header: %w", err)
	}

	setters := make(map[int]func(*models.RawTripRecord, string))
	for i, name := range header {
		if set, ok := tripColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			setters[i] = set
		}
	}
	if len(setters) == 0 {
		return nil, 0, fmt.Errorf("trip header contains no recognized columns")
	}

	var trips []*models.TripRecord
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		raw := &models.RawTripRecord{}
		for i, set := range setters {
			if i < len(record) {
				set(raw, record[i])
			}
		}
		trips = append(trips, raw.ToTrip())
	}

	return trips, skipped, nil
}

// weatherColumns maps ASOS header names to raw record setters
var weatherColumns = map[string]func(*models.RawWeatherRecord, string){
	"station": func(r *models.RawWeatherRecord, v string) { r.Station = v },
	"valid":   func(r *models.RawWeatherRecord, v string) { r.Valid = v },
	"tmpf":    func(r *models.RawWeatherRecord, v string) { r.TempF = v },
	"p01i":    func(r *models.RawWeatherRecord, v string) { r.PrecipIn = v },
	"vsby":    func(r *models.RawWeatherRecord, v string) { r.VisibilityMi = v },
	"sknt":    func(r *models.RawWeatherRecord, v string) { r.WindSpeedKt = v },
	"gust":    func(r *models.RawWeatherRecord, v string) { r.WindGustKt = v },
	"skyc1":   func(r *models.RawWeatherRecord, v string) { r.SkyCondition = v },
	"wxcodes": func(r *models.RawWeatherRecord, v string) { r.WxCodes = v },
}

func parseWeatherCSV(r io.Reader) ([]*models.WeatherObservation, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	// IEM exports prefix the header with debug comment lines
	reader.Comment = '#'

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read weather header: %w", err)
	}

	setters := make(map[int]func(*models.RawWeatherRecord, string))
	for i, name := range header {
		if set, ok := weatherColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			setters[i] = set
		}
	}
	if len(setters) == 0 {
		return nil, 0, fmt.Errorf("weather header contains no recognized columns")
	}

	var observations []*models.WeatherObservation
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			continue
		}

		raw := &models.RawWeatherRecord{}
		for i, set := range setters {
			if i < len(record) {
				set(raw, record[i])
			}
		}

		obs := raw.ToObservation()
		if obs.StationID == "" {
			skipped++
			continue
		}
		observations = append(observations, obs)
	}

	return observations, skipped, nil
}

func listCSVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
