package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"taxi-weather-platform/internal/models"
	"taxi-weather-platform/pkg/database"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

// FactRepository defines the interface for trip fact data access
type FactRepository interface {
	GetWatermark(ctx context.Context) (*time.Time, error)
	UpsertFacts(ctx context.Context, rows []*models.FactRow) (int, error)
	InsertQualityReports(ctx context.Context, reports []*models.QualityReport) error
	UpsertStations(ctx context.Context, stations []*models.WeatherStation) error
	UpsertHourlyWeather(ctx context.Context, rows []*models.HourlyWeather) error
	GetDailySummaries(ctx context.Context, filter SummaryFilter) ([]*DailySummary, error)
	GetZoneSummaries(ctx context.Context, filter SummaryFilter) ([]*ZoneSummary, error)
	GetConditionSummaries(ctx context.Context, filter SummaryFilter) ([]*ConditionSummary, error)
	GetQualityReports(ctx context.Context, filter QualityReportFilter) ([]*models.QualityReport, int, error)
	HealthCheck(ctx context.Context) error
}

// SummaryFilter narrows aggregation queries. Zero values mean no
// constraint.
type SummaryFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	Borough   string
}

// QualityReportFilter narrows the quality report stream query
type QualityReportFilter struct {
	RunID      string
	QualityTag string
	Limit      int
	Offset     int
}

// DailySummary is one row of the per-day rollup. Ratio fields are nil
// when the denominator sums to zero.
type DailySummary struct {
	TripDate       time.Time `db:"trip_date" json:"trip_date"`
	TotalTrips     int64     `db:"total_trips" json:"total_trips"`
	TotalRevenue   *float64  `db:"total_revenue" json:"total_revenue,omitempty"`
	AvgDistance    *float64  `db:"avg_distance" json:"avg_distance,omitempty"`
	AvgDurationMin *float64  `db:"avg_duration_min" json:"avg_duration_min,omitempty"`
	AvgFarePerMile *float64  `db:"avg_fare_per_mile" json:"avg_fare_per_mile,omitempty"`
	RainyTrips     int64     `db:"rainy_trips" json:"rainy_trips"`
}

// ZoneSummary is one row of the per-pickup-zone rollup
type ZoneSummary struct {
	PULocationID int64    `db:"pu_location_id" json:"pu_location_id"`
	Borough      *string  `db:"borough" json:"borough,omitempty"`
	TotalTrips   int64    `db:"total_trips" json:"total_trips"`
	AvgFare      *float64 `db:"avg_fare" json:"avg_fare,omitempty"`
	AvgDistance  *float64 `db:"avg_distance" json:"avg_distance,omitempty"`
	AvgTipPct    *float64 `db:"avg_tip_pct" json:"avg_tip_pct,omitempty"`
}

// ConditionSummary is one row of the per-weather-condition rollup
type ConditionSummary struct {
	Condition      string   `db:"weather_condition" json:"weather_condition"`
	TotalTrips     int64    `db:"total_trips" json:"total_trips"`
	AvgFare        *float64 `db:"avg_fare" json:"avg_fare,omitempty"`
	AvgDistance    *float64 `db:"avg_distance" json:"avg_distance,omitempty"`
	AvgDurationMin *float64 `db:"avg_duration_min" json:"avg_duration_min,omitempty"`
	AvgTipPct      *float64 `db:"avg_tip_pct" json:"avg_tip_pct,omitempty"`
}

// NotFoundError indicates a requested resource was not found
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// PostgresFactRepository implements FactRepository using PostgreSQL
type PostgresFactRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPostgresFactRepository creates a new PostgreSQL fact repository
func NewPostgresFactRepository(db *database.PostgresDB, logger *logging.StructuredLogger, collector *metrics.Collector) *PostgresFactRepository {
	return &PostgresFactRepository{
		db:      db,
		logger:  logger,
		metrics: collector,
	}
}

// GetWatermark returns the current high-water mark, the maximum
// trip_date present in the fact table. nil with no error means the
// table is empty and every incoming date qualifies.
func (r *PostgresFactRepository) GetWatermark(ctx context.Context) (*time.Time, error) {
	query := `SELECT MAX(trip_date) FROM trip_facts`

	var watermark sql.NullTime
	err := r.db.GetContext(ctx, "get_watermark", &watermark, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read watermark: %w", err)
	}

	if !watermark.Valid {
		return nil, nil
	}
	wm := watermark.Time.UTC()
	return &wm, nil
}

const upsertFactQuery = `
	INSERT INTO trip_facts (
		vendor_id, pickup_time, dropoff_time, pu_location_id, do_location_id,
		passenger_count, trip_distance, rate_code_id, payment_type,
		fare_amount, extra, mta_tax, tip_amount, tolls_amount,
		improvement_surcharge, congestion_surcharge, total_amount,
		trip_date, trip_year, trip_month, trip_day, trip_hour, trip_weekday,
		duration_seconds, pickup_hour, station_id, borough,
		avg_temp_f, avg_temp_c, max_precip_in, min_visibility_mi,
		avg_wind_speed_kt, max_wind_gust_kt, weather_condition,
		quality_tag, completeness_tag, processed_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
		$29, $30, $31, $32, $33, $34, $35, $36, $37
	)
	ON CONFLICT (trip_date, vendor_id, pickup_time, pu_location_id, do_location_id)
	DO UPDATE SET
		dropoff_time = EXCLUDED.dropoff_time,
		passenger_count = EXCLUDED.passenger_count,
		trip_distance = EXCLUDED.trip_distance,
		rate_code_id = EXCLUDED.rate_code_id,
		payment_type = EXCLUDED.payment_type,
		fare_amount = EXCLUDED.fare_amount,
		extra = EXCLUDED.extra,
		mta_tax = EXCLUDED.mta_tax,
		tip_amount = EXCLUDED.tip_amount,
		tolls_amount = EXCLUDED.tolls_amount,
		improvement_surcharge = EXCLUDED.improvement_surcharge,
		congestion_surcharge = EXCLUDED.congestion_surcharge,
		total_amount = EXCLUDED.total_amount,
		trip_year = EXCLUDED.trip_year,
		trip_month = EXCLUDED.trip_month,
		trip_day = EXCLUDED.trip_day,
		trip_hour = EXCLUDED.trip_hour,
		trip_weekday = EXCLUDED.trip_weekday,
		duration_seconds = EXCLUDED.duration_seconds,
		pickup_hour = EXCLUDED.pickup_hour,
		station_id = EXCLUDED.station_id,
		borough = EXCLUDED.borough,
		avg_temp_f = EXCLUDED.avg_temp_f,
		avg_temp_c = EXCLUDED.avg_temp_c,
		max_precip_in = EXCLUDED.max_precip_in,
		min_visibility_mi = EXCLUDED.min_visibility_mi,
		avg_wind_speed_kt = EXCLUDED.avg_wind_speed_kt,
		max_wind_gust_kt = EXCLUDED.max_wind_gust_kt,
		weather_condition = EXCLUDED.weather_condition,
		quality_tag = EXCLUDED.quality_tag,
		completeness_tag = EXCLUDED.completeness_tag,
		processed_at = EXCLUDED.processed_at`

// UpsertFacts writes fact rows in a single transaction. The conflict
// target is the composite business key, so replaying a batch replaces
// rows instead of duplicating them.
func (r *PostgresFactRepository) UpsertFacts(ctx context.Context, rows []*models.FactRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertFactQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert statement: %w", err)
	}
	defer stmt.Close()

	written := 0
	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.VendorID, row.PickupTime, row.DropoffTime, row.PULocationID, row.DOLocationID,
			row.PassengerCount, row.TripDistance, row.RateCodeID, row.PaymentType,
			row.FareAmount, row.Extra, row.MTATax, row.TipAmount, row.TollsAmount,
			row.ImprovementSurcharge, row.CongestionSurcharge, row.TotalAmount,
			row.TripDate, row.TripYear, row.TripMonth, row.TripDay, row.TripHour, row.TripWeekday,
			row.DurationSec, row.PickupHour, row.StationID, row.Borough,
			row.AvgTempF, row.AvgTempC, row.MaxPrecipIn, row.MinVisibilityMi,
			row.AvgWindSpeedKt, row.MaxWindGustKt, row.WeatherCondition,
			row.QualityTag, row.CompletenessTag, row.ProcessedAt,
		)
		if err != nil {
			r.metrics.RecordDBError("fact_upsert_error")
			return 0, fmt.Errorf("failed to upsert fact row: %w", err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit fact upsert: %w", err)
	}

	r.metrics.FactRowsUpserted.Add(float64(written))
	r.logger.Info(ctx, "[FACT_UPSERT] Fact rows written", logging.Fields{
		"rows": written,
	})

	return written, nil
}

// InsertQualityReports appends classified records to the report stream
func (r *PostgresFactRepository) InsertQualityReports(ctx context.Context, reports []*models.QualityReport) error {
	if len(reports) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quality_reports (
			run_id, vendor_id, pickup_time, pu_location_id, do_location_id,
			trip_date, station_id, quality_tag, completeness_tag, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`)
	if err != nil {
		return fmt.Errorf("failed to prepare quality report statement: %w", err)
	}
	defer stmt.Close()

	for _, report := range reports {
		_, err := stmt.ExecContext(ctx,
			report.RunID, report.VendorID, report.PickupTime,
			report.PULocationID, report.DOLocationID, report.TripDate,
			report.StationID, report.QualityTag, report.CompletenessTag,
			report.CreatedAt,
		)
		if err != nil {
			r.metrics.RecordDBError("quality_report_insert_error")
			return fmt.Errorf("failed to insert quality report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit quality reports: %w", err)
	}

	return nil
}

// UpsertStations writes station metadata. A row only replaces an
// existing one when it carries a newer latest observation.
func (r *PostgresFactRepository) UpsertStations(ctx context.Context, stations []*models.WeatherStation) error {
	if len(stations) == 0 {
		return nil
	}

	query := `
		INSERT INTO weather_stations (station_id, name, borough, latest_observation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (station_id)
		DO UPDATE SET
			name = EXCLUDED.name,
			borough = EXCLUDED.borough,
			latest_observation = EXCLUDED.latest_observation
		WHERE weather_stations.latest_observation < EXCLUDED.latest_observation`

	for _, station := range stations {
		_, err := r.db.ExecContext(ctx, "upsert_station", query,
			station.StationID, station.Name, station.Borough, station.LatestObservation)
		if err != nil {
			return fmt.Errorf("failed to upsert station %s: %w", station.StationID, err)
		}
	}

	return nil
}

// UpsertHourlyWeather persists aggregated station-hour rows. The
// primary key (station_id, hour) enforces one row per station-hour.
func (r *PostgresFactRepository) UpsertHourlyWeather(ctx context.Context, rows []*models.HourlyWeather) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hourly_weather (
			station_id, hour, avg_temp_f, avg_temp_c, max_precip_in,
			min_visibility_mi, avg_wind_speed_kt, max_wind_gust_kt,
			observation_count, condition
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (station_id, hour)
		DO UPDATE SET
			avg_temp_f = EXCLUDED.avg_temp_f,
			avg_temp_c = EXCLUDED.avg_temp_c,
			max_precip_in = EXCLUDED.max_precip_in,
			min_visibility_mi = EXCLUDED.min_visibility_mi,
			avg_wind_speed_kt = EXCLUDED.avg_wind_speed_kt,
			max_wind_gust_kt = EXCLUDED.max_wind_gust_kt,
			observation_count = EXCLUDED.observation_count,
			condition = EXCLUDED.condition`)
	if err != nil {
		return fmt.Errorf("failed to prepare hourly weather statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.StationID, row.Hour, row.AvgTempF, row.AvgTempC, row.MaxPrecipIn,
			row.MinVisibilityMi, row.AvgWindSpeedKt, row.MaxWindGustKt,
			row.ObservationCount, row.Condition,
		)
		if err != nil {
			r.metrics.RecordDBError("hourly_weather_upsert_error")
			return fmt.Errorf("failed to upsert hourly weather: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit hourly weather: %w", err)
	}

	return nil
}

// GetDailySummaries returns the per-day rollup over Valid facts.
// Ratio columns guard their denominators with NULLIF so a zero sum
// yields NULL instead of an error.
func (r *PostgresFactRepository) GetDailySummaries(ctx context.Context, filter SummaryFilter) ([]*DailySummary, error) {
	query := `
		SELECT
			trip_date,
			COUNT(*) AS total_trips,
			SUM(total_amount) AS total_revenue,
			AVG(trip_distance) AS avg_distance,
			AVG(duration_seconds) / 60.0 AS avg_duration_min,
			SUM(fare_amount) / NULLIF(SUM(trip_distance), 0) AS avg_fare_per_mile,
			COUNT(*) FILTER (WHERE weather_condition = 'Rainy') AS rainy_trips
		FROM trip_facts
		WHERE 1=1`

	args := []interface{}{}
	argNum := 1

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND trip_date >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND trip_date <= $%d", argNum)
		args = append(args, *filter.EndDate)
		argNum++
	}
	if filter.Borough != "" {
		query += fmt.Sprintf(" AND borough = $%d", argNum)
		args = append(args, filter.Borough)
		argNum++
	}

	query += " GROUP BY trip_date ORDER BY trip_date"

	var summaries []*DailySummary
	if err := r.db.SelectContext(ctx, "daily_summaries", &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query daily summaries: %w", err)
	}

	return summaries, nil
}

// GetZoneSummaries returns the per-pickup-zone rollup over Valid facts
func (r *PostgresFactRepository) GetZoneSummaries(ctx context.Context, filter SummaryFilter) ([]*ZoneSummary, error) {
	query := `
		SELECT
			pu_location_id,
			MAX(borough) AS borough,
			COUNT(*) AS total_trips,
			AVG(fare_amount) AS avg_fare,
			AVG(trip_distance) AS avg_distance,
			SUM(tip_amount) / NULLIF(SUM(fare_amount), 0) * 100.0 AS avg_tip_pct
		FROM trip_facts
		WHERE 1=1`

	args := []interface{}{}
	argNum := 1

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND trip_date >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND trip_date <= $%d", argNum)
		args = append(args, *filter.EndDate)
		argNum++
	}
	if filter.Borough != "" {
		query += fmt.Sprintf(" AND borough = $%d", argNum)
		args = append(args, filter.Borough)
		argNum++
	}

	query += " GROUP BY pu_location_id ORDER BY total_trips DESC"

	var summaries []*ZoneSummary
	if err := r.db.SelectContext(ctx, "zone_summaries", &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query zone summaries: %w", err)
	}

	return summaries, nil
}

// GetConditionSummaries returns the per-weather-condition rollup.
// Facts without a matched weather row fall out of this view.
func (r *PostgresFactRepository) GetConditionSummaries(ctx context.Context, filter SummaryFilter) ([]*ConditionSummary, error) {
	query := `
		SELECT
			weather_condition,
			COUNT(*) AS total_trips,
			AVG(fare_amount) AS avg_fare,
			AVG(trip_distance) AS avg_distance,
			AVG(duration_seconds) / 60.0 AS avg_duration_min,
			SUM(tip_amount) / NULLIF(SUM(fare_amount), 0) * 100.0 AS avg_tip_pct
		FROM trip_facts
		WHERE weather_condition IS NOT NULL`

	args := []interface{}{}
	argNum := 1

	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND trip_date >= $%d", argNum)
		args = append(args, *filter.StartDate)
		argNum++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND trip_date <= $%d", argNum)
		args = append(args, *filter.EndDate)
		argNum++
	}

	query += " GROUP BY weather_condition ORDER BY total_trips DESC"

	var summaries []*ConditionSummary
	if err := r.db.SelectContext(ctx, "condition_summaries", &summaries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query condition summaries: %w", err)
	}

	return summaries, nil
}

// GetQualityReports returns a page of the quality report stream plus
// the total matching count.
func (r *PostgresFactRepository) GetQualityReports(ctx context.Context, filter QualityReportFilter) ([]*models.QualityReport, int, error) {
	countQuery := `SELECT COUNT(*) FROM quality_reports WHERE 1=1`
	query := `
		SELECT id, run_id, vendor_id, pickup_time, pu_location_id, do_location_id,
		       trip_date, station_id, quality_tag, completeness_tag, created_at
		FROM quality_reports
		WHERE 1=1`

	args := []interface{}{}
	argNum := 1

	if filter.RunID != "" {
		clause := fmt.Sprintf(" AND run_id = $%d", argNum)
		countQuery += clause
		query += clause
		args = append(args, filter.RunID)
		argNum++
	}
	if filter.QualityTag != "" {
		clause := fmt.Sprintf(" AND quality_tag = $%d", argNum)
		countQuery += clause
		query += clause
		args = append(args, filter.QualityTag)
		argNum++
	}

	var total int
	if err := r.db.GetContext(ctx, "quality_reports_count", &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count quality reports: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, limit, filter.Offset)

	var reports []*models.QualityReport
	if err := r.db.SelectContext(ctx, "quality_reports", &reports, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to query quality reports: %w", err)
	}

	return reports, total, nil
}

// HealthCheck verifies database connectivity
func (r *PostgresFactRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
