package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/models"
	"taxi-weather-platform/internal/repository"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

// ReportPublisher pushes quality reports to an external stream.
// A nil publisher disables streaming without changing the run.
type ReportPublisher interface {
	PublishReports(ctx context.Context, reports []*models.QualityReport) error
}

// PipelineResult summarizes one end-to-end pipeline run
type PipelineResult struct {
	RunID              string             `json:"run_id"`
	TripsIn            int                `json:"trips_in"`
	ObservationsIn     int                `json:"observations_in"`
	StationHours       int                `json:"station_hours"`
	QualityCounts      map[string]int     `json:"quality_counts"`
	CompletenessCounts map[string]int     `json:"completeness_counts"`
	Materialize        *MaterializeResult `json:"materialize,omitempty"`
	Duration           time.Duration      `json:"duration"`
}

// PipelineService runs the full normalize, resolve, join, classify and
// materialize sequence over one batch of trips and observations.
type PipelineService struct {
	repo         repository.FactRepository
	resolver     *ZoneStationResolver
	classifier   *QualityClassifier
	materializer *IncrementalMaterializer
	publisher    ReportPublisher
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	clock        clockwork.Clock
	weatherCfg   config.WeatherConfig
	workers      int
}

// NewPipelineService creates a new pipeline service. publisher may be
// nil when Kafka streaming is disabled.
func NewPipelineService(
	repo repository.FactRepository,
	resolver *ZoneStationResolver,
	classifier *QualityClassifier,
	materializer *IncrementalMaterializer,
	publisher ReportPublisher,
	logger *logging.StructuredLogger,
	collector *metrics.Collector,
	clock clockwork.Clock,
	weatherCfg config.WeatherConfig,
	workers int,
) *PipelineService {
	if workers < 1 {
		workers = 1
	}
	return &PipelineService{
		repo:         repo,
		resolver:     resolver,
		classifier:   classifier,
		materializer: materializer,
		publisher:    publisher,
		logger:       logger,
		metrics:      collector,
		clock:        clock,
		weatherCfg:   weatherCfg,
		workers:      workers,
	}
}

// Run executes one pipeline pass. Quality report persistence and
// streaming failures are logged and do not stop the run; a
// materialization failure does.
func (s *PipelineService) Run(ctx context.Context, trips []*models.TripRecord, observations []*models.WeatherObservation) (*PipelineResult, error) {
	start := s.clock.Now()

	runID := uuid.NewString()
	ctx = context.WithValue(ctx, logging.RunIDKey, runID)

	s.logger.Info(ctx, "[PIPELINE_START] Pipeline run starting", logging.Fields{
		"trips":        len(trips),
		"observations": len(observations),
		"workers":      s.workers,
	})
	s.metrics.PipelineBatchSize.Observe(float64(len(trips)))

	index := s.buildWeatherIndex(ctx, observations)
	enriched := s.enrichAll(ctx, trips, index)
	s.reportQuality(ctx, runID, enriched)

	stageStart := s.clock.Now()
	materializeResult, err := s.materializer.Materialize(ctx, enriched)
	if err != nil {
		return nil, err
	}
	s.metrics.PipelineStageDuration.WithLabelValues("materialize").Observe(s.clock.Now().Sub(stageStart).Seconds())

	result := &PipelineResult{
		RunID:              runID,
		TripsIn:            len(trips),
		ObservationsIn:     len(observations),
		StationHours:       index.Len(),
		QualityCounts:      make(map[string]int),
		CompletenessCounts: make(map[string]int),
		Materialize:        materializeResult,
		Duration:           s.clock.Now().Sub(start),
	}
	for _, e := range enriched {
		result.QualityCounts[e.QualityTag]++
		result.CompletenessCounts[e.CompletenessTag]++
	}

	s.logger.Info(ctx, "[PIPELINE_DONE] Pipeline run finished", logging.Fields{
		"trips_in":      result.TripsIn,
		"station_hours": result.StationHours,
		"valid":         result.QualityCounts[models.QualityValid],
		"upserted":      materializeResult.Upserted,
		"duration_ms":   result.Duration.Milliseconds(),
	})

	return result, nil
}

// buildWeatherIndex aggregates observations into station-hours and
// persists the rollup and station registry alongside.
func (s *PipelineService) buildWeatherIndex(ctx context.Context, observations []*models.WeatherObservation) *HourlyWeatherIndex {
	stageStart := s.clock.Now()
	index := BuildHourlyIndex(observations, s.weatherCfg)
	s.metrics.PipelineStageDuration.WithLabelValues("weather_aggregate").Observe(s.clock.Now().Sub(stageStart).Seconds())

	for _, station := range s.resolver.Stations() {
		if !index.HasStation(station) {
			s.logger.Warn(ctx, "[PIPELINE_WEATHER_GAP] Mapped station has no observations in batch", logging.Fields{
				"station": station,
			})
		}
	}

	if err := s.repo.UpsertHourlyWeather(ctx, index.Rows()); err != nil {
		s.logger.Error(ctx, "[PIPELINE_WEATHER_PERSIST] Failed to persist hourly weather", logging.Fields{}, err)
		s.metrics.RecordPipelineError("hourly_weather_persist")
	}

	stations := BuildStationRegistry(observations, s.resolver.BoroughStations())
	if err := s.repo.UpsertStations(ctx, stations); err != nil {
		s.logger.Error(ctx, "[PIPELINE_STATION_PERSIST] Failed to persist station registry", logging.Fields{}, err)
		s.metrics.RecordPipelineError("station_persist")
	}

	return index
}

// enrichAll runs resolve, join and classify over the batch with a
// bounded worker pool. Output order matches input order so later
// within-batch duplicates still win in the materializer.
func (s *PipelineService) enrichAll(ctx context.Context, trips []*models.TripRecord, index *HourlyWeatherIndex) []*models.EnrichedTrip {
	stageStart := s.clock.Now()

	enriched := make([]*models.EnrichedTrip, len(trips))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				enriched[i] = s.enrich(trips[i], index)
			}
		}()
	}

	for i := range trips {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	s.metrics.PipelineStageDuration.WithLabelValues("enrich").Observe(s.clock.Now().Sub(stageStart).Seconds())
	return enriched
}

func (s *PipelineService) enrich(trip *models.TripRecord, index *HourlyWeatherIndex) *models.EnrichedTrip {
	e := &models.EnrichedTrip{Trip: *trip}

	resolved := false
	if trip.PULocationID != nil {
		if stationID, borough, ok := s.resolver.Resolve(*trip.PULocationID); ok {
			e.StationID = &stationID
			e.Borough = &borough
			resolved = true

			if hw, matched := index.Match(trip, stationID); matched {
				e.Weather = hw
				s.metrics.RecordJoinOutcome(true)
			} else {
				s.metrics.RecordJoinOutcome(false)
			}
		}
	}
	s.metrics.RecordResolution(resolved)

	s.classifier.Classify(e)
	s.metrics.RecordQualityTag(e.QualityTag, e.CompletenessTag)
	return e
}

// reportQuality persists the quality report stream and, when
// configured, publishes it to Kafka. Both paths are best-effort.
func (s *PipelineService) reportQuality(ctx context.Context, runID string, enriched []*models.EnrichedTrip) {
	createdAt := s.clock.Now().UTC()
	reports := make([]*models.QualityReport, len(enriched))
	for i, e := range enriched {
		reports[i] = e.ToQualityReport(runID, createdAt)
	}

	if err := s.repo.InsertQualityReports(ctx, reports); err != nil {
		s.logger.Error(ctx, "[PIPELINE_QUALITY_PERSIST] Failed to persist quality reports", logging.Fields{}, err)
		s.metrics.RecordPipelineError("quality_report_persist")
	}

	if s.publisher != nil {
		if err := s.publisher.PublishReports(ctx, reports); err != nil {
			s.logger.Error(ctx, "[PIPELINE_QUALITY_PUBLISH] Failed to publish quality reports", logging.Fields{}, err)
			s.metrics.RecordPipelineError("quality_report_publish")
		}
	}
}
