package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/repository"
	"taxi-weather-platform/internal/services"
	"taxi-weather-platform/internal/stream"
	"taxi-weather-platform/pkg/database"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

func main() {
	// Parse command-line flags
	tripsDir := flag.String("trips-dir", "./data/trips", "Directory containing taxi trip CSV files")
	weatherDir := flag.String("weather-dir", "./data/weather", "Directory containing ASOS weather CSV files")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("taxi-weather-pipeline", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[PIPELINE_BOOT] Starting taxi weather pipeline", logging.Fields{
		"version":     "1.0.0",
		"trips_dir":   *tripsDir,
		"weather_dir": *weatherDir,
		"workers":     cfg.Pipeline.Workers,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("taxi_weather_pipeline")

	// Initialize database
	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[PIPELINE_BOOT_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	// Initialize repository
	factRepo := repository.NewPostgresFactRepository(db, logger, metricsCollector)

	// Load the zone to borough reference table
	zoneBorough, err := services.LoadZoneLookup(cfg.Reference.ZoneLookupPath)
	if err != nil {
		logger.Fatal(ctx, "[PIPELINE_BOOT_ERROR] Failed to load zone lookup", logging.Fields{
			"path": cfg.Reference.ZoneLookupPath,
		}, err)
	}

	clock := clockwork.NewRealClock()

	// Initialize services
	ingestionService := services.NewIngestionService(logger, metricsCollector)
	resolver := services.NewZoneStationResolver(zoneBorough, cfg.Reference.BoroughStationMap)
	classifier := services.NewQualityClassifier(cfg.Quality, clock)
	materializer := services.NewIncrementalMaterializer(factRepo, logger, metricsCollector, clock)

	var publisher services.ReportPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher := stream.NewQualityPublisher(cfg.Kafka, logger)
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	pipeline := services.NewPipelineService(
		factRepo, resolver, classifier, materializer, publisher,
		logger, metricsCollector, clock, cfg.Weather, cfg.Pipeline.Workers,
	)

	// Read input files
	trips, tripsIngest, err := ingestionService.ReadTripsDir(ctx, *tripsDir)
	if err != nil {
		logger.Fatal(ctx, "[PIPELINE_INPUT_ERROR] Failed to read trip files", logging.Fields{}, err)
	}

	observations, weatherIngest, err := ingestionService.ReadWeatherDir(ctx, *weatherDir)
	if err != nil {
		logger.Fatal(ctx, "[PIPELINE_INPUT_ERROR] Failed to read weather files", logging.Fields{}, err)
	}

	// Run the pipeline
	result, err := pipeline.Run(ctx, trips, observations)
	if err != nil {
		logger.Fatal(ctx, "[PIPELINE_RUN_ERROR] Pipeline run failed", logging.Fields{}, err)
	}

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("PIPELINE RUN COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Run ID:             %s\n", result.RunID)
	fmt.Printf("Trip Files:         %d (%d rows, %d skipped)\n",
		tripsIngest.FilesProcessed, tripsIngest.RowsParsed, tripsIngest.RowsSkipped)
	fmt.Printf("Weather Files:      %d (%d rows, %d skipped)\n",
		weatherIngest.FilesProcessed, weatherIngest.RowsParsed, weatherIngest.RowsSkipped)
	fmt.Printf("Station Hours:      %d\n", result.StationHours)
	fmt.Printf("Duration:           %v\n", result.Duration)

	fmt.Println("\nQuality tags:")
	printCounts(result.QualityCounts)
	fmt.Println("\nCompleteness tags:")
	printCounts(result.CompletenessCounts)

	m := result.Materialize
	fmt.Println("\nMaterialization:")
	fmt.Printf("  Watermark:        %s\n", formatWatermark(m.Watermark))
	fmt.Printf("  Candidates:       %d\n", m.Candidates)
	fmt.Printf("  Below Watermark:  %d\n", m.BelowWatermark)
	fmt.Printf("  Not Valid:        %d\n", m.NotValid)
	fmt.Printf("  Upserted:         %d\n", m.Upserted)

	logger.Info(ctx, "[PIPELINE_EXIT] Pipeline run finished", logging.Fields{
		"run_id":   result.RunID,
		"trips_in": result.TripsIn,
		"upserted": m.Upserted,
	})
}

func printCounts(counts map[string]int) {
	tags := make([]string, 0, len(counts))
	for tag := range counts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Printf("  %-30s %d\n", tag, counts[tag])
	}
}

func formatWatermark(wm *time.Time) string {
	if wm == nil {
		return "none (empty fact table)"
	}
	return wm.Format("2006-01-02")
}
