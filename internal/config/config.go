package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application settings, populated from environment variables.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	Kafka     KafkaConfig
	Pipeline  PipelineConfig
	Quality   QualityConfig
	Weather   WeatherConfig
	Reference ReferenceConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host         string
	Port         int `validate:"gt=0,lte=65535"`
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string `validate:"required"`
	Port            int    `validate:"gt=0,lte=65535"`
	User            string `validate:"required"`
	Password        string
	Database        string `validate:"required"`
	SSLMode         string `validate:"oneof=disable require verify-ca verify-full"`
	MaxOpenConns    int    `validate:"gt=0"`
	MaxIdleConns    int    `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

// KafkaConfig holds the optional quality-report stream settings
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	QualityTopic string
}

// PipelineConfig holds batch processing settings
type PipelineConfig struct {
	Workers   int `validate:"gt=0"`
	BatchSize int `validate:"gt=0"`
}

// QualityConfig holds the classification thresholds. All externally
// supplied; classification logic carries no hard-coded values.
type QualityConfig struct {
	MinValidDate       time.Time `validate:"required"`
	RecentGraceDays    int       `validate:"gte=0"`
	MinTripDurationSec int       `validate:"gte=0"`
	MaxTripDurationSec int       `validate:"gt=0"`
	MinTripDistance    float64   `validate:"gte=0"`
	InvalidFareBelow   float64
	DefaultPassengers  int `validate:"gt=0"`
}

// WeatherConfig holds the thresholds for the derived weather condition
type WeatherConfig struct {
	RainPrecipThreshold    float64 `validate:"gte=0"` // inches per hour
	LowVisibilityThreshold float64 `validate:"gte=0"` // miles
	FreezingTempF          float64
	HotTempF               float64
}

// ReferenceConfig holds static reference data locations and overrides
type ReferenceConfig struct {
	ZoneLookupPath    string `validate:"required"`
	BoroughStationMap map[string]string
}

// defaultBoroughStations maps each taxi borough to its weather station.
// One station per borough, not per zone.
var defaultBoroughStations = map[string]string{
	"Manhattan":     "KNYC",
	"Queens":        "KLGA",
	"Brooklyn":      "KJFK",
	"Bronx":         "KLGA",
	"Staten Island": "KEWR",
	"EWR":           "KEWR",
}

// LoadConfig reads configuration from environment variables, applying
// defaults where unset. A .env file is loaded first when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	minValidDate, err := time.Parse("2006-01-02", envOrDefault("MIN_VALID_DATE", "2020-01-01"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_VALID_DATE: %w", err)
	}

	boroughStations, err := parseBoroughStationMap(os.Getenv("BOROUGH_STATION_MAP"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:         envOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         envIntOrDefault("SERVER_PORT", 8080),
			ReadTimeout:  envDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: envDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  envDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            envOrDefault("DB_HOST", "localhost"),
			Port:            envIntOrDefault("DB_PORT", 5432),
			User:            envOrDefault("DB_USER", "postgres"),
			Password:        os.Getenv("DB_PASSWORD"),
			Database:        envOrDefault("DB_NAME", "taxi_weather"),
			SSLMode:         envOrDefault("DB_SSLMODE", "disable"),
			MaxOpenConns:    envIntOrDefault("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDurationOrDefault("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: envDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: envOrDefault("LOG_LEVEL", "info"),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefault("KAFKA_ENABLED", "false") == "true",
			Brokers:      splitNonEmpty(envOrDefault("KAFKA_BROKERS", "localhost:9092"), ","),
			QualityTopic: envOrDefault("KAFKA_QUALITY_TOPIC", "trip-quality-reports"),
		},
		Pipeline: PipelineConfig{
			Workers:   envIntOrDefault("PIPELINE_WORKERS", 4),
			BatchSize: envIntOrDefault("PIPELINE_BATCH_SIZE", 5000),
		},
		Quality: QualityConfig{
			MinValidDate:       minValidDate,
			RecentGraceDays:    envIntOrDefault("RECENT_GRACE_DAYS", 2),
			MinTripDurationSec: envIntOrDefault("MIN_TRIP_DURATION_SECONDS", 60),
			MaxTripDurationSec: envIntOrDefault("MAX_TRIP_DURATION_SECONDS", 86400),
			MinTripDistance:    envFloatOrDefault("MIN_TRIP_DISTANCE", 0.0),
			InvalidFareBelow:   envFloatOrDefault("INVALID_FARE_THRESHOLD", 0.0),
			DefaultPassengers:  envIntOrDefault("DEFAULT_PASSENGER_COUNT", 1),
		},
		Weather: WeatherConfig{
			RainPrecipThreshold:    envFloatOrDefault("RAIN_PRECIP_THRESHOLD", 0.05),
			LowVisibilityThreshold: envFloatOrDefault("LOW_VISIBILITY_THRESHOLD", 2.0),
			FreezingTempF:          envFloatOrDefault("FREEZING_TEMP_F", 32.0),
			HotTempF:               envFloatOrDefault("HOT_TEMP_F", 85.0),
		},
		Reference: ReferenceConfig{
			ZoneLookupPath:    envOrDefault("ZONE_LOOKUP_PATH", "reference/taxi_zone_lookup.csv"),
			BoroughStationMap: boroughStations,
		},
	}

	return cfg, nil
}

// Validate checks the configuration. A missing required threshold is a
// startup failure, before any row is processed.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if c.Quality.MaxTripDurationSec <= c.Quality.MinTripDurationSec {
		return fmt.Errorf("MAX_TRIP_DURATION_SECONDS must exceed MIN_TRIP_DURATION_SECONDS")
	}
	if len(c.Reference.BoroughStationMap) == 0 {
		return fmt.Errorf("borough to station map is empty")
	}

	return nil
}

// parseBoroughStationMap parses an override of the form
// "Manhattan=KNYC,Queens=KLGA". An empty override keeps the defaults.
func parseBoroughStationMap(raw string) (map[string]string, error) {
	if raw == "" {
		m := make(map[string]string, len(defaultBoroughStations))
		for k, v := range defaultBoroughStations {
			m[k] = v
		}
		return m, nil
	}

	m := make(map[string]string)
	for _, pair := range splitNonEmpty(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid BOROUGH_STATION_MAP entry: %q", pair)
		}
		m[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return m, nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloatOrDefault(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
