package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "taxi_weather", cfg.Database.Database)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 4, cfg.Pipeline.Workers)

	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), cfg.Quality.MinValidDate)
	assert.Equal(t, 2, cfg.Quality.RecentGraceDays)
	assert.Equal(t, 60, cfg.Quality.MinTripDurationSec)
	assert.Equal(t, 86400, cfg.Quality.MaxTripDurationSec)

	assert.InDelta(t, 0.05, cfg.Weather.RainPrecipThreshold, 1e-9)
	assert.InDelta(t, 2.0, cfg.Weather.LowVisibilityThreshold, 1e-9)

	assert.Equal(t, "KNYC", cfg.Reference.BoroughStationMap["Manhattan"])
	assert.Equal(t, "KLGA", cfg.Reference.BoroughStationMap["Bronx"])

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MIN_VALID_DATE", "2021-06-01")
	t.Setenv("RECENT_GRACE_DAYS", "5")
	t.Setenv("RAIN_PRECIP_THRESHOLD", "0.10")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Quality.MinValidDate)
	assert.Equal(t, 5, cfg.Quality.RecentGraceDays)
	assert.InDelta(t, 0.10, cfg.Weather.RainPrecipThreshold, 1e-9)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadConfig_InvalidMinValidDate(t *testing.T) {
	t.Setenv("MIN_VALID_DATE", "01/01/2020")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_BoroughStationOverride(t *testing.T) {
	t.Setenv("BOROUGH_STATION_MAP", "Manhattan=KNYC,Queens=KJFK")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Manhattan": "KNYC",
		"Queens":    "KJFK",
	}, cfg.Reference.BoroughStationMap)
}

func TestLoadConfig_BadBoroughStationOverride(t *testing.T) {
	t.Setenv("BOROUGH_STATION_MAP", "Manhattan")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func(t *testing.T) *Config {
		t.Helper()
		cfg, err := LoadConfig()
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"zero server port", func(cfg *Config) { cfg.Server.Port = 0 }},
		{"missing db host", func(cfg *Config) { cfg.Database.Host = "" }},
		{"bad ssl mode", func(cfg *Config) { cfg.Database.SSLMode = "maybe" }},
		{"bad log level", func(cfg *Config) { cfg.Logging.Level = "verbose" }},
		{"zero workers", func(cfg *Config) { cfg.Pipeline.Workers = 0 }},
		{"negative grace days", func(cfg *Config) { cfg.Quality.RecentGraceDays = -1 }},
		{"max duration below min", func(cfg *Config) {
			cfg.Quality.MinTripDurationSec = 600
			cfg.Quality.MaxTripDurationSec = 60
		}},
		{"kafka enabled without brokers", func(cfg *Config) {
			cfg.Kafka.Enabled = true
			cfg.Kafka.Brokers = nil
		}},
		{"empty borough map", func(cfg *Config) { cfg.Reference.BoroughStationMap = nil }},
		{"missing zone lookup path", func(cfg *Config) { cfg.Reference.ZoneLookupPath = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base(t)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
