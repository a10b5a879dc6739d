package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-weather-platform/internal/models"
)

func TestSerializeReport(t *testing.T) {
	stationID := "KNYC"
	tripDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	report := &models.QualityReport{
		RunID:           "0f3e8a1c-9f1d-4a6e-8b0a-2d4f5c6e7a8b",
		TripDate:        &tripDate,
		StationID:       &stationID,
		QualityTag:      models.QualityValid,
		CompletenessTag: models.CompletenessComplete,
	}

	msg, err := serializeReport(report)
	require.NoError(t, err)

	assert.Equal(t, []byte(report.RunID), msg.Key)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "quality_tag", msg.Headers[0].Key)
	assert.Equal(t, []byte(models.QualityValid), msg.Headers[0].Value)
	assert.Equal(t, "completeness_tag", msg.Headers[1].Key)
	assert.Equal(t, []byte(models.CompletenessComplete), msg.Headers[1].Value)

	var decoded models.QualityReport
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, models.QualityValid, decoded.QualityTag)
	require.NotNil(t, decoded.StationID)
	assert.Equal(t, "KNYC", *decoded.StationID)
}
