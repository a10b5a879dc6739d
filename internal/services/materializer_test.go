package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taxi-weather-platform/internal/models"
)

// fakeFactStore keeps fact rows in memory keyed by business key, the
// same uniqueness contract the database enforces.
type fakeFactStore struct {
	rows         map[models.FactKey]*models.FactRow
	watermarkErr error
	upsertErr    error
	upsertCalls  int
}

func newFakeFactStore() *fakeFactStore {
	return &fakeFactStore{rows: make(map[models.FactKey]*models.FactRow)}
}

func (s *fakeFactStore) GetWatermark(ctx context.Context) (*time.Time, error) {
	if s.watermarkErr != nil {
		return nil, s.watermarkErr
	}
	var max *time.Time
	for _, row := range s.rows {
		if max == nil || row.TripDate.After(*max) {
			d := row.TripDate
			max = &d
		}
	}
	return max, nil
}

func (s *fakeFactStore) UpsertFacts(ctx context.Context, rows []*models.FactRow) (int, error) {
	s.upsertCalls++
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	for _, row := range rows {
		key := models.FactKey{
			PickupTime:   row.PickupTime,
			PULocationID: row.PULocationID,
			DOLocationID: row.DOLocationID,
			VendorID:     row.VendorID,
		}
		s.rows[key] = row
	}
	return len(rows), nil
}

func newTestMaterializer(store FactStore) *IncrementalMaterializer {
	return NewIncrementalMaterializer(store, newTestLogger(), newTestMetrics(), clockwork.NewFakeClockAt(testNow))
}

func validTripOn(date time.Time, vendor, pu, do int64) *models.EnrichedTrip {
	e := validEnrichedTrip()
	pickup := date.Add(14 * time.Hour)
	e.Trip.VendorID = i64(vendor)
	e.Trip.PULocationID = i64(pu)
	e.Trip.DOLocationID = i64(do)
	e.Trip.PickupTime = ts(pickup)
	e.Trip.TripDate = ts(date)
	e.QualityTag = models.QualityValid
	e.CompletenessTag = models.CompletenessComplete
	return e
}

func TestMaterializer_EmptyTableAcceptsEverything(t *testing.T) {
	store := newFakeFactStore()
	m := newTestMaterializer(store)

	d1 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)

	result, err := m.Materialize(context.Background(), []*models.EnrichedTrip{
		validTripOn(d1, 1, 100, 200),
		validTripOn(d2, 2, 101, 201),
	})
	require.NoError(t, err)

	assert.Nil(t, result.Watermark)
	assert.Equal(t, 2, result.Upserted)
	assert.Len(t, store.rows, 2)
}

func TestMaterializer_FiltersAtOrBelowWatermark(t *testing.T) {
	store := newFakeFactStore()
	m := newTestMaterializer(store)

	d1 := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC)
	d3 := time.Date(2024, 3, 17, 0, 0, 0, 0, time.UTC)

	_, err := m.Materialize(context.Background(), []*models.EnrichedTrip{
		validTripOn(d2, 1, 100, 200),
	})
	require.NoError(t, err)

	// Watermark is now d2: only d3 passes
	result, err := m.Materialize(context.Background(), []*models.EnrichedTrip{
		validTripOn(d1, 2, 101, 201),
		validTripOn(d2, 3, 102, 202),
		validTripOn(d3, 4, 103, 203),
	})
	require.NoError(t, err)

	require.NotNil(t, result.Watermark)
	assert.True(t, result.Watermark.Equal(d2))
	assert.Equal(t, 2, result.BelowWatermark)
	assert.Equal(t, 1, result.Upserted)
	assert.Len(t, store.rows, 2)
}

func TestMaterializer_OnlyValidRecordsMaterialize(t *testing.T) {
	store := newFakeFactStore()
	m := newTestMaterializer(store)

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	rejected := validTripOn(d, 1, 100, 200)
	rejected.QualityTag = models.QualityMissingWeather

	result, err := m.Materialize(context.Background(), []*models.EnrichedTrip{
		rejected,
		validTripOn(d, 2, 101, 201),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.NotValid)
	assert.Equal(t, 1, result.Upserted)
	assert.Len(t, store.rows, 1)
}

func TestMaterializer_WatermarkErrorAbortsBeforeWrites(t *testing.T) {
	store := newFakeFactStore()
	store.watermarkErr = errors.New("connection refused")
	m := newTestMaterializer(store)

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	_, err := m.Materialize(context.Background(), []*models.EnrichedTrip{
		validTripOn(d, 1, 100, 200),
	})

	require.Error(t, err)
	assert.Equal(t, 0, store.upsertCalls, "no write may happen after a watermark failure")
	assert.Empty(t, store.rows)
}

func TestMaterializer_Idempotent(t *testing.T) {
	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	batch := func() []*models.EnrichedTrip {
		return []*models.EnrichedTrip{
			validTripOn(d, 1, 100, 200),
			validTripOn(d, 2, 101, 201),
		}
	}

	store := newFakeFactStore()
	m := newTestMaterializer(store)

	_, err := m.Materialize(context.Background(), batch())
	require.NoError(t, err)
	require.Len(t, store.rows, 2)

	// Replaying the same batch leaves the table unchanged
	result, err := m.Materialize(context.Background(), batch())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Upserted)
	assert.Equal(t, 2, result.BelowWatermark)
	assert.Len(t, store.rows, 2)
}

func TestMaterializer_LastDuplicateInBatchWins(t *testing.T) {
	store := newFakeFactStore()
	m := newTestMaterializer(store)

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	first := validTripOn(d, 1, 100, 200)
	first.Trip.FareAmount = f64(10)
	second := validTripOn(d, 1, 100, 200)
	second.Trip.FareAmount = f64(99)

	result, err := m.Materialize(context.Background(), []*models.EnrichedTrip{first, second})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Upserted)
	require.Len(t, store.rows, 1)
	for _, row := range store.rows {
		assert.InDelta(t, 99.0, *row.FareAmount, 1e-9)
	}
}

func TestMaterializer_MissingKeyNeverMaterializes(t *testing.T) {
	store := newFakeFactStore()
	m := newTestMaterializer(store)

	d := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	e := validTripOn(d, 1, 100, 200)
	e.Trip.DOLocationID = nil

	result, err := m.Materialize(context.Background(), []*models.EnrichedTrip{e})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MissingKey)
	assert.Empty(t, store.rows)
}
