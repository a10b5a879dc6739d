package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"taxi-weather-platform/internal/models"
	"taxi-weather-platform/pkg/logging"
	"taxi-weather-platform/pkg/metrics"
)

// FactStore is the persistence surface the materializer needs
type FactStore interface {
	GetWatermark(ctx context.Context) (*time.Time, error)
	UpsertFacts(ctx context.Context, rows []*models.FactRow) (int, error)
}

// MaterializeResult summarizes one materialization run
type MaterializeResult struct {
	Watermark      *time.Time    `json:"watermark,omitempty"`
	Candidates     int           `json:"candidates"`
	BelowWatermark int           `json:"below_watermark"`
	NotValid       int           `json:"not_valid"`
	MissingKey     int           `json:"missing_key"`
	Upserted       int           `json:"upserted"`
	Duration       time.Duration `json:"duration"`
}

// IncrementalMaterializer advances the fact table by watermark.
// Only Valid records dated after the current high-water mark are
// written; everything else in the batch is counted and dropped.
// Concurrent runs are not supported and must be serialized by the
// caller.
type IncrementalMaterializer struct {
	store   FactStore
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	clock   clockwork.Clock
}

// NewIncrementalMaterializer creates a new materializer
func NewIncrementalMaterializer(store FactStore, logger *logging.StructuredLogger, collector *metrics.Collector, clock clockwork.Clock) *IncrementalMaterializer {
	return &IncrementalMaterializer{
		store:   store,
		logger:  logger,
		metrics: collector,
		clock:   clock,
	}
}

// Materialize runs one incremental pass over a classified batch.
// A watermark read failure aborts the run before any write; a partial
// or assumed-empty watermark is never substituted.
func (m *IncrementalMaterializer) Materialize(ctx context.Context, batch []*models.EnrichedTrip) (*MaterializeResult, error) {
	start := m.clock.Now()

	watermark, err := m.store.GetWatermark(ctx)
	if err != nil {
		m.metrics.RecordPipelineError("watermark_read")
		m.logger.Error(ctx, "[MATERIALIZE_ABORT] Watermark unreadable, aborting before any write", logging.Fields{}, err)
		return nil, fmt.Errorf("watermark read failed, run aborted: %w", err)
	}

	result := &MaterializeResult{
		Watermark:  watermark,
		Candidates: len(batch),
	}

	processedAt := m.clock.Now().UTC()

	// Last occurrence of a business key within the batch wins, so the
	// upsert writes at most one row per key.
	keyed := make(map[models.FactKey]*models.FactRow)
	var order []models.FactKey

	for _, enriched := range batch {
		if enriched.QualityTag != models.QualityValid {
			result.NotValid++
			continue
		}

		row, err := enriched.ToFactRow(processedAt)
		if err != nil {
			result.MissingKey++
			continue
		}

		if watermark != nil && !row.TripDate.After(*watermark) {
			result.BelowWatermark++
			continue
		}

		key, err := enriched.Key()
		if err != nil {
			result.MissingKey++
			continue
		}
		if _, seen := keyed[key]; !seen {
			order = append(order, key)
		}
		keyed[key] = row
	}

	rows := make([]*models.FactRow, 0, len(keyed))
	var maxDate time.Time
	for _, key := range order {
		row := keyed[key]
		rows = append(rows, row)
		if row.TripDate.After(maxDate) {
			maxDate = row.TripDate
		}
	}

	if len(rows) > 0 {
		written, err := m.store.UpsertFacts(ctx, rows)
		if err != nil {
			m.metrics.RecordPipelineError("fact_upsert")
			return nil, fmt.Errorf("fact upsert failed: %w", err)
		}
		result.Upserted = written
		m.metrics.WatermarkTimestamp.Set(float64(maxDate.Unix()))
	}

	result.Duration = m.clock.Now().Sub(start)
	m.metrics.MaterializeDuration.Observe(result.Duration.Seconds())

	m.logger.Info(ctx, "[MATERIALIZE_DONE] Incremental materialization finished", logging.Fields{
		"candidates":      result.Candidates,
		"not_valid":       result.NotValid,
		"below_watermark": result.BelowWatermark,
		"missing_key":     result.MissingKey,
		"upserted":        result.Upserted,
		"watermark":       formatWatermark(watermark),
	})

	return result, nil
}

func formatWatermark(wm *time.Time) string {
	if wm == nil {
		return "none"
	}
	return wm.Format("2006-01-02")
}
