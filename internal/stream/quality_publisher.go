package stream

import (
	"context"
	"encoding/json"
	"fmt"

	kafkago "github.com/segmentio/kafka-go"

	"taxi-weather-platform/internal/config"
	"taxi-weather-platform/internal/models"
	"taxi-weather-platform/pkg/logging"
)

// QualityPublisher produces quality reports to a Kafka topic so
// downstream consumers can watch rejection rates per run.
type QualityPublisher struct {
	writer *kafkago.Writer
	logger *logging.StructuredLogger
}

// NewQualityPublisher creates a Kafka producer for the quality topic
func NewQualityPublisher(cfg config.KafkaConfig, logger *logging.StructuredLogger) *QualityPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.QualityTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &QualityPublisher{writer: w, logger: logger}
}

// PublishReports serializes and publishes the run's quality reports in
// a single WriteMessages call.
func (p *QualityPublisher) PublishReports(ctx context.Context, reports []*models.QualityReport) error {
	if len(reports) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(reports))
	for i, report := range reports {
		msg, err := serializeReport(report)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to publish quality reports: %w", err)
	}

	p.logger.Info(ctx, "[QUALITY_PUBLISH] Quality reports published", logging.Fields{
		"reports": len(reports),
	})
	return nil
}

// Close closes the underlying Kafka writer
func (p *QualityPublisher) Close() error {
	return p.writer.Close()
}

func serializeReport(report *models.QualityReport) (kafkago.Message, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("failed to serialize quality report: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(report.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "quality_tag", Value: []byte(report.QualityTag)},
			{Key: "completeness_tag", Value: []byte(report.CompletenessTag)},
		},
	}, nil
}
