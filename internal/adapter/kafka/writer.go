package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/catchment-stats/internal/config"
	"github.com/couchcryptid/catchment-stats/internal/domain"
)

// ResultRecord is the message published for each unit of a batch run.
type ResultRecord struct {
	RunID      string          `json:"run_id"`
	Index      int             `json:"index"`
	Key        string          `json:"key"`
	ShapePath  string          `json:"shape_path"`
	RasterPath string          `json:"raster_path"`
	Operator   domain.Operator `json:"operator"`
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	Artifact   string          `json:"artifact,omitempty"`
	Format     domain.Format   `json:"format,omitempty"`
	Steps      int             `json:"steps,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
}

// NewResultRecord flattens a unit result for publishing.
func NewResultRecord(runID string, res domain.UnitResult) ResultRecord {
	return ResultRecord{
		RunID:      runID,
		Index:      res.Index,
		Key:        res.Unit.Key,
		ShapePath:  res.Unit.ShapePath,
		RasterPath: res.Unit.RasterPath,
		Operator:   res.Unit.Operator,
		Status:     res.Status(),
		Error:      res.Error(),
		Artifact:   res.Artifact.Path,
		Format:     res.Artifact.Format,
		Steps:      res.Artifact.Steps,
		StartedAt:  res.StartedAt,
		DurationMS: res.Duration.Milliseconds(),
	}
}

// ResultWriter publishes per-unit results to a Kafka topic.
type ResultWriter struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewResultWriter creates a Kafka producer for the configured results topic.
func NewResultWriter(cfg *config.Config, logger *slog.Logger) *ResultWriter {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaResultsTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &ResultWriter{writer: w, logger: logger}
}

// PublishReport writes one message per unit result in a single
// WriteMessages call. Messages are keyed by artifact key, so reruns of the
// same pair land on the same partition.
func (w *ResultWriter) PublishReport(ctx context.Context, report domain.Report) error {
	if len(report.Results) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(report.Results))
	for i, res := range report.Results {
		msg, err := serializeToMessage(report.RunID, res)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish results: %w", err)
	}
	w.logger.Info("results published", "run_id", report.RunID, "topic", w.writer.Topic, "messages", len(msgs))
	return nil
}

func (w *ResultWriter) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a unit result into a Kafka message.
func serializeToMessage(runID string, res domain.UnitResult) (kafkago.Message, error) {
	data, err := json.Marshal(NewResultRecord(runID, res))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize unit result: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(res.Unit.Key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(runID)},
			{Key: "operator", Value: []byte(res.Unit.Operator)},
			{Key: "status", Value: []byte(res.Status())},
		},
	}, nil
}
