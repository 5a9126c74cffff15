// Package kafka publishes geocoded events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/geocoder-bundle/internal/config"
	"github.com/couchcryptid/geocoder-bundle/internal/places"
)

// Writer produces geocoded events to the configured topic.
// It implements places.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: cfg.BatchFlushInterval,
		BatchSize:    cfg.BatchSize,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish serializes events and writes them in a single WriteMessages call.
// Events of one entity share a key and therefore a partition.
func (w *Writer) Publish(ctx context.Context, events ...places.GeocodedEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write geocoded events: %w", err)
	}
	w.logger.Debug("geocoded events published", "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a GeocodedEvent into a Kafka message.
func serializeToMessage(event places.GeocodedEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize geocoded event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatInt(event.ID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "entity_type", Value: []byte(event.EntityType)},
			{Key: "geocoded_at", Value: []byte(event.GeocodedAt.Format(time.RFC3339))},
		},
	}, nil
}
