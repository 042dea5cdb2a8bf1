// Package ingest moves telemetry and compliance events through Kafka. The
// telemetry topic is keyed by AUV id, so partition ordering preserves each
// vehicle's timeline and the engine's stale check only fires on genuine
// replays.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"seaguard/internal/engine"
	"seaguard/internal/model"
)

// SampleSink processes one decoded telemetry fix. The API server's
// ProcessSample satisfies it.
type SampleSink interface {
	ProcessSample(ctx context.Context, source string, sample model.PositionSample) ([]model.ComplianceEvent, error)
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads telemetry from Kafka and feeds it through the sink.
type Consumer struct {
	reader *kafka.Reader
	sink   SampleSink
}

func NewConsumer(cfg ConsumerConfig, sink SampleSink) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		Topic:          cfg.Topic,
		GroupID:        cfg.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.FirstOffset,
	})
	return &Consumer{reader: reader, sink: sink}
}

// Run consumes until the context is cancelled. Every message is committed:
// stale and invalid samples are permanent rejections for that payload, so
// redelivery would never change the outcome.
func (c *Consumer) Run(ctx context.Context) {
	cfg := c.reader.Config()
	slog.Info("starting kafka consumer", "brokers", cfg.Brokers, "topic", cfg.Topic, "group", cfg.GroupID)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("kafka fetch failed", "err", err)
			continue
		}
		c.handleMessage(ctx, msg.Value, msg.Offset)
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			slog.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, value []byte, offset int64) {
	var sample model.PositionSample
	if err := json.Unmarshal(value, &sample); err != nil {
		slog.Warn("undecodable telemetry message", "err", err, "offset", offset)
		return
	}
	if _, err := c.sink.ProcessSample(ctx, "kafka", sample); err != nil {
		var stale *engine.StaleSampleError
		if errors.As(err, &stale) {
			// Normal after a rebalance re-reads committed offsets.
			slog.Debug("stale telemetry message", "auv", sample.AuvID, "offset", offset)
			return
		}
		slog.Warn("telemetry message rejected", "err", err, "auv", sample.AuvID, "offset", offset)
	}
}

func (c *Consumer) Close() error { return c.reader.Close() }
