package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"seaguard/internal/model"
)

// Producer publishes compliance events to the events topic, keyed by AUV id.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
	}}
}

// PublishEvents satisfies the API server's producer hook.
func (p *Producer) PublishEvents(ctx context.Context, events []model.ComplianceEvent) error {
	msgs, err := eventMessages(events)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func eventMessages(events []model.ComplianceEvent) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, kafka.Message{Key: []byte(ev.AuvID), Value: data})
	}
	return msgs, nil
}

// Close flushes pending messages and closes the connection.
func (p *Producer) Close() error { return p.writer.Close() }
