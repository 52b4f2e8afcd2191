package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes security events to a Kafka topic for the SIEM pipeline.
// Production is asynchronous; a failed delivery is logged and dropped rather
// than failing or delaying the request that produced it.
type KafkaSink struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafkaSink connects a producer to the given brokers. Returns nil when no
// brokers are configured.
func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, nil
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaSink{client: client, topic: topic, logger: logger}, nil
}

func (s *KafkaSink) LogSecurityEvent(ctx context.Context, eventType EventType, details string) {
	ev := enrich(ctx, eventType, details)
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.ErrorContext(ctx, "audit event marshal failed", "error", err)
		return
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(ev.Type),
		Value: payload,
	}
	// Detached context: the event must outlive the request that produced it.
	s.client.Produce(context.WithoutCancel(ctx), record, func(_ *kgo.Record, err error) {
		if err != nil {
			s.logger.Error("audit event delivery failed", "topic", s.topic, "error", err)
		}
	})
}

// Close flushes pending records and releases the producer.
func (s *KafkaSink) Close(ctx context.Context) error {
	if err := s.client.Flush(ctx); err != nil {
		return err
	}
	s.client.Close()
	return nil
}
