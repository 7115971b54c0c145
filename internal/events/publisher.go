package events

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
)

// KafkaPublisher mirrors domain events onto the event bus. Writes are
// async; delivery failures are logged, never surfaced to the request path.
type KafkaPublisher struct {
	writer *kafkago.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaCfg, log *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
		Async:        true,
	}
	return &KafkaPublisher{writer: w, log: log}
}

// Publish writes one event envelope keyed by event name.
func (p *KafkaPublisher) Publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	msg := kafkago.Message{
		Key:   []byte(event),
		Value: data,
		Time:  time.Now().UTC(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("event publish failed", zap.String("event", event), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
