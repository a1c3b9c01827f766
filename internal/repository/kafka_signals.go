package repository

import (
	"context"

	"SMCFlow/internal/domain/models"
	"SMCFlow/internal/domain/repository"
	pkgkafka "SMCFlow/pkg/kafka"
)

// KafkaSignalPublisher pushes emitted signals onto the distribution topic.
// Downstream messaging and push channels consume from there; this process
// never talks to them directly.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) repository.SignalPublisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

// Publish keys by asset so one asset's signals stay ordered per partition.
func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.Asset), map[string]interface{}{
		"id":         s.ID,
		"asset":      s.Asset,
		"timeframe":  string(s.Timeframe),
		"model":      string(s.Model),
		"direction":  string(s.Direction),
		"entry":      s.Entry,
		"stop":       s.Stop,
		"targets":    s.Targets,
		"confidence": s.Confidence,
		"created_at": s.CreatedAt,
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
