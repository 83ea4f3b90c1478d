package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type gormSink struct {
	db *gorm.DB
}

func NewGormSink(db *gorm.DB) Sink {
	return &gormSink{db: db}
}

func (s *gormSink) Name() string { return "database" }

func (s *gormSink) Write(ctx context.Context, log *SystemAuditLog) error {
	if s == nil || s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).Create(log).Error
}

// Producer is the subset of *kafka.Producer the kafka sink needs.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

type kafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) Sink {
	return &kafkaSink{producer: producer, topic: topic}
}

func (s *kafkaSink) Name() string { return "kafka" }

type kafkaEnvelope struct {
	EventID string          `json:"event_id"`
	Log     *SystemAuditLog `json:"log"`
}

func (s *kafkaSink) Write(ctx context.Context, log *SystemAuditLog) error {
	payload, err := json.Marshal(kafkaEnvelope{EventID: uuid.NewString(), Log: log})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	delivery := make(chan kafka.Event, 1)
	if err := s.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &s.topic, Partition: kafka.PartitionAny},
		Key:            []byte(log.UserID),
		Value:          payload,
	}, delivery); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}

	select {
	case ev := <-delivery:
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return m.TopicPartition.Error
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
