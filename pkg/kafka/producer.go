package kafka

import (
	"context"

	"smallbiznis-loyaltycore/pkg/config"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("kafka.producer", fx.Provide(NewProducer))

// NewProducer returns nil when KAFKA.ADDR is empty so consumers can treat the
// producer as optional.
func NewProducer(lc fx.Lifecycle, cfg *config.Config) (*kafka.Producer, error) {
	if cfg.Kafka.Addrs == "" {
		zap.L().Info("[Kafka] no brokers configured, producer disabled")
		return nil, nil
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.Kafka.Addrs,
		"client.id":          cfg.AppName,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		zap.L().Error("[Kafka] failed to create producer", zap.Error(err))
		return nil, err
	}

	zap.L().Info("[Kafka] producer connected", zap.String("brokers", cfg.Kafka.Addrs))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			producer.Flush(5000)
			producer.Close()
			return nil
		},
	})

	return producer, nil
}
