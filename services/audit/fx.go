package audit

import (
	"smallbiznis-loyaltycore/pkg/config"

	"github.com/bwmarrin/snowflake"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("audit",
	fx.Provide(provideRecorder),
)

type recorderParams struct {
	fx.In

	Config   *config.Config
	DB       *gorm.DB
	Node     *snowflake.Node
	Producer *kafka.Producer `optional:"true"`
}

func provideRecorder(p recorderParams) Recorder {
	sinks := []Sink{NewGormSink(p.DB)}
	if p.Producer != nil {
		sinks = append(sinks, NewKafkaSink(p.Producer, p.Config.Loyalty.AuditTopic))
	}
	return NewRecorder(p.Node, sinks...)
}
