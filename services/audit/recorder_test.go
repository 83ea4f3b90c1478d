package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/audit/mocks"
	"smallbiznis-loyaltycore/services/testutil"

	"github.com/bwmarrin/snowflake"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newNode(t *testing.T) *snowflake.Node {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return node
}

func TestRecordWritesToDatabase(t *testing.T) {
	db := testutil.NewTestDB(t, &audit.SystemAuditLog{})
	rec := audit.NewRecorder(newNode(t), audit.NewGormSink(db))

	rec.Record(context.Background(), audit.Entry{
		CompanyID: "company-1",
		UserID:    "user-1",
		Action:    audit.ActionPointsAwarded,
		Source:    audit.SourceLedger,
		SourceID:  "entry-1",
		MetaData:  map[string]any{"amount": 120},
	})

	var logs []audit.SystemAuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.Equal(t, "user-1", logs[0].UserID)
	require.Equal(t, audit.ActionPointsAwarded, logs[0].Action)

	var meta map[string]any
	require.NoError(t, json.Unmarshal(logs[0].MetaData, &meta))
	require.EqualValues(t, 120, meta["amount"])
}

func TestRecordSwallowsSinkErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockSink(ctrl)
	healthy := mocks.NewMockSink(ctrl)

	failing.EXPECT().Name().Return("failing").AnyTimes()
	failing.EXPECT().Write(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))
	healthy.EXPECT().Write(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, log *audit.SystemAuditLog) error {
		require.Equal(t, audit.ActionActionRefunded, log.Action)
		require.NotEmpty(t, log.ID)
		return nil
	})

	rec := audit.NewRecorder(newNode(t), failing, nil, healthy)
	require.NotPanics(t, func() {
		rec.Record(context.Background(), audit.Entry{UserID: "user-1", Action: audit.ActionActionRefunded})
	})
}

type fakeProducer struct {
	messages []*kafka.Message
	err      error
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	deliveryChan <- msg
	return nil
}

func TestKafkaSinkProducesKeyedEvent(t *testing.T) {
	producer := &fakeProducer{}
	sink := audit.NewKafkaSink(producer, "loyalty.audit")

	err := sink.Write(context.Background(), &audit.SystemAuditLog{ID: "1", UserID: "user-9", Action: audit.ActionTierChanged})
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)

	msg := producer.messages[0]
	require.Equal(t, "loyalty.audit", *msg.TopicPartition.Topic)
	require.Equal(t, []byte("user-9"), msg.Key)

	var env map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	require.NotEmpty(t, env["event_id"])
}

func TestKafkaSinkProduceError(t *testing.T) {
	sink := audit.NewKafkaSink(&fakeProducer{err: errors.New("queue full")}, "loyalty.audit")
	err := sink.Write(context.Background(), &audit.SystemAuditLog{ID: "1", UserID: "u"})
	require.Error(t, err)
}
