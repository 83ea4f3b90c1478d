package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

//go:generate mockgen -destination=mocks/mock_audit.go -package=mocks smallbiznis-loyaltycore/services/audit Sink,Recorder

// Sink persists or forwards audit records.
type Sink interface {
	Name() string
	Write(ctx context.Context, log *SystemAuditLog) error
}

// Recorder emits audit entries. Failures are logged and never returned so an
// audit outage cannot fail a committed points mutation.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

const writeTimeout = 5 * time.Second

type recorder struct {
	node  *snowflake.Node
	sinks []Sink
}

func NewRecorder(node *snowflake.Node, sinks ...Sink) Recorder {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &recorder{node: node, sinks: active}
}

func (r *recorder) Record(ctx context.Context, e Entry) {
	zapLog := zap.L().With(
		zap.String("user_id", e.UserID),
		zap.String("action", e.Action),
		zap.String("source", e.Source),
		zap.String("source_id", e.SourceID),
	)

	meta, err := json.Marshal(e.MetaData)
	if err != nil {
		zapLog.Warn("failed to marshal audit metadata", zap.Error(err))
		meta = []byte("{}")
	}

	log := &SystemAuditLog{
		ID:        r.node.Generate().String(),
		CompanyID: e.CompanyID,
		UserID:    e.UserID,
		Action:    e.Action,
		Source:    e.Source,
		SourceID:  e.SourceID,
		MetaData:  meta,
		CreatedAt: time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	for _, s := range r.sinks {
		if err := s.Write(ctx, log); err != nil {
			zapLog.Error("failed to write audit log", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

// Nop discards every entry.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}
