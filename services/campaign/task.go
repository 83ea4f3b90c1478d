package campaign

import (
	"context"
	"encoding/json"
	"fmt"

	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.campaign",
	fx.Provide(NewTask),
	fx.Invoke(RegisterHandlers),
)

type Task struct {
	service *Service
}

func NewTask(service *Service) *Task {
	return &Task{service: service}
}

func RegisterHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.ActionFire, t.HandleFireAction)
	mux.HandleFunc(taskname.ActionRefund, t.HandleRefundAction)
}

func skipRetry(err error) error {
	if errutil.Is(err, errutil.StatusBadRequest) ||
		errutil.Is(err, errutil.StatusRefundFailure) ||
		errutil.Is(err, errutil.StatusInvalidPayment) ||
		errutil.Is(err, errutil.StatusNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (t *Task) HandleFireAction(ctx context.Context, task *asynq.Task) error {
	var payload FireActionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("action_id", payload.ActionID),
		zap.String("trace_id", payload.TraceID),
	)

	res, err := t.service.FireActionForUser(ctx, payload.FireActionRequest)
	if err != nil {
		zapLog.Error("fire action task failed", zap.Error(err))
		return skipRetry(err)
	}

	zapLog.Info("fire action task processed",
		zap.Int("user_actions", len(res.UserActions)),
		zap.Bool("duplicate", res.Duplicate),
	)
	return nil
}

func (t *Task) HandleRefundAction(ctx context.Context, task *asynq.Task) error {
	var payload RefundActionPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("user_id", payload.UserID),
		zap.String("campaign_action_id", payload.CampaignActionID),
		zap.String("trace_id", payload.TraceID),
	)

	res, err := t.service.RefundActionForUser(ctx, payload.UserID, payload.CampaignActionID, payload.CompanyID)
	if err != nil {
		zapLog.Error("refund action task failed", zap.Error(err))
		return skipRetry(err)
	}

	zapLog.Info("refund action task processed", zap.String("user_action_id", res.UserAction.ID), zap.String("entry_id", res.EntryID))
	return nil
}
