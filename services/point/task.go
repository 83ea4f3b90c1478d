package point

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

var TaskModule = fx.Module("task.point",
	fx.Provide(NewTask),
	fx.Invoke(RegisterHandlers),
)

// Task adapts asynq deliveries from the reservation, order and voucher
// subsystems to Service calls.
type Task struct {
	service *Service
}

func NewTask(service *Service) *Task {
	return &Task{service: service}
}

func RegisterHandlers(mux *asynq.ServeMux, t *Task) {
	mux.HandleFunc(taskname.ReservationAward, t.HandleReservation)
	mux.HandleFunc(taskname.ReservationRevoke, t.HandleReservation)
	mux.HandleFunc(taskname.ReservationCancel, t.HandleReservation)
	mux.HandleFunc(taskname.PointsCreate, t.HandleCreatePoints)
}

// skipRetry marks business rejections as final so asynq does not redeliver
// them.
func skipRetry(err error) error {
	if errutil.Is(err, errutil.StatusBadRequest) ||
		errutil.Is(err, errutil.StatusInvalidPayment) ||
		errutil.Is(err, errutil.StatusNotFound) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (t *Task) HandleReservation(ctx context.Context, task *asynq.Task) error {
	var payload ReservationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("reservation_id", payload.ReservationID),
		zap.String("trace_id", payload.TraceID),
	)

	var (
		entry *PointLedgerEntry
		err   error
	)
	switch task.Type() {
	case taskname.ReservationAward:
		entry, err = t.service.AwardPoints(ctx, payload.ReservationID)
	case taskname.ReservationRevoke:
		entry, err = t.service.RevokePendingReservationPoints(ctx, payload.ReservationID)
	case taskname.ReservationCancel:
		entry, err = t.service.CancelPendingReservationPoints(ctx, payload.ReservationID)
	default:
		return fmt.Errorf("unsupported task %s: %w", task.Type(), asynq.SkipRetry)
	}
	if err != nil {
		zapLog.Error("reservation task failed", zap.Error(err))
		return skipRetry(err)
	}

	if entry == nil {
		zapLog.Warn("reservation has no matching entry")
		return nil
	}

	zapLog.Info("reservation task processed", zap.String("entry_id", entry.ID), zap.String("status", string(entry.Status)))
	return nil
}

func (t *Task) HandleCreatePoints(ctx context.Context, task *asynq.Task) error {
	var payload CreatePointsPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	zapLog := zap.L().With(
		zap.String("task_type", task.Type()),
		zap.String("company_id", payload.CompanyID),
		zap.String("user_id", payload.UserID),
		zap.String("trace_id", payload.TraceID),
	)

	create := t.service.Create
	if payload.Scale {
		create = t.service.CreateAndCalculateMultiplier
	}

	entry, err := create(ctx, payload.Entry())
	if err != nil {
		zapLog.Error("create points task failed", zap.Error(err))
		return skipRetry(err)
	}

	zapLog.Info("points created", zap.String("entry_id", entry.ID), zap.Int64("point_amount", entry.PointAmount))
	return nil
}
