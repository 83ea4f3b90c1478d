package tiersync

import (
	"context"
	"encoding/json"
	"fmt"

	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var TaskModule = fx.Module("task.tiersync",
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
	mux.HandleFunc(taskname.TierSync, t.HandleTierSync)
}

func (t *Task) HandleTierSync(ctx context.Context, task *asynq.Task) error {
	var payload SyncPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.CompanyID == "" {
		return fmt.Errorf("missing company_id: %w", asynq.SkipRetry)
	}

	zap.L().Info("Processing tier sync task", zap.String("company_id", payload.CompanyID))

	job, err := t.service.SyncCompany(ctx, payload.CompanyID)
	if err != nil {
		zap.L().Error("failed to process tier sync",
			zap.String("company_id", payload.CompanyID),
			zap.Error(err),
		)
		return err
	}

	zap.L().Info("Finished tier sync task",
		zap.String("company_id", payload.CompanyID),
		zap.String("job_id", job.ID),
		zap.String("status", job.Status),
	)
	return nil
}
