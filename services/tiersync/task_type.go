package tiersync

import (
	"encoding/json"
	"fmt"
	"time"

	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
)

type SyncPayload struct {
	CompanyID string `json:"company_id"`
}

// NewSyncTask builds the daily sync task of a company. The task id is
// unique per company and day so a scheduler restart does not enqueue twice.
func NewSyncTask(companyID string, day time.Time) (*asynq.Task, error) {
	b, err := json.Marshal(SyncPayload{CompanyID: companyID})
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("tier-sync:%s:%s", companyID, day.Format("2006-01-02"))
	return asynq.NewTask(taskname.TierSync, b,
		asynq.Queue(taskname.QueueLow),
		asynq.TaskID(id),
		asynq.MaxRetry(3),
		asynq.Retention(24*time.Hour),
	), nil
}
