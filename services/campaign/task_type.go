package campaign

import (
	"encoding/json"

	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
)

type FireActionPayload struct {
	FireActionRequest
	TraceID string `json:"trace_id,omitempty"`
}

type RefundActionPayload struct {
	CompanyID        string `json:"company_id"`
	UserID           string `json:"user_id"`
	CampaignActionID string `json:"campaign_action_id"`
	TraceID          string `json:"trace_id,omitempty"`
}

func NewFireActionTask(req FireActionRequest) (*asynq.Task, error) {
	b, err := json.Marshal(FireActionPayload{FireActionRequest: req})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.ActionFire, b, asynq.Queue(taskname.QueueDefault), asynq.MaxRetry(5)), nil
}

func NewRefundActionTask(p RefundActionPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.ActionRefund, b, asynq.Queue(taskname.QueueDefault), asynq.MaxRetry(5)), nil
}
