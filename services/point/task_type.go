package point

import (
	"encoding/json"
	"time"

	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
)

type ReservationPayload struct {
	ReservationID string `json:"reservation_id"`
	TraceID       string `json:"trace_id,omitempty"`
}

// CreatePointsPayload carries a ledger write from the reward and voucher
// subsystem. Scale applies the tier multiplier and earn ratio.
type CreatePointsPayload struct {
	CompanyID       string           `json:"company_id"`
	UserID          string           `json:"user_id"`
	PointType       pointtype.Type   `json:"point_type"`
	PointAmount     int64            `json:"point_amount"`
	Status          pointtype.Status `json:"status"`
	Reason          string           `json:"reason,omitempty"`
	Description     string           `json:"description,omitempty"`
	OrderID         string           `json:"order_id,omitempty"`
	ReservationID   string           `json:"reservation_id,omitempty"`
	RewardVoucherID string           `json:"reward_voucher_id,omitempty"`
	ExpireOn        *time.Time       `json:"expire_on,omitempty"`
	Scale           bool             `json:"scale,omitempty"`
	TraceID         string           `json:"trace_id,omitempty"`
}

func (p CreatePointsPayload) Entry() *PointLedgerEntry {
	return &PointLedgerEntry{
		CompanyID:       p.CompanyID,
		UserID:          p.UserID,
		PointType:       p.PointType,
		PointAmount:     p.PointAmount,
		Status:          p.Status,
		Reason:          p.Reason,
		Description:     p.Description,
		OrderID:         p.OrderID,
		ReservationID:   p.ReservationID,
		RewardVoucherID: p.RewardVoucherID,
		ExpireOn:        p.ExpireOn,
	}
}

func NewReservationTask(typename, reservationID string) (*asynq.Task, error) {
	b, err := json.Marshal(ReservationPayload{ReservationID: reservationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typename, b, asynq.Queue(taskname.QueueCritical), asynq.MaxRetry(5)), nil
}

func NewCreatePointsTask(p CreatePointsPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.PointsCreate, b, asynq.Queue(taskname.QueueCritical), asynq.MaxRetry(5)), nil
}
