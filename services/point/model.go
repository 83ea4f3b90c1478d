package point

import (
	"time"

	"smallbiznis-loyaltycore/pkg/pointtype"

	"gorm.io/datatypes"
)

// PointLedgerEntry is one status mutable record of a point affecting event.
// UserID and PointAmount never change after insert.
type PointLedgerEntry struct {
	ID               string           `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CompanyID        string           `gorm:"column:company_id;index;not null" json:"company_id"`
	UserID           string           `gorm:"column:user_id;index;not null" json:"user_id"`
	PointType        pointtype.Type   `gorm:"column:point_type;type:varchar(20);not null" json:"point_type"`
	PointAmount      int64            `gorm:"column:point_amount;not null" json:"point_amount"`
	Status           pointtype.Status `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	Reason           string           `gorm:"column:reason" json:"reason,omitempty"`
	Description      string           `gorm:"column:description" json:"description,omitempty"`
	CampaignID       string           `gorm:"column:campaign_id;index" json:"campaign_id,omitempty"`
	CampaignActionID string           `gorm:"column:campaign_action_id" json:"campaign_action_id,omitempty"`
	OrderID          string           `gorm:"column:order_id" json:"order_id,omitempty"`
	ReservationID    string           `gorm:"column:reservation_id;index" json:"reservation_id,omitempty"`
	RewardVoucherID  string           `gorm:"column:reward_voucher_id" json:"reward_voucher_id,omitempty"`
	UserActionID     string           `gorm:"column:user_action_id" json:"user_action_id,omitempty"`
	TransactionCode  string           `gorm:"column:transaction_code;type:varchar(40)" json:"transaction_code"`
	Metadata         datatypes.JSON   `gorm:"column:metadata" json:"metadata,omitempty"`
	AvailableOn      *time.Time       `gorm:"column:available_on" json:"available_on,omitempty"`
	ExpireOn         *time.Time       `gorm:"column:expire_on" json:"expire_on,omitempty"`
	CreatedAt        time.Time        `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time        `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (PointLedgerEntry) TableName() string {
	return "point_ledger_entries"
}

// SignedAmount is the balance delta the entry represents.
func (e *PointLedgerEntry) SignedAmount() int64 {
	switch {
	case e.Status == pointtype.StatusReceived:
		return e.PointAmount
	case e.Status.IsDebit():
		return -e.PointAmount
	default:
		return 0
	}
}

// PointAllocation attributes part of a debit entry to an earlier earn entry.
type PointAllocation struct {
	ID                string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	UserID            string    `gorm:"column:user_id;index;not null" json:"user_id"`
	UserPointEarnedID string    `gorm:"column:user_point_earned_id;index;not null" json:"user_point_earned_id"`
	UserPointSpentID  string    `gorm:"column:user_point_spent_id;index;not null" json:"user_point_spent_id"`
	Amount            int64     `gorm:"column:amount;not null" json:"amount"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PointAllocation) TableName() string {
	return "point_allocations"
}

// AvailableEntry is an earn entry that still has unallocated points.
type AvailableEntry struct {
	EntryID     string    `gorm:"column:id" json:"entry_id"`
	PointAmount int64     `gorm:"column:point_amount" json:"point_amount"`
	Allocated   int64     `gorm:"column:allocated" json:"allocated"`
	Available   int64     `gorm:"column:available" json:"available"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

type Balance struct {
	UserID          string     `json:"user_id"`
	LifeTimePoints  int64      `json:"life_time_points"`
	AvailablePoints int64      `json:"available_points"`
	TierID          string     `json:"tier_id,omitempty"`
	TierExpiresOn   *time.Time `json:"tier_expires_on,omitempty"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&PointLedgerEntry{}, &PointAllocation{}}
}
