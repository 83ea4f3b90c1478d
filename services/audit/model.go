package audit

import (
	"time"

	"gorm.io/datatypes"
)

// SystemAuditLog is one structured audit record of a points mutation.
type SystemAuditLog struct {
	ID        string         `gorm:"column:id;primaryKey;type:varchar(32)"`
	CompanyID string         `gorm:"column:company_id;index"`
	UserID    string         `gorm:"column:user_id;index;not null"`
	Action    string         `gorm:"column:action;type:varchar(64);not null"`
	Source    string         `gorm:"column:source;type:varchar(64)"`
	SourceID  string         `gorm:"column:source_id;type:varchar(64)"`
	MetaData  datatypes.JSON `gorm:"column:meta_data"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

const (
	ActionPointsAwarded       = "POINTS_AWARDED"
	ActionPointsRevoked       = "POINTS_REVOKED"
	ActionPointsCanceled      = "POINTS_CANCELED"
	ActionCampaignConsolidate = "CAMPAIGN_CONSOLIDATED"
	ActionCampaignCompleted   = "CAMPAIGN_COMPLETED"
	ActionCampaignReversed    = "CAMPAIGN_COMPLETION_REVERSED"
	ActionActionRefunded      = "USER_ACTION_REFUNDED"
	ActionTierChanged         = "TIER_CHANGED"
)

const (
	SourceLedger   = "point_ledger"
	SourceCampaign = "campaign"
	SourceTierSync = "tier_sync"
)

// Entry is what callers hand to a Recorder.
type Entry struct {
	CompanyID string
	UserID    string
	Action    string
	Source    string
	SourceID  string
	MetaData  map[string]any
}
