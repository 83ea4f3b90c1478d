package tiersync

import (
	"time"

	"gorm.io/datatypes"
)

const (
	JobPending = "pending"
	JobRunning = "running"
	JobSuccess = "success"
	JobFailed  = "failed"
)

// TierSyncJob is the execution record of one company sync.
type TierSyncJob struct {
	ID           string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CompanyID    string         `gorm:"column:company_id;index;not null" json:"company_id"`
	Status       string         `gorm:"column:status;type:varchar(20);default:'pending'" json:"status"` // pending|running|success|failed
	UsersScanned int64          `gorm:"column:users_scanned;not null;default:0" json:"users_scanned"`
	UsersChanged int64          `gorm:"column:users_changed;not null;default:0" json:"users_changed"`
	ErrorMsg     string         `gorm:"column:error_msg;type:text" json:"error_msg,omitempty"`
	ReportKey    string         `gorm:"column:report_key;type:varchar(255)" json:"report_key,omitempty"`
	StartedAt    *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt  *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	Metadata     datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
}

// Change is one placement made by a sync run.
type Change struct {
	UserID         string `json:"user_id"`
	FromTierID     string `json:"from_tier_id,omitempty"`
	ToTierID       string `json:"to_tier_id"`
	LifeTimePoints int64  `json:"life_time_points"`
	AnnualPoints   int64  `json:"annual_points"`
}

type Report struct {
	JobID       string    `json:"job_id"`
	CompanyID   string    `json:"company_id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	Scanned     int64     `json:"users_scanned"`
	Failed      int64     `json:"users_failed"`
	Changes     []Change  `json:"changes"`
}

func Models() []any {
	return []any{&TierSyncJob{}}
}
