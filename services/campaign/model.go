package campaign

import (
	"time"
)

// Campaign groups campaign actions. Completing every action awards
// CompletionPoints once. MaxReward caps each action level award; zero or
// less means uncapped.
type Campaign struct {
	ID               string            `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CompanyID        string            `gorm:"column:company_id;index;not null" json:"company_id"`
	Name             string            `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Description      string            `gorm:"column:description;type:text" json:"description,omitempty"`
	MaxReward        int64             `gorm:"column:max_reward;not null;default:0" json:"max_reward"`
	CompletionPoints int64             `gorm:"column:completion_points;not null;default:0" json:"completion_points"`
	IsActive         bool              `gorm:"column:is_active" json:"is_active"`
	StartOn          *time.Time        `gorm:"column:start_on" json:"start_on,omitempty"`
	EndOn            *time.Time        `gorm:"column:end_on" json:"end_on,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Actions          []*CampaignAction `gorm:"foreignKey:CampaignID" json:"actions,omitempty"`
}

// Running reports whether the campaign is active at now.
func (c *Campaign) Running(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartOn != nil && now.Before(*c.StartOn) {
		return false
	}
	if c.EndOn != nil && now.After(*c.EndOn) {
		return false
	}
	return true
}

// Cap applies MaxReward to an award.
func (c *Campaign) Cap(points int64) int64 {
	if c.MaxReward > 0 && points > c.MaxReward {
		return c.MaxReward
	}
	return points
}

// CampaignAction pairs a campaign with an external action that must be
// performed ActionCount times before PointValue is credited per instance.
type CampaignAction struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CampaignID  string    `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	ActionID    string    `gorm:"column:action_id;index;not null" json:"action_id"`
	ActionCount int64     `gorm:"column:action_count;not null;default:1" json:"action_count"`
	PointValue  int64     `gorm:"column:point_value;not null;default:0" json:"point_value"`
	IsActive    bool      `gorm:"column:is_active" json:"is_active"`
	Condition   string    `gorm:"column:eligibility_condition;type:text" json:"condition,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// UserAction is one credited performance of a campaign action.
type UserAction struct {
	ID               string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CompanyID        string     `gorm:"column:company_id;index;not null" json:"company_id"`
	UserID           string     `gorm:"column:user_id;index;not null" json:"user_id"`
	CampaignID       string     `gorm:"column:campaign_id;index" json:"campaign_id"`
	CampaignActionID string     `gorm:"column:campaign_action_id;index;not null" json:"campaign_action_id"`
	EventID          string     `gorm:"column:event_id;type:varchar(64)" json:"event_id,omitempty"`
	HasAwarded       bool       `gorm:"column:has_awarded;not null;default:false" json:"has_awarded"`
	RefundedOn       *time.Time `gorm:"column:refunded_on" json:"refunded_on,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// UserCompletedCampaign records a campaign completion award. At most one
// unrefunded record exists per user and campaign.
type UserCompletedCampaign struct {
	ID               string     `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	CompanyID        string     `gorm:"column:company_id;index" json:"company_id"`
	UserID           string     `gorm:"column:user_id;index;not null" json:"user_id"`
	CampaignID       string     `gorm:"column:campaign_id;index;not null" json:"campaign_id"`
	CompletionPoints int64      `gorm:"column:completion_points;not null;default:0" json:"completion_points"`
	HasAwarded       bool       `gorm:"column:has_awarded" json:"has_awarded"`
	RefundedOn       *time.Time `gorm:"column:refunded_on" json:"refunded_on,omitempty"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// FireActionRequest is one action performed by a user, as reported by the
// trigger service.
type FireActionRequest struct {
	CompanyID  string         `json:"company_id"`
	UserID     string         `json:"user_id"`
	ActionID   string         `json:"action_id"`
	EventID    string         `json:"event_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Award is one action level award made by a consolidation pass.
type Award struct {
	CampaignID       string   `json:"campaign_id"`
	CampaignActionID string   `json:"campaign_action_id"`
	UserActionIDs    []string `json:"user_action_ids"`
	Points           int64    `json:"points"`
	EntryID          string   `json:"entry_id,omitempty"`
}

type CompletionChange struct {
	CampaignID   string `json:"campaign_id"`
	CompletionID string `json:"completion_id"`
	Points       int64  `json:"points"`
	Reversed     bool   `json:"reversed"`
	EntryID      string `json:"entry_id,omitempty"`
}

type ConsolidationResult struct {
	Awards      []Award            `json:"awards"`
	Completions []CompletionChange `json:"completions"`
}

type FireActionResult struct {
	UserActions   []*UserAction        `json:"user_actions"`
	Duplicate     bool                 `json:"duplicate"`
	Consolidation *ConsolidationResult `json:"consolidation,omitempty"`
}

type RefundResult struct {
	UserAction  *UserAction        `json:"user_action"`
	EntryID     string             `json:"entry_id,omitempty"`
	Completions []CompletionChange `json:"completions,omitempty"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Campaign{}, &CampaignAction{}, &UserAction{}, &UserCompletedCampaign{}}
}
