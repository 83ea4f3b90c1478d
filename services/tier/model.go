package tier

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is a company defined reward rank. Annual tiers are earned on points
// accrued in the current calendar year, lifetime tiers on lifetime points.
type Tier struct {
	ID                string          `gorm:"column:id;primaryKey;type:varchar(32)"`
	CompanyID         string          `gorm:"column:company_id;index;not null"`
	Name              string          `gorm:"column:name;type:varchar(100);not null"`
	Code              string          `gorm:"column:code;type:varchar(100)"`
	Threshold         int64           `gorm:"column:threshold;not null"`
	IsAnnualRate      bool            `gorm:"column:is_annual_rate"`
	IsActive          bool            `gorm:"column:is_active"`
	AccrualMultiplier decimal.Decimal `gorm:"column:accrual_multiplier;type:decimal(10,4)"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Multiplier returns the accrual multiplier, defaulting to 1 when unset.
func (t *Tier) Multiplier() decimal.Decimal {
	if t == nil || !t.AccrualMultiplier.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return t.AccrualMultiplier
}

// User carries the cached balance aggregate. Its row is the per-user lock
// target for every points mutation.
type User struct {
	ID              string     `gorm:"column:id;primaryKey;type:varchar(32)"`
	CompanyID       string     `gorm:"column:company_id;index;not null"`
	LifeTimePoints  int64      `gorm:"column:life_time_points;not null;default:0"`
	AvailablePoints int64      `gorm:"column:available_points;not null;default:0"`
	TierID          string     `gorm:"column:tier_id;type:varchar(32)"`
	TierExpiresOn   *time.Time `gorm:"column:tier_expires_on"`
	Version         int64      `gorm:"column:version;not null;default:0"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// UserTier is the upserted tier assignment of a user.
type UserTier struct {
	ID        string     `gorm:"column:id;primaryKey;type:varchar(32)"`
	UserID    string     `gorm:"column:user_id;uniqueIndex;type:varchar(32);not null"`
	TierID    string     `gorm:"column:tier_id;type:varchar(32);not null"`
	ExpiresOn *time.Time `gorm:"column:expires_on"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// Models lists the tables owned by this package.
func Models() []any {
	return []any{&Tier{}, &User{}, &UserTier{}}
}
