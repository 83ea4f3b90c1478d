package tier

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// Catalog reads and maintains the tier definitions of a company.
type Catalog interface {
	WithTrx(tx *gorm.DB) Catalog
	// ListActive returns active tiers sorted ascending by threshold.
	ListActive(ctx context.Context, companyID string) ([]*Tier, error)
	Get(ctx context.Context, tierID string) (*Tier, error)
	Save(ctx context.Context, t *Tier) error
}

type gormCatalog struct {
	db   *gorm.DB
	node *snowflake.Node
}

func NewCatalog(db *gorm.DB, node *snowflake.Node) Catalog {
	return &gormCatalog{db: db, node: node}
}

func (c *gormCatalog) WithTrx(tx *gorm.DB) Catalog {
	if tx == nil {
		return c
	}
	return &gormCatalog{db: tx, node: c.node}
}

func (c *gormCatalog) ListActive(ctx context.Context, companyID string) ([]*Tier, error) {
	if c == nil || c.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var tiers []*Tier
	err := c.db.WithContext(ctx).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Order("threshold ASC").Order("id ASC").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

// Get returns nil, nil when the tier does not exist.
func (c *gormCatalog) Get(ctx context.Context, tierID string) (*Tier, error) {
	if c == nil || c.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var t Tier
	err := c.db.WithContext(ctx).Where("id = ?", tierID).Take(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *gormCatalog) Save(ctx context.Context, t *Tier) error {
	if c == nil || c.db == nil {
		return gorm.ErrInvalidDB
	}
	if t.CompanyID == "" || t.Name == "" {
		return fmt.Errorf("tier requires company_id and name")
	}
	if t.Threshold < 0 {
		return fmt.Errorf("tier threshold must be >= 0")
	}

	if t.ID == "" {
		t.ID = c.node.Generate().String()
	}
	if t.Code == "" {
		t.Code = slug.Make(t.Name)
	}

	return c.db.WithContext(ctx).Save(t).Error
}
