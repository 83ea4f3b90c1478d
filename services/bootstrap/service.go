package bootstrap

import (
	"context"
	"fmt"

	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/campaign"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tier"
	"smallbiznis-loyaltycore/services/tiersync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// Models lists every table of the engine in dependency order.
func Models() []any {
	var models []any
	models = append(models, tier.Models()...)
	models = append(models, point.Models()...)
	models = append(models, campaign.Models()...)
	models = append(models, tiersync.Models()...)
	models = append(models, &audit.SystemAuditLog{})
	return models
}

func (s *Service) Migrate(ctx context.Context) error {
	models := Models()
	if err := s.db.WithContext(ctx).AutoMigrate(models...); err != nil {
		zap.L().Error("[bootstrap] failed to migrate schema", zap.Error(err))
		return fmt.Errorf("migrate schema: %w", err)
	}

	zap.L().Info("[bootstrap] schema migrated", zap.Int("tables", len(models)))
	return nil
}
