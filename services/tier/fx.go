package tier

import (
	"smallbiznis-loyaltycore/pkg/config"

	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("tier.service",
	fx.Provide(
		provideCatalog,
		NewBalanceService,
	),
)

type catalogParams struct {
	fx.In

	Config *config.Config
	DB     *gorm.DB
	Node   *snowflake.Node
	Redis  *redis.Client `optional:"true"`
}

func provideCatalog(p catalogParams) Catalog {
	catalog := NewCatalog(p.DB, p.Node)
	if p.Redis == nil {
		return catalog
	}
	return NewCachedCatalog(catalog, p.Redis, p.Config.Loyalty.TierCacheTTL)
}
