package tier

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"smallbiznis-loyaltycore/pkg/rediskey"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{Name: "loyalty_tier_cache_hits_total"})
	cacheMiss = promauto.NewCounter(prometheus.CounterOpts{Name: "loyalty_tier_cache_miss_total"})
)

// CacheClient is the subset of the redis client used by the tier cache.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// cachedCatalog keeps the active tier list of each company in redis. Reads
// for the same company collapse into one database query.
type cachedCatalog struct {
	inner Catalog
	rdb   CacheClient
	ttl   time.Duration
	group *singleflight.Group
}

func NewCachedCatalog(inner Catalog, rdb CacheClient, ttl time.Duration) Catalog {
	if rdb == nil {
		return inner
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &cachedCatalog{inner: inner, rdb: rdb, ttl: ttl, group: &singleflight.Group{}}
}

func (c *cachedCatalog) WithTrx(tx *gorm.DB) Catalog {
	return &cachedCatalog{inner: c.inner.WithTrx(tx), rdb: c.rdb, ttl: c.ttl, group: c.group}
}

func (c *cachedCatalog) ListActive(ctx context.Context, companyID string) ([]*Tier, error) {
	key := rediskey.BuildTierListKey(companyID)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var tiers []*Tier
		if err := json.Unmarshal(raw, &tiers); err == nil {
			cacheHits.Inc()
			return tiers, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		zap.L().Warn("tier cache read failed", zap.String("company_id", companyID), zap.Error(err))
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		tiers, err := c.inner.ListActive(ctx, companyID)
		if err != nil {
			return nil, err
		}

		if b, err := json.Marshal(tiers); err == nil {
			if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
				zap.L().Warn("tier cache write failed", zap.String("company_id", companyID), zap.Error(err))
			}
		}
		return tiers, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Tier), nil
}

func (c *cachedCatalog) Get(ctx context.Context, tierID string) (*Tier, error) {
	return c.inner.Get(ctx, tierID)
}

func (c *cachedCatalog) Save(ctx context.Context, t *Tier) error {
	if err := c.inner.Save(ctx, t); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, rediskey.BuildTierListKey(t.CompanyID)).Err(); err != nil {
		zap.L().Warn("tier cache invalidation failed", zap.String("company_id", t.CompanyID), zap.Error(err))
	}
	return nil
}
