// Package app groups the fx modules shared by the binaries.
package app

import (
	"os"

	"smallbiznis-loyaltycore/pkg/config"
	"smallbiznis-loyaltycore/pkg/db"
	"smallbiznis-loyaltycore/pkg/featureflags"
	"smallbiznis-loyaltycore/pkg/gen"
	"smallbiznis-loyaltycore/pkg/hashistack/secretmanager"
	"smallbiznis-loyaltycore/pkg/kafka"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/minio"
	"smallbiznis-loyaltycore/pkg/redis"
	"smallbiznis-loyaltycore/pkg/sequence"
	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/campaign"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tier"
	"smallbiznis-loyaltycore/services/tiersync"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Infra provides configuration, logging, storage and clients.
func Infra() fx.Option {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		featureflags.Module,
		kafka.Module,
		minio.Client,
	}
	if os.Getenv("VAULT_ADDR") != "" {
		opts = append(opts, secretmanager.Module)
	}
	return fx.Options(opts...)
}

// Services provides the loyalty engine.
var Services = fx.Options(
	audit.Module,
	tier.Module,
	point.Module,
	campaign.Module,
	tiersync.Module,
)

var Logger = fx.WithLogger(func(cfg *config.Config, log *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: log}
})
