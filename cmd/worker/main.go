package main

import (
	"log"

	"smallbiznis-loyaltycore/internal/app"
	"smallbiznis-loyaltycore/pkg/hashistack/servicediscover"
	"smallbiznis-loyaltycore/pkg/health"
	"smallbiznis-loyaltycore/pkg/otelcol"
	"smallbiznis-loyaltycore/pkg/profiling"
	"smallbiznis-loyaltycore/pkg/server"
	"smallbiznis-loyaltycore/pkg/task"
	"smallbiznis-loyaltycore/services/bootstrap"
	"smallbiznis-loyaltycore/services/campaign"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tiersync"

	"go.uber.org/fx"
)

func main() {
	opts := []fx.Option{
		app.Infra(),
		otelcol.Module,
		profiling.Module,
		app.Services,
		bootstrap.Module,
		task.Server,
		point.TaskModule,
		campaign.TaskModule,
		tiersync.TaskModule,
		tiersync.HTTPModule,
		health.Module,
		server.ProvideHTTPServer,
		servicediscover.Module,
		app.Logger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
