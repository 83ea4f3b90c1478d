package main

import (
	"log"

	"smallbiznis-loyaltycore/internal/app"
	"smallbiznis-loyaltycore/pkg/health"
	"smallbiznis-loyaltycore/pkg/otelcol"
	"smallbiznis-loyaltycore/pkg/server"
	"smallbiznis-loyaltycore/pkg/task"
	"smallbiznis-loyaltycore/services/tiersync"

	"go.uber.org/fx"
)

func main() {
	opts := []fx.Option{
		app.Infra(),
		otelcol.Module,
		app.Services,
		task.Client,
		tiersync.SchedulerModule,
		tiersync.HTTPModule,
		health.Module,
		server.ProvideHTTPServer,
		app.Logger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}
