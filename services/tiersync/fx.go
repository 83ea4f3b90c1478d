package tiersync

import (
	"smallbiznis-loyaltycore/pkg/config"

	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
)

var Module = fx.Module("tiersync.service",
	fx.Provide(
		provideUploader,
		NewService,
	),
)

var SchedulerModule = fx.Module("tiersync.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)

type uploaderParams struct {
	fx.In

	Config *config.Config
	Minio  *minio.Client `optional:"true"`
}

func provideUploader(p uploaderParams) ReportUploader {
	if p.Minio == nil || p.Config.Minio.BucketName == "" {
		return nil
	}
	return NewMinioUploader(p.Minio, p.Config.Minio.BucketName)
}
