package tiersync

import (
	"context"
	"time"

	"smallbiznis-loyaltycore/pkg/config"
	"smallbiznis-loyaltycore/pkg/task"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Scheduler enqueues one tier sync task per company every day.
type Scheduler struct {
	service  *Service
	enqueuer task.Enqueuer
	hour     int
	now      func() time.Time
}

func NewScheduler(cfg *config.Config, svc *Service, enqueuer task.Enqueuer) *Scheduler {
	hour := 1
	if cfg != nil && cfg.Loyalty.TierSyncHour >= 0 && cfg.Loyalty.TierSyncHour < 24 {
		hour = cfg.Loyalty.TierSyncHour
	}
	return &Scheduler{service: svc, enqueuer: enqueuer, hour: hour, now: time.Now}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started tier sync scheduler", zap.Int("hour", s.hour))

	for {
		now := s.now()
		next := nextRunTime(now, s.hour, 0)

		sleepDuration := next.Sub(now)
		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", sleepDuration),
		)
		select {
		case <-time.After(sleepDuration):
			s.RunDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

// RunDaily enqueues the sync of every company with active tiers and returns
// how many tasks were accepted.
func (s *Scheduler) RunDaily(ctx context.Context) int {
	start := s.now()
	zap.L().Info("[Scheduler] Running daily tier sync enqueue")

	companies, err := s.service.Companies(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] failed to list companies", zap.Error(err))
		return 0
	}

	enqueued := 0
	for _, companyID := range companies {
		t, err := NewSyncTask(companyID, start)
		if err != nil {
			zap.L().Error("[Scheduler] failed to build task", zap.String("company_id", companyID), zap.Error(err))
			continue
		}

		info, err := s.enqueuer.Enqueue(t)
		if err != nil {
			zap.L().Error("[Scheduler] failed enqueue tier sync", zap.String("company_id", companyID), zap.Error(err))
			continue
		}
		enqueued++
		zap.L().Info("[Scheduler] enqueued tier sync",
			zap.String("company_id", companyID),
			zap.String("task_id", info.ID),
			zap.String("queue", info.Queue),
		)
	}

	zap.L().Info("[Scheduler] Finished enqueue all companies",
		zap.Int("companies", len(companies)),
		zap.Int("enqueued", enqueued),
		zap.Duration("duration", time.Since(start)),
	)
	return enqueued
}

// nextRunTime returns the next occurrence of hour:minute after now.
func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
