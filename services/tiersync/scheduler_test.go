package tiersync

import (
	"context"
	"errors"
	"testing"
	"time"

	"smallbiznis-loyaltycore/pkg/config"
	"smallbiznis-loyaltycore/pkg/taskname"
	taskmocks "smallbiznis-loyaltycore/pkg/task/mocks"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestNextRunTime(t *testing.T) {
	before := time.Date(2026, 5, 1, 0, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC), nextRunTime(before, 1, 0))

	after := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 5, 2, 1, 0, 0, 0, time.UTC), nextRunTime(after, 1, 0))
}

func TestRunDailyEnqueuesEachCompany(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(t, "c1")
	f.seedTiers(t, "c2")

	ctrl := gomock.NewController(t)
	enqueuer := taskmocks.NewMockEnqueuer(ctrl)

	var payloads []string
	enqueuer.EXPECT().Enqueue(gomock.Any()).DoAndReturn(func(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
		require.Equal(t, taskname.TierSync, task.Type())
		payloads = append(payloads, string(task.Payload()))
		if len(payloads) == 2 {
			return nil, errors.New("redis unavailable")
		}
		return &asynq.TaskInfo{ID: "t1", Queue: taskname.QueueLow}, nil
	}).Times(2)

	s := NewScheduler(&config.Config{}, f.svc, enqueuer)
	s.now = func() time.Time { return syncDay }

	require.Equal(t, 1, s.RunDaily(context.Background()))
	require.Equal(t, []string{`{"company_id":"c1"}`, `{"company_id":"c2"}`}, payloads)
}

func TestHandleTierSync(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(t, "c1")
	f.seedUser(t, &tier.User{ID: "u1", CompanyID: "c1", LifeTimePoints: 1200}, 1)
	handler := NewTask(f.svc)

	task, err := NewSyncTask("c1", syncDay)
	require.NoError(t, err)
	require.NoError(t, handler.HandleTierSync(context.Background(), task))
	require.Equal(t, "c1-silver", f.tierOf(t, "u1"))

	err = handler.HandleTierSync(context.Background(), asynq.NewTask(taskname.TierSync, []byte(`{}`)))
	require.True(t, errors.Is(err, asynq.SkipRetry))
}
