package point

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/taskname"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

func TestHandleReservationAward(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeBooking,
		PointAmount: 150, Status: pointtype.StatusPending, ReservationID: "r1",
	})
	require.NoError(t, err)

	task, err := NewReservationTask(taskname.ReservationAward, "r1")
	require.NoError(t, err)

	handler := NewTask(f.svc)
	require.NoError(t, handler.HandleReservation(ctx, task))
	require.Equal(t, int64(150), f.balanceOf(t, "u1").AvailablePoints)

	// nothing pending anymore, still acknowledged
	require.NoError(t, handler.HandleReservation(ctx, task))
}

func TestHandleCreatePointsSkipsRetryOnRejection(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	handler := NewTask(f.svc)

	task, err := NewCreatePointsTask(CreatePointsPayload{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeVoucher,
		PointAmount: 10, Status: pointtype.StatusRedeemed,
	})
	require.NoError(t, err)

	err = handler.HandleCreatePoints(context.Background(), task)
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))

	bad := asynq.NewTask(taskname.PointsCreate, []byte("{"))
	require.True(t, errors.Is(handler.HandleCreatePoints(context.Background(), bad), asynq.SkipRetry))
}

func TestHandleCreatePoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	handler := NewTask(f.svc)

	payload, err := json.Marshal(CreatePointsPayload{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeVoucher,
		PointAmount: 75, Status: pointtype.StatusReceived, RewardVoucherID: "v1",
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleCreatePoints(context.Background(), asynq.NewTask(taskname.PointsCreate, payload)))

	var entry PointLedgerEntry
	require.NoError(t, f.db.Where("reward_voucher_id = ?", "v1").Take(&entry).Error)
	require.Equal(t, int64(75), entry.PointAmount)
}
