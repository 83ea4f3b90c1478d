package point

import (
	"context"
	"testing"
	"time"

	"smallbiznis-loyaltycore/pkg/db/pagination"
	"smallbiznis-loyaltycore/pkg/errutil"
	ffmocks "smallbiznis-loyaltycore/pkg/featureflags/mocks"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/services/audit"
	auditmocks "smallbiznis-loyaltycore/services/audit/mocks"
	"smallbiznis-loyaltycore/services/testutil"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	balance *tier.BalanceService
	svc     *Service
}

func newFixture(t *testing.T, params ...func(*ServiceParams)) *fixture {
	t.Helper()

	models := append(Models(), tier.Models()...)
	models = append(models, &audit.SystemAuditLog{})
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	catalog := tier.NewCatalog(db, node)
	ctx := context.Background()
	for _, tr := range []*tier.Tier{
		{ID: "bronze", CompanyID: "c1", Name: "Bronze", Threshold: 0, IsActive: true},
		{ID: "silver", CompanyID: "c1", Name: "Silver", Threshold: 1000, IsActive: true, AccrualMultiplier: decimal.RequireFromString("1.5")},
		{ID: "gold", CompanyID: "c1", Name: "Gold", Threshold: 5000, IsActive: true, AccrualMultiplier: decimal.NewFromInt(2)},
	} {
		require.NoError(t, catalog.Save(ctx, tr))
	}

	balance := tier.NewBalanceService(tier.BalanceParams{DB: db, Node: node, Catalog: catalog})

	p := ServiceParams{DB: db, Node: node, Balance: balance}
	for _, fn := range params {
		fn(&p)
	}

	return &fixture{db: db, node: node, balance: balance, svc: NewService(p)}
}

func (f *fixture) seedUser(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&tier.User{ID: id, CompanyID: "c1"}).Error)
}

func (f *fixture) create(t *testing.T, userID string, amount int64, status pointtype.Status) *PointLedgerEntry {
	t.Helper()
	entry, err := f.svc.Create(context.Background(), &PointLedgerEntry{
		CompanyID:   "c1",
		UserID:      userID,
		PointType:   pointtype.TypeOrder,
		PointAmount: amount,
		Status:      status,
	})
	require.NoError(t, err)
	return entry
}

func (f *fixture) balanceOf(t *testing.T, userID string) *Balance {
	t.Helper()
	b, err := f.svc.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (f *fixture) countAllocations(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&PointAllocation{}).Count(&n).Error)
	return n
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	cases := []*PointLedgerEntry{
		{UserID: "u1", PointAmount: 10},
		{UserID: "u1", PointType: pointtype.TypeOrder},
		{UserID: "u1", PointType: pointtype.TypeOrder, PointAmount: -5},
		nil,
	}
	for _, entry := range cases {
		_, err := f.svc.Create(ctx, entry)
		require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)
	}

	var n int64
	require.NoError(t, f.db.Model(&PointLedgerEntry{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestCreateReceivedPlacesTier(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")

	entry := f.create(t, "u1", 1200, pointtype.StatusReceived)
	require.NotEmpty(t, entry.ID)
	require.Regexp(t, `^\d{8}-[A-Z0-9]{6}$`, entry.TransactionCode)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(1200), b.LifeTimePoints)
	require.Equal(t, int64(1200), b.AvailablePoints)
	require.Equal(t, "silver", b.TierID)
}

func TestCreatePendingHasNoBalanceEffect(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")

	f.create(t, "u1", 300, pointtype.StatusPending)

	b := f.balanceOf(t, "u1")
	require.Zero(t, b.AvailablePoints)
	require.Zero(t, b.LifeTimePoints)
}

func TestDebitExceedingAvailableIsRolledBack(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	f.create(t, "u1", 1200, pointtype.StatusReceived)

	_, err := f.svc.Create(context.Background(), &PointLedgerEntry{
		CompanyID:   "c1",
		UserID:      "u1",
		PointType:   pointtype.TypeAdmin,
		PointAmount: 1500,
		Status:      pointtype.StatusRevoked,
	})
	require.True(t, errutil.Is(err, errutil.StatusInvalidPayment), "got %v", err)

	require.Zero(t, f.countAllocations(t))

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(1200), b.LifeTimePoints)
	require.Equal(t, int64(1200), b.AvailablePoints)
	require.Equal(t, "silver", b.TierID)

	// the debit entry itself stays in the ledger
	var revoked int64
	require.NoError(t, f.db.Model(&PointLedgerEntry{}).Where("status = ?", pointtype.StatusRevoked).Count(&revoked).Error)
	require.Equal(t, int64(1), revoked)
}

func TestDebitWithoutEarnedEntries(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")

	_, err := f.svc.Create(context.Background(), &PointLedgerEntry{
		CompanyID:   "c1",
		UserID:      "u1",
		PointType:   pointtype.TypeVoucher,
		PointAmount: 10,
		Status:      pointtype.StatusRedeemed,
	})
	require.True(t, errutil.Is(err, errutil.StatusInvalidPayment), "got %v", err)
}

func TestFirstInFirstOutAllocation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")

	e1 := f.create(t, "u1", 500, pointtype.StatusReceived)
	e2 := f.create(t, "u1", 300, pointtype.StatusReceived)
	spent := f.create(t, "u1", 700, pointtype.StatusRedeemed)

	allocs, err := f.svc.Allocations(context.Background(), spent.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 2)

	byEarned := map[string]int64{}
	for _, a := range allocs {
		byEarned[a.UserPointEarnedID] = a.Amount
	}
	require.Equal(t, int64(500), byEarned[e1.ID])
	require.Equal(t, int64(200), byEarned[e2.ID])

	breakdown, err := f.svc.AvailableBreakdown(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, breakdown, 1)
	require.Equal(t, e2.ID, breakdown[0].EntryID)
	require.Equal(t, int64(100), breakdown[0].Available)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(800), b.LifeTimePoints)
	require.Equal(t, int64(100), b.AvailablePoints)
}

func TestAllocationConservation(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")

	earned := []*PointLedgerEntry{
		f.create(t, "u1", 120, pointtype.StatusReceived),
		f.create(t, "u1", 80, pointtype.StatusReceived),
		f.create(t, "u1", 250, pointtype.StatusReceived),
	}
	spent := []*PointLedgerEntry{
		f.create(t, "u1", 90, pointtype.StatusRedeemed),
		f.create(t, "u1", 100, pointtype.StatusRefunded),
		f.create(t, "u1", 60, pointtype.StatusExpired),
	}

	var all []PointAllocation
	require.NoError(t, f.db.Find(&all).Error)

	perSpent := map[string]int64{}
	perEarned := map[string]int64{}
	for _, a := range all {
		require.Positive(t, a.Amount)
		perSpent[a.UserPointSpentID] += a.Amount
		perEarned[a.UserPointEarnedID] += a.Amount
	}
	for _, s := range spent {
		require.Equal(t, s.PointAmount, perSpent[s.ID])
	}
	for _, e := range earned {
		require.LessOrEqual(t, perEarned[e.ID], e.PointAmount)
	}

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(200), b.AvailablePoints)
}

func TestAwardPoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID:     "c1",
		UserID:        "u1",
		PointType:     pointtype.TypeBooking,
		PointAmount:   400,
		Status:        pointtype.StatusPending,
		ReservationID: "r1",
	})
	require.NoError(t, err)

	entry, err := f.svc.AwardPoints(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, pointtype.StatusReceived, entry.Status)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(400), b.AvailablePoints)
	require.Equal(t, int64(400), b.LifeTimePoints)

	entry, err = f.svc.AwardPoints(ctx, "r1")
	require.NoError(t, err)
	require.Nil(t, entry)

	entry, err = f.svc.AwardPoints(ctx, "unknown")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestRevokePendingReservationPoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	earned := f.create(t, "u1", 1000, pointtype.StatusReceived)
	_, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeBooking,
		PointAmount: 300, Status: pointtype.StatusPending, ReservationID: "r2",
	})
	require.NoError(t, err)

	entry, err := f.svc.RevokePendingReservationPoints(ctx, "r2")
	require.NoError(t, err)
	require.Equal(t, pointtype.StatusRevoked, entry.Status)

	allocs, err := f.svc.Allocations(ctx, entry.ID)
	require.NoError(t, err)
	require.Len(t, allocs, 1)
	require.Equal(t, earned.ID, allocs[0].UserPointEarnedID)
	require.Equal(t, int64(300), allocs[0].Amount)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(700), b.AvailablePoints)
	require.Equal(t, int64(700), b.LifeTimePoints)
	require.Equal(t, "bronze", b.TierID)
}

func TestRevokePendingWithoutAvailablePointsKeepsPending(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	pending, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeBooking,
		PointAmount: 300, Status: pointtype.StatusPending, ReservationID: "r3",
	})
	require.NoError(t, err)

	_, err = f.svc.RevokePendingReservationPoints(ctx, "r3")
	require.True(t, errutil.Is(err, errutil.StatusInvalidPayment), "got %v", err)

	var stored PointLedgerEntry
	require.NoError(t, f.db.Where("id = ?", pending.ID).Take(&stored).Error)
	require.Equal(t, pointtype.StatusPending, stored.Status)
	require.Zero(t, f.countAllocations(t))
}

func TestCancelPendingReservationPoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	f.create(t, "u1", 500, pointtype.StatusReceived)
	_, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeBooking,
		PointAmount: 200, Status: pointtype.StatusPending, ReservationID: "r4",
	})
	require.NoError(t, err)

	entry, err := f.svc.CancelPendingReservationPoints(ctx, "r4")
	require.NoError(t, err)
	require.Equal(t, pointtype.StatusCanceled, entry.Status)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(500), b.AvailablePoints)
	require.Equal(t, int64(500), b.LifeTimePoints)
}

func TestCancelRedeemedRestoresPoints(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	ctx := context.Background()

	earned := f.create(t, "u1", 1000, pointtype.StatusReceived)
	redeemed, err := f.svc.Create(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "u1", PointType: pointtype.TypeBooking,
		PointAmount: 400, Status: pointtype.StatusRedeemed, ReservationID: "r5",
	})
	require.NoError(t, err)
	require.Equal(t, int64(600), f.balanceOf(t, "u1").AvailablePoints)

	entry, err := f.svc.CancelPendingReservationPoints(ctx, "r5")
	require.NoError(t, err)
	require.Equal(t, redeemed.ID, entry.ID)
	require.Equal(t, pointtype.StatusCanceled, entry.Status)

	b := f.balanceOf(t, "u1")
	require.Equal(t, int64(1000), b.AvailablePoints)
	require.Equal(t, int64(1000), b.LifeTimePoints)

	breakdown, err := f.svc.AvailableBreakdown(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, breakdown, 1)
	require.Equal(t, earned.ID, breakdown[0].EntryID)
	require.Equal(t, int64(1000), breakdown[0].Available)

	entry, err = f.svc.CancelPendingReservationPoints(ctx, "r5")
	require.NoError(t, err)
	require.Nil(t, entry)
}

func TestCreateAndCalculateMultiplier(t *testing.T) {
	ctrl := gomock.NewController(t)
	ratio := ffmocks.NewMockEarnRatioProvider(ctrl)
	ratio.EXPECT().GlobalEarnRatio(gomock.Any(), "c1").Return(int64(80)).Times(2)

	f := newFixture(t, func(p *ServiceParams) { p.EarnRatio = ratio })
	ctx := context.Background()

	require.NoError(t, f.db.Create(&tier.User{ID: "silver-user", CompanyID: "c1", TierID: "silver"}).Error)
	f.seedUser(t, "no-tier")

	entry, err := f.svc.CreateAndCalculateMultiplier(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "silver-user", PointType: pointtype.TypeOrder, PointAmount: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1200), entry.PointAmount)

	entry, err = f.svc.CreateAndCalculateMultiplier(ctx, &PointLedgerEntry{
		CompanyID: "c1", UserID: "no-tier", PointType: pointtype.TypeOrder, PointAmount: 1000,
	})
	require.NoError(t, err)
	require.Equal(t, int64(800), entry.PointAmount)
}

func TestScaleAmountFloors(t *testing.T) {
	require.Equal(t, int64(499), ScaleAmount(333, decimal.RequireFromString("1.5"), 100))
	require.Equal(t, int64(0), ScaleAmount(1, decimal.NewFromInt(1), 50))
	require.Equal(t, int64(250), ScaleAmount(100, decimal.NewFromInt(2), 125))
}

func TestCreateRecordsAudit(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := auditmocks.NewMockRecorder(ctrl)
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e audit.Entry) {
		require.Equal(t, audit.ActionPointsAwarded, e.Action)
		require.Equal(t, audit.SourceLedger, e.Source)
		require.Equal(t, "u1", e.UserID)
	})

	f := newFixture(t, func(p *ServiceParams) { p.Audit = recorder })
	f.seedUser(t, "u1")
	f.create(t, "u1", 50, pointtype.StatusReceived)
}

func TestCreateUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &PointLedgerEntry{
		CompanyID: "c1", UserID: "ghost", PointType: pointtype.TypeOrder, PointAmount: 10,
	})
	require.True(t, errutil.Is(err, errutil.StatusNotFound), "got %v", err)
}

func TestListEntries(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	for i := 0; i < 3; i++ {
		f.create(t, "u1", int64(10*(i+1)), pointtype.StatusReceived)
		time.Sleep(time.Millisecond)
	}

	entries, info, err := f.svc.ListEntries(context.Background(), "u1", pagination.Pagination{Limit: 2})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.True(t, info.HasMore)
	require.NotEmpty(t, info.NextCursor)
	require.Equal(t, int64(10), entries[0].PointAmount)
}

func TestGetBalanceEmptyUserID(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, "u1")
	require.NoError(t, f.db.Model(&tier.User{}).Where("id = ?", "u1").Update("available_points", 777).Error)

	_, err := f.svc.GetBalance(context.Background(), "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)
}

func TestCreateAndCalculateMultiplierKeepsCallerAmount(t *testing.T) {
	ctrl := gomock.NewController(t)
	ratio := ffmocks.NewMockEarnRatioProvider(ctrl)
	ratio.EXPECT().GlobalEarnRatio(gomock.Any(), "c1").Return(int64(200)).Times(2)

	f := newFixture(t, func(p *ServiceParams) { p.EarnRatio = ratio })
	ctx := context.Background()

	in := &PointLedgerEntry{CompanyID: "c1", UserID: "ghost", PointType: pointtype.TypeOrder, PointAmount: 100}
	_, err := f.svc.CreateAndCalculateMultiplier(ctx, in)
	require.Error(t, err)
	require.Equal(t, int64(100), in.PointAmount)

	// a retry with the same payload scales from the original amount
	f.seedUser(t, "ghost")
	out, err := f.svc.CreateAndCalculateMultiplier(ctx, in)
	require.NoError(t, err)
	require.Equal(t, int64(200), out.PointAmount)
	require.Equal(t, int64(100), in.PointAmount)
}
