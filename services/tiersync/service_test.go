package tiersync

import (
	"context"
	"testing"
	"time"

	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/testutil"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var syncDay = time.Date(2026, 5, 1, 1, 0, 0, 0, time.UTC)

type fixture struct {
	db  *gorm.DB
	svc *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	models := append(Models(), point.Models()...)
	models = append(models, tier.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	balance := tier.NewBalanceService(tier.BalanceParams{DB: db, Node: node, Catalog: tier.NewCatalog(db, node)})
	svc := NewService(Params{DB: db, Node: node, Balance: balance})
	svc.now = func() time.Time { return syncDay }
	svc.pageSize = 2

	return &fixture{db: db, svc: svc}
}

func (f *fixture) seedTiers(t *testing.T, companyID string) {
	t.Helper()
	for _, tr := range catalog() {
		tr.ID = companyID + "-" + tr.ID
		tr.CompanyID = companyID
		require.NoError(t, f.db.Create(tr).Error)
	}
}

func (f *fixture) seedUser(t *testing.T, u *tier.User, offset int) {
	t.Helper()
	u.CreatedAt = time.Date(2025, 1, 1, 0, 0, offset, 0, time.UTC)
	require.NoError(t, f.db.Create(u).Error)
}

func (f *fixture) seedEntry(t *testing.T, id, userID string, amount int64, status pointtype.Status, updatedAt time.Time) {
	t.Helper()
	require.NoError(t, f.db.Create(&point.PointLedgerEntry{
		ID:          id,
		CompanyID:   "c1",
		UserID:      userID,
		PointType:   pointtype.TypeOrder,
		PointAmount: amount,
		Status:      status,
		CreatedAt:   updatedAt,
		UpdatedAt:   updatedAt,
	}).Error)
}

func (f *fixture) tierOf(t *testing.T, userID string) string {
	t.Helper()
	var u tier.User
	require.NoError(t, f.db.First(&u, "id = ?", userID).Error)
	return u.TierID
}

func TestSyncCompany(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(t, "c1")
	f.seedTiers(t, "c2")

	// u1 drifted below its lifetime tier.
	f.seedUser(t, &tier.User{ID: "u1", CompanyID: "c1", LifeTimePoints: 1200, TierID: "c1-bronze"}, 1)
	// u2 earns an annual tier on this year's activity only.
	f.seedUser(t, &tier.User{ID: "u2", CompanyID: "c1", LifeTimePoints: 100, TierID: "c1-bronze"}, 2)
	f.seedUser(t, &tier.User{ID: "u3", CompanyID: "c1", LifeTimePoints: 100, TierID: "c1-bronze"}, 3)
	f.seedUser(t, &tier.User{ID: "x1", CompanyID: "c2", LifeTimePoints: 9000, TierID: "c2-bronze"}, 4)

	thisYear := testutil.Date(2026, 3, 1)
	lastYear := time.Date(2025, 12, 31, 23, 0, 0, 0, time.UTC)
	f.seedEntry(t, "e1", "u2", 1600, pointtype.StatusReceived, thisYear)
	f.seedEntry(t, "e2", "u2", 500, pointtype.StatusRevoked, thisYear)
	f.seedEntry(t, "e3", "u2", 700, pointtype.StatusPending, thisYear)
	f.seedEntry(t, "e4", "u3", 1400, pointtype.StatusReceived, lastYear)
	f.seedEntry(t, "e5", "u3", 200, pointtype.StatusReceived, thisYear)

	job, err := f.svc.SyncCompany(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, JobSuccess, job.Status)
	require.Equal(t, int64(3), job.UsersScanned)
	require.Equal(t, int64(2), job.UsersChanged)

	require.Equal(t, "c1-silver", f.tierOf(t, "u1"))
	require.Equal(t, "c1-annual-gold", f.tierOf(t, "u2"))
	require.Equal(t, "c1-bronze", f.tierOf(t, "u3"))
	require.Equal(t, "c2-bronze", f.tierOf(t, "x1"))

	var assignment tier.UserTier
	require.NoError(t, f.db.First(&assignment, "user_id = ?", "u2").Error)
	require.Equal(t, "c1-annual-gold", assignment.TierID)
	require.Nil(t, assignment.ExpiresOn)

	stored, err := f.svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	require.Equal(t, JobSuccess, stored.Status)
	require.Equal(t, int64(2), stored.UsersChanged)
	require.NotNil(t, stored.CompletedAt)

	// A second run has nothing to reconcile.
	again, err := f.svc.SyncCompany(context.Background(), "c1")
	require.NoError(t, err)
	require.Zero(t, again.UsersChanged)
}

func TestSyncCompanyWithoutTiers(t *testing.T) {
	f := newFixture(t)
	f.seedUser(t, &tier.User{ID: "u1", CompanyID: "c1", LifeTimePoints: 1200}, 1)

	job, err := f.svc.SyncCompany(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, JobSuccess, job.Status)
	require.Zero(t, job.UsersScanned)
	require.Empty(t, f.tierOf(t, "u1"))
}

func TestCompanies(t *testing.T) {
	f := newFixture(t)
	f.seedTiers(t, "c2")
	f.seedTiers(t, "c1")
	require.NoError(t, f.db.Create(&tier.Tier{ID: "c3-old", CompanyID: "c3", Name: "Old", IsActive: false}).Error)

	ids, err := f.svc.Companies(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, ids)
}
