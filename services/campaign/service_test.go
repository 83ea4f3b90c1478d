package campaign

import (
	"context"
	"testing"
	"time"

	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/services/audit"
	auditmocks "smallbiznis-loyaltycore/services/audit/mocks"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/testutil"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fixture struct {
	db     *gorm.DB
	points *point.Service
	svc    *Service
}

func newFixture(t *testing.T, recorder audit.Recorder) *fixture {
	t.Helper()

	models := append(Models(), point.Models()...)
	models = append(models, tier.Models()...)
	db := testutil.NewTestDB(t, models...)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	catalog := tier.NewCatalog(db, node)
	require.NoError(t, catalog.Save(context.Background(), &tier.Tier{ID: "bronze", CompanyID: "c1", Name: "Bronze", IsActive: true}))

	balance := tier.NewBalanceService(tier.BalanceParams{DB: db, Node: node, Catalog: catalog})
	points := point.NewService(point.ServiceParams{DB: db, Node: node, Balance: balance})

	svc := NewService(ServiceParams{DB: db, Node: node, Points: points, Balance: balance, Audit: recorder})
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, db.Create(&tier.User{ID: "u1", CompanyID: "c1"}).Error)

	return &fixture{db: db, points: points, svc: svc}
}

func (f *fixture) seedCampaign(t *testing.T, c *Campaign) {
	t.Helper()
	require.NoError(t, f.db.Create(c).Error)
}

func (f *fixture) fire(t *testing.T, actionID, eventID string, attrs map[string]any) (*FireActionResult, error) {
	t.Helper()
	return f.svc.FireActionForUser(context.Background(), FireActionRequest{
		CompanyID:  "c1",
		UserID:     "u1",
		ActionID:   actionID,
		EventID:    eventID,
		Attributes: attrs,
	})
}

func (f *fixture) entries(t *testing.T) []*point.PointLedgerEntry {
	t.Helper()
	var out []*point.PointLedgerEntry
	require.NoError(t, f.db.Order("created_at ASC, id ASC").Find(&out).Error)
	return out
}

func (f *fixture) available(t *testing.T) int64 {
	t.Helper()
	b, err := f.points.GetBalance(context.Background(), "u1")
	require.NoError(t, err)
	return b.AvailablePoints
}

func reviewCampaign(maxReward, completion int64) *Campaign {
	return &Campaign{
		ID:               "camp1",
		CompanyID:        "c1",
		Name:             "Review Month",
		MaxReward:        maxReward,
		CompletionPoints: completion,
		IsActive:         true,
		Actions: []*CampaignAction{
			{ID: "ca1", ActionID: "review", ActionCount: 3, PointValue: 100, IsActive: true},
		},
	}
}

func TestFireActionConsolidatesCappedAward(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(250, 0))

	for _, ev := range []string{"e1", "e2"} {
		res, err := f.fire(t, "review", ev, nil)
		require.NoError(t, err)
		require.Len(t, res.UserActions, 1)
		require.Empty(t, res.Consolidation.Awards)
	}
	require.Empty(t, f.entries(t))

	res, err := f.fire(t, "review", "e3", nil)
	require.NoError(t, err)
	require.Len(t, res.Consolidation.Awards, 1)
	require.Equal(t, int64(250), res.Consolidation.Awards[0].Points)
	require.Len(t, res.Consolidation.Awards[0].UserActionIDs, 3)

	entries := f.entries(t)
	require.Len(t, entries, 1)
	require.Equal(t, pointtype.TypeCampaign, entries[0].PointType)
	require.Equal(t, pointtype.StatusReceived, entries[0].Status)
	require.Equal(t, int64(250), entries[0].PointAmount)
	require.Equal(t, "ca1", entries[0].CampaignActionID)

	var awarded int64
	require.NoError(t, f.db.Model(&UserAction{}).Where("has_awarded = ?", true).Count(&awarded).Error)
	require.Equal(t, int64(3), awarded)
	require.Equal(t, int64(250), f.available(t))

	// Consolidating again finds nothing to award.
	again, err := f.svc.ConsolidateUserCampaigns(context.Background(), "u1", "c1")
	require.NoError(t, err)
	require.Empty(t, again.Awards)
	require.Len(t, f.entries(t), 1)
}

func TestFireActionExhausted(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 0))

	for _, ev := range []string{"e1", "e2", "e3"} {
		_, err := f.fire(t, "review", ev, nil)
		require.NoError(t, err)
	}

	_, err := f.fire(t, "review", "e4", nil)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)

	var n int64
	require.NoError(t, f.db.Model(&UserAction{}).Count(&n).Error)
	require.Equal(t, int64(3), n)
	require.Equal(t, int64(300), f.available(t))
}

func TestFireActionDuplicateEvent(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 0))

	_, err := f.fire(t, "review", "e1", nil)
	require.NoError(t, err)

	res, err := f.fire(t, "review", "e1", nil)
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Empty(t, res.UserActions)

	var n int64
	require.NoError(t, f.db.Model(&UserAction{}).Count(&n).Error)
	require.Equal(t, int64(1), n)
}

func TestFireActionValidation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.FireActionForUser(context.Background(), FireActionRequest{CompanyID: "c1", ActionID: "review"})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.fire(t, "unknown", "e1", nil)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

func TestFireActionSkipsCampaignOutsideWindow(t *testing.T) {
	f := newFixture(t, nil)

	ended := testutil.Date(2026, 4, 1)
	c := reviewCampaign(0, 0)
	c.EndOn = &ended
	f.seedCampaign(t, c)

	_, err := f.fire(t, "review", "e1", nil)
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)
}

func TestFireActionCondition(t *testing.T) {
	f := newFixture(t, nil)

	c := reviewCampaign(0, 0)
	c.Actions[0].ActionCount = 1
	c.Actions[0].Condition = "amount >= 100"
	f.seedCampaign(t, c)

	_, err := f.fire(t, "review", "e1", map[string]any{"amount": 50})
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)

	res, err := f.fire(t, "review", "e2", map[string]any{"amount": float64(150)})
	require.NoError(t, err)
	require.Len(t, res.UserActions, 1)
	require.Equal(t, int64(100), f.available(t))
}

func TestCampaignCompletionAndRefund(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := auditmocks.NewMockRecorder(ctrl)

	var actions []string
	recorder.EXPECT().Record(gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, e audit.Entry) { actions = append(actions, e.Action) }).
		AnyTimes()

	f := newFixture(t, recorder)
	f.seedCampaign(t, reviewCampaign(0, 50))

	var last *FireActionResult
	for _, ev := range []string{"e1", "e2", "e3"} {
		res, err := f.fire(t, "review", ev, nil)
		require.NoError(t, err)
		last = res
	}
	require.Len(t, last.Consolidation.Completions, 1)
	require.Equal(t, int64(50), last.Consolidation.Completions[0].Points)
	require.Equal(t, int64(350), f.available(t))

	res, err := f.svc.RefundActionForUser(context.Background(), "u1", "ca1", "c1")
	require.NoError(t, err)
	require.NotEmpty(t, res.EntryID)
	require.NotNil(t, res.UserAction.RefundedOn)
	require.Len(t, res.Completions, 1)
	require.True(t, res.Completions[0].Reversed)

	var revoked []*point.PointLedgerEntry
	require.NoError(t, f.db.Where("status = ?", pointtype.StatusRevoked).Order("created_at ASC, id ASC").Find(&revoked).Error)
	require.Len(t, revoked, 2)
	require.Equal(t, int64(100), revoked[0].PointAmount)
	require.Equal(t, pointtype.ReasonTransactionRefund, revoked[0].Reason)
	require.Equal(t, int64(50), revoked[1].PointAmount)
	require.Equal(t, pointtype.ReasonCampaignReversal, revoked[1].Reason)

	var completion UserCompletedCampaign
	require.NoError(t, f.db.First(&completion).Error)
	require.NotNil(t, completion.RefundedOn)
	require.Equal(t, int64(200), f.available(t))

	require.Contains(t, actions, audit.ActionCampaignCompleted)
	require.Contains(t, actions, audit.ActionActionRefunded)
	require.Contains(t, actions, audit.ActionCampaignReversed)

	// The freed slot can be earned again and completes the campaign anew.
	_, err = f.fire(t, "review", "e4", nil)
	require.NoError(t, err)

	var completions int64
	require.NoError(t, f.db.Model(&UserCompletedCampaign{}).Where("refunded_on IS NULL").Count(&completions).Error)
	require.Equal(t, int64(1), completions)
}

func TestRefundUnawardedActionWritesNoEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 0))

	_, err := f.fire(t, "review", "e1", nil)
	require.NoError(t, err)

	res, err := f.svc.RefundActionForUser(context.Background(), "u1", "ca1", "c1")
	require.NoError(t, err)
	require.Empty(t, res.EntryID)
	require.Empty(t, f.entries(t))

	_, err = f.svc.RefundActionForUser(context.Background(), "u1", "ca1", "c1")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)
}

func TestRefundUnknownCampaignAction(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.RefundActionForUser(context.Background(), "u1", "missing", "c1")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))
}

type lostRefundStore struct {
	Store
}

func (s lostRefundStore) WithTrx(tx *gorm.DB) Store {
	return lostRefundStore{Store: s.Store.WithTrx(tx)}
}

func (lostRefundStore) MarkRefunded(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

func TestRefundFailureRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 0))

	for _, ev := range []string{"e1", "e2", "e3"} {
		_, err := f.fire(t, "review", ev, nil)
		require.NoError(t, err)
	}

	f.svc.store = lostRefundStore{Store: f.svc.store}

	_, err := f.svc.RefundActionForUser(context.Background(), "u1", "ca1", "c1")
	require.True(t, errutil.Is(err, errutil.StatusRefundFailure), "got %v", err)
	require.Len(t, f.entries(t), 1)
	require.Equal(t, int64(300), f.available(t))
}

func TestRefundRequiresOwningCompany(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 50))

	for _, ev := range []string{"e1", "e2", "e3"} {
		_, err := f.fire(t, "review", ev, nil)
		require.NoError(t, err)
	}
	require.Equal(t, int64(350), f.available(t))

	for _, companyID := range []string{"", "c2"} {
		_, err := f.svc.RefundActionForUser(context.Background(), "u1", "ca1", companyID)
		require.True(t, errutil.Is(err, errutil.StatusBadRequest), "company %q: got %v", companyID, err)
	}

	var refunded int64
	require.NoError(t, f.db.Model(&UserAction{}).Where("refunded_on IS NOT NULL").Count(&refunded).Error)
	require.Zero(t, refunded)
	require.Len(t, f.entries(t), 2)
	require.Equal(t, int64(350), f.available(t))

	res, err := f.svc.RefundActionForUser(context.Background(), "u1", "ca1", "c1")
	require.NoError(t, err)
	require.Len(t, res.Completions, 1)
	require.True(t, res.Completions[0].Reversed)
	require.Equal(t, int64(200), f.available(t))
}

func TestConsolidateRequiresUserAndCompany(t *testing.T) {
	f := newFixture(t, nil)
	f.seedCampaign(t, reviewCampaign(0, 0))
	require.NoError(t, f.db.Create(&UserCompletedCampaign{ID: "done1", CompanyID: "c1", UserID: "u1", CampaignID: "camp1"}).Error)

	_, err := f.svc.ConsolidateUserCampaigns(context.Background(), "", "c1")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)

	_, err = f.svc.ConsolidateUserCampaigns(context.Background(), "u1", "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest), "got %v", err)

	var completion UserCompletedCampaign
	require.NoError(t, f.db.First(&completion, "id = ?", "done1").Error)
	require.Nil(t, completion.RefundedOn)
}
