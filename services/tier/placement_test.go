package tier

import (
	"testing"
	"time"

	"smallbiznis-loyaltycore/pkg/pointtype"

	"github.com/stretchr/testify/require"
)

func catalogFixture() []*Tier {
	return []*Tier{
		{ID: "gold", Name: "Gold", Threshold: 5000},
		{ID: "bronze", Name: "Bronze", Threshold: 0},
		{ID: "silver", Name: "Silver", Threshold: 1000},
	}
}

func TestSelectInclusiveThreshold(t *testing.T) {
	tiers := catalogFixture()
	SortByThreshold(tiers)

	require.Equal(t, "bronze", Select(tiers, 999).ID)
	require.Equal(t, "silver", Select(tiers, 1000).ID)
	require.Equal(t, "silver", Select(tiers, 4999).ID)
	require.Equal(t, "gold", Select(tiers, 5000).ID)
}

func TestSelectFallsBackToLowest(t *testing.T) {
	tiers := []*Tier{{ID: "silver", Threshold: 1000}, {ID: "gold", Threshold: 5000}}
	require.Equal(t, "silver", Select(tiers, 10).ID)
	require.Nil(t, Select(nil, 10))
}

func TestHighestWithFilter(t *testing.T) {
	tiers := []*Tier{
		{ID: "bronze", Threshold: 0},
		{ID: "annual-silver", Threshold: 800, IsAnnualRate: true},
		{ID: "gold", Threshold: 5000},
	}
	annual := func(t *Tier) bool { return t.IsAnnualRate }

	require.Equal(t, "annual-silver", Highest(tiers, 900, annual).ID)
	require.Nil(t, Highest(tiers, 100, annual))
}

func TestExpiresOn(t *testing.T) {
	now := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)

	exp := ExpiresOn(&Tier{IsAnnualRate: false}, now)
	require.NotNil(t, exp)
	require.Equal(t, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), *exp)

	require.Nil(t, ExpiresOn(&Tier{IsAnnualRate: true}, now))
}

func TestApplyDelta(t *testing.T) {
	cases := []struct {
		name              string
		life, avail, v    int64
		status            pointtype.Status
		wantLife, wantAvl int64
	}{
		{"received adds both", 0, 0, 1200, pointtype.StatusReceived, 1200, 1200},
		{"redeemed keeps lifetime", 1200, 1200, -200, pointtype.StatusRedeemed, 1200, 1000},
		{"refund keeps lifetime", 1200, 1000, -100, pointtype.StatusRefunded, 1200, 900},
		{"canceled restore moves only available", 1200, 900, 300, pointtype.StatusCanceled, 1200, 1200},
		{"revoked reduces lifetime", 1200, 1200, -200, pointtype.StatusRevoked, 1000, 1000},
		{"revoked beyond available zeroes it", 1500, 300, -500, pointtype.StatusRevoked, 1200, 0},
		{"debit on empty balance is ignored", 0, 0, -50, pointtype.StatusRevoked, 0, 0},
		{"expired beyond available clamps", 400, 100, -300, pointtype.StatusExpired, 400, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			life, avail := ApplyDelta(tc.life, tc.avail, tc.v, tc.status)
			require.Equal(t, tc.wantLife, life)
			require.Equal(t, tc.wantAvl, avail)
		})
	}
}
