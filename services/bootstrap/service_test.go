package bootstrap

import (
	"context"
	"testing"

	"smallbiznis-loyaltycore/services/testutil"

	"github.com/stretchr/testify/require"
)

func TestMigrate(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewService(ServiceParams{DB: db})

	require.NoError(t, svc.Migrate(context.Background()))
	// Migrating twice is a no-op.
	require.NoError(t, svc.Migrate(context.Background()))

	for _, table := range []string{
		"point_ledger_entries",
		"point_allocations",
		"tiers",
		"users",
		"user_tiers",
		"campaigns",
		"campaign_actions",
		"user_actions",
		"user_completed_campaigns",
		"tier_sync_jobs",
		"system_audit_logs",
	} {
		require.True(t, db.Migrator().HasTable(table), table)
	}
}
