package main

import (
	"context"
	"fmt"

	"smallbiznis-loyaltycore/services/bootstrap"
	"smallbiznis-loyaltycore/services/campaign"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tiersync"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the engine tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			var db *gorm.DB
			return withApp(cmd.Context(), func(ctx context.Context) error {
				if err := bootstrap.NewService(bootstrap.ServiceParams{DB: db}).Migrate(ctx); err != nil {
					return err
				}
				fmt.Println("schema migrated")
				return nil
			}, &db)
		},
	}
}

func tierSyncCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "tier-sync [company-id]",
		Short: "Re-evaluate tier placement for every user of a company",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("company id is required unless --all is set")
			}

			var svc *tiersync.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				companies := args
				if all {
					ids, err := svc.Companies(ctx)
					if err != nil {
						return err
					}
					companies = ids
				}

				jobs := make([]*tiersync.TierSyncJob, 0, len(companies))
				for _, companyID := range companies {
					job, err := svc.SyncCompany(ctx, companyID)
					if err != nil {
						return fmt.Errorf("tier sync %s: %w", companyID, err)
					}
					jobs = append(jobs, job)
				}
				return printJSON(jobs)
			}, &svc)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "sync every company with active tiers")

	return cmd
}

func consolidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consolidate [company-id] [user-id]",
		Short: "Award pending campaign actions of a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *campaign.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				res, err := svc.ConsolidateUserCampaigns(ctx, args[1], args[0])
				if err != nil {
					return err
				}
				return printJSON(res)
			}, &svc)
		},
	}
}

func balanceCmd() *cobra.Command {
	var breakdown bool

	cmd := &cobra.Command{
		Use:   "balance [user-id]",
		Short: "Show the point balance of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc *point.Service
			return withApp(cmd.Context(), func(ctx context.Context) error {
				balance, err := svc.GetBalance(ctx, args[0])
				if err != nil {
					return err
				}
				if !breakdown {
					return printJSON(balance)
				}

				entries, err := svc.AvailableBreakdown(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"balance":   balance,
					"available": entries,
				})
			}, &svc)
		},
	}

	cmd.Flags().BoolVar(&breakdown, "breakdown", false, "include the FIFO breakdown of available credits")

	return cmd
}
