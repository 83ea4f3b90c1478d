package campaign

import (
	"context"

	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/point"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RefundActionForUser refunds the most recent unrefunded credit of a
// campaign action, claws back its points when they were awarded and
// re-checks completion of the parent campaign.
func (s *Service) RefundActionForUser(ctx context.Context, userID, campaignActionID, companyID string) (*RefundResult, error) {
	if userID == "" || campaignActionID == "" || companyID == "" {
		return nil, errutil.BadRequest("user_id, campaign_action_id and company_id are required", nil)
	}

	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx,
		zap.String("user_id", userID),
		zap.String("company_id", companyID),
		zap.String("campaign_action_id", campaignActionID),
	)

	result := &RefundResult{}
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.locker.LockUser(txCtx, tx, userID); err != nil {
			return err
		}

		storeTx := s.store.WithTrx(tx)

		ca, err := storeTx.GetCampaignAction(txCtx, campaignActionID)
		if err != nil {
			return err
		}
		if ca == nil {
			return errutil.BadRequest("campaign action not found", nil,
				errutil.WithDetails(errutil.Detail{Field: "campaign_action_id", Message: campaignActionID}))
		}

		campaigns, err := s.campaignsByID(txCtx, storeTx, []string{ca.CampaignID})
		if err != nil {
			return err
		}
		if c := campaigns[ca.CampaignID]; c == nil || c.CompanyID != companyID {
			return errutil.BadRequest("campaign action does not belong to company", nil,
				errutil.WithDetails(errutil.Detail{Field: "company_id", Message: companyID}))
		}

		ua, err := storeTx.LatestRefundable(txCtx, userID, campaignActionID)
		if err != nil {
			return err
		}
		if ua == nil {
			return errutil.BadRequest("no refundable action for user", nil,
				errutil.WithDetails(errutil.Detail{Field: "campaign_action_id", Message: campaignActionID}))
		}

		refundedOn := s.now().UTC()
		n, err := storeTx.MarkRefunded(txCtx, ua.ID, refundedOn)
		if err != nil {
			return err
		}
		if n != 1 {
			return errutil.RefundFailure("user action refund was not recorded", nil,
				errutil.WithDetails(errutil.Detail{Field: "user_action_id", Message: ua.ID}))
		}
		ua.RefundedOn = &refundedOn
		result.UserAction = ua

		if ua.HasAwarded && ca.PointValue > 0 {
			entry, err := s.ledger.CreateWithTrx(txCtx, tx, &point.PointLedgerEntry{
				CompanyID:        companyID,
				UserID:           userID,
				PointType:        pointtype.TypeCampaign,
				PointAmount:      ca.PointValue,
				Status:           pointtype.StatusRevoked,
				Reason:           pointtype.ReasonTransactionRefund,
				Description:      "Campaign action refunded",
				CampaignID:       ca.CampaignID,
				CampaignActionID: ca.ID,
				UserActionID:     ua.ID,
			})
			if err != nil {
				return errutil.BadRequest("failed to create refund ledger entry", err)
			}
			result.EntryID = entry.ID
		}

		changes, err := s.CheckForCompletedCampaigns(txCtx, tx, userID, companyID, []string{ca.CampaignID})
		if err != nil {
			return err
		}
		result.Completions = changes
		return nil
	})
	if err != nil {
		zapLog.Error("failed to refund action", zap.Error(err))
		return nil, err
	}

	s.audit.Record(txCtx, audit.Entry{
		CompanyID: companyID,
		UserID:    userID,
		Action:    audit.ActionActionRefunded,
		Source:    audit.SourceCampaign,
		SourceID:  result.UserAction.ID,
		MetaData: map[string]any{
			"campaign_action_id": campaignActionID,
			"entry_id":           result.EntryID,
			"had_award":          result.UserAction.HasAwarded,
		},
	})
	s.recordCompletions(txCtx, userID, companyID, result.Completions)

	zapLog.Info("action refunded", zap.String("user_action_id", result.UserAction.ID))
	return result, nil
}
