package campaign

import (
	"context"
	"fmt"
	"sort"
	"time"

	"smallbiznis-loyaltycore/pkg/celengine"
	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger writes point entries on a caller's transaction.
type Ledger interface {
	CreateWithTrx(ctx context.Context, tx *gorm.DB, entry *point.PointLedgerEntry) (*point.PointLedgerEntry, error)
}

// UserLocker serializes mutations of one user.
type UserLocker interface {
	LockUser(ctx context.Context, tx *gorm.DB, userID string) (*tier.User, error)
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	store  Store
	ledger Ledger
	locker UserLocker
	audit  audit.Recorder
}

type ServiceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Points  *point.Service
	Balance *tier.BalanceService
	Audit   audit.Recorder `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	recorder := p.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}

	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		store:  NewStore(p.DB),
		ledger: p.Points,
		locker: p.Balance,
		audit:  recorder,
	}
}

func (s *Service) Store() Store {
	return s.store
}

// FireActionForUser credits one performance of actionID to every eligible
// campaign action of the company, then consolidates the user's campaigns.
// It fails with BAD_REQUEST when no campaign action can take the credit.
// A repeated EventID is acknowledged without effect.
func (s *Service) FireActionForUser(ctx context.Context, req FireActionRequest) (*FireActionResult, error) {
	if req.UserID == "" || req.ActionID == "" || req.CompanyID == "" {
		return nil, errutil.BadRequest("user_id, action_id and company_id are required", nil)
	}

	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx,
		zap.String("user_id", req.UserID),
		zap.String("company_id", req.CompanyID),
		zap.String("action_id", req.ActionID),
		zap.String("event_id", req.EventID),
	)

	eligible, err := s.eligibleCampaignActions(txCtx, req)
	if err != nil {
		zapLog.Error("failed to resolve campaign actions", zap.Error(err))
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, errutil.BadRequest("no active campaign action for this action", nil,
			errutil.WithDetails(errutil.Detail{Field: "action_id", Message: req.ActionID}))
	}

	result := &FireActionResult{}
	err = s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.locker.LockUser(txCtx, tx, req.UserID); err != nil {
			return err
		}

		storeTx := s.store.WithTrx(tx)
		duplicates := 0
		for _, entry := range eligible {
			ca := entry.action

			if req.EventID != "" {
				seen, err := storeTx.UserActionExists(txCtx, req.UserID, ca.ID, req.EventID)
				if err != nil {
					return err
				}
				if seen {
					duplicates++
					continue
				}
			}

			credits, err := storeTx.CountCredits(txCtx, req.UserID, ca.ID)
			if err != nil {
				return err
			}
			if credits >= ca.ActionCount {
				zapLog.Debug("campaign action exhausted", zap.String("campaign_action_id", ca.ID), zap.Int64("credits", credits))
				continue
			}

			ua := &UserAction{
				ID:               s.node.Generate().String(),
				CompanyID:        req.CompanyID,
				UserID:           req.UserID,
				CampaignID:       ca.CampaignID,
				CampaignActionID: ca.ID,
				EventID:          req.EventID,
			}
			if err := storeTx.CreateUserAction(txCtx, ua); err != nil {
				return err
			}
			result.UserActions = append(result.UserActions, ua)
		}

		if len(result.UserActions) == 0 {
			if duplicates > 0 {
				result.Duplicate = true
				return nil
			}
			return errutil.BadRequest("action has exceeded all available campaign action counts", nil,
				errutil.WithDetails(errutil.Detail{Field: "action_id", Message: req.ActionID}))
		}
		return nil
	})
	if err != nil {
		zapLog.Warn("failed to fire action", zap.Error(err))
		return nil, err
	}

	if result.Duplicate {
		zapLog.Info("duplicate action event ignored")
		return result, nil
	}

	consolidation, err := s.ConsolidateUserCampaigns(txCtx, req.UserID, req.CompanyID)
	if err != nil {
		return nil, err
	}
	result.Consolidation = consolidation

	zapLog.Info("action fired", zap.Int("user_actions", len(result.UserActions)), zap.Int("awards", len(consolidation.Awards)))
	return result, nil
}

type eligibleAction struct {
	action   *CampaignAction
	campaign *Campaign
}

func (s *Service) eligibleCampaignActions(ctx context.Context, req FireActionRequest) ([]eligibleAction, error) {
	actions, err := s.store.ActiveCampaignActionsForAction(ctx, req.ActionID)
	if err != nil {
		return nil, err
	}
	if len(actions) == 0 {
		return nil, nil
	}

	campaigns, err := s.campaignsByID(ctx, s.store, campaignIDsOf(actions))
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]eligibleAction, 0, len(actions))
	for _, ca := range actions {
		c, ok := campaigns[ca.CampaignID]
		if !ok || c.CompanyID != req.CompanyID || !c.Running(now) {
			continue
		}

		matched, err := celengine.Match(ca.Condition, req.Attributes)
		if err != nil {
			zap.L().Warn("failed to evaluate campaign action condition",
				zap.String("campaign_action_id", ca.ID),
				zap.String("condition", ca.Condition),
				zap.Error(err),
			)
			continue
		}
		if !matched {
			continue
		}

		out = append(out, eligibleAction{action: ca, campaign: c})
	}
	return out, nil
}

// ConsolidateUserCampaigns awards every campaign action whose unawarded
// credits reached its action count, then re-checks completion of every
// campaign touched. Award entries and hasAwarded flags commit together.
func (s *Service) ConsolidateUserCampaigns(ctx context.Context, userID, companyID string) (*ConsolidationResult, error) {
	if userID == "" || companyID == "" {
		return nil, errutil.BadRequest("user_id and company_id are required", nil)
	}

	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx, zap.String("user_id", userID), zap.String("company_id", companyID))

	result := &ConsolidationResult{}
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.locker.LockUser(txCtx, tx, userID); err != nil {
			return err
		}

		storeTx := s.store.WithTrx(tx)

		pending, err := storeTx.UnawardedUserActions(txCtx, userID, companyID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		type group struct {
			count int64
			ids   []string
		}
		groups := map[string]*group{}
		for _, ua := range pending {
			g, ok := groups[ua.CampaignActionID]
			if !ok {
				g = &group{}
				groups[ua.CampaignActionID] = g
			}
			g.count++
			g.ids = append(g.ids, ua.ID)
		}

		caIDs := make([]string, 0, len(groups))
		for id := range groups {
			caIDs = append(caIDs, id)
		}
		sort.Strings(caIDs)

		actions, err := storeTx.ActiveCampaignActions(txCtx, caIDs)
		if err != nil {
			return err
		}

		touched := campaignIDsOf(actions)
		campaigns, err := s.campaignsByID(txCtx, storeTx, touched)
		if err != nil {
			return err
		}

		for _, ca := range actions {
			g := groups[ca.ID]
			c, ok := campaigns[ca.CampaignID]
			if !ok || g == nil || g.count < ca.ActionCount {
				continue
			}

			award := Award{
				CampaignID:       c.ID,
				CampaignActionID: ca.ID,
				UserActionIDs:    g.ids,
				Points:           c.Cap(ca.PointValue * g.count),
			}

			if award.Points > 0 {
				entry, err := s.ledger.CreateWithTrx(txCtx, tx, &point.PointLedgerEntry{
					CompanyID:        companyID,
					UserID:           userID,
					PointType:        pointtype.TypeCampaign,
					PointAmount:      award.Points,
					Status:           pointtype.StatusReceived,
					Reason:           pointtype.ReasonCampaignAction,
					Description:      fmt.Sprintf("%s: %d actions", c.Name, g.count),
					CampaignID:       c.ID,
					CampaignActionID: ca.ID,
				})
				if err != nil {
					return err
				}
				award.EntryID = entry.ID
			}

			n, err := storeTx.MarkAwarded(txCtx, g.ids)
			if err != nil {
				return err
			}
			if n != int64(len(g.ids)) {
				return fmt.Errorf("mark awarded: expected %d user actions, updated %d", len(g.ids), n)
			}

			result.Awards = append(result.Awards, award)
		}

		changes, err := s.CheckForCompletedCampaigns(txCtx, tx, userID, companyID, touched)
		if err != nil {
			return err
		}
		result.Completions = changes
		return nil
	})
	if err != nil {
		zapLog.Error("failed to consolidate campaigns", zap.Error(err))
		return nil, err
	}

	for _, a := range result.Awards {
		s.audit.Record(txCtx, audit.Entry{
			CompanyID: companyID,
			UserID:    userID,
			Action:    audit.ActionCampaignConsolidate,
			Source:    audit.SourceCampaign,
			SourceID:  a.CampaignActionID,
			MetaData: map[string]any{
				"campaign_id":     a.CampaignID,
				"points":          a.Points,
				"user_action_ids": a.UserActionIDs,
				"entry_id":        a.EntryID,
			},
		})
	}
	s.recordCompletions(txCtx, userID, companyID, result.Completions)

	return result, nil
}

// CheckForCompletedCampaigns awards completion of campaigns whose every
// active action has enough unrefunded credits, and reverses completions
// that are no longer satisfied. It runs on the caller's transaction.
func (s *Service) CheckForCompletedCampaigns(ctx context.Context, tx *gorm.DB, userID, companyID string, campaignIDs []string) ([]CompletionChange, error) {
	storeTx := s.store.WithTrx(tx)

	campaigns, err := storeTx.Campaigns(ctx, campaignIDs)
	if err != nil {
		return nil, err
	}

	var changes []CompletionChange
	for _, c := range campaigns {
		if c.CompanyID != companyID || len(c.Actions) == 0 {
			continue
		}

		satisfied := true
		for _, ca := range c.Actions {
			credits, err := storeTx.CountCredits(ctx, userID, ca.ID)
			if err != nil {
				return nil, err
			}
			if credits < ca.ActionCount {
				satisfied = false
				break
			}
		}

		existing, err := storeTx.ActiveCompletion(ctx, userID, c.ID)
		if err != nil {
			return nil, err
		}

		switch {
		case satisfied && existing == nil:
			change, err := s.completeCampaign(ctx, tx, storeTx, userID, companyID, c)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)

		case !satisfied && existing != nil:
			change, err := s.reverseCompletion(ctx, tx, storeTx, userID, companyID, existing)
			if err != nil {
				return nil, err
			}
			changes = append(changes, change)
		}
	}

	return changes, nil
}

func (s *Service) completeCampaign(ctx context.Context, tx *gorm.DB, storeTx Store, userID, companyID string, c *Campaign) (CompletionChange, error) {
	completion := &UserCompletedCampaign{
		ID:               s.node.Generate().String(),
		CompanyID:        companyID,
		UserID:           userID,
		CampaignID:       c.ID,
		CompletionPoints: c.CompletionPoints,
		HasAwarded:       c.CompletionPoints > 0,
	}
	if err := storeTx.CreateCompletion(ctx, completion); err != nil {
		return CompletionChange{}, err
	}

	change := CompletionChange{CampaignID: c.ID, CompletionID: completion.ID, Points: c.CompletionPoints}
	if c.CompletionPoints > 0 {
		entry, err := s.ledger.CreateWithTrx(ctx, tx, &point.PointLedgerEntry{
			CompanyID:   companyID,
			UserID:      userID,
			PointType:   pointtype.TypeCampaign,
			PointAmount: c.CompletionPoints,
			Status:      pointtype.StatusReceived,
			Reason:      pointtype.ReasonCampaignCompletion,
			Description: fmt.Sprintf("Completed %s", c.Name),
			CampaignID:  c.ID,
		})
		if err != nil {
			return CompletionChange{}, err
		}
		change.EntryID = entry.ID
	}

	return change, nil
}

func (s *Service) reverseCompletion(ctx context.Context, tx *gorm.DB, storeTx Store, userID, companyID string, completion *UserCompletedCampaign) (CompletionChange, error) {
	n, err := storeTx.RefundCompletion(ctx, completion.ID, s.now().UTC())
	if err != nil {
		return CompletionChange{}, err
	}
	if n != 1 {
		return CompletionChange{}, errutil.RefundFailure("campaign completion refund was not recorded", nil,
			errutil.WithDetails(errutil.Detail{Field: "completion_id", Message: completion.ID}))
	}

	change := CompletionChange{
		CampaignID:   completion.CampaignID,
		CompletionID: completion.ID,
		Points:       completion.CompletionPoints,
		Reversed:     true,
	}
	if completion.HasAwarded && completion.CompletionPoints > 0 {
		entry, err := s.ledger.CreateWithTrx(ctx, tx, &point.PointLedgerEntry{
			CompanyID:   companyID,
			UserID:      userID,
			PointType:   pointtype.TypeCampaign,
			PointAmount: completion.CompletionPoints,
			Status:      pointtype.StatusRevoked,
			Reason:      pointtype.ReasonCampaignReversal,
			Description: "Campaign completion reversed",
			CampaignID:  completion.CampaignID,
		})
		if err != nil {
			return CompletionChange{}, err
		}
		change.EntryID = entry.ID
	}

	return change, nil
}

func (s *Service) recordCompletions(ctx context.Context, userID, companyID string, changes []CompletionChange) {
	for _, c := range changes {
		action := audit.ActionCampaignCompleted
		if c.Reversed {
			action = audit.ActionCampaignReversed
		}
		s.audit.Record(ctx, audit.Entry{
			CompanyID: companyID,
			UserID:    userID,
			Action:    action,
			Source:    audit.SourceCampaign,
			SourceID:  c.CampaignID,
			MetaData: map[string]any{
				"completion_id": c.CompletionID,
				"points":        c.Points,
				"entry_id":      c.EntryID,
			},
		})
	}
}

func (s *Service) campaignsByID(ctx context.Context, store Store, ids []string) (map[string]*Campaign, error) {
	campaigns, err := store.Campaigns(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*Campaign, len(campaigns))
	for _, c := range campaigns {
		out[c.ID] = c
	}
	return out, nil
}

func campaignIDsOf(actions []*CampaignAction) []string {
	seen := map[string]bool{}
	ids := make([]string, 0, len(actions))
	for _, ca := range actions {
		if seen[ca.CampaignID] {
			continue
		}
		seen[ca.CampaignID] = true
		ids = append(ids, ca.CampaignID)
	}
	sort.Strings(ids)
	return ids
}
