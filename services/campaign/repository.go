package campaign

import (
	"context"
	"time"

	"smallbiznis-loyaltycore/pkg/db/option"
	"smallbiznis-loyaltycore/pkg/repository"

	"gorm.io/gorm"
)

// Store is the persistence contract of campaign consolidation.
type Store interface {
	WithTrx(tx *gorm.DB) Store

	SaveCampaign(ctx context.Context, c *Campaign) error
	// Campaigns loads campaigns with their active actions.
	Campaigns(ctx context.Context, ids []string) ([]*Campaign, error)
	GetCampaignAction(ctx context.Context, id string) (*CampaignAction, error)
	ActiveCampaignActions(ctx context.Context, ids []string) ([]*CampaignAction, error)
	ActiveCampaignActionsForAction(ctx context.Context, actionID string) ([]*CampaignAction, error)

	CreateUserAction(ctx context.Context, ua *UserAction) error
	UserActionExists(ctx context.Context, userID, campaignActionID, eventID string) (bool, error)
	// UnawardedUserActions lists unrefunded actions not yet credited.
	UnawardedUserActions(ctx context.Context, userID, companyID string) ([]*UserAction, error)
	// CountCredits counts unrefunded actions of the user for a campaign action.
	CountCredits(ctx context.Context, userID, campaignActionID string) (int64, error)
	MarkAwarded(ctx context.Context, ids []string) (int64, error)
	LatestRefundable(ctx context.Context, userID, campaignActionID string) (*UserAction, error)
	MarkRefunded(ctx context.Context, id string, at time.Time) (int64, error)

	ActiveCompletion(ctx context.Context, userID, campaignID string) (*UserCompletedCampaign, error)
	CreateCompletion(ctx context.Context, c *UserCompletedCampaign) error
	RefundCompletion(ctx context.Context, id string, at time.Time) (int64, error)
}

type store struct {
	db *gorm.DB

	campaigns   repository.Repository[Campaign]
	actions     repository.Repository[CampaignAction]
	userActions repository.Repository[UserAction]
	completions repository.Repository[UserCompletedCampaign]
}

func NewStore(db *gorm.DB) Store {
	return &store{
		db:          db,
		campaigns:   repository.ProvideStore[Campaign](db),
		actions:     repository.ProvideStore[CampaignAction](db),
		userActions: repository.ProvideStore[UserAction](db),
		completions: repository.ProvideStore[UserCompletedCampaign](db),
	}
}

func (s *store) WithTrx(tx *gorm.DB) Store {
	if tx == nil {
		return s
	}
	return &store{
		db:          tx,
		campaigns:   s.campaigns.WithTrx(tx),
		actions:     s.actions.WithTrx(tx),
		userActions: s.userActions.WithTrx(tx),
		completions: s.completions.WithTrx(tx),
	}
}

func (s *store) SaveCampaign(ctx context.Context, c *Campaign) error {
	return s.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(c).Error
}

func (s *store) Campaigns(ctx context.Context, ids []string) ([]*Campaign, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var out []*Campaign
	err := s.db.WithContext(ctx).
		Preload("Actions", "is_active = ?", true).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *store) GetCampaignAction(ctx context.Context, id string) (*CampaignAction, error) {
	return s.actions.FindOne(ctx, &CampaignAction{ID: id})
}

func (s *store) ActiveCampaignActions(ctx context.Context, ids []string) ([]*CampaignAction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return s.actions.Find(ctx, nil,
		option.ApplyOperator(
			option.Condition{Field: "id", Operator: option.IN, Value: ids},
			option.Condition{Field: "is_active", Operator: option.EQ, Value: true},
		),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
	)
}

func (s *store) ActiveCampaignActionsForAction(ctx context.Context, actionID string) ([]*CampaignAction, error) {
	return s.actions.Find(ctx, &CampaignAction{ActionID: actionID},
		option.ApplyOperator(option.Condition{Field: "is_active", Operator: option.EQ, Value: true}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
	)
}

func (s *store) CreateUserAction(ctx context.Context, ua *UserAction) error {
	return s.userActions.Create(ctx, ua)
}

func (s *store) UserActionExists(ctx context.Context, userID, campaignActionID, eventID string) (bool, error) {
	n, err := s.userActions.Count(ctx, &UserAction{UserID: userID, CampaignActionID: campaignActionID, EventID: eventID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *store) UnawardedUserActions(ctx context.Context, userID, companyID string) ([]*UserAction, error) {
	return s.userActions.Find(ctx, &UserAction{UserID: userID, CompanyID: companyID},
		option.ApplyOperator(
			option.Condition{Field: "has_awarded", Operator: option.EQ, Value: false},
			option.Condition{Field: "refunded_on", Operator: option.ISNULL},
		),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}),
	)
}

func (s *store) CountCredits(ctx context.Context, userID, campaignActionID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&UserAction{}).
		Where("user_id = ? AND campaign_action_id = ? AND refunded_on IS NULL", userID, campaignActionID).
		Count(&n).Error
	return n, err
}

func (s *store) MarkAwarded(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Model(&UserAction{}).
		Where("id IN ? AND has_awarded = ?", ids, false).
		Update("has_awarded", true)
	return res.RowsAffected, res.Error
}

func (s *store) LatestRefundable(ctx context.Context, userID, campaignActionID string) (*UserAction, error) {
	return s.userActions.FindOne(ctx, &UserAction{UserID: userID, CampaignActionID: campaignActionID},
		option.ApplyOperator(option.Condition{Field: "refunded_on", Operator: option.ISNULL}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
	)
}

func (s *store) MarkRefunded(ctx context.Context, id string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&UserAction{}).
		Where("id = ? AND refunded_on IS NULL", id).
		Update("refunded_on", at)
	return res.RowsAffected, res.Error
}

func (s *store) ActiveCompletion(ctx context.Context, userID, campaignID string) (*UserCompletedCampaign, error) {
	return s.completions.FindOne(ctx, &UserCompletedCampaign{UserID: userID, CampaignID: campaignID},
		option.ApplyOperator(option.Condition{Field: "refunded_on", Operator: option.ISNULL}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "desc"}),
	)
}

func (s *store) CreateCompletion(ctx context.Context, c *UserCompletedCampaign) error {
	return s.completions.Create(ctx, c)
}

func (s *store) RefundCompletion(ctx context.Context, id string, at time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&UserCompletedCampaign{}).
		Where("id = ? AND refunded_on IS NULL", id).
		Update("refunded_on", at)
	return res.RowsAffected, res.Error
}
