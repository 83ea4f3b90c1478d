package tier

import (
	"context"
	"fmt"
	"time"

	"smallbiznis-loyaltycore/pkg/db/option"
	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BalanceService applies signed point deltas to a user and recomputes the
// tier placement. Every method taking a tx expects the caller to hold the
// user row lock obtained through LockUser.
type BalanceService struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	users     repository.Repository[User]
	userTiers repository.Repository[UserTier]
	catalog   Catalog
}

type BalanceParams struct {
	fx.In

	DB      *gorm.DB
	Node    *snowflake.Node
	Catalog Catalog
}

func NewBalanceService(p BalanceParams) *BalanceService {
	return &BalanceService{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		users:     repository.ProvideStore[User](p.DB),
		userTiers: repository.ProvideStore[UserTier](p.DB),
		catalog:   p.Catalog,
	}
}

func (s *BalanceService) Catalog() Catalog {
	return s.catalog
}

// LockUser loads the user with SELECT ... FOR UPDATE.
func (s *BalanceService) LockUser(ctx context.Context, tx *gorm.DB, userID string) (*User, error) {
	if userID == "" {
		return nil, errutil.BadRequest("user_id is required", nil)
	}
	user, err := s.users.WithTrx(tx).FindOne(ctx, &User{ID: userID}, option.WithLockingUpdate())
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", userID, err)
	}
	if user == nil {
		return nil, errutil.NotFound("user not found", nil, errutil.WithDetails(errutil.Detail{Field: "user_id", Message: userID}))
	}
	return user, nil
}

func (s *BalanceService) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, errutil.BadRequest("user_id is required", nil)
	}
	user, err := s.users.FindOne(ctx, &User{ID: userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errutil.NotFound("user not found", nil)
	}
	return user, nil
}

// lifetimeDelta is the part of a signed delta that moves lifetime points.
func lifetimeDelta(pointValue int64, status pointtype.Status) int64 {
	switch status {
	case pointtype.StatusRefunded, pointtype.StatusCanceled:
		return 0
	case pointtype.StatusReceived, pointtype.StatusRevoked:
		return pointValue
	default:
		if pointValue < 0 {
			return 0
		}
		return pointValue
	}
}

// ApplyDelta computes the new (lifetime, available) pair for a user.
func ApplyDelta(lifeTime, available, pointValue int64, status pointtype.Status) (int64, int64) {
	lifeAdd := lifetimeDelta(pointValue, status)
	availAdd := pointValue

	if (lifeTime <= 0 || available <= 0) && pointValue < 0 {
		lifeAdd = 0
		availAdd = 0
	}

	var newLife, newAvail int64
	if available+pointValue <= 0 && pointValue < 0 && status == pointtype.StatusRevoked {
		newAvail = 0
		newLife = lifeTime - available
	} else {
		newLife = lifeTime + lifeAdd
		newAvail = available + availAdd
	}

	return max(newLife, 0), max(newAvail, 0)
}

// UpdatePoints applies pointValue with the semantics of status and re-places
// the user in a tier. A nil tx runs in its own locked transaction.
func (s *BalanceService) UpdatePoints(ctx context.Context, tx *gorm.DB, userID string, pointValue int64, status pointtype.Status) (*User, error) {
	if tx == nil {
		var out *User
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			out, err = s.UpdatePoints(ctx, tx, userID, pointValue, status)
			return err
		})
		return out, err
	}

	zapLog := logger.FromContext(ctx,
		zap.String("user_id", userID),
		zap.Int64("point_value", pointValue),
		zap.String("status", string(status)),
	)

	user, err := s.LockUser(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	newLife, newAvail := ApplyDelta(user.LifeTimePoints, user.AvailablePoints, pointValue, status)

	updates := map[string]any{
		"life_time_points": newLife,
		"available_points": newAvail,
		"version":          gorm.Expr("version + 1"),
		"updated_at":       s.now().UTC(),
	}
	if err := s.users.WithTrx(tx).Update(ctx, user.ID, &updates); err != nil {
		zapLog.Error("failed to update user balance", zap.Error(err))
		return nil, err
	}

	user, err = s.users.WithTrx(tx).FindOne(ctx, &User{ID: userID})
	if err != nil {
		return nil, err
	}

	if err := s.recomputeTier(ctx, tx, user); err != nil {
		zapLog.Error("failed to recompute tier", zap.Error(err))
		return nil, err
	}

	zapLog.Debug("balance updated",
		zap.Int64("life_time_points", user.LifeTimePoints),
		zap.Int64("available_points", user.AvailablePoints),
		zap.String("tier_id", user.TierID),
	)

	return user, nil
}

func (s *BalanceService) recomputeTier(ctx context.Context, tx *gorm.DB, user *User) error {
	tiers, err := s.catalog.WithTrx(tx).ListActive(ctx, user.CompanyID)
	if err != nil {
		return err
	}
	if len(tiers) == 0 {
		return nil
	}
	SortByThreshold(tiers)

	return s.AssignTier(ctx, tx, user, Select(tiers, user.LifeTimePoints))
}

// AssignTier stores the placement on the user row and upserts user_tiers.
func (s *BalanceService) AssignTier(ctx context.Context, tx *gorm.DB, user *User, t *Tier) error {
	if t == nil {
		return nil
	}

	now := s.now().UTC()
	expiresOn := ExpiresOn(t, now)

	updates := map[string]any{
		"tier_id":         t.ID,
		"tier_expires_on": expiresOn,
		"updated_at":      now,
	}
	if err := s.users.WithTrx(tx).Update(ctx, user.ID, &updates); err != nil {
		return err
	}

	assignment := &UserTier{
		ID:        s.node.Generate().String(),
		UserID:    user.ID,
		TierID:    t.ID,
		ExpiresOn: expiresOn,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier_id", "expires_on", "updated_at"}),
	}).Create(assignment).Error
	if err != nil {
		return err
	}

	user.TierID = t.ID
	user.TierExpiresOn = expiresOn
	return nil
}

// AccrualMultiplier resolves the multiplier of the user's current tier.
func (s *BalanceService) AccrualMultiplier(ctx context.Context, userID string) (decimal.Decimal, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if user.TierID == "" {
		return decimal.Zero, fmt.Errorf("user %s has no tier", userID)
	}

	t, err := s.catalog.Get(ctx, user.TierID)
	if err != nil {
		return decimal.Zero, err
	}
	if t == nil {
		return decimal.Zero, fmt.Errorf("tier %s not found", user.TierID)
	}
	return t.Multiplier(), nil
}
