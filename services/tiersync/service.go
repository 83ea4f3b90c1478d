package tiersync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"smallbiznis-loyaltycore/pkg/config"
	"smallbiznis-loyaltycore/pkg/db/option"
	"smallbiznis-loyaltycore/pkg/db/pagination"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/repository"
	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/point"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Placer is the part of the balance service tier sync relies on.
type Placer interface {
	Catalog() tier.Catalog
	LockUser(ctx context.Context, tx *gorm.DB, userID string) (*tier.User, error)
	AssignTier(ctx context.Context, tx *gorm.DB, user *tier.User, t *tier.Tier) error
}

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	placer   Placer
	users    repository.Repository[tier.User]
	jobs     repository.Repository[TierSyncJob]
	uploader ReportUploader
	audit    audit.Recorder

	concurrency int
	pageSize    int
}

type Params struct {
	fx.In

	Config   *config.Config
	DB       *gorm.DB
	Node     *snowflake.Node
	Balance  *tier.BalanceService
	Uploader ReportUploader `optional:"true"`
	Audit    audit.Recorder `optional:"true"`
}

func NewService(p Params) *Service {
	recorder := p.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}

	concurrency, pageSize := 8, 250
	if p.Config != nil {
		if p.Config.Loyalty.TierSyncConcurrency > 0 {
			concurrency = p.Config.Loyalty.TierSyncConcurrency
		}
		if p.Config.Loyalty.TierSyncPageSize > 0 {
			pageSize = p.Config.Loyalty.TierSyncPageSize
		}
	}

	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		placer:   p.Balance,
		users:    repository.ProvideStore[tier.User](p.DB),
		jobs:     repository.ProvideStore[TierSyncJob](p.DB),
		uploader: p.Uploader,
		audit:    recorder,

		concurrency: concurrency,
		pageSize:    pageSize,
	}
}

// SyncCompany re-evaluates the tier placement of every user of a company.
// A user that fails is logged and skipped; the job is marked failed when
// any user failed.
func (s *Service) SyncCompany(ctx context.Context, companyID string) (*TierSyncJob, error) {
	ctx = context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx, zap.String("company_id", companyID))

	startedAt := s.now().UTC()
	job := &TierSyncJob{
		ID:        s.node.Generate().String(),
		CompanyID: companyID,
		Status:    JobRunning,
		StartedAt: &startedAt,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}

	report := &Report{JobID: job.ID, CompanyID: companyID, StartedAt: startedAt}
	runErr := s.run(ctx, companyID, report)

	completedAt := s.now().UTC()
	report.CompletedAt = completedAt

	job.UsersScanned = report.Scanned
	job.UsersChanged = int64(len(report.Changes))
	job.CompletedAt = &completedAt
	job.Status = JobSuccess
	switch {
	case runErr != nil:
		job.Status = JobFailed
		job.ErrorMsg = runErr.Error()
	case report.Failed > 0:
		job.Status = JobFailed
		job.ErrorMsg = fmt.Sprintf("%d users failed", report.Failed)
	}

	if s.uploader != nil && len(report.Changes) > 0 {
		key := reportKey(companyID, job.ID, report)
		if err := s.uploader.Upload(ctx, key, report); err != nil {
			zapLog.Warn("failed to upload tier sync report", zap.String("key", key), zap.Error(err))
		} else {
			job.ReportKey = key
		}
	}

	metadata, _ := json.Marshal(map[string]any{"users_failed": report.Failed})
	updates := map[string]any{
		"status":        job.Status,
		"users_scanned": job.UsersScanned,
		"users_changed": job.UsersChanged,
		"error_msg":     job.ErrorMsg,
		"report_key":    job.ReportKey,
		"completed_at":  job.CompletedAt,
		"metadata":      datatypes.JSON(metadata),
	}
	if err := s.jobs.Update(ctx, job.ID, &updates); err != nil {
		zapLog.Error("failed to update tier sync job", zap.String("job_id", job.ID), zap.Error(err))
	}

	zapLog.Info("tier sync finished",
		zap.String("job_id", job.ID),
		zap.String("status", job.Status),
		zap.Int64("users_scanned", job.UsersScanned),
		zap.Int64("users_changed", job.UsersChanged),
		zap.Duration("duration", completedAt.Sub(startedAt)),
	)

	if runErr != nil {
		return job, runErr
	}
	return job, nil
}

func (s *Service) run(ctx context.Context, companyID string, report *Report) error {
	tiers, err := s.placer.Catalog().ListActive(ctx, companyID)
	if err != nil {
		return fmt.Errorf("list tiers: %w", err)
	}
	if len(tiers) == 0 {
		zap.L().Info("company has no active tiers", zap.String("company_id", companyID))
		return nil
	}

	var mu sync.Mutex
	page := pagination.Pagination{Limit: s.pageSize}
	for {
		users, info, err := s.listUsers(ctx, companyID, page)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		g := errgroup.Group{}
		g.SetLimit(s.concurrency)
		for _, u := range users {
			userID := u.ID
			g.Go(func() error {
				change, err := s.syncUser(ctx, userID, tiers)

				mu.Lock()
				defer mu.Unlock()

				report.Scanned++
				usersScanned.Inc()
				if err != nil {
					report.Failed++
					userFailures.Inc()
					zap.L().Error("failed to sync user tier", zap.String("user_id", userID), zap.Error(err))
					return nil
				}
				if change != nil {
					report.Changes = append(report.Changes, *change)
				}
				return nil
			})
		}
		_ = g.Wait()

		if info == nil || !info.HasMore {
			break
		}
		page.Cursor = info.NextCursor
	}

	for _, c := range report.Changes {
		s.audit.Record(ctx, audit.Entry{
			CompanyID: companyID,
			UserID:    c.UserID,
			Action:    audit.ActionTierChanged,
			Source:    audit.SourceTierSync,
			SourceID:  report.JobID,
			MetaData: map[string]any{
				"from_tier_id":     c.FromTierID,
				"to_tier_id":       c.ToTierID,
				"life_time_points": c.LifeTimePoints,
				"annual_points":    c.AnnualPoints,
			},
		})
	}
	return nil
}

func (s *Service) listUsers(ctx context.Context, companyID string, p pagination.Pagination) ([]*tier.User, *pagination.PageInfo, error) {
	users, err := s.users.Find(ctx, &tier.User{CompanyID: companyID}, option.ApplyPagination(p))
	if err != nil {
		return nil, nil, err
	}

	users, info := pagination.Page(users, p.Limit, func(u *tier.User) pagination.Cursor {
		return pagination.NewCursor(u.CreatedAt, u.ID)
	})
	return users, info, nil
}

// syncUser places one user under its row lock. It returns nil when the
// placement is unchanged.
func (s *Service) syncUser(ctx context.Context, userID string, tiers []*tier.Tier) (*Change, error) {
	var change *Change
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := s.placer.LockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		annual, err := s.annualPoints(ctx, tx, userID)
		if err != nil {
			return err
		}

		placed := Placement(tiers, user.LifeTimePoints, annual)
		if placed == nil || placed.ID == user.TierID {
			return nil
		}

		from := user.TierID
		if err := s.placer.AssignTier(ctx, tx, user, placed); err != nil {
			return err
		}

		change = &Change{
			UserID:         userID,
			FromTierID:     from,
			ToTierID:       placed.ID,
			LifeTimePoints: user.LifeTimePoints,
			AnnualPoints:   annual,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change != nil {
		tierChanges.WithLabelValues(change.ToTierID).Inc()
		zap.L().Info("tier placement changed",
			zap.String("user_id", change.UserID),
			zap.String("from_tier_id", change.FromTierID),
			zap.String("to_tier_id", change.ToTierID),
			zap.Int64("life_time_points", change.LifeTimePoints),
			zap.Int64("annual_points", change.AnnualPoints),
		)
	}
	return change, nil
}

// annualPoints sums entries touched in the current calendar year, excluding
// pending, revoked and redeemed ones.
func (s *Service) annualPoints(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	now := s.now().UTC()
	yearStart := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := yearStart.AddDate(1, 0, 0)

	var total int64
	err := tx.WithContext(ctx).Model(&point.PointLedgerEntry{}).
		Select("COALESCE(SUM(point_amount), 0)").
		Where("user_id = ?", userID).
		Where("status NOT IN ?", []pointtype.Status{pointtype.StatusPending, pointtype.StatusRevoked, pointtype.StatusRedeemed}).
		Where("updated_at >= ? AND updated_at < ?", yearStart, yearEnd).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("annual points %s: %w", userID, err)
	}
	return total, nil
}

// Companies lists companies that have at least one active tier.
func (s *Service) Companies(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&tier.Tier{}).
		Where("is_active = ?", true).
		Distinct("company_id").
		Order("company_id ASC").
		Pluck("company_id", &ids).Error
	return ids, err
}

func (s *Service) GetJob(ctx context.Context, id string) (*TierSyncJob, error) {
	return s.jobs.FindOne(ctx, &TierSyncJob{ID: id})
}
