package point

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smallbiznis-loyaltycore/pkg/db/pagination"
	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/featureflags"
	"smallbiznis-loyaltycore/pkg/logger"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/sequence"
	"smallbiznis-loyaltycore/services/audit"
	"smallbiznis-loyaltycore/services/tier"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Balancer applies balance deltas under the user row lock.
type Balancer interface {
	LockUser(ctx context.Context, tx *gorm.DB, userID string) (*tier.User, error)
	UpdatePoints(ctx context.Context, tx *gorm.DB, userID string, pointValue int64, status pointtype.Status) (*tier.User, error)
	AccrualMultiplier(ctx context.Context, userID string) (decimal.Decimal, error)
	GetUser(ctx context.Context, userID string) (*tier.User, error)
}

// Service is the single entry point for writing point ledger entries.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time

	ledger      LedgerStore
	allocations AllocationStore
	allocator   *Allocator

	balance   Balancer
	earnRatio featureflags.EarnRatioProvider
	codes     sequence.Generator
	audit     audit.Recorder
}

type ServiceParams struct {
	fx.In

	DB        *gorm.DB
	Node      *snowflake.Node
	Balance   *tier.BalanceService
	EarnRatio featureflags.EarnRatioProvider `optional:"true"`
	Codes     sequence.Generator             `optional:"true"`
	Audit     audit.Recorder                 `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	ledger := NewLedgerStore(p.DB)
	allocations := NewAllocationStore(p.DB)

	earnRatio := p.EarnRatio
	if earnRatio == nil {
		earnRatio = featureflags.NewStaticEarnRatio(nil, 100)
	}
	recorder := p.Audit
	if recorder == nil {
		recorder = audit.Nop{}
	}

	return &Service{
		db:   p.DB,
		node: p.Node,
		now:  time.Now,

		ledger:      ledger,
		allocations: allocations,
		allocator:   NewAllocator(p.Node, ledger, allocations),

		balance:   p.Balance,
		earnRatio: earnRatio,
		codes:     p.Codes,
		audit:     recorder,
	}
}

func validate(entry *PointLedgerEntry) error {
	if entry == nil {
		return errutil.BadRequest("point entry is required", nil)
	}
	if entry.PointType == "" {
		return errutil.BadRequest("point_type is required", nil,
			errutil.WithDetails(errutil.Detail{Field: "point_type", Message: "required"}))
	}
	if entry.PointAmount <= 0 {
		return errutil.BadRequest("point_amount must be greater than zero", nil,
			errutil.WithDetails(errutil.Detail{Field: "point_amount", Message: "must be > 0"}))
	}
	if entry.UserID == "" {
		return errutil.BadRequest("user_id is required", nil,
			errutil.WithDetails(errutil.Detail{Field: "user_id", Message: "required"}))
	}
	if entry.Status == "" {
		entry.Status = pointtype.StatusReceived
	}
	if !entry.Status.Valid() {
		return errutil.BadRequest("unsupported status", nil,
			errutil.WithDetails(errutil.Detail{Field: "status", Message: string(entry.Status)}))
	}
	return nil
}

// Create persists entry and applies its balance effect. A debit that cannot
// be allocated keeps the committed entry and returns INVALID_PAYMENT with
// allocations and balance untouched.
func (s *Service) Create(ctx context.Context, entry *PointLedgerEntry) (*PointLedgerEntry, error) {
	if err := validate(entry); err != nil {
		return nil, err
	}

	txCtx := context.WithoutCancel(ctx)

	var (
		out        *PointLedgerEntry
		paymentErr error
	)
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		created, err := s.CreateWithTrx(txCtx, tx, entry)
		if errutil.Is(err, errutil.StatusInvalidPayment) {
			paymentErr = err
			return nil
		}
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	if paymentErr != nil {
		return nil, paymentErr
	}

	s.recordEntry(txCtx, out)
	return out, nil
}

// CreateWithTrx runs Create on the caller's transaction. Allocation and
// balance side effects of debits run in a savepoint that is rolled back on
// failure while the entry stays written in tx.
func (s *Service) CreateWithTrx(ctx context.Context, tx *gorm.DB, entry *PointLedgerEntry) (*PointLedgerEntry, error) {
	if err := validate(entry); err != nil {
		return nil, err
	}

	zapLog := logger.FromContext(ctx,
		zap.String("user_id", entry.UserID),
		zap.String("point_type", string(entry.PointType)),
		zap.String("status", string(entry.Status)),
		zap.Int64("point_amount", entry.PointAmount),
	)

	if _, err := s.balance.LockUser(ctx, tx, entry.UserID); err != nil {
		zapLog.Error("failed to lock user", zap.Error(err))
		return nil, err
	}

	if entry.ID == "" {
		entry.ID = s.node.Generate().String()
	}
	if entry.TransactionCode == "" {
		entry.TransactionCode = s.transactionCode(ctx, entry.CompanyID)
	}

	if err := s.ledger.WithTrx(tx).Create(ctx, entry); err != nil {
		zapLog.Error("failed to persist ledger entry", zap.Error(err))
		return nil, err
	}

	switch {
	case entry.Status == pointtype.StatusReceived:
		if _, err := s.balance.UpdatePoints(ctx, tx, entry.UserID, entry.PointAmount, pointtype.StatusReceived); err != nil {
			zapLog.Error("failed to apply credit", zap.Error(err))
			return nil, err
		}
	case entry.Status.IsDebit():
		if err := s.debit(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	entriesCreated.WithLabelValues(string(entry.Status)).Inc()
	pointsMoved.WithLabelValues(string(entry.Status)).Add(float64(entry.PointAmount))

	zapLog.Info("point entry created", zap.String("entry_id", entry.ID), zap.String("transaction_code", entry.TransactionCode))
	return entry, nil
}

// debit allocates entry FIFO and subtracts it from the balance inside a
// savepoint of tx.
func (s *Service) debit(ctx context.Context, tx *gorm.DB, entry *PointLedgerEntry) error {
	err := tx.Transaction(func(sp *gorm.DB) error {
		if _, err := s.allocator.GenerateFirstInFirstOut(ctx, sp, entry); err != nil {
			return err
		}
		_, err := s.balance.UpdatePoints(ctx, sp, entry.UserID, -entry.PointAmount, entry.Status)
		return err
	})
	if errutil.Is(err, errutil.StatusInvalidPayment) {
		allocationFailures.Inc()
	}
	return err
}

func (s *Service) transactionCode(ctx context.Context, companyID string) string {
	if s.codes != nil {
		code, err := s.codes.NextTransactionCode(ctx, companyID)
		if err == nil {
			return code
		}
		zap.L().Warn("failed to generate transaction code, using fallback", zap.Error(err))
	}

	code, err := sequence.FallbackCode(s.now())
	if err != nil {
		return s.node.Generate().String()
	}
	return code
}

// CreateAndCalculateMultiplier scales the entry amount by the user's tier
// multiplier and the company earn ratio before creating it.
func (s *Service) CreateAndCalculateMultiplier(ctx context.Context, entry *PointLedgerEntry) (*PointLedgerEntry, error) {
	if err := validate(entry); err != nil {
		return nil, err
	}

	zapLog := logger.FromContext(ctx, zap.String("user_id", entry.UserID))

	multiplier, err := s.balance.AccrualMultiplier(ctx, entry.UserID)
	if err != nil {
		zapLog.Warn("failed to resolve tier multiplier, using 1", zap.Error(err))
		multiplier = decimal.NewFromInt(1)
	}

	ratio := s.earnRatio.GlobalEarnRatio(ctx, entry.CompanyID)
	scaled := *entry
	scaled.PointAmount = ScaleAmount(entry.PointAmount, multiplier, ratio)

	zapLog.Debug("scaled accrual",
		zap.String("multiplier", multiplier.String()),
		zap.Int64("earn_ratio", ratio),
		zap.Int64("point_amount", scaled.PointAmount),
	)

	return s.Create(ctx, &scaled)
}

// ScaleAmount returns floor(amount * multiplier * ratio / 100).
func ScaleAmount(amount int64, multiplier decimal.Decimal, ratio int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(multiplier).
		Mul(decimal.NewFromInt(ratio)).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()
}

// AwardPoints moves the pending entry of a reservation to RECEIVED and
// credits it. It returns nil, nil when the reservation has no pending entry.
func (s *Service) AwardPoints(ctx context.Context, reservationID string) (*PointLedgerEntry, error) {
	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx, zap.String("reservation_id", reservationID))

	var out *PointLedgerEntry
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.lockPending(txCtx, tx, reservationID, pointtype.StatusPending)
		if err != nil || entry == nil {
			return err
		}

		if err := s.transition(txCtx, tx, entry, pointtype.StatusReceived); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if _, err := s.balance.UpdatePoints(txCtx, tx, entry.UserID, entry.PointAmount, pointtype.StatusReceived); err != nil {
			return err
		}

		out = entry
		return nil
	})
	if err != nil {
		zapLog.Error("failed to award reservation points", zap.Error(err))
		return nil, err
	}
	if out == nil {
		zapLog.Info("no pending entry to award")
		return nil, nil
	}

	s.recordEntry(txCtx, out)
	return out, nil
}

// RevokePendingReservationPoints moves the pending entry of a reservation to
// REVOKED and runs the debit path. On failure the entry stays PENDING.
func (s *Service) RevokePendingReservationPoints(ctx context.Context, reservationID string) (*PointLedgerEntry, error) {
	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx, zap.String("reservation_id", reservationID))

	var out *PointLedgerEntry
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.lockPending(txCtx, tx, reservationID, pointtype.StatusPending)
		if err != nil || entry == nil {
			return err
		}

		if err := s.transition(txCtx, tx, entry, pointtype.StatusRevoked); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if err := s.debit(txCtx, tx, entry); err != nil {
			return err
		}

		out = entry
		return nil
	})
	if err != nil {
		zapLog.Error("failed to revoke reservation points", zap.Error(err))
		return nil, err
	}
	if out == nil {
		zapLog.Info("no pending entry to revoke")
		return nil, nil
	}

	s.recordEntry(txCtx, out)
	return out, nil
}

// CancelPendingReservationPoints cancels the latest PENDING or REDEEMED entry
// of a reservation. A pending entry never moved the balance and is only
// relabelled. A redeemed entry is restored in full: available points come
// back and its FIFO allocations are released.
func (s *Service) CancelPendingReservationPoints(ctx context.Context, reservationID string) (*PointLedgerEntry, error) {
	txCtx := context.WithoutCancel(ctx)
	zapLog := logger.FromContext(ctx, zap.String("reservation_id", reservationID))

	var out *PointLedgerEntry
	err := s.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.lockPending(txCtx, tx, reservationID, pointtype.StatusPending, pointtype.StatusRedeemed)
		if err != nil || entry == nil {
			return err
		}

		previous := entry.Status
		if err := s.transition(txCtx, tx, entry, pointtype.StatusCanceled); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		if previous == pointtype.StatusRedeemed {
			if _, err := s.balance.UpdatePoints(txCtx, tx, entry.UserID, entry.PointAmount, pointtype.StatusCanceled); err != nil {
				return err
			}
			if err := s.allocations.WithTrx(tx).DeleteBySpent(txCtx, entry.ID); err != nil {
				return fmt.Errorf("release allocations: %w", err)
			}
		}

		out = entry
		return nil
	})
	if err != nil {
		zapLog.Error("failed to cancel reservation points", zap.Error(err))
		return nil, err
	}
	if out == nil {
		zapLog.Info("no pending or redeemed entry to cancel")
		return nil, nil
	}

	s.recordEntry(txCtx, out)
	return out, nil
}

// lockPending finds the newest reservation entry in one of statuses and
// locks its user.
func (s *Service) lockPending(ctx context.Context, tx *gorm.DB, reservationID string, statuses ...pointtype.Status) (*PointLedgerEntry, error) {
	if reservationID == "" {
		return nil, errutil.BadRequest("reservation_id is required", nil)
	}

	entry, err := s.ledger.WithTrx(tx).LatestByReservation(ctx, reservationID, statuses...)
	if err != nil || entry == nil {
		return nil, err
	}

	if _, err := s.balance.LockUser(ctx, tx, entry.UserID); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) transition(ctx context.Context, tx *gorm.DB, entry *PointLedgerEntry, to pointtype.Status) error {
	if err := s.ledger.WithTrx(tx).TransitionStatus(ctx, entry.ID, entry.Status, to); err != nil {
		return err
	}
	entry.Status = to
	return nil
}

func (s *Service) recordEntry(ctx context.Context, entry *PointLedgerEntry) {
	action := audit.ActionPointsAwarded
	switch entry.Status {
	case pointtype.StatusPending:
		return
	case pointtype.StatusCanceled:
		action = audit.ActionPointsCanceled
	default:
		if entry.Status.IsDebit() {
			action = audit.ActionPointsRevoked
		}
	}

	s.audit.Record(ctx, audit.Entry{
		CompanyID: entry.CompanyID,
		UserID:    entry.UserID,
		Action:    action,
		Source:    audit.SourceLedger,
		SourceID:  entry.ID,
		MetaData: map[string]any{
			"status":           entry.Status,
			"point_type":       entry.PointType,
			"point_amount":     entry.PointAmount,
			"transaction_code": entry.TransactionCode,
			"reservation_id":   entry.ReservationID,
		},
	})
}

func (s *Service) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	user, err := s.balance.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Balance{
		UserID:          user.ID,
		LifeTimePoints:  user.LifeTimePoints,
		AvailablePoints: user.AvailablePoints,
		TierID:          user.TierID,
		TierExpiresOn:   user.TierExpiresOn,
	}, nil
}

func (s *Service) ListEntries(ctx context.Context, userID string, p pagination.Pagination) ([]*PointLedgerEntry, *pagination.PageInfo, error) {
	entries, info, err := s.ledger.List(ctx, userID, p)
	if err != nil {
		logger.FromContext(ctx, zap.String("user_id", userID)).Error("failed to list entries", zap.Error(err))
		return nil, nil, err
	}
	return entries, info, nil
}

// AvailableBreakdown lists earn entries with points left, oldest first.
func (s *Service) AvailableBreakdown(ctx context.Context, userID string) ([]*AvailableEntry, error) {
	return s.ledger.AvailableBreakdown(ctx, userID, MinAvailable)
}

func (s *Service) Allocations(ctx context.Context, spentID string) ([]*PointAllocation, error) {
	return s.allocations.ListBySpent(ctx, spentID)
}
