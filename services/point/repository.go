package point

import (
	"context"
	"errors"

	"smallbiznis-loyaltycore/pkg/db/option"
	"smallbiznis-loyaltycore/pkg/db/pagination"
	"smallbiznis-loyaltycore/pkg/pointtype"
	"smallbiznis-loyaltycore/pkg/repository"

	"gorm.io/gorm"
)

// LedgerStore persists point ledger entries.
type LedgerStore interface {
	WithTrx(tx *gorm.DB) LedgerStore
	Create(ctx context.Context, e *PointLedgerEntry) error
	Get(ctx context.Context, id string) (*PointLedgerEntry, error)
	// LatestByReservation returns the newest entry of the reservation whose
	// status is one of statuses, or nil.
	LatestByReservation(ctx context.Context, reservationID string, statuses ...pointtype.Status) (*PointLedgerEntry, error)
	// TransitionStatus moves an entry from one status to another. It returns
	// gorm.ErrRecordNotFound when the entry is no longer in status from.
	TransitionStatus(ctx context.Context, id string, from, to pointtype.Status) error
	List(ctx context.Context, userID string, p pagination.Pagination) ([]*PointLedgerEntry, *pagination.PageInfo, error)
	// AvailableBreakdown lists RECEIVED entries of the user whose unallocated
	// amount is at least minAvailable, oldest first.
	AvailableBreakdown(ctx context.Context, userID string, minAvailable int64) ([]*AvailableEntry, error)
}

// AllocationStore persists FIFO allocation records.
type AllocationStore interface {
	WithTrx(tx *gorm.DB) AllocationStore
	Create(ctx context.Context, a *PointAllocation) error
	ListBySpent(ctx context.Context, spentID string) ([]*PointAllocation, error)
	DeleteBySpent(ctx context.Context, spentID string) error
}

type ledgerStore struct {
	db      *gorm.DB
	entries repository.Repository[PointLedgerEntry]
}

func NewLedgerStore(db *gorm.DB) LedgerStore {
	return &ledgerStore{db: db, entries: repository.ProvideStore[PointLedgerEntry](db)}
}

func (s *ledgerStore) WithTrx(tx *gorm.DB) LedgerStore {
	if tx == nil {
		return s
	}
	return &ledgerStore{db: tx, entries: s.entries.WithTrx(tx)}
}

func (s *ledgerStore) Create(ctx context.Context, e *PointLedgerEntry) error {
	return s.entries.Create(ctx, e)
}

func (s *ledgerStore) Get(ctx context.Context, id string) (*PointLedgerEntry, error) {
	return s.entries.FindOne(ctx, &PointLedgerEntry{ID: id})
}

func (s *ledgerStore) LatestByReservation(ctx context.Context, reservationID string, statuses ...pointtype.Status) (*PointLedgerEntry, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.QuerySortBy{
			SortBy:  "created_at",
			OrderBy: "desc",
			Allow:   map[string]bool{"created_at": true},
		}),
	}
	if len(statuses) > 0 {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "status",
			Operator: option.IN,
			Value:    statuses,
		}))
	}

	return s.entries.FindOne(ctx, &PointLedgerEntry{ReservationID: reservationID}, opts...)
}

func (s *ledgerStore) TransitionStatus(ctx context.Context, id string, from, to pointtype.Status) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}

	res := s.db.WithContext(ctx).Model(&PointLedgerEntry{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *ledgerStore) List(ctx context.Context, userID string, p pagination.Pagination) ([]*PointLedgerEntry, *pagination.PageInfo, error) {
	entries, err := s.entries.Find(ctx, &PointLedgerEntry{UserID: userID}, option.ApplyPagination(p))
	if err != nil {
		return nil, nil, err
	}

	entries, info := pagination.Page(entries, p.Limit, func(e *PointLedgerEntry) pagination.Cursor {
		return pagination.NewCursor(e.CreatedAt, e.ID)
	})
	return entries, info, nil
}

func (s *ledgerStore) AvailableBreakdown(ctx context.Context, userID string, minAvailable int64) ([]*AvailableEntry, error) {
	if s.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var out []*AvailableEntry
	err := s.db.WithContext(ctx).
		Table("point_ledger_entries AS e").
		Select(`e.id, e.point_amount, e.created_at,
			COALESCE(SUM(a.amount), 0) AS allocated,
			e.point_amount - COALESCE(SUM(a.amount), 0) AS available`).
		Joins("LEFT JOIN point_allocations AS a ON a.user_point_earned_id = e.id").
		Where("e.user_id = ? AND e.status = ?", userID, pointtype.StatusReceived).
		Group("e.id, e.point_amount, e.created_at").
		Having("e.point_amount - COALESCE(SUM(a.amount), 0) >= ?", minAvailable).
		Order("e.created_at ASC").Order("e.id ASC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

type allocationStore struct {
	db          *gorm.DB
	allocations repository.Repository[PointAllocation]
}

func NewAllocationStore(db *gorm.DB) AllocationStore {
	return &allocationStore{db: db, allocations: repository.ProvideStore[PointAllocation](db)}
}

func (s *allocationStore) WithTrx(tx *gorm.DB) AllocationStore {
	if tx == nil {
		return s
	}
	return &allocationStore{db: tx, allocations: s.allocations.WithTrx(tx)}
}

func (s *allocationStore) Create(ctx context.Context, a *PointAllocation) error {
	if a.Amount <= 0 {
		return errors.New("allocation amount must be > 0")
	}
	return s.allocations.Create(ctx, a)
}

func (s *allocationStore) ListBySpent(ctx context.Context, spentID string) ([]*PointAllocation, error) {
	return s.allocations.Find(ctx, &PointAllocation{UserPointSpentID: spentID}, option.WithSortBy(option.QuerySortBy{OrderBy: "asc"}))
}

func (s *allocationStore) DeleteBySpent(ctx context.Context, spentID string) error {
	if s.db == nil {
		return gorm.ErrInvalidDB
	}
	return s.db.WithContext(ctx).Where("user_point_spent_id = ?", spentID).Delete(&PointAllocation{}).Error
}
