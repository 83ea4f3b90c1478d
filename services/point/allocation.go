package point

import (
	"context"
	"fmt"

	"smallbiznis-loyaltycore/pkg/errutil"
	"smallbiznis-loyaltycore/pkg/logger"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinAvailable is the smallest unallocated amount for an earn entry to be
// part of the FIFO breakdown.
const MinAvailable int64 = 1

// Allocator attributes debit entries to the oldest earn entries with points
// left.
type Allocator struct {
	node        *snowflake.Node
	ledger      LedgerStore
	allocations AllocationStore
}

func NewAllocator(node *snowflake.Node, ledger LedgerStore, allocations AllocationStore) *Allocator {
	return &Allocator{node: node, ledger: ledger, allocations: allocations}
}

// GenerateFirstInFirstOut persists one allocation per consumed earn entry.
// The caller must hold the user lock on tx. When the breakdown cannot cover
// the spent amount every allocation of spent is deleted and an
// INVALID_PAYMENT error is returned.
func (a *Allocator) GenerateFirstInFirstOut(ctx context.Context, tx *gorm.DB, spent *PointLedgerEntry) ([]*PointAllocation, error) {
	zapLog := logger.FromContext(ctx,
		zap.String("user_id", spent.UserID),
		zap.String("spent_id", spent.ID),
		zap.Int64("spent_amount", spent.PointAmount),
	)

	ledgerTx := a.ledger.WithTrx(tx)
	allocTx := a.allocations.WithTrx(tx)

	remaining := spent.PointAmount

	breakdown, err := ledgerTx.AvailableBreakdown(ctx, spent.UserID, MinAvailable)
	if err != nil {
		return nil, fmt.Errorf("load available breakdown: %w", err)
	}

	if len(breakdown) == 0 {
		zapLog.Warn("no available points to allocate against")
		return nil, errutil.InvalidPayment("no available points to allocate", nil)
	}

	created := make([]*PointAllocation, 0, len(breakdown))
	for _, earned := range breakdown {
		if remaining <= 0 {
			break
		}
		if earned.Available <= 0 {
			continue
		}

		amount := min(remaining, earned.Available)
		alloc := &PointAllocation{
			ID:                a.node.Generate().String(),
			UserID:            spent.UserID,
			UserPointEarnedID: earned.EntryID,
			UserPointSpentID:  spent.ID,
			Amount:            amount,
		}
		if err := allocTx.Create(ctx, alloc); err != nil {
			return nil, fmt.Errorf("persist allocation: %w", err)
		}

		created = append(created, alloc)
		remaining -= amount
	}

	if remaining > 0 {
		zapLog.Error("insufficient available points for debit",
			zap.Int64("remaining", remaining),
			zap.Any("breakdown", breakdown),
			zap.Any("spent", spent),
		)

		if err := allocTx.DeleteBySpent(ctx, spent.ID); err != nil {
			zapLog.Error("failed to roll back allocations", zap.Error(err))
			return nil, err
		}

		return nil, errutil.InvalidPayment("insufficient available points", nil,
			errutil.WithDetails(errutil.Detail{Field: "remaining", Message: fmt.Sprintf("%d", remaining)}))
	}

	zapLog.Debug("allocated debit", zap.Int("allocations", len(created)))
	return created, nil
}
