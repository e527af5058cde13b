package advance

import (
	"context"
	"time"

	"github.com/wispbill/wispbill/internal/types"
)

// Repository defines the interface for advance payment persistence
type Repository interface {
	// Create persists the advance payment and its allocations
	Create(ctx context.Context, ap *AdvancePayment) error
	// Get returns the advance payment with its allocations
	Get(ctx context.Context, id string) (*AdvancePayment, error)
	GetForUpdate(ctx context.Context, id string) (*AdvancePayment, error)
	List(ctx context.Context, filter *types.AdvancePaymentFilter) ([]*AdvancePayment, error)
	Count(ctx context.Context, filter *types.AdvancePaymentFilter) (int, error)
	UpdateStatus(ctx context.Context, id string, status types.AdvancePaymentStatus) error

	// FindPendingAllocation returns the PENDING allocation of the month, or
	// a not found error
	FindPendingAllocation(ctx context.Context, customerID string, target types.BillingMonth) (*MonthlyAllocation, error)
	// ListPendingTargets returns the months among targets that already hold a
	// PENDING allocation for the customer
	ListPendingTargets(ctx context.Context, customerID string, targets []types.BillingMonth) ([]types.BillingMonth, error)
	// MarkAllocationApplied moves a PENDING allocation to APPLIED. It returns
	// false when the allocation was no longer PENDING.
	MarkAllocationApplied(ctx context.Context, id, invoiceID string, at time.Time) (bool, error)
	// CancelPendingAllocations cancels every PENDING allocation of the advance
	// payment and returns how many changed
	CancelPendingAllocations(ctx context.Context, advancePaymentID string) (int, error)
}
