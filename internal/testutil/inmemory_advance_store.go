package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/advance"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// InMemoryAdvanceStore implements advance.Repository. It allows at most one
// PENDING allocation per customer and month across all advance payments.
type InMemoryAdvanceStore struct {
	*InMemoryStore[*advance.AdvancePayment]
}

var _ advance.Repository = (*InMemoryAdvanceStore)(nil)

func NewInMemoryAdvanceStore() *InMemoryAdvanceStore {
	return &InMemoryAdvanceStore{
		InMemoryStore: NewInMemoryStore(copyAdvancePayment),
	}
}

func copyAdvancePayment(ap *advance.AdvancePayment) *advance.AdvancePayment {
	if ap == nil {
		return nil
	}
	c := *ap
	c.Allocations = lo.Map(ap.Allocations, func(a *advance.MonthlyAllocation, _ int) *advance.MonthlyAllocation {
		ac := *a
		return &ac
	})
	return &c
}

func (s *InMemoryAdvanceStore) Create(ctx context.Context, ap *advance.AdvancePayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[ap.ID]; exists {
		return ierr.NewError("advance payment already exists").Mark(ierr.ErrAlreadyExists)
	}
	for _, alloc := range ap.Allocations {
		if alloc.Status != types.AdvanceAllocationStatusPending {
			continue
		}
		if s.pendingLocked(ap.CustomerID, alloc.Target()) != nil {
			return ierr.NewError("month already prepaid").
				WithHintf("Month %02d/%d already has a pending advance payment", alloc.Month, alloc.Year).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	s.items[ap.ID] = copyAdvancePayment(ap)
	return nil
}

func (s *InMemoryAdvanceStore) Get(ctx context.Context, id string) (*advance.AdvancePayment, error) {
	ap, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Advance payment not found").Mark(ierr.ErrNotFound)
	}
	sortAllocations(ap)
	return ap, nil
}

func (s *InMemoryAdvanceStore) GetForUpdate(ctx context.Context, id string) (*advance.AdvancePayment, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryAdvanceStore) List(ctx context.Context, filter *types.AdvancePaymentFilter) ([]*advance.AdvancePayment, error) {
	if filter == nil {
		filter = &types.AdvancePaymentFilter{QueryFilter: types.NewNoLimitQueryFilter()}
	}
	items, err := s.InMemoryStore.List(ctx, filter, advanceFilterFn, func(i, j *advance.AdvancePayment) bool {
		if !i.CreatedAt.Equal(j.CreatedAt) {
			return i.CreatedAt.After(j.CreatedAt)
		}
		return i.ID < j.ID
	})
	if err != nil {
		return nil, err
	}
	for _, ap := range items {
		sortAllocations(ap)
	}
	return items, nil
}

func (s *InMemoryAdvanceStore) Count(ctx context.Context, filter *types.AdvancePaymentFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, advanceFilterFn)
}

func (s *InMemoryAdvanceStore) UpdateStatus(_ context.Context, id string, status types.AdvancePaymentStatus) error {
	_, err := s.Mutate(id, func(ap *advance.AdvancePayment) (*advance.AdvancePayment, bool) {
		ap.Status = status
		return ap, true
	})
	return err
}

func (s *InMemoryAdvanceStore) FindPendingAllocation(_ context.Context, customerID string, target types.BillingMonth) (*advance.MonthlyAllocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if alloc := s.pendingLocked(customerID, target); alloc != nil {
		c := *alloc
		return &c, nil
	}
	return nil, ierr.NewError("no pending allocation").
		WithReportableDetails(map[string]any{
			"customer_id": customerID,
			"month":       target.Month,
			"year":        target.Year,
		}).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryAdvanceStore) ListPendingTargets(_ context.Context, customerID string, targets []types.BillingMonth) ([]types.BillingMonth, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	taken := make([]types.BillingMonth, 0)
	for _, target := range targets {
		if s.pendingLocked(customerID, target) != nil {
			taken = append(taken, target)
		}
	}
	return taken, nil
}

func (s *InMemoryAdvanceStore) MarkAllocationApplied(_ context.Context, id, invoiceID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for apID, ap := range s.items {
		for idx, alloc := range ap.Allocations {
			if alloc.ID != id {
				continue
			}
			if alloc.Status != types.AdvanceAllocationStatusPending {
				return false, nil
			}
			c := copyAdvancePayment(ap)
			applied := c.Allocations[idx]
			applied.Status = types.AdvanceAllocationStatusApplied
			applied.InvoiceID = &invoiceID
			appliedAt := at.UTC()
			applied.AppliedAt = &appliedAt
			applied.UpdatedAt = appliedAt
			s.items[apID] = c
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryAdvanceStore) CancelPendingAllocations(_ context.Context, advancePaymentID string) (int, error) {
	changed := 0
	_, err := s.Mutate(advancePaymentID, func(ap *advance.AdvancePayment) (*advance.AdvancePayment, bool) {
		for _, alloc := range ap.Allocations {
			if alloc.Status == types.AdvanceAllocationStatusPending {
				alloc.Status = types.AdvanceAllocationStatusCancelled
				changed++
			}
		}
		return ap, changed > 0
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

func (s *InMemoryAdvanceStore) pendingLocked(customerID string, target types.BillingMonth) *advance.MonthlyAllocation {
	for _, ap := range s.items {
		if ap.CustomerID != customerID {
			continue
		}
		for _, alloc := range ap.Allocations {
			if alloc.Status == types.AdvanceAllocationStatusPending && alloc.Target() == target {
				return alloc
			}
		}
	}
	return nil
}

func sortAllocations(ap *advance.AdvancePayment) {
	sort.SliceStable(ap.Allocations, func(i, j int) bool {
		a, b := ap.Allocations[i], ap.Allocations[j]
		return a.Year*100+a.Month < b.Year*100+b.Month
	})
}

func advanceFilterFn(_ context.Context, ap *advance.AdvancePayment, filter interface{}) bool {
	f, ok := filter.(*types.AdvancePaymentFilter)
	if !ok || f == nil {
		return true
	}
	if len(f.AdvancePaymentIDs) > 0 && !lo.Contains(f.AdvancePaymentIDs, ap.ID) {
		return false
	}
	if f.CustomerID != "" && ap.CustomerID != f.CustomerID {
		return false
	}
	if len(f.Status) > 0 && !lo.Contains(f.Status, ap.Status) {
		return false
	}
	return true
}
