package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// InMemoryInvoiceStore implements invoice.Repository. It enforces the same
// overlap and idempotency key constraints as the database.
type InMemoryInvoiceStore struct {
	*InMemoryStore[*invoice.Invoice]
}

var _ invoice.Repository = (*InMemoryInvoiceStore)(nil)

func NewInMemoryInvoiceStore() *InMemoryInvoiceStore {
	return &InMemoryInvoiceStore{
		InMemoryStore: NewInMemoryStore(copyInvoice),
	}
}

func copyInvoice(inv *invoice.Invoice) *invoice.Invoice {
	if inv == nil {
		return nil
	}
	c := *inv
	c.Items = lo.Map(inv.Items, func(item *invoice.InvoiceItem, _ int) *invoice.InvoiceItem {
		ic := *item
		return &ic
	})
	return &c
}

func (s *InMemoryInvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	// constraint checks and insert must be atomic
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if inv.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *inv.IdempotencyKey {
			return ierr.NewError("duplicate idempotency key").
				WithHint("An invoice already exists for this customer and period").
				Mark(ierr.ErrAlreadyExists)
		}
		if inv.InvoiceType == types.InvoiceTypeSubscription &&
			blocksPeriod(existing, inv.CustomerID, inv.Period()) {
			return ierr.NewError("overlapping subscription invoice").
				WithHint("An invoice already exists for this customer and period").
				Mark(ierr.ErrAlreadyExists)
		}
	}
	if _, exists := s.items[inv.ID]; exists {
		return ierr.NewError("invoice already exists").Mark(ierr.ErrAlreadyExists)
	}
	s.items[inv.ID] = copyInvoice(inv)
	return nil
}

func (s *InMemoryInvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.WithError(err).WithHint("Invoice not found").Mark(ierr.ErrNotFound)
	}
	return inv, nil
}

func (s *InMemoryInvoiceStore) GetForUpdate(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.Get(ctx, id)
}

func (s *InMemoryInvoiceStore) Update(ctx context.Context, inv *invoice.Invoice) error {
	return s.InMemoryStore.Update(ctx, inv.ID, inv)
}

func (s *InMemoryInvoiceStore) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	return s.InMemoryStore.List(ctx, filter, invoiceFilterFn, invoiceSortFn)
}

func (s *InMemoryInvoiceStore) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitInvoiceFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, invoiceFilterFn)
}

func (s *InMemoryInvoiceStore) FindOverlapping(ctx context.Context, customerID string, period types.BillingPeriod) ([]*invoice.Invoice, error) {
	return s.InMemoryStore.List(ctx, nil, func(_ context.Context, inv *invoice.Invoice, _ interface{}) bool {
		return blocksPeriod(inv, customerID, period)
	}, invoiceSortFn)
}

func (s *InMemoryInvoiceStore) MarkOverdue(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil || filter.DueBefore == nil {
		return 0, ierr.NewError("due_before is required").Mark(ierr.ErrValidation)
	}
	cutoff := *filter.DueBefore

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	for id, inv := range s.items {
		if (inv.Status == types.InvoiceStatusPending || inv.Status == types.InvoiceStatusPartial) &&
			inv.DueDate.Before(cutoff) {
			c := copyInvoice(inv)
			c.Status = types.InvoiceStatusOverdue
			c.UpdatedAt = time.Now().UTC()
			s.items[id] = c
			changed++
		}
	}
	return changed, nil
}

// blocksPeriod mirrors the invoices_no_overlapping_periods constraint: only
// non-void subscription invoices hold a customer's billing window
func blocksPeriod(inv *invoice.Invoice, customerID string, period types.BillingPeriod) bool {
	return inv.CustomerID == customerID &&
		inv.InvoiceType == types.InvoiceTypeSubscription &&
		inv.Status.OccupiesPeriod() &&
		inv.Period().Overlaps(period)
}

func invoiceFilterFn(_ context.Context, inv *invoice.Invoice, filter interface{}) bool {
	f, ok := filter.(*types.InvoiceFilter)
	if !ok {
		return true
	}
	if len(f.InvoiceIDs) > 0 && !lo.Contains(f.InvoiceIDs, inv.ID) {
		return false
	}
	if f.CustomerID != "" && inv.CustomerID != f.CustomerID {
		return false
	}
	if f.InvoiceType != "" && inv.InvoiceType != f.InvoiceType {
		return false
	}
	if len(f.InvoiceStatus) > 0 && !lo.Contains(f.InvoiceStatus, inv.Status) {
		return false
	}
	if f.PeriodStartBefore != nil && inv.PeriodStart.After(*f.PeriodStartBefore) {
		return false
	}
	if f.DueBefore != nil && !inv.DueDate.Before(*f.DueBefore) {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && inv.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !inv.CreatedAt.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func invoiceSortFn(i, j *invoice.Invoice) bool {
	if !i.PeriodStart.Equal(j.PeriodStart) {
		return i.PeriodStart.Before(j.PeriodStart)
	}
	return i.ID < j.ID
}
