package testutil

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// InMemoryLedgerStore implements ledger.Repository. Sequences come from a
// counter that, like a database sequence, is not rolled back.
type InMemoryLedgerStore struct {
	*InMemoryStore[*ledger.Entry]
	seq atomic.Int64
}

var _ ledger.Repository = (*InMemoryLedgerStore)(nil)

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		InMemoryStore: NewInMemoryStore(func(e *ledger.Entry) *ledger.Entry {
			c := *e
			return &c
		}),
	}
}

func (s *InMemoryLedgerStore) Append(ctx context.Context, entries ...*ledger.Entry) error {
	for _, e := range entries {
		if !e.Amount.IsPositive() {
			return ierr.NewError("ledger amount must be positive").
				WithReportableDetails(map[string]any{"amount": e.Amount.String()}).
				Mark(ierr.ErrValidation)
		}
	}
	for _, e := range entries {
		e.Sequence = s.seq.Add(1)
		if err := s.InMemoryStore.Create(ctx, e.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryLedgerStore) List(ctx context.Context, filter *types.LedgerEntryFilter) ([]*ledger.Entry, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.InMemoryStore.List(ctx, filter, ledgerFilterFn, ledgerSortFn)
}

func (s *InMemoryLedgerStore) Count(ctx context.Context, filter *types.LedgerEntryFilter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	return s.InMemoryStore.Count(ctx, filter, ledgerFilterFn)
}

// Sum returns the signed total of a customer's book, for assertions
func (s *InMemoryLedgerStore) Sum(customerID string, book types.LedgerBook) decimal.Decimal {
	entries, _ := s.List(context.Background(), types.NewReplayLedgerEntryFilter(customerID, book))
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return total
}

func ledgerFilterFn(_ context.Context, e *ledger.Entry, filter interface{}) bool {
	f, ok := filter.(*types.LedgerEntryFilter)
	if !ok {
		return true
	}
	if e.CustomerID != f.CustomerID {
		return false
	}
	if f.Book != "" && e.Book != f.Book {
		return false
	}
	if f.InvoiceID != "" && (e.InvoiceID == nil || *e.InvoiceID != f.InvoiceID) {
		return false
	}
	if f.PaymentID != "" && (e.PaymentID == nil || *e.PaymentID != f.PaymentID) {
		return false
	}
	if f.AdvancePaymentID != "" && (e.AdvancePaymentID == nil || *e.AdvancePaymentID != f.AdvancePaymentID) {
		return false
	}
	if f.TimeRangeFilter != nil {
		if f.StartTime != nil && e.CreatedAt.Before(*f.StartTime) {
			return false
		}
		if f.EndTime != nil && !e.CreatedAt.Before(*f.EndTime) {
			return false
		}
	}
	return true
}

func ledgerSortFn(i, j *ledger.Entry) bool {
	return i.Sequence < j.Sequence
}
