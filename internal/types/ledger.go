package types

import (
	"github.com/samber/lo"
	ierr "github.com/wispbill/wispbill/internal/errors"
)

// LedgerBook separates the account balance from prepaid advance credit.
// Only BALANCE entries replay into the account balance.
type LedgerBook string

const (
	LedgerBookBalance LedgerBook = "BALANCE"
	LedgerBookAdvance LedgerBook = "ADVANCE"
)

func (b LedgerBook) Validate() error {
	allowed := []LedgerBook{LedgerBookBalance, LedgerBookAdvance}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid ledger book").
			WithHint("Ledger book must be BALANCE or ADVANCE").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LedgerEntryType is the direction of a ledger entry.
// DEBIT raises what the customer owes, CREDIT lowers it.
type LedgerEntryType string

const (
	LedgerEntryTypeDebit  LedgerEntryType = "DEBIT"
	LedgerEntryTypeCredit LedgerEntryType = "CREDIT"
)

func (t LedgerEntryType) Validate() error {
	allowed := []LedgerEntryType{LedgerEntryTypeDebit, LedgerEntryTypeCredit}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid ledger entry type").
			WithHint("Ledger entry type must be DEBIT or CREDIT").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// LedgerEntryFilter selects entries of one customer's ledger
type LedgerEntryFilter struct {
	*QueryFilter
	*TimeRangeFilter

	CustomerID       string     `json:"customer_id" form:"customer_id"`
	Book             LedgerBook `json:"book,omitempty" form:"book"`
	InvoiceID        string     `json:"invoice_id,omitempty" form:"invoice_id"`
	PaymentID        string     `json:"payment_id,omitempty" form:"payment_id"`
	AdvancePaymentID string     `json:"advance_payment_id,omitempty" form:"advance_payment_id"`
}

func NewLedgerEntryFilter() *LedgerEntryFilter {
	return &LedgerEntryFilter{QueryFilter: NewDefaultQueryFilter()}
}

// NewReplayLedgerEntryFilter walks the whole book in insertion order
func NewReplayLedgerEntryFilter(customerID string, book LedgerBook) *LedgerEntryFilter {
	return &LedgerEntryFilter{
		QueryFilter: NewNoLimitQueryFilter(),
		CustomerID:  customerID,
		Book:        book,
	}
}

func (f *LedgerEntryFilter) Validate() error {
	if f == nil || f.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Ledger queries are scoped to one customer").
			Mark(ierr.ErrValidation)
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.Book != "" {
		return f.Book.Validate()
	}
	return nil
}
