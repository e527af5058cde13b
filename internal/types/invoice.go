package types

import (
	"time"

	"github.com/samber/lo"
	ierr "github.com/wispbill/wispbill/internal/errors"
)

// InvoiceType distinguishes periodic subscription invoices from the
// single-item invoices synthesized to carry an untargeted payment
type InvoiceType string

const (
	InvoiceTypeSubscription InvoiceType = "SUBSCRIPTION"
	InvoiceTypePayment      InvoiceType = "PAYMENT"
)

func (t InvoiceType) String() string {
	return string(t)
}

func (t InvoiceType) Validate() error {
	allowed := []InvoiceType{
		InvoiceTypeSubscription,
		InvoiceTypePayment,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid invoice type").
			WithHint("Please provide a valid invoice type").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// InvoiceStatus is the collection state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPartial   InvoiceStatus = "PARTIAL"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusOverdue   InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
	InvoiceStatusVoid      InvoiceStatus = "VOID"
)

// InvoiceStatusOpen are the statuses that still accept payments
var InvoiceStatusOpen = []InvoiceStatus{
	InvoiceStatusPending,
	InvoiceStatusPartial,
	InvoiceStatusOverdue,
}

func (s InvoiceStatus) String() string {
	return string(s)
}

func (s InvoiceStatus) Validate() error {
	allowed := []InvoiceStatus{
		InvoiceStatusPending,
		InvoiceStatusPartial,
		InvoiceStatusPaid,
		InvoiceStatusOverdue,
		InvoiceStatusCancelled,
		InvoiceStatusVoid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid invoice status").
			WithHint("Please provide a valid invoice status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsOpen reports whether the invoice can still receive payments
func (s InvoiceStatus) IsOpen() bool {
	return lo.Contains(InvoiceStatusOpen, s)
}

// OccupiesPeriod reports whether an invoice in this status blocks another
// invoice for an overlapping period
func (s InvoiceStatus) OccupiesPeriod() bool {
	return s != InvoiceStatusVoid && s != InvoiceStatusCancelled
}

// InvoiceFilter represents the filter options for listing invoices
type InvoiceFilter struct {
	*QueryFilter
	*TimeRangeFilter

	InvoiceIDs    []string        `json:"invoice_ids,omitempty" form:"invoice_ids"`
	CustomerID    string          `json:"customer_id,omitempty" form:"customer_id"`
	InvoiceType   InvoiceType     `json:"invoice_type,omitempty" form:"invoice_type"`
	InvoiceStatus []InvoiceStatus `json:"invoice_status,omitempty" form:"invoice_status"`
	// PeriodStartBefore keeps invoices whose period started at or before the instant
	PeriodStartBefore *time.Time `json:"-" form:"-"`
	// DueBefore keeps invoices whose due date is strictly before the instant
	DueBefore *time.Time `json:"-" form:"-"`
}

func NewInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{QueryFilter: NewDefaultQueryFilter()}
}

func NewNoLimitInvoiceFilter() *InvoiceFilter {
	return &InvoiceFilter{QueryFilter: NewNoLimitQueryFilter()}
}

func (f *InvoiceFilter) Validate() error {
	if f == nil {
		return nil
	}
	if err := f.QueryFilter.Validate(); err != nil {
		return err
	}
	if err := f.TimeRangeFilter.Validate(); err != nil {
		return err
	}
	if f.InvoiceType != "" {
		if err := f.InvoiceType.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.InvoiceStatus {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// BatchItemStatus is the per-customer outcome of an invoice generation run
type BatchItemStatus string

const (
	BatchItemStatusBilled               BatchItemStatus = "BILLED"
	BatchItemStatusSkippedNoCharge      BatchItemStatus = "SKIPPED_NO_CHARGE"
	BatchItemStatusSkippedAlreadyBilled BatchItemStatus = "SKIPPED_ALREADY_BILLED"
	BatchItemStatusFailed               BatchItemStatus = "FAILED"
)

func (s BatchItemStatus) IsSkipped() bool {
	return s == BatchItemStatusSkippedNoCharge || s == BatchItemStatusSkippedAlreadyBilled
}
