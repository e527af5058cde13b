package types

import (
	"github.com/samber/lo"
	ierr "github.com/wispbill/wispbill/internal/errors"
)

// AdvancePaymentStatus is the state of a prepayment
type AdvancePaymentStatus string

const (
	AdvancePaymentStatusActive    AdvancePaymentStatus = "ACTIVE"
	AdvancePaymentStatusCancelled AdvancePaymentStatus = "CANCELLED"
)

// AdvanceAllocationStatus is the state of one month's slice of a prepayment.
// PENDING moves to APPLIED exactly once.
type AdvanceAllocationStatus string

const (
	AdvanceAllocationStatusPending   AdvanceAllocationStatus = "PENDING"
	AdvanceAllocationStatusApplied   AdvanceAllocationStatus = "APPLIED"
	AdvanceAllocationStatusCancelled AdvanceAllocationStatus = "CANCELLED"
)

func (s AdvanceAllocationStatus) Validate() error {
	allowed := []AdvanceAllocationStatus{
		AdvanceAllocationStatusPending,
		AdvanceAllocationStatusApplied,
		AdvanceAllocationStatusCancelled,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid advance allocation status").
			WithHint("Please provide a valid advance allocation status").
			WithReportableDetails(map[string]any{
				"allowed": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// BillingMonth identifies a calendar month of service
type BillingMonth struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2999"`
}

// AdvancePaymentFilter selects prepayments
type AdvancePaymentFilter struct {
	*QueryFilter

	AdvancePaymentIDs []string               `json:"advance_payment_ids,omitempty" form:"advance_payment_ids"`
	CustomerID        string                 `json:"customer_id,omitempty" form:"customer_id"`
	Status            []AdvancePaymentStatus `json:"status,omitempty" form:"status"`
}

func NewAdvancePaymentFilter() *AdvancePaymentFilter {
	return &AdvancePaymentFilter{QueryFilter: NewDefaultQueryFilter()}
}

func (f *AdvancePaymentFilter) Validate() error {
	if f == nil {
		return nil
	}
	return f.QueryFilter.Validate()
}
