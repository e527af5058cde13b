package dto

import (
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/advance"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

// AdvanceMonthRequest earmarks an amount for one month
type AdvanceMonthRequest struct {
	Month  int             `json:"month" validate:"required,min=1,max=12"`
	Year   int             `json:"year" validate:"required,min=2000,max=2999"`
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

func (m AdvanceMonthRequest) Target() types.BillingMonth {
	return types.BillingMonth{Month: m.Month, Year: m.Year}
}

type CreateAdvancePaymentRequest struct {
	CustomerID string                `json:"customer_id" validate:"required"`
	Months     []AdvanceMonthRequest `json:"months" validate:"required,min=1,dive"`
	Method     types.PaymentMethod   `json:"method" validate:"required"`
	Reference  string                `json:"reference,omitempty" validate:"omitempty,max=255"`
	Notes      string                `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (r *CreateAdvancePaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Method.Validate(); err != nil {
		return err
	}
	if r.Method == types.PaymentMethodAdvanceCredit {
		return ierr.NewError("advance payments cannot be paid with advance credit").
			WithHint("Choose the method the money was received with").
			Mark(ierr.ErrValidation)
	}
	dups := lo.FindDuplicatesBy(r.Months, func(m AdvanceMonthRequest) types.BillingMonth {
		return m.Target()
	})
	if len(dups) > 0 {
		return ierr.NewError("duplicate months in request").
			WithHintf("Month %02d/%d appears more than once", dups[0].Month, dups[0].Year).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Total is the sum earmarked across all months
func (r *CreateAdvancePaymentRequest) Total() decimal.Decimal {
	return lo.Reduce(r.Months, func(acc decimal.Decimal, m AdvanceMonthRequest, _ int) decimal.Decimal {
		return acc.Add(m.Amount.Round(2))
	}, decimal.Zero)
}

// AdvancePaymentResponse is a prepayment with its monthly allocations
type AdvancePaymentResponse struct {
	AdvancePayment  *advance.AdvancePayment      `json:"advance_payment"`
	MonthlyPayments []*advance.MonthlyAllocation `json:"monthly_payments"`
	PendingAmount   decimal.Decimal              `json:"pending_amount"`
}

func NewAdvancePaymentResponse(ap *advance.AdvancePayment) *AdvancePaymentResponse {
	if ap == nil {
		return nil
	}
	allocs := ap.Allocations
	if allocs == nil {
		allocs = make([]*advance.MonthlyAllocation, 0)
	}
	return &AdvancePaymentResponse{
		AdvancePayment:  ap,
		MonthlyPayments: allocs,
		PendingAmount:   ap.PendingAmount(),
	}
}

type ListAdvancePaymentsResponse = types.ListResponse[*AdvancePaymentResponse]

// ApplyAdvanceRequest applies a month's prepayment to an invoice
type ApplyAdvanceRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	InvoiceID  string `json:"invoice_id" validate:"required"`
	Month      int    `json:"month" validate:"required,min=1,max=12"`
	Year       int    `json:"year" validate:"required,min=2000,max=2999"`
}

func (r *ApplyAdvanceRequest) Target() types.BillingMonth {
	return types.BillingMonth{Month: r.Month, Year: r.Year}
}

// ApplyAdvanceResponse reports one allocation drawn down on an invoice
type ApplyAdvanceResponse struct {
	AllocationID string           `json:"allocation_id"`
	Amount       decimal.Decimal  `json:"amount"`
	Applied      decimal.Decimal  `json:"applied"`
	Surplus      decimal.Decimal  `json:"surplus"`
	Payment      *PaymentResponse `json:"payment,omitempty"`
	Invoice      *InvoiceResponse `json:"invoice"`
}

// ApplyPendingResponse summarises a reconciliation pass
type ApplyPendingResponse struct {
	AppliedCount  int      `json:"applied_count"`
	TotalInvoices int      `json:"total_invoices"`
	Errors        []string `json:"errors,omitempty"`
}

func (r *ApplyPendingResponse) AddError(invoiceID string, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", invoiceID, err))
}
