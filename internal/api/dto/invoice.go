package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/types"
)

// InvoiceResponse is an invoice with its ordered items
type InvoiceResponse struct {
	*invoice.Invoice
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

func NewInvoiceResponse(inv *invoice.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{
		Invoice:    inv,
		AmountPaid: inv.Paid(),
	}
}

type ListInvoicesResponse = types.ListResponse[*InvoiceResponse]

// GenerateDebtRequest selects the month to bill. Empty fields default to
// the month containing now.
type GenerateDebtRequest struct {
	Month int `json:"month,omitempty" validate:"omitempty,min=1,max=12"`
	Year  int `json:"year,omitempty" validate:"omitempty,min=2000,max=2999"`
}

// Period resolves the requested month in loc
func (r *GenerateDebtRequest) Period(now time.Time, loc *time.Location) types.BillingPeriod {
	if r == nil || r.Month == 0 || r.Year == 0 {
		return types.NewMonthlyPeriod(now, loc)
	}
	return types.NewMonthlyPeriodFor(time.Month(r.Month), r.Year, loc)
}

// GenerateDebtItem is one customer's outcome in a billing run
type GenerateDebtItem struct {
	CustomerID string                `json:"customer_id"`
	Status     types.BatchItemStatus `json:"status"`
	Invoice    *InvoiceResponse      `json:"invoice,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// GenerateDebtResponse summarises a billing run
type GenerateDebtResponse struct {
	PeriodStart time.Time          `json:"period_start"`
	PeriodEnd   time.Time          `json:"period_end"`
	Items       []GenerateDebtItem `json:"items"`
	Billed      int                `json:"billed"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
}

func NewGenerateDebtResponse(period types.BillingPeriod) *GenerateDebtResponse {
	return &GenerateDebtResponse{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Items:       make([]GenerateDebtItem, 0),
	}
}

// Add records an item and updates the counters
func (r *GenerateDebtResponse) Add(item GenerateDebtItem) {
	r.Items = append(r.Items, item)
	switch {
	case item.Status == types.BatchItemStatusBilled:
		r.Billed++
	case item.Status.IsSkipped():
		r.Skipped++
	default:
		r.Failed++
	}
}

// ItemFor returns the item of a customer, if any
func (r *GenerateDebtResponse) ItemFor(customerID string) (GenerateDebtItem, bool) {
	return lo.Find(r.Items, func(item GenerateDebtItem) bool {
		return item.CustomerID == customerID
	})
}

// VoidInvoiceRequest carries the operator's reason
type VoidInvoiceRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// MarkOverdueResponse reports how many invoices flipped to OVERDUE
type MarkOverdueResponse struct {
	Updated int `json:"updated"`
}
