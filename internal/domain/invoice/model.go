package invoice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// Invoice is a bill for one period, or the carrier of an untargeted payment
type Invoice struct {
	ID             string              `db:"id" json:"id"`
	CustomerID     string              `db:"customer_id" json:"customer_id"`
	InvoiceType    types.InvoiceType   `db:"invoice_type" json:"invoice_type"`
	InvoiceNumber  string              `db:"invoice_number" json:"invoice_number"`
	Status         types.InvoiceStatus `db:"status" json:"status"`
	PeriodStart    time.Time           `db:"period_start" json:"period_start"`
	PeriodEnd      time.Time           `db:"period_end" json:"period_end"`
	DueDate        time.Time           `db:"due_date" json:"due_date"`
	Subtotal       decimal.Decimal     `db:"subtotal" json:"subtotal"`
	Tax            decimal.Decimal     `db:"tax" json:"tax"`
	Discount       decimal.Decimal     `db:"discount" json:"discount"`
	Total          decimal.Decimal     `db:"total" json:"total"`
	BalanceDue     decimal.Decimal     `db:"balance_due" json:"balance_due"`
	IdempotencyKey *string             `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Notes          *string             `db:"notes" json:"notes,omitempty"`
	VoidedAt       *time.Time          `db:"voided_at" json:"voided_at,omitempty"`
	Items          []*InvoiceItem      `db:"-" json:"items,omitempty"`
	types.BaseModel
}

// InvoiceItem is one ordered line of an invoice
type InvoiceItem struct {
	ID             string          `db:"id" json:"id"`
	InvoiceID      string          `db:"invoice_id" json:"invoice_id"`
	CustomerPlanID *string         `db:"customer_plan_id" json:"customer_plan_id,omitempty"`
	Description    string          `db:"description" json:"description"`
	Quantity       decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	LineTotal      decimal.Decimal `db:"line_total" json:"line_total"`
	DisplayOrder   int             `db:"display_order" json:"display_order"`
	types.BaseModel
}

func (i *Invoice) Period() types.BillingPeriod {
	return types.BillingPeriod{Start: i.PeriodStart, End: i.PeriodEnd}
}

// Paid is the gross amount already applied, total minus balance due
func (i *Invoice) Paid() decimal.Decimal {
	return i.Total.Sub(i.BalanceDue)
}

// CheckPayable rejects invoices that can no longer take a payment
func (i *Invoice) CheckPayable() error {
	if i.Status.IsOpen() {
		return nil
	}
	return ierr.NewError("invoice is not payable").
		WithHintf("Invoice is %s and cannot receive payments", i.Status).
		WithReportableDetails(map[string]any{
			"invoice_id": i.ID,
			"status":     i.Status,
		}).
		Mark(ierr.ErrInvalidOperation)
}

// ApplyPayment reduces the balance due by a gross amount and moves the status:
// PAID when nothing remains, PARTIAL when something was paid, else unchanged.
func (i *Invoice) ApplyPayment(gross decimal.Decimal) error {
	if gross.GreaterThan(i.BalanceDue) {
		return ierr.NewError("payment exceeds invoice balance due").
			WithHint("The applied amount cannot exceed the remaining balance of the invoice").
			WithReportableDetails(map[string]any{
				"invoice_id":  i.ID,
				"balance_due": i.BalanceDue.String(),
				"amount":      gross.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	i.BalanceDue = i.BalanceDue.Sub(gross).Round(2)
	i.refreshStatus()
	return nil
}

// ReversePayment restores a previously applied gross amount
func (i *Invoice) ReversePayment(gross decimal.Decimal, now time.Time) {
	i.BalanceDue = decimal.Min(i.Total, i.BalanceDue.Add(gross)).Round(2)
	switch {
	case i.BalanceDue.IsZero():
		i.Status = types.InvoiceStatusPaid
	case i.BalanceDue.LessThan(i.Total):
		i.Status = types.InvoiceStatusPartial
	case now.After(i.DueDate):
		i.Status = types.InvoiceStatusOverdue
	default:
		i.Status = types.InvoiceStatusPending
	}
}

func (i *Invoice) refreshStatus() {
	switch {
	case i.BalanceDue.IsZero():
		i.Status = types.InvoiceStatusPaid
	case i.BalanceDue.LessThan(i.Total):
		// overdue invoices return to OVERDUE on the next MarkOverdueInvoices run
		i.Status = types.InvoiceStatusPartial
	}
}

// IsOverdue reports an open invoice past its due date
func (i *Invoice) IsOverdue(now time.Time) bool {
	return (i.Status == types.InvoiceStatusPending || i.Status == types.InvoiceStatusPartial) &&
		now.After(i.DueDate)
}

// NewItem builds a line item for the invoice with the next display order
func (i *Invoice) NewItem(ctx context.Context, description string, quantity, unitPrice decimal.Decimal, customerPlanID string, now time.Time) *InvoiceItem {
	item := &InvoiceItem{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_ITEM),
		InvoiceID:    i.ID,
		Description:  description,
		Quantity:     quantity,
		UnitPrice:    unitPrice.Round(2),
		LineTotal:    quantity.Mul(unitPrice).Round(2),
		DisplayOrder: len(i.Items),
		BaseModel:    types.GetDefaultBaseModel(ctx, now),
	}
	if customerPlanID != "" {
		item.CustomerPlanID = &customerPlanID
	}
	i.Items = append(i.Items, item)
	return item
}

// Void releases the invoice's period and its idempotency key so the period
// can be billed again
func (i *Invoice) Void(ctx context.Context, reason string, now time.Time) {
	voidedAt := now.UTC()
	i.Status = types.InvoiceStatusVoid
	i.VoidedAt = &voidedAt
	i.IdempotencyKey = nil
	if reason != "" {
		i.Notes = &reason
	}
	i.Touch(ctx, now)
}
