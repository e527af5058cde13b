package payment

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// Payment is money collected against an invoice. Amount is net of Discount;
// the gross applied to the invoice is Amount + Discount.
type Payment struct {
	ID              string              `db:"id" json:"id"`
	CustomerID      string              `db:"customer_id" json:"customer_id"`
	InvoiceID       string              `db:"invoice_id" json:"invoice_id"`
	Amount          decimal.Decimal     `db:"amount" json:"amount"`
	Discount        decimal.Decimal     `db:"discount" json:"discount"`
	Method          types.PaymentMethod `db:"method" json:"method"`
	Status          types.PaymentStatus `db:"status" json:"status"`
	Reference       *string             `db:"reference" json:"reference,omitempty"`
	ReceiptNumber   string              `db:"receipt_number" json:"receipt_number"`
	ReceiptLocation *string             `db:"receipt_location" json:"receipt_location,omitempty"`
	PaymentDate     time.Time           `db:"payment_date" json:"payment_date"`
	Notes           *string             `db:"notes" json:"notes,omitempty"`
	CancelledAt     *time.Time          `db:"cancelled_at" json:"cancelled_at,omitempty"`
	types.BaseModel
}

// Gross is what the payment took off the invoice
func (p *Payment) Gross() decimal.Decimal {
	return p.Amount.Add(p.Discount)
}

func (p *Payment) IsCompleted() bool {
	return p.Status == types.PaymentStatusCompleted
}
