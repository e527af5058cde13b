package advance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// AdvancePayment is money received ahead of the months it pays for
type AdvancePayment struct {
	ID          string                     `db:"id" json:"id"`
	CustomerID  string                     `db:"customer_id" json:"customer_id"`
	TotalAmount decimal.Decimal            `db:"total_amount" json:"total_amount"`
	Method      types.PaymentMethod        `db:"method" json:"method"`
	Reference   *string                    `db:"reference" json:"reference,omitempty"`
	Notes       *string                    `db:"notes" json:"notes,omitempty"`
	Status      types.AdvancePaymentStatus `db:"status" json:"status"`
	Allocations []*MonthlyAllocation       `db:"-" json:"monthly_payments,omitempty"`
	types.BaseModel
}

// MonthlyAllocation is the slice of an advance payment earmarked for one month
type MonthlyAllocation struct {
	ID               string                        `db:"id" json:"id"`
	AdvancePaymentID string                        `db:"advance_payment_id" json:"advance_payment_id"`
	CustomerID       string                        `db:"customer_id" json:"customer_id"`
	Month            int                           `db:"month" json:"month"`
	Year             int                           `db:"year" json:"year"`
	Amount           decimal.Decimal               `db:"amount" json:"amount"`
	Status           types.AdvanceAllocationStatus `db:"status" json:"status"`
	InvoiceID        *string                       `db:"invoice_id" json:"invoice_id,omitempty"`
	AppliedAt        *time.Time                    `db:"applied_at" json:"applied_at,omitempty"`
	types.BaseModel
}

func (a *MonthlyAllocation) Target() types.BillingMonth {
	return types.BillingMonth{Month: a.Month, Year: a.Year}
}

// HasApplied reports whether any allocation was already consumed
func (ap *AdvancePayment) HasApplied() bool {
	for _, a := range ap.Allocations {
		if a.Status == types.AdvanceAllocationStatusApplied {
			return true
		}
	}
	return false
}

// PendingAmount sums what is still earmarked and unapplied
func (ap *AdvancePayment) PendingAmount() decimal.Decimal {
	total := decimal.Zero
	for _, a := range ap.Allocations {
		if a.Status == types.AdvanceAllocationStatusPending {
			total = total.Add(a.Amount)
		}
	}
	return total
}
