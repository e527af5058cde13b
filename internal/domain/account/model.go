package account

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// BillingAccount is the running financial position of one customer.
// A positive balance is debt, a negative balance is credit.
type BillingAccount struct {
	CustomerID             string              `db:"customer_id" json:"customer_id"`
	Balance                decimal.Decimal     `db:"balance" json:"balance"`
	CreditLimit            decimal.Decimal     `db:"credit_limit" json:"credit_limit"`
	Status                 types.AccountStatus `db:"status" json:"status"`
	AutoSuspend            bool                `db:"auto_suspend" json:"auto_suspend"`
	SuspendedAt            *time.Time          `db:"suspended_at" json:"suspended_at,omitempty"`
	PaymentCommitmentDate  *time.Time          `db:"payment_commitment_date" json:"payment_commitment_date,omitempty"`
	PaymentCommitmentNotes *string             `db:"payment_commitment_notes" json:"payment_commitment_notes,omitempty"`
	LastPaymentDate        *time.Time          `db:"last_payment_date" json:"last_payment_date,omitempty"`
	types.BaseModel
}

// New returns the account created lazily on a customer's first billing event
func New(ctx context.Context, customerID string, now time.Time) *BillingAccount {
	return &BillingAccount{
		CustomerID:  customerID,
		Balance:     decimal.Zero,
		CreditLimit: decimal.Zero,
		Status:      types.AccountStatusActive,
		AutoSuspend: true,
		BaseModel:   types.GetDefaultBaseModel(ctx, now),
	}
}

func (a *BillingAccount) HasDebt() bool {
	return a.Balance.IsPositive()
}

// AvailableCredit is the credit a negative balance holds, zero otherwise
func (a *BillingAccount) AvailableCredit() decimal.Decimal {
	if a.Balance.IsNegative() {
		return a.Balance.Neg()
	}
	return decimal.Zero
}

// HasLiveCommitment reports whether a promise to pay is still in the future
func (a *BillingAccount) HasLiveCommitment(now time.Time) bool {
	return a.PaymentCommitmentDate != nil && a.PaymentCommitmentDate.After(now)
}

// CommitmentExpired reports a commitment whose date has been reached
func (a *BillingAccount) CommitmentExpired(now time.Time) bool {
	return a.PaymentCommitmentDate != nil && !a.PaymentCommitmentDate.After(now)
}

// Cuttable is the dunning predicate: active, in debt, opted into automatic
// suspension and not protected by a live commitment
func (a *BillingAccount) Cuttable(now time.Time) bool {
	return a.Status == types.AccountStatusActive &&
		a.HasDebt() &&
		a.AutoSuspend &&
		!a.HasLiveCommitment(now)
}

// ClearCommitment drops the promise to pay
func (a *BillingAccount) ClearCommitment() {
	a.PaymentCommitmentDate = nil
	a.PaymentCommitmentNotes = nil
}

// Adjust applies a signed balance mutation rounded to cents
func (a *BillingAccount) Adjust(delta decimal.Decimal) {
	a.Balance = a.Balance.Add(delta).Round(2)
}
