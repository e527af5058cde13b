package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/types"
)

// Entry is one immutable line of a customer's ledger
type Entry struct {
	ID               string                `db:"id" json:"id"`
	Sequence         int64                 `db:"sequence" json:"sequence"`
	CustomerID       string                `db:"customer_id" json:"customer_id"`
	Book             types.LedgerBook      `db:"book" json:"book"`
	Type             types.LedgerEntryType `db:"type" json:"type"`
	Amount           decimal.Decimal       `db:"amount" json:"amount"`
	Description      string                `db:"description" json:"description"`
	InvoiceID        *string               `db:"invoice_id" json:"invoice_id,omitempty"`
	PaymentID        *string               `db:"payment_id" json:"payment_id,omitempty"`
	AdvancePaymentID *string               `db:"advance_payment_id" json:"advance_payment_id,omitempty"`
	CreatedAt        time.Time             `db:"created_at" json:"created_at"`
	CreatedBy        string                `db:"created_by" json:"created_by"`
}

// EntryParams describes a new entry; zero-value refs are left unset
type EntryParams struct {
	CustomerID       string
	Book             types.LedgerBook
	Type             types.LedgerEntryType
	Amount           decimal.Decimal
	Description      string
	InvoiceID        string
	PaymentID        string
	AdvancePaymentID string
}

func NewEntry(ctx context.Context, params EntryParams, now time.Time) *Entry {
	e := &Entry{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_ENTRY),
		CustomerID:  params.CustomerID,
		Book:        params.Book,
		Type:        params.Type,
		Amount:      params.Amount.Round(2),
		Description: params.Description,
		CreatedAt:   now.UTC(),
		CreatedBy:   types.GetUserID(ctx),
	}
	if params.InvoiceID != "" {
		e.InvoiceID = &params.InvoiceID
	}
	if params.PaymentID != "" {
		e.PaymentID = &params.PaymentID
	}
	if params.AdvancePaymentID != "" {
		e.AdvancePaymentID = &params.AdvancePaymentID
	}
	return e
}

// Signed returns the entry's effect on the book: DEBIT adds, CREDIT subtracts
func (e *Entry) Signed() decimal.Decimal {
	if e.Type == types.LedgerEntryTypeCredit {
		return e.Amount.Neg()
	}
	return e.Amount
}
