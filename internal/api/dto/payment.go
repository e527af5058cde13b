package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/payment"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

// RecordPaymentRequest is money collected from a customer. Amount is the
// gross taken off the invoice; Discount is the forgiven part of it.
type RecordPaymentRequest struct {
	CustomerID  string              `json:"customer_id" validate:"required"`
	InvoiceID   string              `json:"invoice_id,omitempty"`
	Amount      decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	Discount    decimal.Decimal     `json:"discount,omitempty" validate:"gte=0"`
	Method      types.PaymentMethod `json:"method" validate:"required"`
	Reference   string              `json:"reference,omitempty" validate:"omitempty,max=255"`
	PaymentDate *time.Time          `json:"payment_date,omitempty"`
	Notes       string              `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (r *RecordPaymentRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Method.Validate(); err != nil {
		return err
	}
	if r.Method == types.PaymentMethodAdvanceCredit {
		return ierr.NewError("advance credit payments are created by the system").
			WithHint("Use the advance payments endpoints to prepay months").
			Mark(ierr.ErrValidation)
	}
	if r.Discount.GreaterThan(r.Amount) {
		return ierr.NewError("discount exceeds amount").
			WithHint("Discount must be between zero and the payment amount").
			WithReportableDetails(map[string]any{
				"amount":   r.Amount.String(),
				"discount": r.Discount.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Net is the money actually received
func (r *RecordPaymentRequest) Net() decimal.Decimal {
	return r.Amount.Sub(r.Discount).Round(2)
}

type PaymentResponse struct {
	*payment.Payment
	Gross decimal.Decimal `json:"gross"`
}

func NewPaymentResponse(p *payment.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{Payment: p, Gross: p.Gross()}
}

type ListPaymentsResponse = types.ListResponse[*PaymentResponse]

// RecordPaymentResponse reports the committed payment and what happened to
// the best effort steps that followed it
type RecordPaymentResponse struct {
	Payment           *PaymentResponse `json:"payment"`
	Invoice           *InvoiceResponse `json:"invoice"`
	NotificationSent  bool             `json:"notification_sent"`
	NotificationError string           `json:"notification_error,omitempty"`
	Reactivated       bool             `json:"reactivated"`
	ReactivationError string           `json:"reactivation_error,omitempty"`
}

// VoidPaymentRequest carries the operator's reason
type VoidPaymentRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}
