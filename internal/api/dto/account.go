package dto

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

type BillingAccountResponse struct {
	*account.BillingAccount
	AvailableCredit decimal.Decimal `json:"available_credit"`
	// AdvanceCredit is prepaid money not yet applied to any invoice
	AdvanceCredit decimal.Decimal `json:"advance_credit"`
}

func NewBillingAccountResponse(a *account.BillingAccount, advanceCredit decimal.Decimal) *BillingAccountResponse {
	if a == nil {
		return nil
	}
	return &BillingAccountResponse{
		BillingAccount:  a,
		AvailableCredit: a.AvailableCredit(),
		AdvanceCredit:   advanceCredit,
	}
}

type ListBillingAccountsResponse = types.ListResponse[*BillingAccountResponse]

type ListLedgerEntriesResponse = types.ListResponse[*ledger.Entry]

// VerifyBalanceResponse compares the stored balance with its ledger replay
type VerifyBalanceResponse struct {
	CustomerID string          `json:"customer_id"`
	Stored     decimal.Decimal `json:"stored"`
	Replayed   decimal.Decimal `json:"replayed"`
	Consistent bool            `json:"consistent"`
}

// UpdateBillingAccountRequest changes the operator controlled settings
type UpdateBillingAccountRequest struct {
	AutoSuspend *bool            `json:"auto_suspend,omitempty"`
	CreditLimit *decimal.Decimal `json:"credit_limit,omitempty" validate:"omitempty,gte=0"`
}

func (r *UpdateBillingAccountRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.AutoSuspend == nil && r.CreditLimit == nil {
		return ierr.NewError("nothing to update").
			WithHint("Provide auto_suspend or credit_limit").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// PaymentCommitmentRequest is a promise to pay by Date
type PaymentCommitmentRequest struct {
	Date  time.Time `json:"date" validate:"required"`
	Notes string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// PaymentCommitmentResponse reports the stored commitment. A failed
// reactivation does not undo the commitment and is returned as a warning.
type PaymentCommitmentResponse struct {
	Account           *BillingAccountResponse `json:"account"`
	Reactivated       bool                    `json:"reactivated"`
	ReactivationError string                  `json:"reactivation_error,omitempty"`
}

func (r *PaymentCommitmentRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// SuspendRequest is an operator suspension
type SuspendRequest struct {
	Reason          string `json:"reason,omitempty" validate:"omitempty,max=500"`
	ClearCommitment bool   `json:"clear_commitment,omitempty"`
}

func (r *SuspendRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// Options turns an operator request into suspension options
func (r *SuspendRequest) Options() types.SuspensionOptions {
	reason := r.Reason
	if reason == "" {
		reason = "operator suspension"
	}
	return types.SuspensionOptions{
		Reason:          reason,
		Trigger:         types.DunningTriggerManual,
		ClearCommitment: r.ClearCommitment,
	}
}
