package types

import (
	"time"

	ierr "github.com/wispbill/wispbill/internal/errors"
)

// AccountStatus is the payment-discipline state of a billing account
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusCancelled AccountStatus = "CANCELLED"
)

func (s AccountStatus) Validate() error {
	switch s {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusCancelled:
		return nil
	}
	return ierr.NewErrorf("invalid account status: %s", s).
		WithHint("Account status must be ACTIVE, SUSPENDED or CANCELLED").
		Mark(ierr.ErrValidation)
}

// BillingAccountFilter selects billing accounts
type BillingAccountFilter struct {
	*QueryFilter
	CustomerIDs []string        `form:"customer_ids"`
	Statuses    []AccountStatus `form:"status"`
	// WithDebt keeps accounts whose balance is strictly positive
	WithDebt bool `form:"with_debt"`
	// AutoSuspend keeps accounts that opted into automatic suspension
	AutoSuspend *bool `form:"auto_suspend"`
	// CommitmentDueBy keeps accounts with a commitment date at or before the
	// given instant
	CommitmentDueBy *time.Time `form:"-"`
	// NoLiveCommitmentAt keeps accounts without a commitment, or whose
	// commitment date is at or before the given instant
	NoLiveCommitmentAt *time.Time `form:"-"`
	// LiveCommitmentAt keeps accounts whose commitment is after the given instant
	LiveCommitmentAt *time.Time      `form:"-"`
	ExcludeStatuses  []AccountStatus `form:"-"`
}

func NewBillingAccountFilter() *BillingAccountFilter {
	return &BillingAccountFilter{QueryFilter: NewDefaultQueryFilter()}
}

func NewNoLimitBillingAccountFilter() *BillingAccountFilter {
	return &BillingAccountFilter{QueryFilter: NewNoLimitQueryFilter()}
}

func (f *BillingAccountFilter) Validate() error {
	if f == nil {
		return nil
	}
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return err
		}
	}
	for _, s := range f.Statuses {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}
