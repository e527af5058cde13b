package service

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/account"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// PaymentCommitmentService tracks promises to pay. A live commitment keeps an
// indebted account out of the cut runs and lifts an existing suspension.
type PaymentCommitmentService interface {
	CreateOrUpdatePaymentCommitment(ctx context.Context, customerID string, req dto.PaymentCommitmentRequest) (*dto.PaymentCommitmentResponse, error)
	RemovePaymentCommitment(ctx context.Context, customerID string) (*dto.BillingAccountResponse, error)
	ListActiveCommitments(ctx context.Context, filter *types.BillingAccountFilter) (*dto.ListBillingAccountsResponse, error)
}

type paymentCommitmentService struct {
	ServiceParams
}

func NewPaymentCommitmentService(params ServiceParams) PaymentCommitmentService {
	return &paymentCommitmentService{ServiceParams: params}
}

func (s *paymentCommitmentService) CreateOrUpdatePaymentCommitment(ctx context.Context, customerID string, req dto.PaymentCommitmentRequest) (*dto.PaymentCommitmentResponse, error) {
	if customerID == "" {
		return nil, ierr.NewError("customer_id is required").
			WithHint("Please provide a customer").
			Mark(ierr.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if !req.Date.After(now) {
		return nil, ierr.NewError("payment commitment date must be in the future").
			WithHint("Please choose a commitment date after the current time").
			WithReportableDetails(map[string]any{
				"date": req.Date,
				"now":  now,
			}).
			Mark(ierr.ErrValidation)
	}

	var acc *account.BillingAccount
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.getOrCreateAccount(ctx, customerID)
		if err != nil {
			return err
		}
		acc.PaymentCommitmentDate = lo.ToPtr(req.Date.UTC())
		acc.PaymentCommitmentNotes = nil
		if notes := strings.TrimSpace(req.Notes); notes != "" {
			acc.PaymentCommitmentNotes = lo.ToPtr(notes)
		}
		acc.Touch(ctx, now)
		return s.AccountRepo.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payment commitment recorded",
		"customer_id", customerID,
		"date", req.Date,
		"status", acc.Status)

	resp := &dto.PaymentCommitmentResponse{}
	if acc.Status == types.AccountStatusSuspended {
		tally, err := NewSuspensionService(s.ServiceParams).ReactivateCustomer(ctx, customerID)
		if err != nil {
			s.Logger.Errorw("failed to reactivate customer after payment commitment",
				"customer_id", customerID,
				"error", err)
			resp.ReactivationError = err.Error()
		} else {
			resp.Reactivated = tally.Changed()
			if len(tally.Errors) > 0 {
				resp.ReactivationError = strings.Join(tally.Errors, "; ")
			}
		}
	}

	s.publish(ctx, types.EventPaymentCommitmentUpdated, customerID, acc)

	accResp, err := NewAccountService(s.ServiceParams).GetAccount(ctx, customerID)
	if err != nil {
		return nil, err
	}
	resp.Account = accResp
	return resp, nil
}

func (s *paymentCommitmentService) RemovePaymentCommitment(ctx context.Context, customerID string) (*dto.BillingAccountResponse, error) {
	var acc *account.BillingAccount
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.AccountRepo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if acc.PaymentCommitmentDate == nil {
			return nil
		}
		acc.ClearCommitment()
		acc.Touch(ctx, s.now())
		return s.AccountRepo.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payment commitment removed", "customer_id", customerID)
	s.publish(ctx, types.EventPaymentCommitmentRemoved, customerID, acc)

	return NewAccountService(s.ServiceParams).GetAccount(ctx, customerID)
}

func (s *paymentCommitmentService) ListActiveCommitments(ctx context.Context, filter *types.BillingAccountFilter) (*dto.ListBillingAccountsResponse, error) {
	if filter == nil {
		filter = types.NewBillingAccountFilter()
	}
	now := s.now()
	filter.LiveCommitmentAt = &now
	return NewAccountService(s.ServiceParams).ListAccounts(ctx, filter)
}
