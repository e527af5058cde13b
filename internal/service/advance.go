package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/advance"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/payment"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// AdvancePaymentService manages money received ahead of the months it pays for
type AdvancePaymentService interface {
	CreateAdvancePayment(ctx context.Context, req dto.CreateAdvancePaymentRequest) (*dto.AdvancePaymentResponse, error)
	// ApplyAdvancePaymentToInvoice draws the month's PENDING allocation onto
	// the invoice. It returns nil when there is nothing to apply.
	ApplyAdvancePaymentToInvoice(ctx context.Context, req dto.ApplyAdvanceRequest) (*dto.ApplyAdvanceResponse, error)
	// ApplyToPendingInvoices reconciles every open subscription invoice that
	// has started with its month's allocation
	ApplyToPendingInvoices(ctx context.Context) (*dto.ApplyPendingResponse, error)
	DeleteAdvancePayment(ctx context.Context, id string) error
	GetAdvancePayment(ctx context.Context, id string) (*dto.AdvancePaymentResponse, error)
	ListAdvancePayments(ctx context.Context, filter *types.AdvancePaymentFilter) (*dto.ListAdvancePaymentsResponse, error)
}

type advancePaymentService struct {
	ServiceParams
}

func NewAdvancePaymentService(params ServiceParams) AdvancePaymentService {
	return &advancePaymentService{ServiceParams: params}
}

func (s *advancePaymentService) CreateAdvancePayment(ctx context.Context, req dto.CreateAdvancePaymentRequest) (*dto.AdvancePaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	ap := &advance.AdvancePayment{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADVANCE_PAYMENT),
		CustomerID:  req.CustomerID,
		TotalAmount: req.Total(),
		Method:      req.Method,
		Status:      types.AdvancePaymentStatusActive,
		BaseModel:   types.GetDefaultBaseModel(ctx, now),
	}
	if req.Reference != "" {
		ap.Reference = lo.ToPtr(req.Reference)
	}
	if req.Notes != "" {
		ap.Notes = lo.ToPtr(req.Notes)
	}
	for _, m := range req.Months {
		ap.Allocations = append(ap.Allocations, &advance.MonthlyAllocation{
			ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADVANCE_MONTHLY_PAYMENT),
			AdvancePaymentID: ap.ID,
			CustomerID:       req.CustomerID,
			Month:            m.Month,
			Year:             m.Year,
			Amount:           m.Amount.Round(2),
			Status:           types.AdvanceAllocationStatusPending,
			BaseModel:        types.GetDefaultBaseModel(ctx, now),
		})
	}

	targets := lo.Map(req.Months, func(m dto.AdvanceMonthRequest, _ int) types.BillingMonth {
		return m.Target()
	})

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		// the account row lock serialises prepayments of one customer
		if _, err := s.getOrCreateAccount(ctx, req.CustomerID); err != nil {
			return err
		}

		taken, err := s.AdvanceRepo.ListPendingTargets(ctx, req.CustomerID, targets)
		if err != nil {
			return err
		}
		if len(taken) > 0 {
			return ierr.NewError("months already prepaid").
				WithHintf("These months already have a pending advance payment: %s", formatMonths(taken)).
				WithReportableDetails(map[string]any{
					"customer_id": req.CustomerID,
					"months":      taken,
				}).
				Mark(ierr.ErrAlreadyExists)
		}

		if err := s.AdvanceRepo.Create(ctx, ap); err != nil {
			return err
		}
		return s.postAdvance(ctx, req.CustomerID, types.LedgerEntryTypeCredit, ap.TotalAmount,
			fmt.Sprintf("Advance payment for %s", formatMonths(targets)),
			ledger.EntryParams{AdvancePaymentID: ap.ID})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("advance payment created",
		"advance_payment_id", ap.ID,
		"customer_id", ap.CustomerID,
		"total", ap.TotalAmount.String(),
		"months", len(ap.Allocations))

	resp := dto.NewAdvancePaymentResponse(ap)
	s.publish(ctx, types.EventAdvancePaymentCreated, ap.CustomerID, resp)
	return resp, nil
}

func (s *advancePaymentService) ApplyAdvancePaymentToInvoice(ctx context.Context, req dto.ApplyAdvanceRequest) (*dto.ApplyAdvanceResponse, error) {
	var resp *dto.ApplyAdvanceResponse
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		resp = nil

		alloc, err := s.AdvanceRepo.FindPendingAllocation(ctx, req.CustomerID, req.Target())
		if err != nil {
			if ierr.IsNotFound(err) {
				return nil
			}
			return err
		}

		inv, err := s.InvoiceRepo.GetForUpdate(ctx, req.InvoiceID)
		if err != nil {
			return err
		}
		if inv.CustomerID != req.CustomerID {
			return ierr.NewError("invoice belongs to another customer").
				WithHint("The invoice does not belong to this customer").
				WithReportableDetails(map[string]any{
					"invoice_id":  inv.ID,
					"customer_id": req.CustomerID,
				}).
				Mark(ierr.ErrValidation)
		}
		if !inv.Status.OccupiesPeriod() {
			return ierr.NewError("invoice is void").
				WithHintf("Advance credit cannot be applied to a %s invoice", inv.Status).
				Mark(ierr.ErrInvalidOperation)
		}

		acc, err := s.getOrCreateAccount(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		now := s.now()
		ok, err := s.AdvanceRepo.MarkAllocationApplied(ctx, alloc.ID, inv.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// applied by a concurrent caller
			return nil
		}

		applied := decimal.Min(alloc.Amount, inv.BalanceDue).Round(2)
		var p *payment.Payment
		if applied.IsPositive() {
			p = newPayment(ctx, now, inv, applied, decimal.Zero, types.PaymentMethodAdvanceCredit)
			p.Reference = lo.ToPtr(alloc.AdvancePaymentID)
			p.Notes = lo.ToPtr(fmt.Sprintf("Advance payment for %02d/%d", alloc.Month, alloc.Year))
			if err := s.PaymentRepo.Create(ctx, p); err != nil {
				return err
			}
			if err := inv.ApplyPayment(applied); err != nil {
				return err
			}
			inv.Touch(ctx, now)
			if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
		}

		refs := ledger.EntryParams{
			InvoiceID:        inv.ID,
			AdvancePaymentID: alloc.AdvancePaymentID,
		}
		if p != nil {
			refs.PaymentID = p.ID
		}
		description := fmt.Sprintf("Advance payment applied to invoice %s", inv.InvoiceNumber)
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeCredit, alloc.Amount, description, refs); err != nil {
			return err
		}
		if err := s.postAdvance(ctx, req.CustomerID, types.LedgerEntryTypeDebit, alloc.Amount, description, refs); err != nil {
			return err
		}
		acc.Touch(ctx, now)
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}

		resp = &dto.ApplyAdvanceResponse{
			AllocationID: alloc.ID,
			Amount:       alloc.Amount,
			Applied:      applied,
			Surplus:      alloc.Amount.Sub(applied),
			Payment:      dto.NewPaymentResponse(p),
			Invoice:      dto.NewInvoiceResponse(inv),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}

	s.Logger.Infow("advance payment applied",
		"customer_id", req.CustomerID,
		"invoice_id", req.InvoiceID,
		"allocation_id", resp.AllocationID,
		"applied", resp.Applied.String(),
		"surplus", resp.Surplus.String())
	if s.Metrics != nil {
		s.Metrics.AdvanceAllocationsApplied.Inc()
	}
	s.publish(ctx, types.EventAdvancePaymentApplied, req.CustomerID, resp)
	return resp, nil
}

func (s *advancePaymentService) ApplyToPendingInvoices(ctx context.Context) (*dto.ApplyPendingResponse, error) {
	now := s.now()
	invoices, err := s.InvoiceRepo.List(ctx, &types.InvoiceFilter{
		QueryFilter:       types.NewNoLimitQueryFilter(),
		InvoiceType:       types.InvoiceTypeSubscription,
		InvoiceStatus:     types.InvoiceStatusOpen,
		PeriodStartBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.ApplyPendingResponse{TotalInvoices: len(invoices)}
	for _, inv := range invoices {
		target := s.invoiceMonth(inv)
		applied, err := s.ApplyAdvancePaymentToInvoice(ctx, dto.ApplyAdvanceRequest{
			CustomerID: inv.CustomerID,
			InvoiceID:  inv.ID,
			Month:      target.Month,
			Year:       target.Year,
		})
		if err != nil {
			s.Logger.Errorw("failed to apply advance payment",
				"customer_id", inv.CustomerID,
				"invoice_id", inv.ID,
				"error", err)
			resp.AddError(inv.ID, err)
			continue
		}
		if applied != nil {
			resp.AppliedCount++
		}
	}

	s.Logger.Infow("advance payments reconciled",
		"applied", resp.AppliedCount,
		"invoices", resp.TotalInvoices)
	return resp, nil
}

// invoiceMonth is the billing month of the invoice in the billing timezone
func (s *advancePaymentService) invoiceMonth(inv *invoice.Invoice) types.BillingMonth {
	return types.NewMonthlyPeriod(inv.PeriodStart, s.location()).Month()
}

func (s *advancePaymentService) DeleteAdvancePayment(ctx context.Context, id string) error {
	var ap *advance.AdvancePayment
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		ap, err = s.AdvanceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ap.Status == types.AdvancePaymentStatusCancelled {
			return ierr.NewError("advance payment already deleted").
				WithHint("This advance payment was already deleted").
				Mark(ierr.ErrInvalidOperation)
		}
		if ap.HasApplied() {
			return ierr.NewError("advance payment already applied").
				WithHint("An advance payment cannot be deleted once a month has been applied").
				WithReportableDetails(map[string]any{"advance_payment_id": id}).
				Mark(ierr.ErrInvalidOperation)
		}

		pending := ap.PendingAmount()
		if _, err := s.AdvanceRepo.CancelPendingAllocations(ctx, ap.ID); err != nil {
			return err
		}
		if err := s.AdvanceRepo.UpdateStatus(ctx, ap.ID, types.AdvancePaymentStatusCancelled); err != nil {
			return err
		}
		return s.postAdvance(ctx, ap.CustomerID, types.LedgerEntryTypeDebit, pending,
			"Advance payment deleted", ledger.EntryParams{AdvancePaymentID: ap.ID})
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("advance payment deleted", "advance_payment_id", id, "customer_id", ap.CustomerID)
	s.publish(ctx, types.EventAdvancePaymentDeleted, ap.CustomerID, map[string]string{"advance_payment_id": id})
	return nil
}

func (s *advancePaymentService) GetAdvancePayment(ctx context.Context, id string) (*dto.AdvancePaymentResponse, error) {
	ap, err := s.AdvanceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewAdvancePaymentResponse(ap), nil
}

func (s *advancePaymentService) ListAdvancePayments(ctx context.Context, filter *types.AdvancePaymentFilter) (*dto.ListAdvancePaymentsResponse, error) {
	if filter == nil {
		filter = types.NewAdvancePaymentFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	aps, err := s.AdvanceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.AdvanceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(aps, func(ap *advance.AdvancePayment, _ int) *dto.AdvancePaymentResponse {
		return dto.NewAdvancePaymentResponse(ap)
	})
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func formatMonths(months []types.BillingMonth) string {
	return strings.Join(lo.Map(months, func(m types.BillingMonth, _ int) string {
		return fmt.Sprintf("%02d/%d", m.Month, m.Year)
	}), ", ")
}
