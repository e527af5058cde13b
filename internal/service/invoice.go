package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/plan"
	"github.com/wispbill/wispbill/internal/domain/proration"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/idempotency"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/types"
)

// InvoiceService generates monthly debt and manages invoices
type InvoiceService interface {
	// GenerateMonthlyDebt bills every customer with an active plan for the
	// month containing now
	GenerateMonthlyDebt(ctx context.Context) (*dto.GenerateDebtResponse, error)
	GenerateDebtForPeriod(ctx context.Context, period types.BillingPeriod) (*dto.GenerateDebtResponse, error)
	// GenerateCustomerDebt bills a single customer for the period
	GenerateCustomerDebt(ctx context.Context, customerID string, period types.BillingPeriod) (*dto.GenerateDebtItem, error)
	VoidInvoice(ctx context.Context, id string, req dto.VoidInvoiceRequest) (*dto.InvoiceResponse, error)
	MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error)
	GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error)
	ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error)
}

type invoiceService struct {
	ServiceParams
	idempGen *idempotency.Generator
}

func NewInvoiceService(params ServiceParams) InvoiceService {
	return &invoiceService{
		ServiceParams: params,
		idempGen:      idempotency.NewGenerator(),
	}
}

func (s *invoiceService) GenerateMonthlyDebt(ctx context.Context) (*dto.GenerateDebtResponse, error) {
	return s.GenerateDebtForPeriod(ctx, types.NewMonthlyPeriod(s.now(), s.location()))
}

func (s *invoiceService) GenerateDebtForPeriod(ctx context.Context, period types.BillingPeriod) (*dto.GenerateDebtResponse, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	if s.Metrics != nil {
		defer metrics.ObserveSince(s.Metrics.InvoiceRunSeconds, start)
	}

	customerIDs, err := s.PlanRepo.ListBillableCustomerIDs(ctx)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("generating monthly debt",
		"period", period.String(),
		"customers", len(customerIDs))

	resp := dto.NewGenerateDebtResponse(period)
	for _, customerID := range customerIDs {
		item, err := s.GenerateCustomerDebt(ctx, customerID, period)
		if err != nil {
			s.Logger.Errorw("failed to generate debt for customer",
				"customer_id", customerID,
				"period", period.String(),
				"error", err)
			s.Sentry.CaptureExceptionWithTags(err, map[string]string{"customer_id": customerID})
			item = &dto.GenerateDebtItem{
				CustomerID: customerID,
				Status:     types.BatchItemStatusFailed,
				Error:      err.Error(),
			}
		}
		if s.Metrics != nil {
			s.Metrics.InvoicesGenerated.WithLabelValues(string(item.Status)).Inc()
		}
		resp.Add(*item)
	}

	s.Logger.Infow("monthly debt generated",
		"period", period.String(),
		"billed", resp.Billed,
		"skipped", resp.Skipped,
		"failed", resp.Failed)

	return resp, nil
}

// charge is one priced plan of the period
type charge struct {
	customerPlan *plan.CustomerPlan
	plan         *plan.Plan
	result       *proration.ProrationResult
}

func (s *invoiceService) GenerateCustomerDebt(ctx context.Context, customerID string, period types.BillingPeriod) (*dto.GenerateDebtItem, error) {
	charges, err := s.priceCustomer(ctx, customerID, period)
	if err != nil {
		return nil, err
	}
	candidate := lo.Reduce(charges, func(acc decimal.Decimal, c charge, _ int) decimal.Decimal {
		return acc.Add(c.result.Amount)
	}, decimal.Zero).Round(2)

	item := &dto.GenerateDebtItem{CustomerID: customerID}
	var created *invoice.Invoice

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		acc, err := s.getOrCreateAccount(ctx, customerID)
		if err != nil {
			return err
		}

		credit := decimal.Min(acc.AvailableCredit(), candidate).Round(2)
		if !candidate.Sub(credit).IsPositive() {
			item.Status = types.BatchItemStatusSkippedNoCharge
			return nil
		}

		overlapping, err := s.InvoiceRepo.FindOverlapping(ctx, customerID, period)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			item.Status = types.BatchItemStatusSkippedAlreadyBilled
			return nil
		}

		inv := s.buildInvoice(ctx, customerID, period, charges, candidate, credit)
		if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
			return err
		}

		refs := ledger.EntryParams{InvoiceID: inv.ID}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeDebit, inv.Total,
			fmt.Sprintf("Invoice %s for %s", inv.InvoiceNumber, period.Key()), refs); err != nil {
			return err
		}
		// the credit applied as discount is consumed from the balance
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeDebit, credit,
			fmt.Sprintf("Credit applied to invoice %s", inv.InvoiceNumber), refs); err != nil {
			return err
		}
		acc.Touch(ctx, s.now())
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}

		created = inv
		item.Status = types.BatchItemStatusBilled
		return nil
	})
	if err != nil {
		if ierr.IsAlreadyExists(err) {
			// a concurrent run billed the period first
			return &dto.GenerateDebtItem{
				CustomerID: customerID,
				Status:     types.BatchItemStatusSkippedAlreadyBilled,
			}, nil
		}
		return nil, err
	}

	if created == nil {
		return item, nil
	}

	item.Invoice = dto.NewInvoiceResponse(created)
	if applied := s.applyAdvanceAfterBilling(ctx, created, period); applied != nil {
		item.Invoice = applied.Invoice
	}
	s.publish(ctx, types.EventInvoiceGenerated, customerID, item.Invoice)
	return item, nil
}

func (s *invoiceService) priceCustomer(ctx context.Context, customerID string, period types.BillingPeriod) ([]charge, error) {
	customerPlans, err := s.PlanRepo.ListCustomerPlans(ctx, customerID, types.CustomerPlanStatusActive)
	if err != nil {
		return nil, err
	}

	charges := make([]charge, 0, len(customerPlans))
	for _, cp := range customerPlans {
		p, err := s.PlanRepo.GetPlan(ctx, cp.PlanID)
		if err != nil {
			return nil, err
		}
		result, err := s.ProrationCalculator.Calculate(ctx, proration.ProrationParams{
			CustomerPlanID: cp.ID,
			MonthlyPrice:   cp.MonthlyPrice,
			StartDate:      cp.StartDate,
			Period:         period,
		})
		if err != nil {
			return nil, err
		}
		if !result.Billable || !result.Amount.IsPositive() {
			continue
		}
		charges = append(charges, charge{customerPlan: cp, plan: p, result: result})
	}
	return charges, nil
}

func (s *invoiceService) buildInvoice(ctx context.Context, customerID string, period types.BillingPeriod, charges []charge, candidate, credit decimal.Decimal) *invoice.Invoice {
	now := s.now()
	taxable := candidate.Sub(credit)
	tax := taxable.Mul(s.Config.Billing.Tax()).Round(2)
	total := taxable.Add(tax).Round(2)
	key := s.idempGen.SubscriptionInvoiceKey(customerID, period)

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     customerID,
		InvoiceType:    types.InvoiceTypeSubscription,
		InvoiceNumber:  types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		Status:         types.InvoiceStatusPending,
		PeriodStart:    period.Start.UTC(),
		PeriodEnd:      period.End.UTC(),
		DueDate:        period.End.AddDate(0, 0, s.Config.Billing.DueDays).UTC(),
		Subtotal:       candidate,
		Tax:            tax,
		Discount:       credit,
		Total:          total,
		BalanceDue:     total,
		IdempotencyKey: &key,
		BaseModel:      types.GetDefaultBaseModel(ctx, now),
	}

	for _, c := range charges {
		description := fmt.Sprintf("%s (%s)", c.plan.Name, period.Key())
		if c.result.Prorated {
			description = fmt.Sprintf("%s (%s, %d/%d days)", c.plan.Name, period.Key(), c.result.RemainingDays, c.result.TotalDays)
		}
		inv.NewItem(ctx, description, decimal.NewFromInt(1), c.result.Amount, c.customerPlan.ID, now)
	}
	return inv
}

// applyAdvanceAfterBilling draws the month's prepayment onto the new invoice.
// Failures leave the allocation PENDING for the reconciliation job.
func (s *invoiceService) applyAdvanceAfterBilling(ctx context.Context, inv *invoice.Invoice, period types.BillingPeriod) *dto.ApplyAdvanceResponse {
	target := period.Month()
	applied, err := NewAdvancePaymentService(s.ServiceParams).ApplyAdvancePaymentToInvoice(ctx, dto.ApplyAdvanceRequest{
		CustomerID: inv.CustomerID,
		InvoiceID:  inv.ID,
		Month:      target.Month,
		Year:       target.Year,
	})
	if err != nil {
		s.Logger.Errorw("failed to apply advance payment after billing",
			"customer_id", inv.CustomerID,
			"invoice_id", inv.ID,
			"error", err)
		return nil
	}
	return applied
}

func (s *invoiceService) VoidInvoice(ctx context.Context, id string, req dto.VoidInvoiceRequest) (*dto.InvoiceResponse, error) {
	var voided *invoice.Invoice
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status == types.InvoiceStatusVoid || inv.Status == types.InvoiceStatusCancelled {
			return ierr.NewError("invoice already voided").
				WithHintf("Invoice is already %s", inv.Status).
				Mark(ierr.ErrInvalidOperation)
		}

		paid, err := s.PaymentRepo.Count(ctx, &types.PaymentFilter{
			QueryFilter:   types.NewNoLimitQueryFilter(),
			InvoiceID:     inv.ID,
			PaymentStatus: []types.PaymentStatus{types.PaymentStatusCompleted},
		})
		if err != nil {
			return err
		}
		if paid > 0 {
			return ierr.NewError("invoice has payments").
				WithHint("Void the payments applied to this invoice first").
				WithReportableDetails(map[string]any{
					"invoice_id": inv.ID,
					"payments":   paid,
				}).
				Mark(ierr.ErrInvalidOperation)
		}

		acc, err := s.getOrCreateAccount(ctx, inv.CustomerID)
		if err != nil {
			return err
		}
		refs := ledger.EntryParams{InvoiceID: inv.ID}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeCredit, inv.Total,
			fmt.Sprintf("Void of invoice %s", inv.InvoiceNumber), refs); err != nil {
			return err
		}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeCredit, inv.Discount,
			fmt.Sprintf("Credit restored from invoice %s", inv.InvoiceNumber), refs); err != nil {
			return err
		}
		acc.Touch(ctx, s.now())
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}

		inv.Void(ctx, req.Reason, s.now())
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		voided = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := dto.NewInvoiceResponse(voided)
	s.publish(ctx, types.EventInvoiceVoided, voided.CustomerID, resp)
	return resp, nil
}

func (s *invoiceService) MarkOverdueInvoices(ctx context.Context) (*dto.MarkOverdueResponse, error) {
	now := s.now()
	var updated int
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.InvoiceRepo.MarkOverdue(ctx, &types.InvoiceFilter{DueBefore: &now})
		return err
	})
	if err != nil {
		return nil, err
	}
	if updated > 0 {
		s.Logger.Infow("invoices marked overdue", "count", updated)
	}
	return &dto.MarkOverdueResponse{Updated: updated}, nil
}

func (s *invoiceService) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	inv, err := s.InvoiceRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewInvoiceResponse(inv), nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter *types.InvoiceFilter) (*dto.ListInvoicesResponse, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	invoices, err := s.InvoiceRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.InvoiceRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(invoices, func(inv *invoice.Invoice, _ int) *dto.InvoiceResponse {
		return dto.NewInvoiceResponse(inv)
	})
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
