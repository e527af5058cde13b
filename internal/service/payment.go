package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/payment"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/s3"
	"github.com/wispbill/wispbill/internal/types"
)

// PaymentService applies collected money to invoices and the account balance
type PaymentService interface {
	RecordPayment(ctx context.Context, req dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error)
	// VoidPayment reverses a completed payment
	VoidPayment(ctx context.Context, id string, req dto.VoidPaymentRequest) (*dto.PaymentResponse, error)
	GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error)
	ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error)
}

type paymentService struct {
	ServiceParams
}

func NewPaymentService(params ServiceParams) PaymentService {
	return &paymentService{ServiceParams: params}
}

func (s *paymentService) RecordPayment(ctx context.Context, req dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	gross := req.Amount.Round(2)
	discount := req.Discount.Round(2)
	net := req.Net()
	paidAt := s.now()
	if req.PaymentDate != nil {
		paidAt = req.PaymentDate.UTC()
	}

	var (
		p   *payment.Payment
		inv *invoice.Invoice
	)
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		acc, err := s.getOrCreateAccount(ctx, req.CustomerID)
		if err != nil {
			return err
		}

		if req.InvoiceID == "" {
			if net.GreaterThan(acc.Balance) {
				return ierr.NewError("payment exceeds outstanding balance").
					WithHint("An unassigned payment cannot exceed what the customer owes. Use an advance payment to prepay.").
					WithReportableDetails(map[string]any{
						"customer_id": req.CustomerID,
						"balance":     acc.Balance.String(),
						"amount":      net.String(),
					}).
					Mark(ierr.ErrInvalidOperation)
			}
			inv = s.newPaymentInvoice(ctx, req.CustomerID, gross, paidAt)
			if err := s.InvoiceRepo.Create(ctx, inv); err != nil {
				return err
			}
		} else {
			inv, err = s.InvoiceRepo.GetForUpdate(ctx, req.InvoiceID)
			if err != nil {
				return err
			}
			if err := s.checkTargetInvoice(inv, req.CustomerID, net); err != nil {
				return err
			}
		}

		p = newPayment(ctx, paidAt, inv, net, discount, req.Method)
		if req.Reference != "" {
			p.Reference = lo.ToPtr(req.Reference)
		}
		if req.Notes != "" {
			p.Notes = lo.ToPtr(req.Notes)
		}
		if err := s.PaymentRepo.Create(ctx, p); err != nil {
			return err
		}

		if err := inv.ApplyPayment(gross); err != nil {
			return err
		}
		inv.Touch(ctx, s.now())
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		refs := ledger.EntryParams{InvoiceID: inv.ID, PaymentID: p.ID}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeCredit, net,
			fmt.Sprintf("Payment %s", p.ReceiptNumber), refs); err != nil {
			return err
		}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeCredit, discount,
			fmt.Sprintf("Discount on payment %s", p.ReceiptNumber), refs); err != nil {
			return err
		}
		acc.LastPaymentDate = lo.ToPtr(paidAt)
		acc.Touch(ctx, s.now())
		return s.AccountRepo.Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payment recorded",
		"payment_id", p.ID,
		"customer_id", p.CustomerID,
		"invoice_id", inv.ID,
		"amount", p.Amount.String(),
		"discount", p.Discount.String(),
		"method", p.Method)
	if s.Metrics != nil {
		s.Metrics.PaymentsRecorded.WithLabelValues(string(p.Method)).Inc()
		s.Metrics.PaymentAmount.WithLabelValues(string(p.Method)).Add(p.Amount.InexactFloat64())
	}

	resp := &dto.RecordPaymentResponse{
		Payment: dto.NewPaymentResponse(p),
		Invoice: dto.NewInvoiceResponse(inv),
	}

	// everything below runs after commit and never undoes the payment
	if err := s.sendReceipt(ctx, p, inv); err != nil {
		resp.NotificationError = err.Error()
	} else {
		resp.NotificationSent = true
	}
	resp.Reactivated, resp.ReactivationError = s.reactivateIfSettled(ctx, p.CustomerID)

	s.publish(ctx, types.EventPaymentRecorded, p.CustomerID, resp.Payment)
	return resp, nil
}

func (s *paymentService) checkTargetInvoice(inv *invoice.Invoice, customerID string, net decimal.Decimal) error {
	if inv.CustomerID != customerID {
		return ierr.NewError("invoice belongs to another customer").
			WithHint("The invoice does not belong to this customer").
			WithReportableDetails(map[string]any{
				"invoice_id":  inv.ID,
				"customer_id": customerID,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := inv.CheckPayable(); err != nil {
		return err
	}
	if net.GreaterThan(inv.BalanceDue) {
		return ierr.NewError("payment exceeds invoice balance due").
			WithHintf("The invoice only has %s left to pay", inv.BalanceDue.StringFixed(2)).
			WithReportableDetails(map[string]any{
				"invoice_id":  inv.ID,
				"balance_due": inv.BalanceDue.String(),
				"amount":      net.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// newPaymentInvoice carries a payment that was not made against a bill
func (s *paymentService) newPaymentInvoice(ctx context.Context, customerID string, gross decimal.Decimal, paidAt time.Time) *invoice.Invoice {
	now := s.now()
	period := types.NewMonthlyPeriod(paidAt, s.location())
	inv := &invoice.Invoice{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:    customerID,
		InvoiceType:   types.InvoiceTypePayment,
		InvoiceNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		Status:        types.InvoiceStatusPending,
		PeriodStart:   period.Start.UTC(),
		PeriodEnd:     period.End.UTC(),
		DueDate:       paidAt,
		Subtotal:      gross,
		Tax:           decimal.Zero,
		Discount:      decimal.Zero,
		Total:         gross,
		BalanceDue:    gross,
		BaseModel:     types.GetDefaultBaseModel(ctx, now),
	}
	inv.NewItem(ctx, "Payment on account", decimal.NewFromInt(1), gross, "", now)
	return inv
}

func newPayment(ctx context.Context, paidAt time.Time, inv *invoice.Invoice, net, discount decimal.Decimal, method types.PaymentMethod) *payment.Payment {
	return &payment.Payment{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		CustomerID:    inv.CustomerID,
		InvoiceID:     inv.ID,
		Amount:        net.Round(2),
		Discount:      discount.Round(2),
		Method:        method,
		Status:        types.PaymentStatusCompleted,
		ReceiptNumber: types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_RECEIPT),
		PaymentDate:   paidAt.UTC(),
		BaseModel:     types.GetDefaultBaseModel(ctx, paidAt),
	}
}

// sendReceipt renders the invoice, stores it and notifies the customer.
// Only the notification decides the returned error; rendering and storage
// failures are reported and the receipt goes out without an attachment.
func (s *paymentService) sendReceipt(ctx context.Context, p *payment.Payment, inv *invoice.Invoice) error {
	var attachment *notification.Attachment

	doc, err := s.DocumentGenerator.RenderInvoice(ctx, inv.ID)
	if err != nil {
		s.reportExternal(ctx, systemDocument, p.CustomerID, err, "invoice_id", inv.ID)
	}
	if doc != nil {
		attachment = &notification.Attachment{
			Filename:    fmt.Sprintf("receipt-%s.pdf", p.ReceiptNumber),
			ContentType: doc.ContentType,
			Data:        doc.Data,
		}
		s.storeReceipt(ctx, p, doc.Data)
	}

	balance := decimal.Zero
	if acc, err := s.AccountRepo.Get(ctx, p.CustomerID); err == nil {
		balance = acc.Balance
	}

	result, err := s.Notifier.Send(ctx, &notification.Message{
		CustomerID: p.CustomerID,
		Kind:       notification.KindReceipt,
		Text: fmt.Sprintf("Payment received: %s %s (receipt %s). Remaining balance: %s %s.",
			s.Config.Billing.CurrencyLabel, p.Gross().StringFixed(2), p.ReceiptNumber,
			s.Config.Billing.CurrencyLabel, balance.StringFixed(2)),
		Attachment: attachment,
	})
	if err != nil {
		s.reportExternal(ctx, systemNotification, p.CustomerID, err, "payment_id", p.ID)
		return err
	}
	if result == nil || !result.Delivered {
		return ierr.NewError("receipt not delivered").
			WithHint("The notification gateway did not deliver the receipt").
			Mark(ierr.ErrExternal)
	}
	return nil
}

func (s *paymentService) storeReceipt(ctx context.Context, p *payment.Payment, data []byte) {
	if s.ReceiptStore == nil {
		return
	}
	location, err := s.ReceiptStore.UploadDocument(ctx, s3.NewPdfDocument(p.ID, data, s3.DocumentTypeReceipt))
	if err != nil {
		s.reportExternal(ctx, systemReceiptStore, p.CustomerID, err, "payment_id", p.ID)
		return
	}
	if err := s.PaymentRepo.SetReceiptLocation(ctx, p.ID, location); err != nil {
		s.Logger.Errorw("failed to stamp receipt location", "payment_id", p.ID, "error", err)
		return
	}
	p.ReceiptLocation = lo.ToPtr(location)
}

// reactivateIfSettled restores a suspended customer whose balance is settled
// or who holds a live commitment
func (s *paymentService) reactivateIfSettled(ctx context.Context, customerID string) (bool, string) {
	acc, err := s.AccountRepo.Get(ctx, customerID)
	if err != nil {
		return false, err.Error()
	}
	if !shouldReactivate(acc, s.now()) {
		return false, ""
	}

	tally, err := NewSuspensionService(s.ServiceParams).ReactivateCustomer(ctx, customerID)
	if err != nil {
		s.Logger.Errorw("failed to reactivate customer after payment",
			"customer_id", customerID,
			"error", err)
		return false, err.Error()
	}
	return tally.Outcome == types.SuspensionOutcomeReactivated, ""
}

func shouldReactivate(acc *account.BillingAccount, now time.Time) bool {
	return acc.Status == types.AccountStatusSuspended &&
		(!acc.HasDebt() || acc.HasLiveCommitment(now))
}

func (s *paymentService) VoidPayment(ctx context.Context, id string, req dto.VoidPaymentRequest) (*dto.PaymentResponse, error) {
	var p *payment.Payment
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.PaymentRepo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !p.IsCompleted() {
			return ierr.NewError("payment is not completed").
				WithHintf("Payment is %s and cannot be voided", p.Status).
				Mark(ierr.ErrInvalidOperation)
		}
		if p.Method == types.PaymentMethodAdvanceCredit {
			return ierr.NewError("advance credit payments cannot be voided").
				WithHint("Advance credit applied to an invoice is final").
				Mark(ierr.ErrInvalidOperation)
		}

		acc, err := s.getOrCreateAccount(ctx, p.CustomerID)
		if err != nil {
			return err
		}
		inv, err := s.InvoiceRepo.GetForUpdate(ctx, p.InvoiceID)
		if err != nil {
			return err
		}

		now := s.now()
		inv.ReversePayment(p.Gross(), now)
		if inv.InvoiceType == types.InvoiceTypePayment {
			inv.Void(ctx, "payment voided", now)
		}
		inv.Touch(ctx, now)
		if err := s.InvoiceRepo.Update(ctx, inv); err != nil {
			return err
		}

		refs := ledger.EntryParams{InvoiceID: inv.ID, PaymentID: p.ID}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeDebit, p.Amount,
			fmt.Sprintf("Void of payment %s", p.ReceiptNumber), refs); err != nil {
			return err
		}
		if err := s.postBalance(ctx, acc, types.LedgerEntryTypeDebit, p.Discount,
			fmt.Sprintf("Void of discount on payment %s", p.ReceiptNumber), refs); err != nil {
			return err
		}
		acc.Touch(ctx, now)
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}

		p.Status = types.PaymentStatusCancelled
		p.CancelledAt = lo.ToPtr(now)
		if req.Reason != "" {
			p.Notes = lo.ToPtr(req.Reason)
		}
		p.Touch(ctx, now)
		return s.PaymentRepo.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("payment voided", "payment_id", p.ID, "customer_id", p.CustomerID)
	resp := dto.NewPaymentResponse(p)
	s.publish(ctx, types.EventPaymentVoided, p.CustomerID, resp)
	return resp, nil
}

func (s *paymentService) GetPayment(ctx context.Context, id string) (*dto.PaymentResponse, error) {
	p, err := s.PaymentRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewPaymentResponse(p), nil
}

func (s *paymentService) ListPayments(ctx context.Context, filter *types.PaymentFilter) (*dto.ListPaymentsResponse, error) {
	if filter == nil {
		filter = types.NewPaymentFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	payments, err := s.PaymentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	count, err := s.PaymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(payments, func(p *payment.Payment, _ int) *dto.PaymentResponse {
		return dto.NewPaymentResponse(p)
	})
	resp := types.NewListResponse(items, count, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
