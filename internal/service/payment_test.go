package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type PaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  PaymentService
	invoices InvoiceService
	testData struct {
		plan    *plan.Plan
		invoice *dto.InvoiceResponse
	}
}

func TestPaymentService(t *testing.T) {
	suite.Run(t, new(PaymentServiceSuite))
}

func (s *PaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewPaymentService(params)
	s.invoices = NewInvoiceService(params)

	s.testData.plan = s.CreatePlan("Home 50M", decimal.NewFromInt(100), "home-50m")
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "alice")

	resp, err := s.invoices.GenerateMonthlyDebt(s.GetContext())
	s.Require().NoError(err)
	item, ok := resp.ItemFor("cust_1")
	s.Require().True(ok)
	s.Require().NotNil(item.Invoice)
	s.testData.invoice = item.Invoice
}

func (s *PaymentServiceSuite) pay(amount, discount int64) (*dto.RecordPaymentResponse, error) {
	return s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		InvoiceID:  s.testData.invoice.ID,
		Amount:     decimal.NewFromInt(amount),
		Discount:   decimal.NewFromInt(discount),
		Method:     types.PaymentMethodCash,
		Reference:  "till-7",
	})
}

func (s *PaymentServiceSuite) TestRecordPayment_Partial() {
	resp, err := s.pay(40, 0)
	s.Require().NoError(err)

	s.Equal(types.PaymentStatusCompleted, resp.Payment.Status)
	s.NotEmpty(resp.Payment.ReceiptNumber)
	s.Equal(types.InvoiceStatusPartial, resp.Invoice.Status)
	s.True(decimal.NewFromInt(60).Equal(resp.Invoice.BalanceDue))
	s.True(decimal.NewFromInt(60).Equal(s.GetAccount("cust_1").Balance))
	s.NotNil(s.GetAccount("cust_1").LastPaymentDate)
	s.AssertLedgerConsistent("cust_1")

	s.True(resp.NotificationSent)
	s.Empty(resp.NotificationError)
	receipts := s.GetNotifier().MessagesOfKind(notification.KindReceipt)
	s.Require().Len(receipts, 1)
	s.NotNil(receipts[0].Attachment)
	s.Contains(receipts[0].Text, "60.00")
	s.Equal([]string{resp.Invoice.ID}, s.GetDocumentGenerator().Rendered())
	s.Contains(s.GetPublisher().Names(), types.EventPaymentRecorded)

	stored, err := s.service.GetPayment(s.GetContext(), resp.Payment.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.ReceiptLocation)
	s.Contains(*stored.ReceiptLocation, resp.Payment.ID)
}

func (s *PaymentServiceSuite) TestRecordPayment_PartialOnOverdueInvoice() {
	s.SetNow(s.testData.invoice.DueDate.Add(24 * time.Hour))
	marked, err := s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, marked.Updated)

	resp, err := s.pay(40, 0)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPartial, resp.Invoice.Status)
	s.True(decimal.NewFromInt(60).Equal(resp.Invoice.BalanceDue))

	// still past due, so the next daily run flags it again
	marked, err = s.invoices.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, marked.Updated)
	stored, err := s.invoices.GetInvoice(s.GetContext(), s.testData.invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, stored.Status)
}

func (s *PaymentServiceSuite) TestRecordPayment_GrossAboveBalanceDueIsRejected() {
	// net 100 fits the 100 due but the gross 110 would drive it negative
	_, err := s.pay(110, 10)
	s.Require().Error(err)
	s.True(ierr.IsInvalidOperation(err))

	inv, err := s.invoices.GetInvoice(s.GetContext(), s.testData.invoice.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(100).Equal(inv.BalanceDue))
	s.Equal(types.InvoiceStatusPending, inv.Status)
	s.True(decimal.NewFromInt(100).Equal(s.GetAccount("cust_1").Balance))
}

func (s *PaymentServiceSuite) TestRecordPayment_GrossNetAsymmetry() {
	// 100 billed, 90 collected with 10 forgiven: the invoice is settled by
	// the gross and the balance by net plus discount
	resp, err := s.pay(100, 10)
	s.Require().NoError(err)

	s.True(decimal.NewFromInt(90).Equal(resp.Payment.Amount))
	s.True(decimal.NewFromInt(10).Equal(resp.Payment.Discount))
	s.True(decimal.NewFromInt(100).Equal(resp.Payment.Gross))
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
	s.True(resp.Invoice.BalanceDue.IsZero())
	s.True(s.GetAccount("cust_1").Balance.IsZero())
	s.AssertLedgerConsistent("cust_1")

	entries, err := s.GetStores().LedgerRepo.List(s.GetContext(), &types.LedgerEntryFilter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		CustomerID:  "cust_1",
		PaymentID:   resp.Payment.ID,
	})
	s.Require().NoError(err)
	s.Len(entries, 2)
}

func (s *PaymentServiceSuite) TestRecordPayment_Overpayment() {
	_, err := s.pay(150, 0)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// gross over balance due even though net fits
	_, err = s.pay(120, 30)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))

	s.True(decimal.NewFromInt(100).Equal(s.GetAccount("cust_1").Balance))
	payments, err := s.service.ListPayments(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Zero(payments.Pagination.Total)
	s.GreaterOrEqual(s.GetDB().Rollbacks(), 1)
}

func (s *PaymentServiceSuite) TestRecordPayment_Validation() {
	cases := []struct {
		name string
		req  dto.RecordPaymentRequest
	}{
		{
			name: "zero amount",
			req:  dto.RecordPaymentRequest{CustomerID: "cust_1", Amount: decimal.Zero, Method: types.PaymentMethodCash},
		},
		{
			name: "discount above amount",
			req:  dto.RecordPaymentRequest{CustomerID: "cust_1", Amount: decimal.NewFromInt(5), Discount: decimal.NewFromInt(6), Method: types.PaymentMethodCash},
		},
		{
			name: "advance credit method",
			req:  dto.RecordPaymentRequest{CustomerID: "cust_1", Amount: decimal.NewFromInt(5), Method: types.PaymentMethodAdvanceCredit},
		},
		{
			name: "missing customer",
			req:  dto.RecordPaymentRequest{Amount: decimal.NewFromInt(5), Method: types.PaymentMethodCash},
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.RecordPayment(s.GetContext(), tc.req)
			s.True(ierr.IsValidation(err), "got %v", err)
		})
	}
}

func (s *PaymentServiceSuite) TestRecordPayment_ForeignInvoice() {
	_, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_other",
		InvoiceID:  s.testData.invoice.ID,
		Amount:     decimal.NewFromInt(10),
		Method:     types.PaymentMethodCash,
	})
	s.True(ierr.IsValidation(err))
}

func (s *PaymentServiceSuite) TestRecordPayment_Untargeted() {
	resp, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(30),
		Method:     types.PaymentMethodBankTransfer,
	})
	s.Require().NoError(err)
	s.Equal(types.InvoiceTypePayment, resp.Invoice.InvoiceType)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
	s.True(decimal.NewFromInt(70).Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")

	// the subscription invoice is untouched
	inv, err := s.invoices.GetInvoice(s.GetContext(), s.testData.invoice.ID)
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(100).Equal(inv.BalanceDue))
}

func (s *PaymentServiceSuite) TestRecordPayment_UntargetedAboveBalance() {
	_, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(130),
		Method:     types.PaymentMethodCash,
	})
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestRecordPayment_NotificationFailureKeepsPayment() {
	s.GetNotifier().SetError(ierr.NewError("gateway down").Mark(ierr.ErrExternal))
	s.GetDocumentGenerator().SetError(ierr.NewError("renderer down").Mark(ierr.ErrExternal))

	resp, err := s.pay(100, 0)
	s.Require().NoError(err)
	s.False(resp.NotificationSent)
	s.Contains(resp.NotificationError, "gateway down")
	s.True(s.GetAccount("cust_1").Balance.IsZero())
}

func (s *PaymentServiceSuite) TestRecordPayment_ReactivatesSettledCustomer() {
	s.suspend("cust_1")
	s.GetNetworkController().Reset()

	resp, err := s.pay(100, 0)
	s.Require().NoError(err)
	s.True(resp.Reactivated)
	s.Empty(resp.ReactivationError)

	acc := s.GetAccount("cust_1")
	s.Equal(types.AccountStatusActive, acc.Status)
	s.Nil(acc.SuspendedAt)
	s.Equal([]testutil.ProfileChange{{Username: "alice", Profile: "home-50m"}}, s.GetNetworkController().Calls())
}

func (s *PaymentServiceSuite) TestRecordPayment_PartialKeepsSuspension() {
	s.suspend("cust_1")

	resp, err := s.pay(50, 0)
	s.Require().NoError(err)
	s.False(resp.Reactivated)
	s.Equal(types.AccountStatusSuspended, s.GetAccount("cust_1").Status)
}

func (s *PaymentServiceSuite) TestVoidPayment() {
	resp, err := s.pay(100, 10)
	s.Require().NoError(err)

	voided, err := s.service.VoidPayment(s.GetContext(), resp.Payment.ID, dto.VoidPaymentRequest{Reason: "bounced"})
	s.Require().NoError(err)
	s.Equal(types.PaymentStatusCancelled, voided.Status)
	s.NotNil(voided.CancelledAt)

	inv, err := s.invoices.GetInvoice(s.GetContext(), s.testData.invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPending, inv.Status)
	s.True(decimal.NewFromInt(100).Equal(inv.BalanceDue))
	s.True(decimal.NewFromInt(100).Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")

	_, err = s.service.VoidPayment(s.GetContext(), resp.Payment.ID, dto.VoidPaymentRequest{})
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentServiceSuite) TestVoidPayment_UntargetedVoidsCarrier() {
	resp, err := s.service.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(30),
		Method:     types.PaymentMethodCash,
	})
	s.Require().NoError(err)

	_, err = s.service.VoidPayment(s.GetContext(), resp.Payment.ID, dto.VoidPaymentRequest{})
	s.Require().NoError(err)

	inv, err := s.invoices.GetInvoice(s.GetContext(), resp.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusVoid, inv.Status)
	s.True(decimal.NewFromInt(100).Equal(s.GetAccount("cust_1").Balance))
}

func (s *PaymentServiceSuite) TestListPayments() {
	_, err := s.pay(10, 0)
	s.Require().NoError(err)
	_, err = s.pay(20, 0)
	s.Require().NoError(err)

	filter := types.NewPaymentFilter()
	filter.CustomerID = "cust_1"
	resp, err := s.service.ListPayments(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(2, resp.Pagination.Total)
	total := lo.Reduce(resp.Items, func(acc decimal.Decimal, p *dto.PaymentResponse, _ int) decimal.Decimal {
		return acc.Add(p.Amount)
	}, decimal.Zero)
	s.True(decimal.NewFromInt(30).Equal(total))
}

func (s *PaymentServiceSuite) suspend(customerID string) {
	acc := s.GetAccount(customerID)
	s.Require().Equal(types.AccountStatusActive, acc.Status)
	tally, err := NewSuspensionService(newTestServiceParams(&s.BaseServiceTestSuite)).
		SuspendCustomer(s.GetContext(), customerID, types.SuspensionOptions{Reason: "test"})
	s.Require().NoError(err)
	s.Require().True(tally.Changed())
}
