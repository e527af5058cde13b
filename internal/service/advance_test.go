package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/api/dto"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type AdvancePaymentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  AdvancePaymentService
	invoices InvoiceService
	accounts AccountService
}

func TestAdvancePaymentService(t *testing.T) {
	suite.Run(t, new(AdvancePaymentServiceSuite))
}

func (s *AdvancePaymentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewAdvancePaymentService(params)
	s.invoices = NewInvoiceService(params)
	s.accounts = NewAccountService(params)

	p := s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
	s.Subscribe("cust_1", p, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "")
}

func (s *AdvancePaymentServiceSuite) prepay(months ...dto.AdvanceMonthRequest) (*dto.AdvancePaymentResponse, error) {
	return s.service.CreateAdvancePayment(s.GetContext(), dto.CreateAdvancePaymentRequest{
		CustomerID: "cust_1",
		Months:     months,
		Method:     types.PaymentMethodCash,
		Reference:  "counter",
	})
}

func month(m, y int, amount int64) dto.AdvanceMonthRequest {
	return dto.AdvanceMonthRequest{Month: m, Year: y, Amount: decimal.NewFromInt(amount)}
}

func (s *AdvancePaymentServiceSuite) billMarch() *dto.InvoiceResponse {
	resp, err := s.invoices.GenerateMonthlyDebt(s.GetContext())
	s.Require().NoError(err)
	item, ok := resp.ItemFor("cust_1")
	s.Require().True(ok)
	s.Require().NotNil(item.Invoice)
	return item.Invoice
}

func (s *AdvancePaymentServiceSuite) TestCreateAdvancePayment() {
	resp, err := s.prepay(month(4, 2024, 30), month(5, 2024, 30))
	s.Require().NoError(err)

	s.Equal(types.AdvancePaymentStatusActive, resp.AdvancePayment.Status)
	s.True(decimal.NewFromInt(60).Equal(resp.AdvancePayment.TotalAmount))
	s.True(decimal.NewFromInt(60).Equal(resp.PendingAmount))
	s.Require().Len(resp.MonthlyPayments, 2)
	s.Equal(4, resp.MonthlyPayments[0].Month)
	s.Equal(types.AdvanceAllocationStatusPending, resp.MonthlyPayments[0].Status)

	// prepaid money stays out of the balance until a month is applied
	acc, err := s.accounts.GetAccount(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.True(acc.Balance.IsZero())
	s.True(decimal.NewFromInt(60).Equal(acc.AdvanceCredit))
	s.Contains(s.GetPublisher().Names(), types.EventAdvancePaymentCreated)
}

func (s *AdvancePaymentServiceSuite) TestCreateAdvancePayment_MonthAlreadyPending() {
	_, err := s.prepay(month(4, 2024, 30))
	s.Require().NoError(err)

	_, err = s.prepay(month(5, 2024, 30), month(4, 2024, 10))
	s.True(ierr.IsAlreadyExists(err))

	list, err := s.service.ListAdvancePayments(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(1, list.Pagination.Total)
}

func (s *AdvancePaymentServiceSuite) TestCreateAdvancePayment_Validation() {
	_, err := s.prepay(month(4, 2024, 30), month(4, 2024, 30))
	s.True(ierr.IsValidation(err))

	_, err = s.prepay(month(13, 2024, 30))
	s.True(ierr.IsValidation(err))

	_, err = s.prepay()
	s.True(ierr.IsValidation(err))
}

func (s *AdvancePaymentServiceSuite) TestApplyToPendingInvoices_Idempotent() {
	inv := s.billMarch()
	_, err := s.prepay(month(3, 2024, 30))
	s.Require().NoError(err)

	first, err := s.service.ApplyToPendingInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, first.AppliedCount)
	s.Empty(first.Errors)

	second, err := s.service.ApplyToPendingInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Zero(second.AppliedCount)

	paid, err := s.invoices.GetInvoice(s.GetContext(), inv.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusPaid, paid.Status)

	payments, err := s.GetStores().PaymentRepo.Count(s.GetContext(), &types.PaymentFilter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceID:     inv.ID,
		PaymentMethod: types.PaymentMethodAdvanceCredit,
	})
	s.Require().NoError(err)
	s.Equal(1, payments)
	s.True(s.GetAccount("cust_1").Balance.IsZero())
	s.AssertLedgerConsistent("cust_1")
}

func (s *AdvancePaymentServiceSuite) TestApplyAdvancePaymentToInvoice_SurplusBecomesCredit() {
	inv := s.billMarch()
	_, err := s.prepay(month(3, 2024, 50))
	s.Require().NoError(err)

	resp, err := s.service.ApplyAdvancePaymentToInvoice(s.GetContext(), dto.ApplyAdvanceRequest{
		CustomerID: "cust_1",
		InvoiceID:  inv.ID,
		Month:      3,
		Year:       2024,
	})
	s.Require().NoError(err)
	s.Require().NotNil(resp)
	s.True(decimal.NewFromInt(30).Equal(resp.Applied))
	s.True(decimal.NewFromInt(20).Equal(resp.Surplus))
	s.Require().NotNil(resp.Payment)
	s.Equal(types.PaymentMethodAdvanceCredit, resp.Payment.Method)

	acc, err := s.accounts.GetAccount(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(-20).Equal(acc.Balance))
	s.True(decimal.NewFromInt(20).Equal(acc.AvailableCredit))
	s.True(acc.AdvanceCredit.IsZero())
	s.AssertLedgerConsistent("cust_1")

	again, err := s.service.ApplyAdvancePaymentToInvoice(s.GetContext(), dto.ApplyAdvanceRequest{
		CustomerID: "cust_1",
		InvoiceID:  inv.ID,
		Month:      3,
		Year:       2024,
	})
	s.Require().NoError(err)
	s.Nil(again)
}

func (s *AdvancePaymentServiceSuite) TestApplyAdvancePaymentToInvoice_VoidInvoice() {
	inv := s.billMarch()
	_, err := s.invoices.VoidInvoice(s.GetContext(), inv.ID, dto.VoidInvoiceRequest{})
	s.Require().NoError(err)
	_, err = s.prepay(month(3, 2024, 30))
	s.Require().NoError(err)

	_, err = s.service.ApplyAdvancePaymentToInvoice(s.GetContext(), dto.ApplyAdvanceRequest{
		CustomerID: "cust_1",
		InvoiceID:  inv.ID,
		Month:      3,
		Year:       2024,
	})
	s.True(ierr.IsInvalidOperation(err))

	// the allocation is still pending
	acc, err := s.accounts.GetAccount(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(30).Equal(acc.AdvanceCredit))
}

func (s *AdvancePaymentServiceSuite) TestDeleteAdvancePayment() {
	resp, err := s.prepay(month(4, 2024, 30), month(5, 2024, 25))
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeleteAdvancePayment(s.GetContext(), resp.AdvancePayment.ID))

	got, err := s.service.GetAdvancePayment(s.GetContext(), resp.AdvancePayment.ID)
	s.Require().NoError(err)
	s.Equal(types.AdvancePaymentStatusCancelled, got.AdvancePayment.Status)
	s.True(got.PendingAmount.IsZero())
	for _, a := range got.MonthlyPayments {
		s.Equal(types.AdvanceAllocationStatusCancelled, a.Status)
	}
	s.True(s.GetStores().LedgerRepo.Sum("cust_1", types.LedgerBookAdvance).IsZero())

	err = s.service.DeleteAdvancePayment(s.GetContext(), resp.AdvancePayment.ID)
	s.True(ierr.IsInvalidOperation(err))

	// the month can be prepaid again
	_, err = s.prepay(month(4, 2024, 30))
	s.NoError(err)
}

func (s *AdvancePaymentServiceSuite) TestDeleteAdvancePayment_AfterApply() {
	s.billMarch()
	resp, err := s.prepay(month(3, 2024, 30), month(4, 2024, 30))
	s.Require().NoError(err)
	_, err = s.service.ApplyToPendingInvoices(s.GetContext())
	s.Require().NoError(err)

	err = s.service.DeleteAdvancePayment(s.GetContext(), resp.AdvancePayment.ID)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *AdvancePaymentServiceSuite) TestDeleteAdvancePayment_NotFound() {
	err := s.service.DeleteAdvancePayment(s.GetContext(), "adv_missing")
	s.True(ierr.IsNotFound(err))
}
