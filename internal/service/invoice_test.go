package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/api/dto"
	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type InvoiceServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  InvoiceService
	payments PaymentService
	advances AdvancePaymentService
	testData struct {
		plan *plan.Plan
	}
}

func TestInvoiceService(t *testing.T) {
	suite.Run(t, new(InvoiceServiceSuite))
}

func (s *InvoiceServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewInvoiceService(params)
	s.payments = NewPaymentService(params)
	s.advances = NewAdvancePaymentService(params)
	s.testData.plan = s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
}

func (s *InvoiceServiceSuite) generate() *dto.GenerateDebtResponse {
	resp, err := s.service.GenerateMonthlyDebt(s.GetContext())
	s.Require().NoError(err)
	return resp
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_FullMonth() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	s.Equal(1, resp.Billed)

	item, ok := resp.ItemFor("cust_1")
	s.Require().True(ok)
	s.Equal(types.BatchItemStatusBilled, item.Status)
	s.Require().NotNil(item.Invoice)

	inv := item.Invoice
	s.Equal(types.InvoiceTypeSubscription, inv.InvoiceType)
	s.Equal(types.InvoiceStatusPending, inv.Status)
	s.True(decimal.NewFromInt(30).Equal(inv.Total))
	s.True(inv.Total.Equal(inv.BalanceDue))
	s.Equal(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), inv.PeriodStart)
	s.Equal(time.Date(2024, time.March, 31, 23, 59, 59, 0, time.UTC), inv.PeriodEnd)
	s.Equal(time.Date(2024, time.April, 7, 23, 59, 59, 0, time.UTC), inv.DueDate)
	s.Require().Len(inv.Items, 1)
	s.Equal("Home 20M (2024-03)", inv.Items[0].Description)

	s.True(decimal.NewFromInt(30).Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")
	s.Contains(s.GetPublisher().Names(), types.EventInvoiceGenerated)
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_TotalsHoldWithTaxAndCredit() {
	s.GetConfig().Billing.TaxRate = 0.16
	s.SeedAccount("cust_1", decimal.NewFromInt(-10))
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	item, _ := resp.ItemFor("cust_1")
	s.Require().NotNil(item.Invoice)
	inv := item.Invoice

	s.True(decimal.NewFromInt(30).Equal(inv.Subtotal))
	s.True(decimal.NewFromInt(10).Equal(inv.Discount))
	s.True(decimal.RequireFromString("3.20").Equal(inv.Tax))
	s.True(decimal.RequireFromString("23.20").Equal(inv.Total))
	s.True(inv.Subtotal.Add(inv.Tax).Sub(inv.Discount).Equal(inv.Total))

	// prior credit is consumed and the new total becomes debt
	s.True(decimal.RequireFromString("23.20").Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_CreditCoversEverything() {
	s.SeedAccount("cust_1", decimal.NewFromInt(-50))
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	s.Equal(1, resp.Skipped)
	item, _ := resp.ItemFor("cust_1")
	s.Equal(types.BatchItemStatusSkippedNoCharge, item.Status)
	s.True(decimal.NewFromInt(-50).Equal(s.GetAccount("cust_1").Balance))

	count, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_Prorated() {
	// 31 day month, price 31.00, starting on day 15 leaves 17 days
	p := s.CreatePlan("Home 31", decimal.NewFromInt(31), "home-31")
	s.Subscribe("cust_1", p, time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC), "")

	resp := s.generate()
	item, _ := resp.ItemFor("cust_1")
	s.Require().NotNil(item.Invoice)
	s.True(decimal.NewFromInt(17).Equal(item.Invoice.Total))
	s.Equal("Home 31 (2024-03, 17/31 days)", item.Invoice.Items[0].Description)
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_NotStartedYet() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.April, 2, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	item, _ := resp.ItemFor("cust_1")
	s.Equal(types.BatchItemStatusSkippedNoCharge, item.Status)
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_SecondRunIsSkipped() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	s.Subscribe("cust_2", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")

	first := s.generate()
	s.Equal(2, first.Billed)

	second := s.generate()
	s.Zero(second.Billed)
	s.Equal(2, second.Skipped)
	for _, item := range second.Items {
		s.Equal(types.BatchItemStatusSkippedAlreadyBilled, item.Status)
	}

	count, err := s.GetStores().InvoiceRepo.Count(s.GetContext(), types.NewNoLimitInvoiceFilter())
	s.Require().NoError(err)
	s.Equal(2, count)
	s.True(decimal.NewFromInt(30).Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")
	s.AssertLedgerConsistent("cust_2")
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_PaymentInvoiceDoesNotBlockPeriod() {
	s.SeedAccount("cust_1", decimal.NewFromInt(20))
	_, err := s.payments.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		Amount:     decimal.NewFromInt(20),
		Method:     types.PaymentMethodCash,
	})
	s.Require().NoError(err)

	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	resp := s.generate()
	s.Equal(1, resp.Billed)
	item, ok := resp.ItemFor("cust_1")
	s.Require().True(ok)
	s.Equal(types.BatchItemStatusBilled, item.Status)
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_AppliesPrepaidMonth() {
	_, err := s.advances.CreateAdvancePayment(s.GetContext(), dto.CreateAdvancePaymentRequest{
		CustomerID: "cust_1",
		Months:     []dto.AdvanceMonthRequest{{Month: 3, Year: 2024, Amount: decimal.NewFromInt(30)}},
		Method:     types.PaymentMethodCash,
	})
	s.Require().NoError(err)
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	item, _ := resp.ItemFor("cust_1")
	s.Require().NotNil(item.Invoice)
	s.Equal(types.InvoiceStatusPaid, item.Invoice.Status)
	s.True(item.Invoice.BalanceDue.IsZero())
	s.True(s.GetAccount("cust_1").Balance.IsZero())
	s.True(s.GetStores().LedgerRepo.Sum("cust_1", types.LedgerBookAdvance).IsZero())
	s.AssertLedgerConsistent("cust_1")
}

func (s *InvoiceServiceSuite) TestGenerateMonthlyDebt_IsolatesFailures() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	// a negative price fails pricing for this customer only
	broken := s.CreatePlan("Broken", decimal.NewFromInt(-5), "broken")
	s.Subscribe("cust_2", broken, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")

	resp := s.generate()
	s.Equal(1, resp.Billed)
	s.Equal(1, resp.Failed)
	item, _ := resp.ItemFor("cust_2")
	s.Equal(types.BatchItemStatusFailed, item.Status)
	s.NotEmpty(item.Error)
}

func (s *InvoiceServiceSuite) TestVoidInvoice() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	resp := s.generate()
	item, _ := resp.ItemFor("cust_1")

	voided, err := s.service.VoidInvoice(s.GetContext(), item.Invoice.ID, dto.VoidInvoiceRequest{Reason: "billed by mistake"})
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusVoid, voided.Status)
	s.NotNil(voided.VoidedAt)
	s.True(s.GetAccount("cust_1").Balance.IsZero())
	s.AssertLedgerConsistent("cust_1")

	_, err = s.service.VoidInvoice(s.GetContext(), item.Invoice.ID, dto.VoidInvoiceRequest{})
	s.True(ierr.IsInvalidOperation(err))

	// a voided invoice frees its period
	again := s.generate()
	s.Equal(1, again.Billed)
}

func (s *InvoiceServiceSuite) TestVoidInvoice_RestoresConsumedCredit() {
	s.SeedAccount("cust_1", decimal.NewFromInt(-10))
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	item, _ := s.generate().ItemFor("cust_1")

	_, err := s.service.VoidInvoice(s.GetContext(), item.Invoice.ID, dto.VoidInvoiceRequest{})
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(-10).Equal(s.GetAccount("cust_1").Balance))
	s.AssertLedgerConsistent("cust_1")
}

func (s *InvoiceServiceSuite) TestVoidInvoice_WithPaymentsIsRejected() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	item, _ := s.generate().ItemFor("cust_1")
	_, err := s.payments.RecordPayment(s.GetContext(), dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		InvoiceID:  item.Invoice.ID,
		Amount:     decimal.NewFromInt(10),
		Method:     types.PaymentMethodCash,
	})
	s.Require().NoError(err)

	_, err = s.service.VoidInvoice(s.GetContext(), item.Invoice.ID, dto.VoidInvoiceRequest{})
	s.True(ierr.IsInvalidOperation(err))
	s.True(decimal.NewFromInt(20).Equal(s.GetAccount("cust_1").Balance))
}

func (s *InvoiceServiceSuite) TestMarkOverdueInvoices() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	item, _ := s.generate().ItemFor("cust_1")

	resp, err := s.service.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Updated)

	s.SetNow(time.Date(2024, time.April, 8, 0, 0, 0, 0, time.UTC))
	resp, err = s.service.MarkOverdueInvoices(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Updated)

	inv, err := s.service.GetInvoice(s.GetContext(), item.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, inv.Status)
}

func (s *InvoiceServiceSuite) TestListInvoices() {
	s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	s.Subscribe("cust_2", s.testData.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	s.generate()

	filter := types.NewInvoiceFilter()
	filter.CustomerID = "cust_2"
	resp, err := s.service.ListInvoices(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(1, resp.Pagination.Total)
	s.Equal("cust_2", resp.Items[0].CustomerID)
}
