package service

import (
	"sync"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/plan"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type DunningServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  DunningService
	invoices InvoiceService
	plan     *plan.Plan
}

func TestDunningService(t *testing.T) {
	suite.Run(t, new(DunningServiceSuite))
}

func (s *DunningServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewDunningService(params)
	s.invoices = NewInvoiceService(params)
	s.plan = s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
}

// customer seeds an account with one bound plan
func (s *DunningServiceSuite) customer(id string, balance int64, mutate ...func(*account.BillingAccount)) {
	s.Subscribe(id, s.plan, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "user_"+id)
	s.SeedAccount(id, decimal.NewFromInt(balance), mutate...)
}

func (s *DunningServiceSuite) commitment(offset time.Duration) func(*account.BillingAccount) {
	return func(a *account.BillingAccount) {
		a.PaymentCommitmentDate = lo.ToPtr(s.GetNow().Add(offset))
	}
}

func noAutoSuspend(a *account.BillingAccount) {
	a.AutoSuspend = false
}

func (s *DunningServiceSuite) status(id string) types.AccountStatus {
	return s.GetAccount(id).Status
}

func (s *DunningServiceSuite) TestRunReminder_OnlyOnReminderDay() {
	s.customer("cust_debt", 30)

	result, err := s.service.RunReminder(s.GetContext(), false)
	s.Require().NoError(err)
	s.False(result.Ran)
	s.Empty(s.GetNotifier().Messages())

	// five days before March 31
	s.SetNow(time.Date(2024, time.March, 26, 8, 0, 0, 0, time.UTC))
	result, err = s.service.RunReminder(s.GetContext(), false)
	s.Require().NoError(err)
	s.True(result.Ran)
	s.Equal(1, result.Notified)
}

func (s *DunningServiceSuite) TestRunReminder_NotifiesDebtorsOnce() {
	s.customer("cust_debt", 30)
	s.customer("cust_clear", 0)
	s.customer("cust_credit", -5)

	result, err := s.service.RunReminder(s.GetContext(), true)
	s.Require().NoError(err)
	s.True(result.Ran)
	s.Equal(1, result.Total)
	s.Equal(1, result.Notified)

	reminders := s.GetNotifier().MessagesOfKind(notification.KindReminder)
	s.Require().Len(reminders, 1)
	s.Equal("cust_debt", reminders[0].CustomerID)
	s.Contains(reminders[0].Text, "30.00")

	again, err := s.service.RunReminder(s.GetContext(), true)
	s.Require().NoError(err)
	s.Zero(again.Notified)
	s.Equal(1, again.Skipped)
	s.Len(s.GetNotifier().MessagesOfKind(notification.KindReminder), 1)

	// reminders never change state
	s.Equal(types.AccountStatusActive, s.status("cust_debt"))
}

func (s *DunningServiceSuite) TestRunDailyCut_SelectsCuttableAccounts() {
	s.customer("cust_debt", 30)
	s.customer("cust_promised", 30, s.commitment(48*time.Hour))
	s.customer("cust_lapsed", 30, s.commitment(-time.Hour))
	s.customer("cust_exempt", 30, noAutoSuspend)
	s.customer("cust_credit", -10)

	result, err := s.service.RunDailyCut(s.GetContext())
	s.Require().NoError(err)
	s.True(result.Ran)
	s.Equal(2, result.Total)
	s.Equal(2, result.Cut)
	s.Zero(result.Failed)

	s.Equal(types.AccountStatusSuspended, s.status("cust_debt"))
	s.Equal(types.AccountStatusSuspended, s.status("cust_lapsed"))
	s.Equal(types.AccountStatusActive, s.status("cust_promised"))
	s.Equal(types.AccountStatusActive, s.status("cust_exempt"))
	s.Equal(types.AccountStatusActive, s.status("cust_credit"))

	s.Equal(1.0, promtest.ToFloat64(s.GetMetrics().DunningRuns.WithLabelValues("DAILY_CUT", "true")))
}

func (s *DunningServiceSuite) TestRunDailyCut_RepeatedRunsMakeNoExtraCalls() {
	s.customer("cust_debt", 30)

	_, err := s.service.RunDailyCut(s.GetContext())
	s.Require().NoError(err)
	calls := len(s.GetNetworkController().Calls())
	s.Equal(1, calls)

	for i := 0; i < 3; i++ {
		result, err := s.service.RunDailyCut(s.GetContext())
		s.Require().NoError(err)
		s.Zero(result.Cut)
	}
	_, err = s.service.RunMonthlyCut(s.GetContext(), true)
	s.Require().NoError(err)
	_, err = s.service.ProcessExpiredPaymentCommitments(s.GetContext())
	s.Require().NoError(err)

	s.Len(s.GetNetworkController().Calls(), calls)
}

func (s *DunningServiceSuite) TestRunDailyCut_ConcurrentRunsSuspendOnce() {
	s.customer("cust_debt", 30)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.RunDailyCut(s.GetContext())
			s.NoError(err)
		}()
	}
	wg.Wait()

	s.Equal(types.AccountStatusSuspended, s.status("cust_debt"))
	s.Len(s.GetNetworkController().Calls(), 1)
	s.Len(s.GetNotifier().MessagesOfKind(notification.KindSuspension), 1)
}

func (s *DunningServiceSuite) TestRunDailyCut_MarksOverdueInvoices() {
	s.Subscribe("cust_1", s.plan, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), "")
	resp, err := s.invoices.GenerateMonthlyDebt(s.GetContext())
	s.Require().NoError(err)
	item, _ := resp.ItemFor("cust_1")

	s.SetNow(time.Date(2024, time.April, 9, 0, 0, 0, 0, time.UTC))
	result, err := s.service.RunDailyCut(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Cut)

	inv, err := s.invoices.GetInvoice(s.GetContext(), item.Invoice.ID)
	s.Require().NoError(err)
	s.Equal(types.InvoiceStatusOverdue, inv.Status)
}

func (s *DunningServiceSuite) TestRunMonthlyCut() {
	s.customer("cust_debt", 30)

	result, err := s.service.RunMonthlyCut(s.GetContext(), false)
	s.Require().NoError(err)
	s.False(result.Ran)
	s.Equal(types.AccountStatusActive, s.status("cust_debt"))

	s.SetNow(time.Date(2024, time.April, 10, 6, 0, 0, 0, time.UTC))
	result, err = s.service.RunMonthlyCut(s.GetContext(), false)
	s.Require().NoError(err)
	s.True(result.Ran)
	s.Equal(1, result.Cut)
	s.Equal(types.AccountStatusSuspended, s.status("cust_debt"))
}

func (s *DunningServiceSuite) TestProcessExpiredPaymentCommitments() {
	s.customer("cust_lapsed", 30, s.commitment(-time.Minute), noAutoSuspend)
	s.customer("cust_promised", 30, s.commitment(time.Hour))
	s.customer("cust_paid", 0, s.commitment(-time.Minute))
	s.customer("cust_plain", 30)

	result, err := s.service.ProcessExpiredPaymentCommitments(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Total)
	s.Equal(1, result.Cut)
	s.Require().Len(result.Items, 1)
	s.Equal("cust_lapsed", result.Items[0].CustomerID)

	lapsed := s.GetAccount("cust_lapsed")
	s.Equal(types.AccountStatusSuspended, lapsed.Status)
	s.Nil(lapsed.PaymentCommitmentDate)

	s.Equal(types.AccountStatusActive, s.status("cust_promised"))
	s.Equal(types.AccountStatusActive, s.status("cust_paid"))
	s.Equal(types.AccountStatusActive, s.status("cust_plain"))

	again, err := s.service.ProcessExpiredPaymentCommitments(s.GetContext())
	s.Require().NoError(err)
	s.Zero(again.Total)
}

func (s *DunningServiceSuite) TestRunDailyCut_LiveCommitmentDefersCut() {
	s.customer("cust_1", 30, s.commitment(24*time.Hour))

	result, err := s.service.RunDailyCut(s.GetContext())
	s.Require().NoError(err)
	s.Zero(result.Total)

	s.SetNow(s.GetNow().Add(25 * time.Hour))
	result, err = s.service.RunDailyCut(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Cut)
}
