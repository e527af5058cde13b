package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type SuspensionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service  SuspensionService
	testData struct {
		plan         *plan.Plan
		customerPlan *plan.CustomerPlan
		alice        *plan.NetworkBinding
		bob          *plan.NetworkBinding
	}
}

func TestSuspensionService(t *testing.T) {
	suite.Run(t, new(SuspensionServiceSuite))
}

func (s *SuspensionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewSuspensionService(newTestServiceParams(&s.BaseServiceTestSuite))

	s.testData.plan = s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
	s.testData.customerPlan = s.Subscribe("cust_1", s.testData.plan, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "")
	s.testData.alice = s.Bind("cust_1", s.testData.customerPlan, "alice", "home-20m")
	s.testData.bob = s.Bind("cust_1", s.testData.customerPlan, "bob", "home-20m")
	s.SeedAccount("cust_1", decimal.NewFromInt(45))
}

func (s *SuspensionServiceSuite) suspend(opts types.SuspensionOptions) *types.SuspensionTally {
	tally, err := s.service.SuspendCustomer(s.GetContext(), "cust_1", opts)
	s.Require().NoError(err)
	return tally
}

func (s *SuspensionServiceSuite) planStatuses() []types.CustomerPlanStatus {
	plans, err := s.GetStores().PlanRepo.ListCustomerPlans(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	return lo.Map(plans, func(cp *plan.CustomerPlan, _ int) types.CustomerPlanStatus {
		return cp.Status
	})
}

func (s *SuspensionServiceSuite) TestSuspendCustomer() {
	tally := s.suspend(types.SuspensionOptions{Reason: "overdue", Trigger: types.DunningTriggerManual})

	s.Equal(types.SuspensionOutcomeSuspended, tally.Outcome)
	s.Equal(2, tally.Success)
	s.Zero(tally.Failed)
	s.Empty(tally.Errors)

	acc := s.GetAccount("cust_1")
	s.Equal(types.AccountStatusSuspended, acc.Status)
	s.Require().NotNil(acc.SuspendedAt)
	s.Equal(s.GetNow(), acc.SuspendedAt.UTC())
	s.Equal([]types.CustomerPlanStatus{types.CustomerPlanStatusSuspended}, s.planStatuses())

	s.ElementsMatch([]testutil.ProfileChange{
		{Username: "alice", Profile: "cut"},
		{Username: "bob", Profile: "cut"},
	}, s.GetNetworkController().Calls())
	s.Equal("cut", s.GetStores().PlanRepo.Binding(s.testData.alice.ID).Profile)
	s.Equal("cut", s.GetStores().PlanRepo.Binding(s.testData.bob.ID).Profile)

	s.Len(s.GetNotifier().MessagesOfKind(notification.KindSuspension), 1)
	s.Contains(s.GetPublisher().Names(), types.EventAccountSuspended)
}

func (s *SuspensionServiceSuite) TestSuspendCustomer_SecondCallIsSkipped() {
	s.suspend(types.SuspensionOptions{})
	calls := len(s.GetNetworkController().Calls())

	tally := s.suspend(types.SuspensionOptions{})
	s.Equal(types.SuspensionOutcomeSkipped, tally.Outcome)
	s.False(tally.Changed())
	s.Len(s.GetNetworkController().Calls(), calls)
	s.Len(s.GetNotifier().MessagesOfKind(notification.KindSuspension), 1)
}

func (s *SuspensionServiceSuite) TestSuspendCustomer_ControllerFailureIsIsolated() {
	s.GetNetworkController().FailFor("bob")

	tally := s.suspend(types.SuspensionOptions{})
	s.Equal(types.SuspensionOutcomeSuspended, tally.Outcome)
	s.Equal(1, tally.Success)
	s.Equal(1, tally.Failed)
	s.Require().Len(tally.Errors, 1)
	s.Contains(tally.Errors[0], "bob")

	// the transition stands even though one binding could not be cut
	s.Equal(types.AccountStatusSuspended, s.GetAccount("cust_1").Status)
	s.Equal("cut", s.GetStores().PlanRepo.Binding(s.testData.alice.ID).Profile)
	s.Equal("home-20m", s.GetStores().PlanRepo.Binding(s.testData.bob.ID).Profile)
}

func (s *SuspensionServiceSuite) TestSuspendCustomer_BindingAlreadyCut() {
	s.Require().NoError(s.GetStores().PlanRepo.UpdateBindingProfile(s.GetContext(), s.testData.bob.ID, "cut"))

	tally := s.suspend(types.SuspensionOptions{})
	s.Equal(1, tally.Success)
	s.Equal(1, tally.Skipped)
	s.Equal([]testutil.ProfileChange{{Username: "alice", Profile: "cut"}}, s.GetNetworkController().Calls())
}

func (s *SuspensionServiceSuite) TestSuspendCustomer_ClearsCommitment() {
	s.SeedAccount("cust_2", decimal.NewFromInt(10), func(a *account.BillingAccount) {
		a.PaymentCommitmentDate = lo.ToPtr(s.GetNow().Add(-time.Hour))
		a.PaymentCommitmentNotes = lo.ToPtr("friday")
	})

	tally, err := s.service.SuspendCustomer(s.GetContext(), "cust_2", types.SuspensionOptions{ClearCommitment: true})
	s.Require().NoError(err)
	s.True(tally.Changed())

	acc := s.GetAccount("cust_2")
	s.Nil(acc.PaymentCommitmentDate)
	s.Nil(acc.PaymentCommitmentNotes)
}

func (s *SuspensionServiceSuite) TestReactivateCustomer() {
	s.suspend(types.SuspensionOptions{})
	s.GetNetworkController().Reset()

	tally, err := s.service.ReactivateCustomer(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Equal(types.SuspensionOutcomeReactivated, tally.Outcome)
	s.Equal(2, tally.Success)

	acc := s.GetAccount("cust_1")
	s.Equal(types.AccountStatusActive, acc.Status)
	s.Nil(acc.SuspendedAt)
	s.Equal([]types.CustomerPlanStatus{types.CustomerPlanStatusActive}, s.planStatuses())
	s.ElementsMatch([]testutil.ProfileChange{
		{Username: "alice", Profile: "home-20m"},
		{Username: "bob", Profile: "home-20m"},
	}, s.GetNetworkController().Calls())
	s.Len(s.GetNotifier().MessagesOfKind(notification.KindReactivation), 1)
	s.Contains(s.GetPublisher().Names(), types.EventAccountReactivated)
}

func (s *SuspensionServiceSuite) TestReactivateCustomer_OnlyCutBindingsMove() {
	s.suspend(types.SuspensionOptions{})
	s.GetNetworkController().Reset()
	// an operator moved bob by hand, alice sits on a legacy cut profile
	s.Require().NoError(s.GetStores().PlanRepo.UpdateBindingProfile(s.GetContext(), s.testData.bob.ID, "home-10m"))
	s.Require().NoError(s.GetStores().PlanRepo.UpdateBindingProfile(s.GetContext(), s.testData.alice.ID, "moroso"))

	tally, err := s.service.ReactivateCustomer(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Equal(1, tally.Success)
	s.Equal(1, tally.Skipped)
	s.Equal([]testutil.ProfileChange{{Username: "alice", Profile: "home-20m"}}, s.GetNetworkController().Calls())
	s.Equal("home-10m", s.GetStores().PlanRepo.Binding(s.testData.bob.ID).Profile)
}

func (s *SuspensionServiceSuite) TestReactivateCustomer_BindingWithoutPlan() {
	orphan := s.Bind("cust_1", nil, "carol", "home-20m")
	s.suspend(types.SuspensionOptions{})
	s.GetNetworkController().Reset()

	tally, err := s.service.ReactivateCustomer(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Equal(2, tally.Success)
	s.Equal(1, tally.Failed)
	s.Require().Len(tally.Errors, 1)
	s.Contains(tally.Errors[0], "carol")
	s.Equal("cut", s.GetStores().PlanRepo.Binding(orphan.ID).Profile)
}

func (s *SuspensionServiceSuite) TestReactivateCustomer_NotSuspended() {
	tally, err := s.service.ReactivateCustomer(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Equal(types.SuspensionOutcomeSkipped, tally.Outcome)
	s.Empty(s.GetNetworkController().Calls())
	s.Empty(s.GetNotifier().Messages())
}

func (s *SuspensionServiceSuite) TestReactivateCustomer_UnknownCustomer() {
	_, err := s.service.ReactivateCustomer(s.GetContext(), "cust_missing")
	s.True(ierr.IsNotFound(err))
}
