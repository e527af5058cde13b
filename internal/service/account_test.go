package service

import (
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/api/dto"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type AccountServiceSuite struct {
	testutil.BaseServiceTestSuite
	service AccountService
}

func TestAccountService(t *testing.T) {
	suite.Run(t, new(AccountServiceSuite))
}

func (s *AccountServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewAccountService(newTestServiceParams(&s.BaseServiceTestSuite))
}

func (s *AccountServiceSuite) TestGetAccount() {
	s.SeedAccount("cust_1", decimal.NewFromInt(-15))

	resp, err := s.service.GetAccount(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.True(decimal.NewFromInt(-15).Equal(resp.Balance))
	s.True(decimal.NewFromInt(15).Equal(resp.AvailableCredit))
	s.True(resp.AdvanceCredit.IsZero())

	_, err = s.service.GetAccount(s.GetContext(), "cust_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *AccountServiceSuite) TestListAccounts() {
	s.SeedAccount("cust_1", decimal.NewFromInt(20))
	s.SeedAccount("cust_2", decimal.Zero)
	s.SeedAccount("cust_3", decimal.NewFromInt(5))

	filter := types.NewBillingAccountFilter()
	filter.WithDebt = true
	resp, err := s.service.ListAccounts(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(2, resp.Pagination.Total)
	s.Equal([]string{"cust_1", "cust_3"}, lo.Map(resp.Items, func(a *dto.BillingAccountResponse, _ int) string {
		return a.CustomerID
	}))
}

func (s *AccountServiceSuite) TestUpdateAccount() {
	s.SeedAccount("cust_1", decimal.NewFromInt(20))

	resp, err := s.service.UpdateAccount(s.GetContext(), "cust_1", dto.UpdateBillingAccountRequest{
		AutoSuspend: lo.ToPtr(false),
		CreditLimit: lo.ToPtr(decimal.RequireFromString("50.005")),
	})
	s.Require().NoError(err)
	s.False(resp.AutoSuspend)
	s.True(decimal.RequireFromString("50.01").Equal(resp.CreditLimit))

	_, err = s.service.UpdateAccount(s.GetContext(), "cust_1", dto.UpdateBillingAccountRequest{})
	s.True(ierr.IsValidation(err))

	_, err = s.service.UpdateAccount(s.GetContext(), "cust_1", dto.UpdateBillingAccountRequest{
		CreditLimit: lo.ToPtr(decimal.NewFromInt(-1)),
	})
	s.True(ierr.IsValidation(err))
}

func (s *AccountServiceSuite) TestListLedgerEntries() {
	s.SeedAccount("cust_1", decimal.NewFromInt(20))

	filter := types.NewLedgerEntryFilter()
	filter.CustomerID = "cust_1"
	resp, err := s.service.ListLedgerEntries(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Equal(1, resp.Pagination.Total)
	s.Equal(types.LedgerEntryTypeDebit, resp.Items[0].Type)

	_, err = s.service.ListLedgerEntries(s.GetContext(), types.NewLedgerEntryFilter())
	s.True(ierr.IsValidation(err))
}

func (s *AccountServiceSuite) TestVerifyBalance() {
	s.SeedAccount("cust_1", decimal.NewFromInt(20))

	resp, err := s.service.VerifyBalance(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.True(resp.Consistent)

	// drift the stored balance behind the ledger's back
	acc := s.GetAccount("cust_1")
	acc.Balance = decimal.NewFromInt(25)
	s.GetStores().AccountRepo.Put(acc)

	resp, err = s.service.VerifyBalance(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.False(resp.Consistent)
	s.True(decimal.NewFromInt(20).Equal(resp.Replayed))
	s.True(decimal.NewFromInt(25).Equal(resp.Stored))
}
