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

type PaymentCommitmentServiceSuite struct {
	testutil.BaseServiceTestSuite
	service    PaymentCommitmentService
	suspension SuspensionService
}

func TestPaymentCommitmentService(t *testing.T) {
	suite.Run(t, new(PaymentCommitmentServiceSuite))
}

func (s *PaymentCommitmentServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	params := newTestServiceParams(&s.BaseServiceTestSuite)
	s.service = NewPaymentCommitmentService(params)
	s.suspension = NewSuspensionService(params)

	p := s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
	s.Subscribe("cust_1", p, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "alice")
	s.SeedAccount("cust_1", decimal.NewFromInt(30))
}

func (s *PaymentCommitmentServiceSuite) TestCreateOrUpdatePaymentCommitment() {
	date := s.GetNow().Add(72 * time.Hour)
	resp, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{
		Date:  date,
		Notes: "  pays on friday ",
	})
	s.Require().NoError(err)
	s.False(resp.Reactivated)
	s.Require().NotNil(resp.Account)
	s.Require().NotNil(resp.Account.PaymentCommitmentDate)
	s.True(date.Equal(*resp.Account.PaymentCommitmentDate))
	s.Equal("pays on friday", *resp.Account.PaymentCommitmentNotes)
	s.Contains(s.GetPublisher().Names(), types.EventPaymentCommitmentUpdated)

	// a later call replaces the date
	later := date.Add(24 * time.Hour)
	resp, err = s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{Date: later})
	s.Require().NoError(err)
	s.True(later.Equal(*resp.Account.PaymentCommitmentDate))
	s.Nil(resp.Account.PaymentCommitmentNotes)
}

func (s *PaymentCommitmentServiceSuite) TestCreateOrUpdatePaymentCommitment_RejectsPastDates() {
	for _, date := range []time.Time{s.GetNow(), s.GetNow().Add(-time.Minute)} {
		_, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{Date: date})
		s.True(ierr.IsValidation(err))
	}
	s.Nil(s.GetAccount("cust_1").PaymentCommitmentDate)
}

func (s *PaymentCommitmentServiceSuite) TestCreateOrUpdatePaymentCommitment_CreatesAccount() {
	resp, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_new", dto.PaymentCommitmentRequest{
		Date: s.GetNow().Add(time.Hour),
	})
	s.Require().NoError(err)
	s.Equal("cust_new", resp.Account.CustomerID)
	s.True(resp.Account.Balance.IsZero())
}

func (s *PaymentCommitmentServiceSuite) TestCreateOrUpdatePaymentCommitment_ReactivatesSuspended() {
	_, err := s.suspension.SuspendCustomer(s.GetContext(), "cust_1", types.SuspensionOptions{})
	s.Require().NoError(err)
	s.GetNetworkController().Reset()

	resp, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{
		Date: s.GetNow().Add(48 * time.Hour),
	})
	s.Require().NoError(err)
	s.True(resp.Reactivated)
	s.Empty(resp.ReactivationError)
	s.Equal(types.AccountStatusActive, resp.Account.Status)
	s.Len(s.GetNetworkController().Calls(), 1)
}

func (s *PaymentCommitmentServiceSuite) TestCreateOrUpdatePaymentCommitment_ReactivationWarning() {
	_, err := s.suspension.SuspendCustomer(s.GetContext(), "cust_1", types.SuspensionOptions{})
	s.Require().NoError(err)
	s.GetNetworkController().FailFor("alice")

	resp, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{
		Date: s.GetNow().Add(48 * time.Hour),
	})
	s.Require().NoError(err)
	s.True(resp.Reactivated)
	s.Contains(resp.ReactivationError, "alice")
	s.NotNil(s.GetAccount("cust_1").PaymentCommitmentDate)
}

func (s *PaymentCommitmentServiceSuite) TestRemovePaymentCommitment() {
	_, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{
		Date:  s.GetNow().Add(time.Hour),
		Notes: "tomorrow",
	})
	s.Require().NoError(err)

	resp, err := s.service.RemovePaymentCommitment(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Nil(resp.PaymentCommitmentDate)
	s.Nil(resp.PaymentCommitmentNotes)
	s.Equal(types.AccountStatusActive, resp.Status)
	s.Empty(s.GetNetworkController().Calls())

	_, err = s.service.RemovePaymentCommitment(s.GetContext(), "cust_missing")
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentCommitmentServiceSuite) TestListActiveCommitments() {
	s.SeedAccount("cust_2", decimal.NewFromInt(10))
	s.SeedAccount("cust_3", decimal.NewFromInt(10))
	_, err := s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_1", dto.PaymentCommitmentRequest{Date: s.GetNow().Add(time.Hour)})
	s.Require().NoError(err)
	_, err = s.service.CreateOrUpdatePaymentCommitment(s.GetContext(), "cust_2", dto.PaymentCommitmentRequest{Date: s.GetNow().Add(2 * time.Hour)})
	s.Require().NoError(err)

	resp, err := s.service.ListActiveCommitments(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Equal(2, resp.Pagination.Total)

	// once a date passes the commitment is no longer live
	s.SetNow(s.GetNow().Add(90 * time.Minute))
	resp, err = s.service.ListActiveCommitments(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("cust_2", resp.Items[0].CustomerID)
}
