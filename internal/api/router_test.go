package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/api/cron"
	"github.com/wispbill/wispbill/internal/api/dto"
	v1 "github.com/wispbill/wispbill/internal/api/v1"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/proration"
	"github.com/wispbill/wispbill/internal/rest/middleware"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/testutil"
	"github.com/wispbill/wispbill/internal/types"
)

type RouterSuite struct {
	testutil.BaseServiceTestSuite
	router *gin.Engine
}

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	params := service.ServiceParams{
		Logger:              s.GetLogger(),
		Config:              s.GetConfig(),
		DB:                  s.GetDB(),
		Clock:               s.GetClock(),
		Metrics:             s.GetMetrics(),
		AccountRepo:         stores.AccountRepo,
		LedgerRepo:          stores.LedgerRepo,
		InvoiceRepo:         stores.InvoiceRepo,
		PaymentRepo:         stores.PaymentRepo,
		AdvanceRepo:         stores.AdvanceRepo,
		PlanRepo:            stores.PlanRepo,
		NetworkController:   s.GetNetworkController(),
		Notifier:            s.GetNotifier(),
		DocumentGenerator:   s.GetDocumentGenerator(),
		ReceiptStore:        s.GetReceiptStore(),
		EventPublisher:      s.GetPublisher(),
		ProrationCalculator: proration.NewCalculator(),
	}

	invoiceService := service.NewInvoiceService(params)
	advanceService := service.NewAdvancePaymentService(params)
	log := s.GetLogger()

	s.router = NewRouter(Handlers{
		Health:         v1.NewHealthHandler(log),
		Invoice:        v1.NewInvoiceHandler(invoiceService, s.GetConfig(), s.GetClock(), log),
		Payment:        v1.NewPaymentHandler(service.NewPaymentService(params), log),
		AdvancePayment: v1.NewAdvancePaymentHandler(advanceService, log),
		Account: v1.NewAccountHandler(
			service.NewAccountService(params),
			service.NewSuspensionService(params),
			service.NewPaymentCommitmentService(params),
			log,
		),
		CronInvoice: cron.NewInvoiceHandler(invoiceService, advanceService, log),
		CronDunning: cron.NewDunningHandler(service.NewDunningService(params), log),
	}, s.GetConfig(), log, s.GetMetrics())

	p := s.CreatePlan("Home 20M", decimal.NewFromInt(30), "home-20m")
	cp := s.Subscribe("cust_1", p, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), "")
	s.Bind("cust_1", cp, "alice", "home-20m")
}

func (s *RouterSuite) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) decode(rec *httptest.ResponseRecorder, v any) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *RouterSuite) generateMarch() string {
	rec := s.do(http.MethodPost, "/v1/invoices/generate", dto.GenerateDebtRequest{Month: 3, Year: 2024})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp dto.GenerateDebtResponse
	s.decode(rec, &resp)
	s.Require().Equal(1, resp.Billed)
	item, ok := resp.ItemFor("cust_1")
	s.Require().True(ok)
	return item.Invoice.ID
}

func (s *RouterSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

func (s *RouterSuite) TestRequestID() {
	rec := s.do(http.MethodGet, "/health", nil, types.HeaderRequestID, "req-123")
	s.Equal("req-123", rec.Header().Get(types.HeaderRequestID))

	rec = s.do(http.MethodGet, "/health", nil)
	s.NotEmpty(rec.Header().Get(types.HeaderRequestID))
}

func (s *RouterSuite) TestGenerateAndRecordPayment() {
	invoiceID := s.generateMarch()

	rec := s.do(http.MethodPost, "/v1/payments", dto.RecordPaymentRequest{
		CustomerID: "cust_1",
		InvoiceID:  invoiceID,
		Amount:     decimal.NewFromInt(30),
		Method:     types.PaymentMethodCash,
	}, types.HeaderUserID, "operator_7")
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp dto.RecordPaymentResponse
	s.decode(rec, &resp)
	s.Equal(types.InvoiceStatusPaid, resp.Invoice.Status)
	s.Equal("operator_7", resp.Payment.CreatedBy)

	rec = s.do(http.MethodGet, "/v1/accounts/cust_1", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var acct dto.BillingAccountResponse
	s.decode(rec, &acct)
	s.True(acct.Balance.IsZero(), acct.Balance.String())

	rec = s.do(http.MethodGet, "/v1/accounts/cust_1/verify", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var verify dto.VerifyBalanceResponse
	s.decode(rec, &verify)
	s.True(verify.Consistent)
}

func (s *RouterSuite) TestErrorMapping() {
	s.Run("malformed body is a bad request", func() {
		rec := s.do(http.MethodPost, "/v1/payments", nil)
		s.Equal(http.StatusBadRequest, rec.Code)

		var resp middleware.ErrorResponse
		s.decode(rec, &resp)
		s.False(resp.Success)
		s.Equal("Invalid request format", resp.Error.Display)
	})

	s.Run("validation details are reported", func() {
		rec := s.do(http.MethodPost, "/v1/payments", map[string]any{"customer_id": "cust_1"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown invoice is not found", func() {
		rec := s.do(http.MethodGet, "/v1/invoices/inv_missing", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("overpayment is unprocessable", func() {
		invoiceID := s.generateMarch()
		rec := s.do(http.MethodPost, "/v1/payments", dto.RecordPaymentRequest{
			CustomerID: "cust_1",
			InvoiceID:  invoiceID,
			Amount:     decimal.NewFromInt(25),
			Discount:   decimal.NewFromInt(10),
			Method:     types.PaymentMethodCash,
		})
		s.Equal(http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	})
}

func (s *RouterSuite) TestSuspendAndReactivate() {
	s.SeedAccount("cust_1", decimal.NewFromInt(30))

	rec := s.do(http.MethodPost, "/v1/accounts/cust_1/suspend", dto.SuspendRequest{Reason: "overdue"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var tally types.SuspensionTally
	s.decode(rec, &tally)
	s.Equal(types.SuspensionOutcomeSuspended, tally.Outcome)
	s.Equal(1, tally.Success)
	s.Equal(types.AccountStatusSuspended, s.GetAccount("cust_1").Status)

	rec = s.do(http.MethodPost, "/v1/accounts/cust_1/reactivate", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.decode(rec, &tally)
	s.Equal(types.SuspensionOutcomeReactivated, tally.Outcome)

	rec = s.do(http.MethodPost, "/v1/accounts/cust_unknown/reactivate", nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *RouterSuite) TestPaymentCommitment() {
	s.SeedAccount("cust_1", decimal.NewFromInt(30), func(a *account.BillingAccount) {
		a.Status = types.AccountStatusSuspended
	})

	rec := s.do(http.MethodPut, "/v1/accounts/cust_1/commitment", dto.PaymentCommitmentRequest{
		Date: s.GetNow().Add(72 * time.Hour),
	})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var resp dto.PaymentCommitmentResponse
	s.decode(rec, &resp)
	s.True(resp.Reactivated)

	rec = s.do(http.MethodGet, "/v1/commitments", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list dto.ListBillingAccountsResponse
	s.decode(rec, &list)
	s.Len(list.Items, 1)

	rec = s.do(http.MethodDelete, "/v1/accounts/cust_1/commitment", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var acct dto.BillingAccountResponse
	s.decode(rec, &acct)
	s.Nil(acct.PaymentCommitmentDate)
}

func (s *RouterSuite) TestCronDunning() {
	s.SeedAccount("cust_1", decimal.NewFromInt(30))

	rec := s.do(http.MethodPost, "/v1/cron/dunning/daily-cut", nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var result types.DunningRunResult
	s.decode(rec, &result)
	s.True(result.Ran)
	s.Equal(1, result.Cut)

	rec = s.do(http.MethodPost, "/v1/cron/dunning/monthly-cut", dto.RunDunningRequest{})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.decode(rec, &result)
	s.False(result.Ran)

	rec = s.do(http.MethodPost, "/v1/cron/dunning/reminder", map[string]any{"force": "yes"})
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	s.do(http.MethodGet, "/health", nil)

	rec := s.do(http.MethodGet, "/metrics", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(strings.Contains(rec.Body.String(), `wispbill_http_requests_total{method="GET",route="/health",status="200"} 1`),
		rec.Body.String())
}
