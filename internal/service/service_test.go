package service

import (
	"github.com/wispbill/wispbill/internal/domain/proration"
	"github.com/wispbill/wispbill/internal/testutil"
)

// newTestServiceParams wires every service against the suite's in-memory
// stores and fakes
func newTestServiceParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
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
}
