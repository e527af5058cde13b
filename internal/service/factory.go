package service

import (
	"github.com/jonboulle/clockwork"
	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/advance"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/payment"
	"github.com/wispbill/wispbill/internal/domain/plan"
	"github.com/wispbill/wispbill/internal/domain/proration"
	"github.com/wispbill/wispbill/internal/integration/document"
	"github.com/wispbill/wispbill/internal/integration/network"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/publisher"
	"github.com/wispbill/wispbill/internal/s3"
	"github.com/wispbill/wispbill/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Clock   clockwork.Clock
	Sentry  *sentry.Service
	Metrics *metrics.Metrics

	// Repositories
	AccountRepo account.Repository
	LedgerRepo  ledger.Repository
	InvoiceRepo invoice.Repository
	PaymentRepo payment.Repository
	AdvanceRepo advance.Repository
	PlanRepo    plan.Repository

	// Collaborators, all reached after commit
	NetworkController network.Controller
	Notifier          notification.Gateway
	DocumentGenerator document.Generator
	// ReceiptStore is nil when the s3 store is disabled
	ReceiptStore   s3.Service
	EventPublisher publisher.EventPublisher

	ProrationCalculator proration.Calculator
}

// Common service params
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	clock clockwork.Clock,
	sentrySvc *sentry.Service,
	m *metrics.Metrics,
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	invoiceRepo invoice.Repository,
	paymentRepo payment.Repository,
	advanceRepo advance.Repository,
	planRepo plan.Repository,
	networkController network.Controller,
	notifier notification.Gateway,
	documentGenerator document.Generator,
	receiptStore s3.Service,
	eventPublisher publisher.EventPublisher,
	calculator proration.Calculator,
) ServiceParams {
	return ServiceParams{
		Logger:              logger,
		Config:              config,
		DB:                  db,
		Clock:               clock,
		Sentry:              sentrySvc,
		Metrics:             m,
		AccountRepo:         accountRepo,
		LedgerRepo:          ledgerRepo,
		InvoiceRepo:         invoiceRepo,
		PaymentRepo:         paymentRepo,
		AdvanceRepo:         advanceRepo,
		PlanRepo:            planRepo,
		NetworkController:   networkController,
		Notifier:            notifier,
		DocumentGenerator:   documentGenerator,
		ReceiptStore:        receiptStore,
		EventPublisher:      eventPublisher,
		ProrationCalculator: calculator,
	}
}
