package testutil

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/plan"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
)

// Stores holds the in-memory repositories used by service tests
type Stores struct {
	AccountRepo *InMemoryAccountStore
	LedgerRepo  *InMemoryLedgerStore
	InvoiceRepo *InMemoryInvoiceStore
	PaymentRepo *InMemoryPaymentStore
	AdvanceRepo *InMemoryAdvanceStore
	PlanRepo    *InMemoryPlanStore
}

func (st Stores) snapshotters() []Snapshotter {
	return []Snapshotter{
		st.AccountRepo,
		st.LedgerRepo,
		st.InvoiceRepo,
		st.PaymentRepo,
		st.AdvanceRepo,
		st.PlanRepo,
	}
}

// DefaultTestTime is where every suite's fake clock starts
var DefaultTestTime = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	publisher *InMemoryEventPublisher
	db        *MockPostgresClient
	logger    *logger.Logger
	config    *config.Configuration
	clock     *clockwork.FakeClock
	metrics   *metrics.Metrics
	network   *FakeNetworkController
	notifier  *FakeNotificationGateway
	documents *FakeDocumentGenerator
	receipts  *FakeReceiptStore
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.config = config.GetDefaultConfig()
	s.ctx = SetupContext()
	s.clock = clockwork.NewFakeClockAt(DefaultTestTime)
	s.stores = Stores{
		AccountRepo: NewInMemoryAccountStore(),
		LedgerRepo:  NewInMemoryLedgerStore(),
		InvoiceRepo: NewInMemoryInvoiceStore(),
		PaymentRepo: NewInMemoryPaymentStore(),
		AdvanceRepo: NewInMemoryAdvanceStore(),
		PlanRepo:    NewInMemoryPlanStore(),
	}
	s.db = NewMockPostgresClient(s.logger, s.stores.snapshotters()...)
	s.publisher = NewInMemoryEventPublisher()
	s.metrics = metrics.NewMetrics()
	s.network = NewFakeNetworkController()
	s.notifier = NewFakeNotificationGateway()
	s.documents = NewFakeDocumentGenerator()
	s.receipts = NewFakeReceiptStore()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.AccountRepo.Clear()
	s.stores.LedgerRepo.Clear()
	s.stores.InvoiceRepo.Clear()
	s.stores.PaymentRepo.Clear()
	s.stores.AdvanceRepo.Clear()
	s.stores.PlanRepo.Clear()
	s.publisher.Clear()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPublisher() *InMemoryEventPublisher {
	return s.publisher
}

// GetDB returns the test transaction client
func (s *BaseServiceTestSuite) GetDB() *MockPostgresClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetClock() *clockwork.FakeClock {
	return s.clock
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.Now().UTC()
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetNetworkController() *FakeNetworkController {
	return s.network
}

func (s *BaseServiceTestSuite) GetNotifier() *FakeNotificationGateway {
	return s.notifier
}

func (s *BaseServiceTestSuite) GetDocumentGenerator() *FakeDocumentGenerator {
	return s.documents
}

func (s *BaseServiceTestSuite) GetReceiptStore() *FakeReceiptStore {
	return s.receipts
}

// SetNow moves the fake clock to t
func (s *BaseServiceTestSuite) SetNow(t time.Time) {
	s.clock.Advance(t.Sub(s.clock.Now()))
}

// CreatePlan stores a plan priced at monthlyPrice running on profile
func (s *BaseServiceTestSuite) CreatePlan(name string, monthlyPrice decimal.Decimal, profile string) *plan.Plan {
	p := &plan.Plan{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN),
		Name:           name,
		MonthlyPrice:   monthlyPrice,
		NetworkProfile: profile,
		BaseModel:      types.GetDefaultBaseModel(s.ctx, s.GetNow()),
	}
	s.Require().NoError(s.stores.PlanRepo.CreatePlan(s.ctx, p))
	return p
}

// Subscribe gives the customer an ACTIVE plan starting at start and, when
// username is set, an active network binding on the plan's profile
func (s *BaseServiceTestSuite) Subscribe(customerID string, p *plan.Plan, start time.Time, username string) *plan.CustomerPlan {
	cp := &plan.CustomerPlan{
		ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER_PLAN),
		CustomerID:   customerID,
		PlanID:       p.ID,
		MonthlyPrice: p.MonthlyPrice,
		StartDate:    start,
		Status:       types.CustomerPlanStatusActive,
		BaseModel:    types.GetDefaultBaseModel(s.ctx, s.GetNow()),
	}
	s.Require().NoError(s.stores.PlanRepo.CreateCustomerPlan(s.ctx, cp))
	if username != "" {
		s.Bind(customerID, cp, username, p.NetworkProfile)
	}
	return cp
}

// Bind adds an active network binding currently on profile
func (s *BaseServiceTestSuite) Bind(customerID string, cp *plan.CustomerPlan, username, profile string) *plan.NetworkBinding {
	b := &plan.NetworkBinding{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NETWORK_BINDING),
		CustomerID: customerID,
		Username:   username,
		Profile:    profile,
		Active:     true,
		BaseModel:  types.GetDefaultBaseModel(s.ctx, s.GetNow()),
	}
	if cp != nil {
		b.CustomerPlanID = &cp.ID
	}
	s.Require().NoError(s.stores.PlanRepo.CreateBinding(s.ctx, b))
	return b
}

// SeedAccount stores an account with the given balance and the ledger entry
// that explains it, so replay stays consistent
func (s *BaseServiceTestSuite) SeedAccount(customerID string, balance decimal.Decimal, mutate ...func(*account.BillingAccount)) *account.BillingAccount {
	a := account.New(s.ctx, customerID, s.GetNow())
	a.Balance = balance.Round(2)
	for _, fn := range mutate {
		fn(a)
	}
	s.stores.AccountRepo.Put(a)

	if !balance.IsZero() {
		entryType := types.LedgerEntryTypeDebit
		if balance.IsNegative() {
			entryType = types.LedgerEntryTypeCredit
		}
		s.Require().NoError(s.stores.LedgerRepo.Append(s.ctx, ledger.NewEntry(s.ctx, ledger.EntryParams{
			CustomerID:  customerID,
			Book:        types.LedgerBookBalance,
			Type:        entryType,
			Amount:      balance.Abs(),
			Description: "opening balance",
		}, s.GetNow())))
	}
	return a
}

// GetAccount reads the stored account, failing the test when missing
func (s *BaseServiceTestSuite) GetAccount(customerID string) *account.BillingAccount {
	a, err := s.stores.AccountRepo.Get(s.ctx, customerID)
	s.Require().NoError(err)
	return a
}

// AssertLedgerConsistent checks that the BALANCE book replays to the stored balance
func (s *BaseServiceTestSuite) AssertLedgerConsistent(customerID string) {
	a := s.GetAccount(customerID)
	entries, err := s.stores.LedgerRepo.List(s.ctx, types.NewReplayLedgerEntryFilter(customerID, types.LedgerBookBalance))
	s.Require().NoError(err)
	s.Require().NoError(ledger.Verify(customerID, a.Balance, entries))
}
