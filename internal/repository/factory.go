package repository

import (
	"github.com/wispbill/wispbill/internal/cache"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/advance"
	"github.com/wispbill/wispbill/internal/domain/invoice"
	"github.com/wispbill/wispbill/internal/domain/ledger"
	"github.com/wispbill/wispbill/internal/domain/payment"
	"github.com/wispbill/wispbill/internal/domain/plan"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	postgresRepo "github.com/wispbill/wispbill/internal/repository/postgres"
)

type RepositoryType string

const (
	PostgresRepo RepositoryType = "postgres"
)

func NewAccountRepository(db *postgres.DB, logger *logger.Logger) account.Repository {
	return postgresRepo.NewAccountRepository(db, logger)
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return postgresRepo.NewInvoiceRepository(db, logger)
}

func NewPaymentRepository(db *postgres.DB, logger *logger.Logger) payment.Repository {
	return postgresRepo.NewPaymentRepository(db, logger)
}

func NewLedgerRepository(db *postgres.DB, logger *logger.Logger) ledger.Repository {
	return postgresRepo.NewLedgerRepository(db, logger)
}

func NewAdvanceRepository(db *postgres.DB, logger *logger.Logger) advance.Repository {
	return postgresRepo.NewAdvanceRepository(db, logger)
}

// NewPlanRepository returns the plan store with plan reads cached in memory
func NewPlanRepository(db *postgres.DB, logger *logger.Logger) plan.Repository {
	return NewCachedPlanRepository(
		postgresRepo.NewPlanRepository(db, logger),
		cache.NewLRUCache[*plan.Plan]("plan", cache.DefaultSize, cache.DefaultExpiration),
	)
}
