package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wispbill/wispbill/internal/api/cron"
	v1 "github.com/wispbill/wispbill/internal/api/v1"
	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/rest/middleware"
)

type Handlers struct {
	Health         *v1.HealthHandler
	Invoice        *v1.InvoiceHandler
	Payment        *v1.PaymentHandler
	AdvancePayment *v1.AdvancePaymentHandler
	Account        *v1.AccountHandler

	CronInvoice *cron.InvoiceHandler
	CronDunning *cron.DunningHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.CORSMiddleware(cfg.Server.AllowedOrigins),
		middleware.RequestIDMiddleware,
		middleware.OperatorMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.SentryScopeMiddleware,
		middleware.MetricsMiddleware(m),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.POST("/generate", handlers.Invoice.GenerateDebt)
		invoices.POST("/generate/:customer_id", handlers.Invoice.GenerateCustomerDebt)
		invoices.POST("/:id/void", handlers.Invoice.VoidInvoice)
	}

	payments := router.Group("/payments")
	{
		payments.POST("", handlers.Payment.RecordPayment)
		payments.GET("", handlers.Payment.ListPayments)
		payments.GET("/:id", handlers.Payment.GetPayment)
		payments.POST("/:id/void", handlers.Payment.VoidPayment)
	}

	advances := router.Group("/advance-payments")
	{
		advances.POST("", handlers.AdvancePayment.CreateAdvancePayment)
		advances.GET("", handlers.AdvancePayment.ListAdvancePayments)
		advances.POST("/apply", handlers.AdvancePayment.ApplyToInvoice)
		advances.GET("/:id", handlers.AdvancePayment.GetAdvancePayment)
		advances.DELETE("/:id", handlers.AdvancePayment.DeleteAdvancePayment)
	}

	accounts := router.Group("/accounts")
	{
		accounts.GET("", handlers.Account.ListAccounts)
		accounts.GET("/:customer_id", handlers.Account.GetAccount)
		accounts.PUT("/:customer_id", handlers.Account.UpdateAccount)
		accounts.GET("/:customer_id/ledger", handlers.Account.ListLedgerEntries)
		accounts.GET("/:customer_id/verify", handlers.Account.VerifyBalance)
		accounts.POST("/:customer_id/suspend", handlers.Account.Suspend)
		accounts.POST("/:customer_id/reactivate", handlers.Account.Reactivate)
		accounts.PUT("/:customer_id/commitment", handlers.Account.SetPaymentCommitment)
		accounts.DELETE("/:customer_id/commitment", handlers.Account.RemovePaymentCommitment)
	}

	router.GET("/commitments", handlers.Account.ListActiveCommitments)

	cronGroup := router.Group("/cron")
	{
		cronGroup.POST("/invoices/generate", handlers.CronInvoice.GenerateMonthlyDebt)
		cronGroup.POST("/invoices/mark-overdue", handlers.CronInvoice.MarkOverdueInvoices)
		cronGroup.POST("/advance-payments/apply", handlers.CronInvoice.ApplyAdvancePayments)

		cronGroup.POST("/dunning/reminder", handlers.CronDunning.RunReminder)
		cronGroup.POST("/dunning/daily-cut", handlers.CronDunning.RunDailyCut)
		cronGroup.POST("/dunning/monthly-cut", handlers.CronDunning.RunMonthlyCut)
		cronGroup.POST("/dunning/expired-commitments", handlers.CronDunning.ProcessExpiredPaymentCommitments)
	}
}
