package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/wispbill/wispbill/internal/api"
	"github.com/wispbill/wispbill/internal/api/cron"
	v1 "github.com/wispbill/wispbill/internal/api/v1"
	"github.com/wispbill/wispbill/internal/config"
	"github.com/wispbill/wispbill/internal/domain/proration"
	"github.com/wispbill/wispbill/internal/httpclient"
	"github.com/wispbill/wispbill/internal/integration/document"
	"github.com/wispbill/wispbill/internal/integration/network"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/metrics"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/publisher"
	"github.com/wispbill/wispbill/internal/pubsub"
	"github.com/wispbill/wispbill/internal/pubsub/memory"
	pubsubRouter "github.com/wispbill/wispbill/internal/pubsub/router"
	"github.com/wispbill/wispbill/internal/repository"
	"github.com/wispbill/wispbill/internal/s3"
	"github.com/wispbill/wispbill/internal/scheduler"
	"github.com/wispbill/wispbill/internal/sentry"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
	"github.com/wispbill/wispbill/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			metrics.NewMetrics,

			// Clock
			clockwork.NewRealClock,

			// Events
			memory.NewPubSub,
			publisher.NewEventPublisher,
			pubsubRouter.NewRouter,

			// HTTP Client
			httpclient.NewDefaultClient,

			// Collaborators
			network.NewController,
			notification.NewGateway,
			document.NewGenerator,
			s3.NewService,
			proration.NewCalculator,

			// Repositories
			repository.NewAccountRepository,
			repository.NewLedgerRepository,
			repository.NewInvoiceRepository,
			repository.NewPaymentRepository,
			repository.NewAdvanceRepository,
			repository.NewPlanRepository,
		),
		sentry.Module(),
		postgres.Module(),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,

			service.NewAccountService,
			service.NewInvoiceService,
			service.NewPaymentService,
			service.NewAdvancePaymentService,
			service.NewSuspensionService,
			service.NewDunningService,
			service.NewPaymentCommitmentService,
		),
	)

	// API and scheduler
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
			scheduler.NewScheduler,
		),
		fx.Invoke(
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	clock clockwork.Clock,
	accountService service.AccountService,
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	advanceService service.AdvancePaymentService,
	suspensionService service.SuspensionService,
	dunningService service.DunningService,
	commitmentService service.PaymentCommitmentService,
) api.Handlers {
	return api.Handlers{
		Health:         v1.NewHealthHandler(logger),
		Invoice:        v1.NewInvoiceHandler(invoiceService, cfg, clock, logger),
		Payment:        v1.NewPaymentHandler(paymentService, logger),
		AdvancePayment: v1.NewAdvancePaymentHandler(advanceService, logger),
		Account:        v1.NewAccountHandler(accountService, suspensionService, commitmentService, logger),
		CronInvoice:    cron.NewInvoiceHandler(invoiceService, advanceService, logger),
		CronDunning:    cron.NewDunningHandler(dunningService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, m)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	sched *scheduler.Scheduler,
	router *pubsubRouter.Router,
	subscriber pubsub.PubSub,
	m *metrics.Metrics,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startScheduler(lc, sched, log)
		startMessageRouter(lc, router, subscriber, m, log)
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, router, subscriber, m, log)
	case types.ModeScheduler:
		startScheduler(lc, sched, log)
		startMessageRouter(lc, router, subscriber, m, log)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...")
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}

func startScheduler(lc fx.Lifecycle, sched *scheduler.Scheduler, log *logger.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting scheduler", "jobs", len(sched.Jobs()))
			sched.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping scheduler")
			return sched.Stop(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	router *pubsubRouter.Router,
	subscriber pubsub.PubSub,
	m *metrics.Metrics,
	log *logger.Logger,
) {
	// Register handlers before starting the router
	router.AddNoPublishHandler(
		"billing_event_log",
		types.BillingEventsTopic,
		subscriber,
		publisher.NewEventLogHandler(m, log),
	)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("starting message router")
			go func() {
				if err := router.Run(context.Background()); err != nil {
					log.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("stopping message router")
			return router.Close()
		},
	})
}
