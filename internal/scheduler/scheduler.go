package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wispbill/wispbill/internal/config"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/sentry"
	"github.com/wispbill/wispbill/internal/service"
	"github.com/wispbill/wispbill/internal/types"
)

// Job is one recurring billing task
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Scheduler runs the billing jobs on their cron expressions. Jobs are
// independent entries; a job still running when its next tick fires is
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *logger.Logger
	sentry *sentry.Service
}

// NewScheduler registers every job that has a schedule configured.
// Dunning jobs are only registered when dunning is enabled.
func NewScheduler(
	cfg *config.Configuration,
	log *logger.Logger,
	sentrySvc *sentry.Service,
	invoiceService service.InvoiceService,
	advanceService service.AdvancePaymentService,
	dunningService service.DunningService,
) (*Scheduler, error) {
	jobs := []Job{
		{
			Name:     "generate_monthly_debt",
			Schedule: cfg.Dunning.InvoiceSchedule,
			Run: func(ctx context.Context) error {
				_, err := invoiceService.GenerateMonthlyDebt(ctx)
				return err
			},
		},
		{
			Name:     "apply_advance_payments",
			Schedule: cfg.Dunning.AdvanceReconcileSchedule,
			Run: func(ctx context.Context) error {
				_, err := advanceService.ApplyToPendingInvoices(ctx)
				return err
			},
		},
	}
	if cfg.Dunning.Enabled {
		jobs = append(jobs,
			Job{
				Name:     "payment_reminder",
				Schedule: cfg.Dunning.ReminderSchedule,
				Run: func(ctx context.Context) error {
					_, err := dunningService.RunReminder(ctx, false)
					return err
				},
			},
			Job{
				Name:     "daily_cut",
				Schedule: cfg.Dunning.DailyCutSchedule,
				Run: func(ctx context.Context) error {
					_, err := dunningService.RunDailyCut(ctx)
					return err
				},
			},
			Job{
				Name:     "monthly_cut",
				Schedule: cfg.Dunning.MonthlyCutSchedule,
				Run: func(ctx context.Context) error {
					_, err := dunningService.RunMonthlyCut(ctx, false)
					return err
				},
			},
			Job{
				Name:     "expired_payment_commitments",
				Schedule: cfg.Dunning.CommitmentExpirySchedule,
				Run: func(ctx context.Context) error {
					_, err := dunningService.ProcessExpiredPaymentCommitments(ctx)
					return err
				},
			},
		)
	}
	return New(cfg.Billing.Location(), log, sentrySvc, jobs...)
}

// New builds a scheduler for the given jobs. Jobs without a schedule are
// left out.
func New(loc *time.Location, log *logger.Logger, sentrySvc *sentry.Service, jobs ...Job) (*Scheduler, error) {
	cronLogger := &cronLogger{logger: log}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(
				cron.Recover(cronLogger),
				cron.SkipIfStillRunning(cronLogger),
			),
		),
		logger: log,
		sentry: sentrySvc,
	}

	for _, job := range jobs {
		if job.Schedule == "" {
			log.Infow("job has no schedule, not registering", "job", job.Name)
			continue
		}
		if _, err := s.cron.AddFunc(job.Schedule, s.wrap(job)); err != nil {
			return nil, ierr.WithError(err).
				WithHintf("Invalid cron schedule %q for job %s", job.Schedule, job.Name).
				Mark(ierr.ErrValidation)
		}
		s.jobs = append(s.jobs, job)
		log.Infow("registered job", "job", job.Name, "schedule", job.Schedule)
	}
	return s, nil
}

// wrap gives every run its own request ID and reports failures
func (s *Scheduler) wrap(job Job) func() {
	return func() {
		ctx := types.SetRequestID(context.Background(), types.GenerateUUID())
		ctx = types.SetUserID(ctx, types.DefaultUserID)
		s.RunJob(ctx, job)
	}
}

// RunJob executes a job once, outside its schedule
func (s *Scheduler) RunJob(ctx context.Context, job Job) error {
	span, ctx := s.sentry.StartJobSpan(ctx, job.Name)
	if span != nil {
		defer span.Finish()
	}

	start := time.Now()
	s.logger.Infow("job started", "job", job.Name, "request_id", types.GetRequestID(ctx))
	if err := job.Run(ctx); err != nil {
		s.logger.Errorw("job failed",
			"job", job.Name,
			"request_id", types.GetRequestID(ctx),
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		s.sentry.CaptureExceptionWithTags(err, map[string]string{"job": job.Name})
		return err
	}
	s.logger.Infow("job completed",
		"job", job.Name,
		"request_id", types.GetRequestID(ctx),
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Jobs returns the registered jobs
func (s *Scheduler) Jobs() []Job {
	return s.jobs
}

func (s *Scheduler) Start() {
	s.logger.Infow("starting scheduler", "jobs", len(s.jobs))
	s.cron.Start()
}

// Stop halts the schedule and waits for running jobs up to ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Infow("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the service logger to cron's logging interface
type cronLogger struct {
	logger *logger.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
