package service

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/types"
	"golang.org/x/sync/singleflight"
)

// DunningService holds the scheduled evaluators that decide who gets a
// reminder and who gets cut. Every suspension goes through SuspensionService.
type DunningService interface {
	// RunReminder notifies every indebted account a fixed number of days
	// before the period ends. force ignores the calendar check.
	RunReminder(ctx context.Context, force bool) (*types.DunningRunResult, error)
	// RunDailyCut marks overdue invoices and suspends every cuttable account
	RunDailyCut(ctx context.Context) (*types.DunningRunResult, error)
	// RunMonthlyCut suspends every cuttable account on the configured day of
	// the month. force ignores the calendar check.
	RunMonthlyCut(ctx context.Context, force bool) (*types.DunningRunResult, error)
	// ProcessExpiredPaymentCommitments suspends indebted accounts whose
	// promise to pay has lapsed and clears the promise
	ProcessExpiredPaymentCommitments(ctx context.Context) (*types.DunningRunResult, error)
}

type dunningService struct {
	ServiceParams
	suspension *suspensionService
	reminded   *cache.Cache
	runs       singleflight.Group
}

// NewDunningService returns an evaluator set. The reminder guard lives in
// the instance, so a process should share one.
func NewDunningService(params ServiceParams) DunningService {
	return &dunningService{
		ServiceParams: params,
		suspension:    &suspensionService{ServiceParams: params},
		reminded:      cache.New(32*24*time.Hour, time.Hour),
	}
}

func (s *dunningService) RunReminder(ctx context.Context, force bool) (*types.DunningRunResult, error) {
	return s.run(ctx, types.DunningTriggerReminder, func(ctx context.Context) (*types.DunningRunResult, error) {
		result := types.NewDunningRunResult(types.DunningTriggerReminder)
		now := s.now()
		period := types.NewMonthlyPeriod(now, s.location())
		if !force && !s.reminderDay(now, period) {
			s.Logger.Debugw("not a reminder day", "now", now, "period", period.String())
			return result, nil
		}
		result.Ran = true

		filter := types.NewNoLimitBillingAccountFilter()
		filter.WithDebt = true
		filter.ExcludeStatuses = []types.AccountStatus{types.AccountStatusCancelled}
		accounts, err := s.AccountRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		for _, acc := range accounts {
			result.Total++
			item := types.DunningRunItem{CustomerID: acc.CustomerID}

			key := fmt.Sprintf("%s:%s", acc.CustomerID, period.Key())
			if _, found := s.reminded.Get(key); found {
				result.Skipped++
				item.Outcome = types.SuspensionOutcomeSkipped
				result.Items = append(result.Items, item)
				continue
			}

			delivery, err := s.Notifier.Send(ctx, &notification.Message{
				CustomerID: acc.CustomerID,
				Kind:       notification.KindReminder,
				Text: fmt.Sprintf("Reminder: you have an outstanding balance of %s %s. Please pay before %s to avoid a service interruption.",
					s.Config.Billing.CurrencyLabel,
					acc.Balance.StringFixed(2),
					period.End.Format(time.DateOnly)),
			})
			switch {
			case err != nil:
				result.Failed++
				item.Error = err.Error()
				s.reportExternal(ctx, systemNotification, acc.CustomerID, err, "kind", notification.KindReminder)
			case delivery == nil || !delivery.Delivered:
				result.Failed++
				item.Error = "reminder not delivered"
			default:
				result.Notified++
				item.Notified = true
				s.reminded.SetDefault(key, now)
			}
			result.Items = append(result.Items, item)
		}
		return result, nil
	})
}

// reminderDay reports whether now falls on the configured day before the
// period end, in the billing timezone
func (s *dunningService) reminderDay(now time.Time, period types.BillingPeriod) bool {
	target := types.StartOfDay(period.End).AddDate(0, 0, -s.Config.Dunning.ReminderDaysBeforePeriodEnd)
	return types.StartOfDay(now.In(s.location())).Equal(target)
}

func (s *dunningService) RunDailyCut(ctx context.Context) (*types.DunningRunResult, error) {
	return s.run(ctx, types.DunningTriggerDailyCut, func(ctx context.Context) (*types.DunningRunResult, error) {
		if _, err := NewInvoiceService(s.ServiceParams).MarkOverdueInvoices(ctx); err != nil {
			return nil, err
		}
		return s.cut(ctx, types.DunningTriggerDailyCut, "overdue balance")
	})
}

func (s *dunningService) RunMonthlyCut(ctx context.Context, force bool) (*types.DunningRunResult, error) {
	return s.run(ctx, types.DunningTriggerMonthlyCut, func(ctx context.Context) (*types.DunningRunResult, error) {
		now := s.now().In(s.location())
		if !force && now.Day() != s.Config.Dunning.MonthlyCutDay {
			s.Logger.Debugw("not the monthly cut day", "day", now.Day(), "cut_day", s.Config.Dunning.MonthlyCutDay)
			return types.NewDunningRunResult(types.DunningTriggerMonthlyCut), nil
		}
		return s.cut(ctx, types.DunningTriggerMonthlyCut, "unpaid balance at monthly cut")
	})
}

// cut suspends every account matching the dunning predicate
func (s *dunningService) cut(ctx context.Context, trigger types.DunningTrigger, reason string) (*types.DunningRunResult, error) {
	result := types.NewDunningRunResult(trigger)
	result.Ran = true
	now := s.now()

	filter := types.NewNoLimitBillingAccountFilter()
	filter.Statuses = []types.AccountStatus{types.AccountStatusActive}
	filter.WithDebt = true
	filter.AutoSuspend = lo.ToPtr(true)
	filter.NoLiveCommitmentAt = &now
	accounts, err := s.AccountRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := types.SuspensionOptions{Reason: reason, Trigger: trigger}
	for _, acc := range accounts {
		s.suspendOne(ctx, result, acc.CustomerID, opts, (*account.BillingAccount).Cuttable)
	}
	return result, nil
}

func (s *dunningService) ProcessExpiredPaymentCommitments(ctx context.Context) (*types.DunningRunResult, error) {
	return s.run(ctx, types.DunningTriggerCommitmentExpired, func(ctx context.Context) (*types.DunningRunResult, error) {
		result := types.NewDunningRunResult(types.DunningTriggerCommitmentExpired)
		result.Ran = true
		now := s.now()

		filter := types.NewNoLimitBillingAccountFilter()
		filter.CommitmentDueBy = &now
		filter.WithDebt = true
		filter.ExcludeStatuses = []types.AccountStatus{types.AccountStatusSuspended}
		accounts, err := s.AccountRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}

		opts := types.SuspensionOptions{
			Reason:          "payment commitment expired",
			Trigger:         types.DunningTriggerCommitmentExpired,
			ClearCommitment: true,
		}
		expired := func(a *account.BillingAccount, now time.Time) bool {
			return a.HasDebt() && a.CommitmentExpired(now)
		}
		for _, acc := range accounts {
			s.suspendOne(ctx, result, acc.CustomerID, opts, expired)
		}
		return result, nil
	})
}

func (s *dunningService) suspendOne(ctx context.Context, result *types.DunningRunResult, customerID string, opts types.SuspensionOptions, guard func(*account.BillingAccount, time.Time) bool) {
	result.Total++
	item := types.DunningRunItem{CustomerID: customerID}

	tally, err := s.suspension.suspend(ctx, customerID, opts, guard)
	switch {
	case err != nil:
		result.Failed++
		item.Outcome = types.SuspensionOutcomeFailed
		item.Error = err.Error()
		s.Logger.Errorw("failed to suspend customer",
			"customer_id", customerID,
			"trigger", opts.Trigger,
			"error", err)
	case tally.Changed():
		result.Cut++
		item.Outcome = tally.Outcome
		item.Tally = tally
	default:
		result.Skipped++
		item.Outcome = tally.Outcome
		item.Tally = tally
	}
	result.Items = append(result.Items, item)
}

// run collapses concurrent runs of the same evaluator into one and records
// the outcome
func (s *dunningService) run(ctx context.Context, trigger types.DunningTrigger, fn func(ctx context.Context) (*types.DunningRunResult, error)) (*types.DunningRunResult, error) {
	v, err, shared := s.runs.Do(trigger.String(), func() (interface{}, error) {
		span, ctx := s.Sentry.StartJobSpan(ctx, "dunning."+trigger.String())
		if span != nil {
			defer span.Finish()
		}

		start := time.Now()
		result, err := fn(ctx)
		if err != nil {
			s.Logger.Errorw("dunning run failed", "trigger", trigger, "error", err)
			return nil, err
		}
		if s.Metrics != nil {
			s.Metrics.DunningRuns.WithLabelValues(trigger.String(), fmt.Sprintf("%t", result.Ran)).Inc()
		}
		s.Logger.Infow("dunning run completed",
			"trigger", trigger,
			"ran", result.Ran,
			"total", result.Total,
			"cut", result.Cut,
			"failed", result.Failed,
			"skipped", result.Skipped,
			"notified", result.Notified,
			"duration_ms", time.Since(start).Milliseconds())
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.Logger.Debugw("joined an in-flight dunning run", "trigger", trigger)
	}
	return v.(*types.DunningRunResult), nil
}
