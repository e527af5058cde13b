package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/integration/notification"
	"github.com/wispbill/wispbill/internal/types"
)

// SuspensionService is the single suspend and reactivate primitive every
// dunning trigger and operator action goes through. Both calls are
// idempotent: an account not in the source state is reported as skipped and
// left untouched.
type SuspensionService interface {
	SuspendCustomer(ctx context.Context, customerID string, opts types.SuspensionOptions) (*types.SuspensionTally, error)
	ReactivateCustomer(ctx context.Context, customerID string) (*types.SuspensionTally, error)
}

type suspensionService struct {
	ServiceParams
}

func NewSuspensionService(params ServiceParams) SuspensionService {
	return &suspensionService{ServiceParams: params}
}

// profileChange is one binding to move to a new profile
type profileChange struct {
	binding *plan.NetworkBinding
	profile string
}

type profileChangeResult struct {
	username string
	err      error
}

func (s *suspensionService) SuspendCustomer(ctx context.Context, customerID string, opts types.SuspensionOptions) (*types.SuspensionTally, error) {
	return s.suspend(ctx, customerID, opts, nil)
}

// suspend is SuspendCustomer with an optional predicate re-evaluated on the
// locked account. Evaluators select outside the transaction, so a payment or
// commitment landing in between turns the cut into a skip.
func (s *suspensionService) suspend(ctx context.Context, customerID string, opts types.SuspensionOptions, guard func(*account.BillingAccount, time.Time) bool) (*types.SuspensionTally, error) {
	tally := &types.SuspensionTally{
		CustomerID: customerID,
		Outcome:    types.SuspensionOutcomeSkipped,
	}

	var acc *account.BillingAccount
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.getOrCreateAccount(ctx, customerID)
		if err != nil {
			return err
		}
		now := s.now()
		if acc.Status != types.AccountStatusActive {
			return nil
		}
		if guard != nil && !guard(acc, now) {
			return nil
		}

		acc.Status = types.AccountStatusSuspended
		acc.SuspendedAt = lo.ToPtr(now)
		if opts.ClearCommitment {
			acc.ClearCommitment()
		}
		acc.Touch(ctx, now)
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}
		if _, err := s.PlanRepo.TransitionCustomerPlans(ctx, customerID,
			types.CustomerPlanStatusActive, types.CustomerPlanStatusSuspended); err != nil {
			return err
		}
		tally.Outcome = types.SuspensionOutcomeSuspended
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.countTransition(tally.Outcome)
	if !tally.Changed() {
		s.Logger.Debugw("suspension skipped", "customer_id", customerID, "status", acc.Status)
		return tally, nil
	}

	s.Logger.Infow("customer suspended",
		"customer_id", customerID,
		"balance", acc.Balance.String(),
		"trigger", opts.Trigger,
		"reason", opts.Reason)

	cutProfile := s.Config.Network.CutProfile
	bindings, err := s.PlanRepo.ListActiveBindings(ctx, customerID)
	if err != nil {
		s.Logger.Errorw("failed to list bindings of suspended customer", "customer_id", customerID, "error", err)
		tally.Errors = append(tally.Errors, err.Error())
	}
	changes := make([]profileChange, 0, len(bindings))
	for _, b := range bindings {
		if b.Profile == cutProfile {
			tally.Skipped++
			continue
		}
		changes = append(changes, profileChange{binding: b, profile: cutProfile})
	}
	s.applyProfiles(ctx, customerID, changes, tally)

	s.notify(ctx, customerID, notification.KindSuspension,
		fmt.Sprintf("Your service has been suspended for an outstanding balance of %s %s.",
			s.Config.Billing.CurrencyLabel, acc.Balance.StringFixed(2)))
	s.publish(ctx, types.EventAccountSuspended, customerID, tally)
	return tally, nil
}

func (s *suspensionService) ReactivateCustomer(ctx context.Context, customerID string) (*types.SuspensionTally, error) {
	tally := &types.SuspensionTally{
		CustomerID: customerID,
		Outcome:    types.SuspensionOutcomeSkipped,
	}

	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		acc, err := s.AccountRepo.GetForUpdate(ctx, customerID)
		if err != nil {
			return err
		}
		if acc.Status != types.AccountStatusSuspended {
			return nil
		}

		acc.Status = types.AccountStatusActive
		acc.SuspendedAt = nil
		acc.Touch(ctx, s.now())
		if err := s.AccountRepo.Update(ctx, acc); err != nil {
			return err
		}
		if _, err := s.PlanRepo.TransitionCustomerPlans(ctx, customerID,
			types.CustomerPlanStatusSuspended, types.CustomerPlanStatusActive); err != nil {
			return err
		}
		tally.Outcome = types.SuspensionOutcomeReactivated
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.countTransition(tally.Outcome)
	if !tally.Changed() {
		return tally, nil
	}

	s.Logger.Infow("customer reactivated", "customer_id", customerID)

	bindings, err := s.PlanRepo.ListActiveBindings(ctx, customerID)
	if err != nil {
		s.Logger.Errorw("failed to list bindings of reactivated customer", "customer_id", customerID, "error", err)
		tally.Errors = append(tally.Errors, err.Error())
	}
	changes := make([]profileChange, 0, len(bindings))
	for _, b := range bindings {
		if !s.Config.Network.IsCutProfile(b.Profile) {
			tally.Skipped++
			continue
		}
		profile, err := s.planProfile(ctx, b)
		if err != nil {
			tally.Failed++
			tally.Errors = append(tally.Errors, fmt.Sprintf("%s: %v", b.Username, err))
			continue
		}
		changes = append(changes, profileChange{binding: b, profile: profile})
	}
	s.applyProfiles(ctx, customerID, changes, tally)

	s.notify(ctx, customerID, notification.KindReactivation, "Your service has been restored. Thank you for your payment.")
	s.publish(ctx, types.EventAccountReactivated, customerID, tally)
	return tally, nil
}

// planProfile resolves the profile a binding runs on in good standing
func (s *suspensionService) planProfile(ctx context.Context, b *plan.NetworkBinding) (string, error) {
	if b.CustomerPlanID == nil {
		return "", ierr.NewError("binding has no plan").
			WithHintf("Network user %s is not attached to a plan", b.Username).
			Mark(ierr.ErrValidation)
	}
	cp, err := s.PlanRepo.GetCustomerPlan(ctx, *b.CustomerPlanID)
	if err != nil {
		return "", err
	}
	p, err := s.PlanRepo.GetPlan(ctx, cp.PlanID)
	if err != nil {
		return "", err
	}
	if p.NetworkProfile == "" {
		return "", ierr.NewErrorf("plan %s has no network profile", p.ID).Mark(ierr.ErrValidation)
	}
	return p.NetworkProfile, nil
}

// applyProfiles calls the controller for each change independently with
// bounded parallelism and records the applied profile on success
func (s *suspensionService) applyProfiles(ctx context.Context, customerID string, changes []profileChange, tally *types.SuspensionTally) {
	if len(changes) == 0 {
		return
	}

	p := pool.NewWithResults[profileChangeResult]().WithMaxGoroutines(max(1, s.Config.Network.MaxParallel))
	for _, change := range changes {
		p.Go(func() profileChangeResult {
			b := change.binding
			span, ctx := s.Sentry.StartExternalSpan(ctx, "network", "change_profile")
			if span != nil {
				defer span.Finish()
			}
			if err := s.NetworkController.ChangeProfile(ctx, b.Username, change.profile); err != nil {
				return profileChangeResult{username: b.Username, err: err}
			}
			if err := s.PlanRepo.UpdateBindingProfile(ctx, b.ID, change.profile); err != nil {
				s.Logger.Errorw("failed to record applied profile",
					"customer_id", customerID,
					"binding_id", b.ID,
					"profile", change.profile,
					"error", err)
			}
			return profileChangeResult{username: b.Username}
		})
	}

	for _, result := range p.Wait() {
		label := "success"
		if result.err != nil {
			label = "failed"
			tally.Failed++
			tally.Errors = append(tally.Errors, fmt.Sprintf("%s: %v", result.username, result.err))
			s.reportExternal(ctx, systemNetwork, customerID, result.err, "username", result.username)
		} else {
			tally.Success++
		}
		if s.Metrics != nil {
			s.Metrics.ProfileChanges.WithLabelValues(label).Inc()
		}
	}
}

func (s *suspensionService) notify(ctx context.Context, customerID string, kind notification.Kind, text string) {
	if _, err := s.Notifier.Send(ctx, &notification.Message{
		CustomerID: customerID,
		Kind:       kind,
		Text:       text,
	}); err != nil {
		s.reportExternal(ctx, systemNotification, customerID, err, "kind", kind)
	}
}

func (s *suspensionService) countTransition(outcome types.SuspensionOutcome) {
	if s.Metrics != nil {
		s.Metrics.AccountTransitions.WithLabelValues(string(outcome)).Inc()
	}
}
