package testutil

import (
	"context"
	"slices"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/plan"
	ierr "github.com/wispbill/wispbill/internal/errors"
	"github.com/wispbill/wispbill/internal/types"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	plans         *InMemoryStore[*plan.Plan]
	customerPlans *InMemoryStore[*plan.CustomerPlan]
	bindings      *InMemoryStore[*plan.NetworkBinding]
}

var _ plan.Repository = (*InMemoryPlanStore)(nil)

func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		plans: NewInMemoryStore(func(p *plan.Plan) *plan.Plan {
			c := *p
			return &c
		}),
		customerPlans: NewInMemoryStore(func(cp *plan.CustomerPlan) *plan.CustomerPlan {
			c := *cp
			return &c
		}),
		bindings: NewInMemoryStore(func(b *plan.NetworkBinding) *plan.NetworkBinding {
			c := *b
			return &c
		}),
	}
}

// Snapshot implements Snapshotter
func (s *InMemoryPlanStore) Snapshot() func() {
	restores := []func(){
		s.plans.Snapshot(),
		s.customerPlans.Snapshot(),
		s.bindings.Snapshot(),
	}
	return func() {
		for _, restore := range restores {
			restore()
		}
	}
}

func (s *InMemoryPlanStore) Clear() {
	s.plans.Clear()
	s.customerPlans.Clear()
	s.bindings.Clear()
}

func (s *InMemoryPlanStore) CreatePlan(ctx context.Context, p *plan.Plan) error {
	return s.plans.Create(ctx, p.ID, p)
}

func (s *InMemoryPlanStore) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	return s.plans.Get(ctx, id)
}

func (s *InMemoryPlanStore) CreateCustomerPlan(ctx context.Context, cp *plan.CustomerPlan) error {
	if _, err := s.plans.Get(ctx, cp.PlanID); err != nil {
		return ierr.WithError(err).
			WithHint("Plan does not exist").
			Mark(ierr.ErrValidation)
	}
	return s.customerPlans.Create(ctx, cp.ID, cp)
}

func (s *InMemoryPlanStore) GetCustomerPlan(ctx context.Context, id string) (*plan.CustomerPlan, error) {
	return s.customerPlans.Get(ctx, id)
}

func (s *InMemoryPlanStore) ListCustomerPlans(ctx context.Context, customerID string, statuses ...types.CustomerPlanStatus) ([]*plan.CustomerPlan, error) {
	return s.customerPlans.List(ctx, nil, func(_ context.Context, cp *plan.CustomerPlan, _ interface{}) bool {
		return cp.CustomerID == customerID && (len(statuses) == 0 || lo.Contains(statuses, cp.Status))
	}, func(i, j *plan.CustomerPlan) bool {
		if !i.StartDate.Equal(j.StartDate) {
			return i.StartDate.Before(j.StartDate)
		}
		return i.ID < j.ID
	})
}

func (s *InMemoryPlanStore) ListBillableCustomerIDs(ctx context.Context) ([]string, error) {
	active, err := s.customerPlans.List(ctx, nil, func(_ context.Context, cp *plan.CustomerPlan, _ interface{}) bool {
		return cp.Status == types.CustomerPlanStatusActive
	}, nil)
	if err != nil {
		return nil, err
	}
	ids := lo.Uniq(lo.Map(active, func(cp *plan.CustomerPlan, _ int) string { return cp.CustomerID }))
	slices.Sort(ids)
	return ids, nil
}

func (s *InMemoryPlanStore) TransitionCustomerPlans(ctx context.Context, customerID string, from, to types.CustomerPlanStatus) (int, error) {
	matching, err := s.ListCustomerPlans(ctx, customerID, from)
	if err != nil {
		return 0, err
	}
	for _, cp := range matching {
		if _, err := s.customerPlans.Mutate(cp.ID, func(c *plan.CustomerPlan) (*plan.CustomerPlan, bool) {
			c.Status = to
			return c, true
		}); err != nil {
			return 0, err
		}
	}
	return len(matching), nil
}

func (s *InMemoryPlanStore) CreateBinding(ctx context.Context, b *plan.NetworkBinding) error {
	taken, err := s.bindings.Count(ctx, nil, func(_ context.Context, existing *plan.NetworkBinding, _ interface{}) bool {
		return existing.Username == b.Username
	})
	if err != nil {
		return err
	}
	if taken > 0 {
		return ierr.NewError("username already bound").
			WithHintf("Network username %s is already in use", b.Username).
			Mark(ierr.ErrAlreadyExists)
	}
	return s.bindings.Create(ctx, b.ID, b)
}

func (s *InMemoryPlanStore) ListActiveBindings(ctx context.Context, customerID string) ([]*plan.NetworkBinding, error) {
	return s.bindings.List(ctx, nil, func(_ context.Context, b *plan.NetworkBinding, _ interface{}) bool {
		return b.CustomerID == customerID && b.Active
	}, func(i, j *plan.NetworkBinding) bool {
		return i.Username < j.Username
	})
}

func (s *InMemoryPlanStore) UpdateBindingProfile(_ context.Context, id, profile string) error {
	_, err := s.bindings.Mutate(id, func(b *plan.NetworkBinding) (*plan.NetworkBinding, bool) {
		b.Profile = profile
		return b, true
	})
	return err
}

// Binding returns a stored binding, for assertions
func (s *InMemoryPlanStore) Binding(id string) *plan.NetworkBinding {
	b, _ := s.bindings.Get(context.Background(), id)
	return b
}
