package repository

import (
	"context"

	"github.com/wispbill/wispbill/internal/cache"
	"github.com/wispbill/wispbill/internal/domain/plan"
)

// cachedPlanRepository serves plan reads from an LRU cache. Plans are
// immutable once created, so entries only leave the cache by eviction or TTL.
// Customer plans and bindings change state and always hit the store.
type cachedPlanRepository struct {
	plan.Repository
	plans cache.Cache[*plan.Plan]
}

// NewCachedPlanRepository wraps repo with a plan cache
func NewCachedPlanRepository(repo plan.Repository, plans cache.Cache[*plan.Plan]) plan.Repository {
	return &cachedPlanRepository{Repository: repo, plans: plans}
}

func (r *cachedPlanRepository) GetPlan(ctx context.Context, id string) (*plan.Plan, error) {
	key := cache.GenerateKey(cache.PrefixPlan, id)
	if p, ok := r.plans.Get(ctx, key); ok {
		cp := *p
		return &cp, nil
	}

	p, err := r.Repository.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	stored := *p
	r.plans.Set(ctx, key, &stored)
	return p, nil
}

func (r *cachedPlanRepository) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if err := r.Repository.CreatePlan(ctx, p); err != nil {
		return err
	}
	r.plans.Delete(ctx, cache.GenerateKey(cache.PrefixPlan, p.ID))
	return nil
}
