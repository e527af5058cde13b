package testutil

import (
	"context"

	"github.com/samber/lo"
	"github.com/wispbill/wispbill/internal/domain/account"
	"github.com/wispbill/wispbill/internal/types"
)

// InMemoryAccountStore implements account.Repository
type InMemoryAccountStore struct {
	*InMemoryStore[*account.BillingAccount]
}

var _ account.Repository = (*InMemoryAccountStore)(nil)

func NewInMemoryAccountStore() *InMemoryAccountStore {
	return &InMemoryAccountStore{
		InMemoryStore: NewInMemoryStore(copyAccount),
	}
}

func copyAccount(a *account.BillingAccount) *account.BillingAccount {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

func (s *InMemoryAccountStore) Get(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	return s.InMemoryStore.Get(ctx, customerID)
}

func (s *InMemoryAccountStore) GetForUpdate(ctx context.Context, customerID string) (*account.BillingAccount, error) {
	return s.InMemoryStore.Get(ctx, customerID)
}

func (s *InMemoryAccountStore) GetOrCreateForUpdate(ctx context.Context, a *account.BillingAccount) (*account.BillingAccount, error) {
	if existing, err := s.InMemoryStore.Get(ctx, a.CustomerID); err == nil {
		return existing, nil
	}
	// a concurrent creator may win; read back whatever is stored
	_ = s.InMemoryStore.Create(ctx, a.CustomerID, a)
	return s.InMemoryStore.Get(ctx, a.CustomerID)
}

func (s *InMemoryAccountStore) Update(ctx context.Context, a *account.BillingAccount) error {
	return s.InMemoryStore.Update(ctx, a.CustomerID, a)
}

func (s *InMemoryAccountStore) List(ctx context.Context, filter *types.BillingAccountFilter) ([]*account.BillingAccount, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingAccountFilter()
	}
	return s.InMemoryStore.List(ctx, filter, accountFilterFn, accountSortFn)
}

func (s *InMemoryAccountStore) Count(ctx context.Context, filter *types.BillingAccountFilter) (int, error) {
	if filter == nil {
		filter = types.NewNoLimitBillingAccountFilter()
	}
	return s.InMemoryStore.Count(ctx, filter, accountFilterFn)
}

// Put stores an account as is, for test setup
func (s *InMemoryAccountStore) Put(a *account.BillingAccount) {
	if err := s.InMemoryStore.Create(context.Background(), a.CustomerID, a); err != nil {
		_ = s.InMemoryStore.Update(context.Background(), a.CustomerID, a)
	}
}

func accountFilterFn(_ context.Context, a *account.BillingAccount, filter interface{}) bool {
	f, ok := filter.(*types.BillingAccountFilter)
	if !ok {
		return true
	}
	if len(f.CustomerIDs) > 0 && !lo.Contains(f.CustomerIDs, a.CustomerID) {
		return false
	}
	if len(f.Statuses) > 0 && !lo.Contains(f.Statuses, a.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && lo.Contains(f.ExcludeStatuses, a.Status) {
		return false
	}
	if f.WithDebt && !a.HasDebt() {
		return false
	}
	if f.AutoSuspend != nil && a.AutoSuspend != *f.AutoSuspend {
		return false
	}
	if f.CommitmentDueBy != nil && (a.PaymentCommitmentDate == nil || a.PaymentCommitmentDate.After(*f.CommitmentDueBy)) {
		return false
	}
	if f.NoLiveCommitmentAt != nil && a.HasLiveCommitment(*f.NoLiveCommitmentAt) {
		return false
	}
	if f.LiveCommitmentAt != nil && !a.HasLiveCommitment(*f.LiveCommitmentAt) {
		return false
	}
	return true
}

func accountSortFn(i, j *account.BillingAccount) bool {
	return i.CustomerID < j.CustomerID
}
