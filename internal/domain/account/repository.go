package account

import (
	"context"

	"github.com/wispbill/wispbill/internal/types"
)

// Repository defines the interface for billing account persistence
type Repository interface {
	Get(ctx context.Context, customerID string) (*BillingAccount, error)
	// GetForUpdate reads the row locked for the rest of the transaction
	GetForUpdate(ctx context.Context, customerID string) (*BillingAccount, error)
	// GetOrCreateForUpdate creates the account on first use, then locks it
	GetOrCreateForUpdate(ctx context.Context, account *BillingAccount) (*BillingAccount, error)
	Update(ctx context.Context, account *BillingAccount) error
	List(ctx context.Context, filter *types.BillingAccountFilter) ([]*BillingAccount, error)
	Count(ctx context.Context, filter *types.BillingAccountFilter) (int, error)
}
