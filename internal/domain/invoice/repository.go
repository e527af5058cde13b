package invoice

import (
	"context"

	"github.com/wispbill/wispbill/internal/types"
)

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create persists the invoice together with its items
	Create(ctx context.Context, inv *Invoice) error
	// Get returns the invoice with its items
	Get(ctx context.Context, id string) (*Invoice, error)
	// GetForUpdate returns the invoice locked for the rest of the transaction
	GetForUpdate(ctx context.Context, id string) (*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	List(ctx context.Context, filter *types.InvoiceFilter) ([]*Invoice, error)
	Count(ctx context.Context, filter *types.InvoiceFilter) (int, error)
	// FindOverlapping returns the customer's subscription invoices that still
	// occupy a window intersecting the period
	FindOverlapping(ctx context.Context, customerID string, period types.BillingPeriod) ([]*Invoice, error)
	// MarkOverdue flips open invoices due before the instant and returns how many changed
	MarkOverdue(ctx context.Context, filter *types.InvoiceFilter) (int, error)
}
