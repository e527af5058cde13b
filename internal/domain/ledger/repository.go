package ledger

import (
	"context"

	"github.com/wispbill/wispbill/internal/types"
)

// Repository is append-only: entries are never updated or deleted
type Repository interface {
	Append(ctx context.Context, entries ...*Entry) error
	// List returns entries in insertion order
	List(ctx context.Context, filter *types.LedgerEntryFilter) ([]*Entry, error)
	Count(ctx context.Context, filter *types.LedgerEntryFilter) (int, error)
}
