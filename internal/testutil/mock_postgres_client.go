package testutil

import (
	"context"
	"sync"

	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/postgres"
	"github.com/wispbill/wispbill/internal/types"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

type mockTx struct{}

// MockPostgresClient emulates serializable transactions over in-memory
// stores: top-level transactions run one at a time and a failing fn restores
// every registered store. Nested calls behave like savepoints.
type MockPostgresClient struct {
	mu        sync.Mutex
	stores    []Snapshotter
	logger    *logger.Logger
	commits   int
	rollbacks int
	counterMu sync.Mutex
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, stores ...Snapshotter) *MockPostgresClient {
	return &MockPostgresClient{
		logger: logger,
		stores: stores,
	}
}

// WithTx executes the given function within an emulated transaction
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	if _, nested := ctx.Value(types.CtxDBTransaction).(*mockTx); !nested {
		c.mu.Lock()
		defer c.mu.Unlock()
		ctx = context.WithValue(ctx, types.CtxDBTransaction, &mockTx{})
	}

	restores := make([]func(), 0, len(c.stores))
	for _, store := range c.stores {
		restores = append(restores, store.Snapshot())
	}

	if err := fn(ctx); err != nil {
		for _, restore := range restores {
			restore()
		}
		c.count(&c.rollbacks)
		c.logger.Debugw("mock transaction rolled back", "error", err)
		return err
	}
	c.count(&c.commits)
	return nil
}

func (c *MockPostgresClient) count(n *int) {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	*n++
}

// Rollbacks returns how many transactions were rolled back
func (c *MockPostgresClient) Rollbacks() int {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	return c.rollbacks
}

// Commits returns how many transactions committed, savepoints included
func (c *MockPostgresClient) Commits() int {
	c.counterMu.Lock()
	defer c.counterMu.Unlock()
	return c.commits
}
