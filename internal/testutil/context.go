package testutil

import (
	"context"

	"github.com/wispbill/wispbill/internal/types"
)

// TestOperatorID is recorded as created_by in service tests
const TestOperatorID = "operator_test"

func SetupContext() context.Context {
	ctx := context.Background()
	ctx = types.SetUserID(ctx, TestOperatorID)
	ctx = types.SetRequestID(ctx, types.GenerateUUID())
	return ctx
}
