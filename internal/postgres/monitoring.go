package postgres

import (
	"context"

	"github.com/wispbill/wispbill/internal/logger"
	"github.com/wispbill/wispbill/internal/sentry"
)

// SentryClient wraps the transaction client with Sentry monitoring
type SentryClient struct {
	client IClient
	sentry *sentry.Service
	logger *logger.Logger
}

func NewSentryClient(client IClient, sentry *sentry.Service, logger *logger.Logger) IClient {
	return &SentryClient{
		client: client,
		sentry: sentry,
		logger: logger,
	}
}

// WithTx wraps the given function in a transaction with Sentry span tracking
func (c *SentryClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	span, spanCtx := c.sentry.StartDBSpan(ctx, "postgres.transaction", map[string]interface{}{
		"operation": "transaction",
	})
	if span != nil {
		defer span.Finish()
	}

	return c.client.WithTx(spanCtx, fn)
}
