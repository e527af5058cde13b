package cache

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// startSpan opens a db.cache span when the context carries a Sentry hub
func startSpan(ctx context.Context, name, operation, key string) *sentry.Span {
	if sentry.GetHubFromContext(ctx) == nil {
		return nil
	}

	span := sentry.StartSpan(ctx, "db.cache")
	span.Description = "cache." + name + "." + operation
	span.SetData("cache", name)
	span.SetData("operation", operation)
	span.SetData("key", key)
	return span
}

// finishLookup records whether the lookup hit and closes the span
func finishLookup(span *sentry.Span, hit bool) {
	if span == nil {
		return
	}
	span.SetData("hit", hit)
	span.Status = sentry.SpanStatusOK
	span.Finish()
}
