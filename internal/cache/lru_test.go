package cache

import (
	"context"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUCache(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[string]("test", 2, time.Minute)

	c.Set(ctx, "a", "1")
	c.Set(ctx, "b", "2")
	got, ok := c.Get(ctx, "a")
	assert.True(t, ok)
	assert.Equal(t, "1", got)

	// "b" is now the least recently used entry
	c.Set(ctx, "c", "3")
	_, ok = c.Get(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())

	c.Delete(ctx, "a")
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok)

	c.Flush(ctx)
	assert.Equal(t, 0, c.Len())
}

func TestLRUCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache[int]("test", 0, 10*time.Millisecond)

	c.Set(ctx, "k", 42)
	assert.Eventually(t, func() bool {
		_, ok := c.Get(ctx, "k")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "plan:v1:plan_1", GenerateKey(PrefixPlan, "plan_1"))
}

func TestLookupSpan(t *testing.T) {
	assert.Nil(t, startSpan(context.Background(), "plan", "get", "plan:v1:plan_1"))
	finishLookup(nil, true)

	ctx := sentry.SetHubOnContext(context.Background(), sentry.NewHub(nil, sentry.NewScope()))
	span := startSpan(ctx, "plan", "get", "plan:v1:plan_1")
	require.NotNil(t, span)
	assert.Equal(t, "cache.plan.get", span.Description)

	finishLookup(span, false)
	assert.Equal(t, sentry.SpanStatusOK, span.Status)
	assert.Equal(t, false, span.Data["hit"])
	assert.Equal(t, "plan:v1:plan_1", span.Data["key"])
}
