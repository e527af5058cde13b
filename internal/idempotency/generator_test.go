package idempotency

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wispbill/wispbill/internal/types"
)

func TestSubscriptionInvoiceKey(t *testing.T) {
	g := NewGenerator()
	march := types.NewMonthlyPeriodFor(3, 2024, time.UTC)
	april := types.NewMonthlyPeriodFor(4, 2024, time.UTC)

	key := g.SubscriptionInvoiceKey("cust_1", march)
	assert.True(t, strings.HasPrefix(key, string(ScopeSubscriptionInvoice)+"-"))
	assert.Equal(t, key, g.SubscriptionInvoiceKey("cust_1", march))
	assert.NotEqual(t, key, g.SubscriptionInvoiceKey("cust_1", april))
	assert.NotEqual(t, key, g.SubscriptionInvoiceKey("cust_2", march))
}

func TestGenerateKey_OrderIndependent(t *testing.T) {
	g := NewGenerator()
	a := g.GenerateKey(ScopeSubscriptionInvoice, map[string]interface{}{"a": 1, "b": 2})
	b := g.GenerateKey(ScopeSubscriptionInvoice, map[string]interface{}{"b": 2, "a": 1})
	assert.Equal(t, a, b)
}
