package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/wispbill/wispbill/internal/types"
)

// Scope namespaces a key so equal parameters in different flows never collide
type Scope string

const (
	ScopeSubscriptionInvoice Scope = "subscription_invoice"
)

// Generator derives deterministic keys from a scope and its parameters
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateKey hashes the scope and the sorted parameters
func (g *Generator) GenerateKey(scope Scope, params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		fmt.Fprintf(&b, ":%s=%v", k, params[k])
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%s-%s", scope, hex.EncodeToString(hash[:8]))
}

// SubscriptionInvoiceKey identifies the one subscription invoice a customer
// may hold for a billing period
func (g *Generator) SubscriptionInvoiceKey(customerID string, period types.BillingPeriod) string {
	return g.GenerateKey(ScopeSubscriptionInvoice, map[string]interface{}{
		"customer_id": customerID,
		"period":      period.Key(),
	})
}
