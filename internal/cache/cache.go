package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache defines the interface for caching operations
type Cache[V any] interface {
	// Get retrieves a value from the cache
	// Returns the value and a boolean indicating whether the key was found
	Get(ctx context.Context, key string) (V, bool)

	// Set adds a value to the cache with the cache's expiration
	Set(ctx context.Context, key string, value V)

	// Delete removes a key from the cache
	Delete(ctx context.Context, key string)

	// Flush removes all items from the cache
	Flush(ctx context.Context)
}

const (
	// DefaultExpiration is the default expiration time for cache entries
	DefaultExpiration = 30 * time.Minute
	// DefaultSize is the default number of entries kept before eviction
	DefaultSize = 1024
)

// Predefined cache key prefixes for different entity types
const (
	PrefixPlan = "plan:v1"
)

// GenerateKey creates a cache key from a prefix and a set of parameters
// It joins all parameters with a colon and appends them to the prefix
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, len(params)+1)
	parts[0] = prefix

	for i, param := range params {
		parts[i+1] = fmt.Sprintf("%v", param)
	}

	return strings.Join(parts, ":")
}
