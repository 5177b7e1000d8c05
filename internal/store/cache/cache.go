package cache

import (
	"context"
	"time"
)

// CacheService is an ephemeral TTL cache. The bridge uses it only for the
// translated upstream model list; no request state is ever stored.
type CacheService interface {
	// Get retrieves a value from the cache, unmarshalling into dest.
	Get(ctx context.Context, key string, dest interface{}) error

	// Set stores a value in the cache with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error
}
