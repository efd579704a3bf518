package ttlcache

import (
	"context"
	"time"
)

// Cache is a small TTL key-value store used for purge rate-limit tokens and
// short-lived lookups (counts, manifest existence). Keys expire on their own;
// there is no eviction pressure beyond TTL.
type Cache interface {
	// Get returns the value and whether the key exists and has not expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Set stores the value for ttl. A non-positive ttl stores it forever.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// SetNX stores the value only when the key is absent and reports whether
	// it was stored. Used to claim in-progress purge tokens atomically.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Del removes the key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error
	Close() error
}

// New builds the store selected by dsn: a redis:// URL gives the
// cluster-shared store, an empty dsn gives the in-process store.
func New(ctx context.Context, dsn string) (Cache, error) {
	if dsn == "" {
		return NewMemory(ctx), nil
	}
	return NewRedis(ctx, dsn)
}
