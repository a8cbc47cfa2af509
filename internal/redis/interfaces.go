package redis

import (
	"context"
	"time"
)

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquireLookupLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error)
	ReleaseLookupLock(ctx context.Context, orderID string) error
}

// CacheStoreInterface defines the interface for confirmation status caching.
type CacheStoreInterface interface {
	GetStatus(ctx context.Context, orderID string) (*CachedStatus, error)
	SetStatus(ctx context.Context, status *CachedStatus) error
}

// IdempotencyStoreInterface defines the interface for idempotent request replay.
type IdempotencyStoreInterface interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error
	AcquireInFlight(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseInFlight(ctx context.Context, key string) error
}

// Ensure concrete types implement interfaces.
var (
	_ LockStoreInterface        = (*LockStore)(nil)
	_ CacheStoreInterface       = (*CacheStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
)
