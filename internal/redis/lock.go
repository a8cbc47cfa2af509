package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireLookupLock attempts to acquire the provider lookup lock for an order.
// Returns true if the lock was acquired, false if another poll holds it.
func (s *LockStore) AcquireLookupLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("lock:ecocash:lookup:%s", orderID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseLookupLock releases the provider lookup lock for an order.
func (s *LockStore) ReleaseLookupLock(ctx context.Context, orderID string) error {
	key := fmt.Sprintf("lock:ecocash:lookup:%s", orderID)

	return s.client.Del(ctx, key).Err()
}
