package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheStore handles confirmation status caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// StatusCacheTTL bounds how long a terminal outcome is served from cache.
// Terminal outcomes never change, so this only limits memory.
const StatusCacheTTL = 15 * time.Minute

const statusCachePrefix = "cache:ecocash:status:"

// CachedStatus is a terminal confirmation outcome for an order.
type CachedStatus struct {
	OrderID   string `json:"order_id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Channel   string `json:"channel,omitempty"`
}

// GetStatus retrieves a cached outcome. Returns nil on cache miss.
func (s *CacheStore) GetStatus(ctx context.Context, orderID string) (*CachedStatus, error) {
	data, err := s.client.Get(ctx, statusCachePrefix+orderID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var status CachedStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// SetStatus stores a terminal outcome.
func (s *CacheStore) SetStatus(ctx context.Context, status *CachedStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, statusCachePrefix+status.OrderID, data, StatusCacheTTL).Err()
}
