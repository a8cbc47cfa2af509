package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyPrefix = "idempotency:"
	inFlightSuffix    = ":inflight"
)

// IdempotencyStore keeps replayable responses for Idempotency-Key requests.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// GetResponse returns the stored response for key. Returns nil on miss.
func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// SaveResponse stores a response for key.
func (s *IdempotencyStore) SaveResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return s.client.Set(ctx, idempotencyPrefix+key, data, ttl).Err()
}

// AcquireInFlight marks key as being processed.
// Returns false if another request holds it.
func (s *IdempotencyStore) AcquireInFlight(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, idempotencyPrefix+key+inFlightSuffix, "1", ttl).Result()
}

// ReleaseInFlight clears the in-flight marker for key.
func (s *IdempotencyStore) ReleaseInFlight(ctx context.Context, key string) error {
	return s.client.Del(ctx, idempotencyPrefix+key+inFlightSuffix).Err()
}
