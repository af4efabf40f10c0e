package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// IdempotencyStore records which side-effecting requests have already run.
type IdempotencyStore interface {
	// Claim marks key as in progress or done. It returns false when the key
	// was already claimed.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so the request can be processed again.
	Release(ctx context.Context, key string) error
}

const DefaultIdempotencyTTL = 7 * 24 * time.Hour

type redisIdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient parses redisURL and checks the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisIdempotencyStore(client *redis.Client, ttl time.Duration) IdempotencyStore {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &redisIdempotencyStore{client: client, ttl: ttl}
}

func (s *redisIdempotencyStore) getIdemKey(key string) string {
	return "idem:" + key
}

func (s *redisIdempotencyStore) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.getIdemKey(key), time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency claim %s: %w", key, err)
	}
	return ok, nil
}

func (s *redisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.getIdemKey(key)).Err()
}

type noopIdempotencyStore struct{}

// NewNoopIdempotencyStore returns a store that accepts every claim, so
// redelivered events are processed again.
func NewNoopIdempotencyStore() IdempotencyStore { return noopIdempotencyStore{} }

func (noopIdempotencyStore) Claim(context.Context, string) (bool, error) { return true, nil }
func (noopIdempotencyStore) Release(context.Context, string) error       { return nil }
