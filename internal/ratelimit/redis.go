package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a CounterStore backed by a shared Redis instance.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed counter store.
// Returns error if connection fails.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Increment increments the counter and starts its window on first use. The
// returned TTL is the counter's actual remaining lifetime, so callers inside
// an already-running window see the real window end rather than one computed
// from their own arrival time.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.client.TxPipeline()
	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("incrementing counter: %w", err)
	}

	count := incrCmd.Val()
	ttl := ttlCmd.Val()

	// A post-increment value of one means this call created the counter, so
	// this process owns setting the window expiry. A counter left without an
	// expiry (a crash between INCR and EXPIRE) is repaired the same way.
	if count == 1 || ttl < 0 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("setting counter expiry: %w", err)
		}
		ttl = window
	}

	return count, ttl, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
