// Package cache is the shared fast-state store used by sessions, the rate
// limiter, and the risk Shield to agree on block/nonce/counter state across
// every API replica and the standalone shield process. Grounded on the
// teacher's in-process per-IP bucket shape in internal/api/ratelimit.go,
// generalized from a process-local map to a shared Redis-backed store
// because the risk state it protects must be visible outside one process.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store wraps a redis client. It is passed explicitly to every component
// that needs shared state, never reached through a package-level global.
type Store struct {
	rdb *redis.Client
}

// Connect parses redisURL and verifies connectivity.
func Connect(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: ping failed: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Get returns the raw string value stored under key, and whether it existed.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value under key with the given TTL (0 means no expiry).
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// SetNX stores value under key only if it doesn't already exist — used for
// single-use nonce issuance (spec.md §4.4's compare-and-delete consumption).
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache: setnx %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes key, returning whether it existed.
func (s *Store) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache: del %s: %w", key, err)
	}
	return n > 0, nil
}

// GetAndDelete atomically reads and removes key — the nonce
// compare-and-consume primitive so a session nonce can never be replayed.
func (s *Store) GetAndDelete(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.GetDel(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache: getdel %s: %w", key, err)
	}
	return v, true, nil
}

// IncrWithExpiry increments key and (re)applies ttl on every increment, so
// the key expires ttl after its most recent increment — the rate-limit
// counter primitive.
func (s *Store) IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cache: incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// IncrBy adds delta to key's integer value, creating it at delta if absent,
// with no expiry — used for the Shield's persistent risk-score accumulator.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := s.rdb.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: incrby %s: %w", key, err)
	}
	return n, nil
}

// Expire sets or refreshes key's TTL.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("cache: expire %s: %w", key, err)
	}
	return nil
}

// Keys returns all keys matching pattern — used sparingly, only by the
// Shield's subnet-clustering sweep (spec.md §4.10) which runs at most once
// a minute over a bounded key space.
func (s *Store) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := s.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: keys %s: %w", pattern, err)
	}
	return keys, nil
}
