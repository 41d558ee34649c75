// Package cache holds the key-value layer shared by the permission cache and
// the token blacklist, plus the permission verdict cache itself.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the narrow key-value contract the authorization core needs.
// Get reports found=false for a missing key; err is reserved for
// connectivity and protocol failures.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteMatching(ctx context.Context, pattern string) (int64, error)
	Delete(ctx context.Context, key string) error
}

// RedisStore implements Store on top of a go-redis client.
type RedisStore struct {
	rdb       redis.Cmdable
	scanCount int64
}

// NewRedisStore wraps an already connected client.  The client's lifecycle
// stays with the caller.
func NewRedisStore(rdb redis.Cmdable) *RedisStore {
	return &RedisStore{rdb: rdb, scanCount: 200}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.SetEx(ctx, key, value, ttl).Err()
}

// DeleteMatching removes every key matching a glob pattern.  It walks the
// keyspace with SCAN rather than KEYS so a large namespace never blocks the
// server, and deletes in batches of one SCAN page.
func (s *RedisStore) DeleteMatching(ctx context.Context, pattern string) (int64, error) {
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := s.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// Ping reports whether the backing server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
