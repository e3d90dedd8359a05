package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	noncePrefix     = "argus:nonce:"
	rateLimitPrefix = "argus:rl:"
)

type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

func NewRedis(addr string) *RedisStore {
	return &RedisStore{client: redis.NewClient(&redis.Options{Addr: addr})}
}

// Ping checks the connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) IssueNonce(ctx context.Context, clientIP string, ttl time.Duration) (string, error) {
	nonce := newNonce()
	if err := s.client.Set(ctx, noncePrefix+nonce, clientIP, ttl).Err(); err != nil {
		return "", fmt.Errorf("store nonce: %w", err)
	}
	return nonce, nil
}

func (s *RedisStore) ConsumeNonce(ctx context.Context, nonce, clientIP string) (bool, error) {
	if nonce == "" {
		return false, nil
	}
	owner, err := s.client.GetDel(ctx, noncePrefix+nonce).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("consume nonce: %w", err)
	}
	return owner == clientIP, nil
}

// IsRateLimited uses a fixed one-minute window per id.
func (s *RedisStore) IsRateLimited(ctx context.Context, id string, perMinute int) (bool, error) {
	if perMinute <= 0 {
		return false, nil
	}
	key := rateLimitPrefix + id
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, time.Minute).Err(); err != nil {
			return false, fmt.Errorf("rate limit expire: %w", err)
		}
	}
	return n > int64(perMinute), nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
