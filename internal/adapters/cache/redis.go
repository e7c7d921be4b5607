package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") {
		opt, parseErr := redis.ParseURL(redisURL)
		if parseErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", parseErr)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// RedisCallbackDedupStore remembers recently processed gateway callback ids.
// It is a best-effort fast path: a Redis miss or outage only means the
// callback falls through to the database compare-and-swap.
type RedisCallbackDedupStore struct {
	client *redis.Client
}

func NewRedisCallbackDedupStore(client *redis.Client) *RedisCallbackDedupStore {
	return &RedisCallbackDedupStore{client: client}
}

func (s *RedisCallbackDedupStore) Seen(ctx context.Context, callbackID string) (bool, error) {
	_, err := s.client.Get(ctx, "treasury:callback:"+callbackID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *RedisCallbackDedupStore) MarkSeen(ctx context.Context, callbackID string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return s.client.Set(ctx, "treasury:callback:"+callbackID, "1", ttl).Err()
}
