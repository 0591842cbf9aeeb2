package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client caches computed statistics per user. Every key written for a user
// is tracked in a set so the whole user can be invalidated at once.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

func Initialize(redisURL string, ttl time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewClient(rdb, ttl), nil
}

func NewClient(rdb *redis.Client, ttl time.Duration) *Client {
	return &Client{rdb: rdb, ttl: ttl}
}

func statsKey(userID uint, period string) string {
	return fmt.Sprintf("stats:%d:%s", userID, period)
}

func indexKey(userID uint) string {
	return fmt.Sprintf("stats:keys:%d", userID)
}

// Get returns the cached payload, or nil on a miss.
func (c *Client) Get(ctx context.Context, userID uint, period string) ([]byte, error) {
	val, err := c.rdb.Get(ctx, statsKey(userID, period)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return val, nil
}

func (c *Client) Set(ctx context.Context, userID uint, period string, payload []byte) error {
	key := statsKey(userID, period)
	index := indexKey(userID)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, payload, c.ttl)
	pipe.SAdd(ctx, index, key)
	pipe.Expire(ctx, index, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set stats: %w", err)
	}
	return nil
}

// InvalidateUser drops every cached stats entry of the user.
func (c *Client) InvalidateUser(ctx context.Context, userID uint) error {
	index := indexKey(userID)
	keys, err := c.rdb.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("failed to list stats keys: %w", err)
	}
	keys = append(keys, index)
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate stats: %w", err)
	}
	return nil
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
