package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ASUCICREPO/ADA-Clara-sub002/pkg/logger"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// SetResult caches a computed analytics result under the query fingerprint.
func (c *Client) SetResult(ctx context.Context, queryHash string, result interface{}, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("analytics:%s", queryHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set result cache: %w", err)
	}

	logger.Debug("Result cached", zap.String("query_hash", queryHash), zap.Duration("ttl", ttl))
	return nil
}

// GetResult loads a cached result into result; the bool reports a hit.
func (c *Client) GetResult(ctx context.Context, queryHash string, result interface{}) (bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("analytics:%s", queryHash)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get result cache: %w", err)
	}

	err = json.Unmarshal(data, result)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal result: %w", err)
	}

	logger.Debug("Result cache hit", zap.String("query_hash", queryHash))
	return true, nil
}
