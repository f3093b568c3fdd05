// Package redis backs the run-scoped document text cache with a shared
// Redis instance, letting multiple workers reuse extractions for the same
// job directory.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contractscan/backend/pkg/logger"
)

const textKeyPrefix = "doctext:"

type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis text cache initialized",
		zap.String("addr", fmt.Sprintf("%s:%d", host, port)),
		zap.Duration("ttl", ttl),
	)

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Get returns the cached text for a document key, reporting a miss rather
// than an error when the key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	text, err := c.client.Get(ctx, textKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cached text: %w", err)
	}

	logger.Debug("document text cache hit", zap.String("key", key))
	return text, true, nil
}

func (c *Client) Set(ctx context.Context, key, text string) error {
	if err := c.client.Set(ctx, textKeyPrefix+key, text, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache text: %w", err)
	}
	return nil
}

// Clear removes every cached document text. Called at the end of each run
// so stale extractions never bleed into the next one.
func (c *Client) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, textKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("failed to delete cache key", zap.Error(err))
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Debug("document text cache cleared")
	return nil
}
