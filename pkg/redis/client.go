// Package redis holds the Redis-backed pieces of the service: usage counters,
// SDK snapshot cache and the connection shared by the job queue.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Client wraps go-redis client with optional logger.
type Client struct {
	*redis.Client
	logger *zap.Logger
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("Redis client connected", zap.String("addr", addr), zap.Int("db", db))
	return &Client{Client: rdb, logger: logger}, nil
}

// Usage returns a usage tracker on this connection.
func (c *Client) Usage() *Usage {
	return NewUsage(c.Client)
}

// SnapshotCache returns an SDK snapshot cache on this connection.
func (c *Client) SnapshotCache(ttl time.Duration) *SnapshotCache {
	return NewSnapshotCache(c.Client, ttl)
}
