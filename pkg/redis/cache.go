package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SnapshotCache stores serialized per-project SDK snapshots.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache whose entries expire after ttl.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

func snapshotKey(projectID uuid.UUID) string {
	return "sdk:snapshot:" + projectID.String()
}

// Get returns the cached snapshot; ok is false on a miss.
func (c *SnapshotCache) Get(ctx context.Context, projectID uuid.UUID) (data []byte, ok bool, err error) {
	data, err = c.client.Get(ctx, snapshotKey(projectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get snapshot: %w", err)
	}
	return data, true, nil
}

// Set stores a snapshot.
func (c *SnapshotCache) Set(ctx context.Context, projectID uuid.UUID, data []byte) error {
	if err := c.client.Set(ctx, snapshotKey(projectID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the snapshot of a project after its content changed.
func (c *SnapshotCache) Invalidate(ctx context.Context, projectID uuid.UUID) error {
	if err := c.client.Del(ctx, snapshotKey(projectID)).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}

func sdkKeyKey(sdkKey string) string {
	return "sdk:key:" + sdkKey
}

// ProjectForKey returns the project an SDK key was last resolved to; ok is false on a miss.
func (c *SnapshotCache) ProjectForKey(ctx context.Context, sdkKey string) (projectID uuid.UUID, ok bool, err error) {
	raw, err := c.client.Get(ctx, sdkKeyKey(sdkKey)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("get sdk key: %w", err)
	}
	projectID, err = uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return projectID, true, nil
}

// RememberKey caches the project an SDK key belongs to.
func (c *SnapshotCache) RememberKey(ctx context.Context, sdkKey string, projectID uuid.UUID) error {
	if err := c.client.Set(ctx, sdkKeyKey(sdkKey), projectID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set sdk key: %w", err)
	}
	return nil
}

// ForgetKey drops a cached SDK key mapping, e.g. after rotation.
func (c *SnapshotCache) ForgetKey(ctx context.Context, sdkKey string) error {
	if err := c.client.Del(ctx, sdkKeyKey(sdkKey)).Err(); err != nil {
		return fmt.Errorf("forget sdk key: %w", err)
	}
	return nil
}
