package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// monthly counters outlive their month so the previous period can still be read.
const usageTTL = 40 * 24 * time.Hour

// Usage tracks monthly per-organization usage counters in Redis.
type Usage struct {
	client *redis.Client
	now    func() time.Time
}

// NewUsage creates a usage tracker.
func NewUsage(client *redis.Client) *Usage {
	return &Usage{client: client, now: time.Now}
}

// Period returns the usage period (UTC calendar month) containing t, e.g. "2026-10".
func Period(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func usageKey(kind string, orgID uuid.UUID, period string) string {
	return fmt.Sprintf("usage:%s:%s:%s", kind, orgID, period)
}

// AddMonthlyUser records an end user as active this month and returns the approximate
// count of distinct users so far.
func (u *Usage) AddMonthlyUser(ctx context.Context, orgID uuid.UUID, endUserID string) (int64, error) {
	key := usageKey("mau", orgID, Period(u.now()))
	pipe := u.client.TxPipeline()
	pipe.PFAdd(ctx, key, endUserID)
	count := pipe.PFCount(ctx, key)
	pipe.Expire(ctx, key, usageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record monthly user: %w", err)
	}
	return count.Val(), nil
}

// MonthlyUsers returns the approximate distinct end users this month.
func (u *Usage) MonthlyUsers(ctx context.Context, orgID uuid.UUID) (int64, error) {
	n, err := u.client.PFCount(ctx, usageKey("mau", orgID, Period(u.now()))).Result()
	if err != nil {
		return 0, fmt.Errorf("count monthly users: %w", err)
	}
	return n, nil
}

// AddImpressions adds n impressions and returns the new monthly total.
func (u *Usage) AddImpressions(ctx context.Context, orgID uuid.UUID, n int64) (int64, error) {
	return u.incr(ctx, "impressions", orgID, n)
}

// Impressions returns this month's impressions.
func (u *Usage) Impressions(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return u.get(ctx, "impressions", orgID)
}

// AddAIRewrite reserves one AI rewrite and returns the new monthly total.
func (u *Usage) AddAIRewrite(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return u.incr(ctx, "ai_rewrites", orgID, 1)
}

// ReleaseAIRewrite gives back a rewrite reserved with AddAIRewrite that did not complete.
func (u *Usage) ReleaseAIRewrite(ctx context.Context, orgID uuid.UUID) error {
	_, err := u.incr(ctx, "ai_rewrites", orgID, -1)
	return err
}

// AIRewrites returns this month's AI rewrites.
func (u *Usage) AIRewrites(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return u.get(ctx, "ai_rewrites", orgID)
}

func (u *Usage) incr(ctx context.Context, kind string, orgID uuid.UUID, n int64) (int64, error) {
	key := usageKey(kind, orgID, Period(u.now()))
	pipe := u.client.TxPipeline()
	total := pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, usageTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("incr %s: %w", kind, err)
	}
	return total.Val(), nil
}

func (u *Usage) get(ctx context.Context, kind string, orgID uuid.UUID) (int64, error) {
	n, err := u.client.Get(ctx, usageKey(kind, orgID, Period(u.now()))).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", kind, err)
	}
	return n, nil
}
