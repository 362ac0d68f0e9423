package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-sales-graphql/internal/metrics"
	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ReportCache serves leaderboards from Redis and falls back to Next on a miss or
// when Redis is unavailable.
type ReportCache struct {
	Next  sales.ReportStore
	Redis *redis.Client
	TTL   time.Duration
	Log   *zap.Logger
}

var _ sales.ReportStore = (*ReportCache)(nil)

func (c *ReportCache) TopClients(ctx context.Context, limit int) ([]sales.ClientRank, error) {
	return cached(ctx, c, fmt.Sprintf(KeyReport, "top_clients", limit), func() ([]sales.ClientRank, error) {
		return c.Next.TopClients(ctx, limit)
	})
}

func (c *ReportCache) TopSalespeople(ctx context.Context, limit int) ([]sales.SalespersonRank, error) {
	return cached(ctx, c, fmt.Sprintf(KeyReport, "top_salespeople", limit), func() ([]sales.SalespersonRank, error) {
		return c.Next.TopSalespeople(ctx, limit)
	})
}

func cached[T any](ctx context.Context, c *ReportCache, key string, load func() ([]T, error)) ([]T, error) {
	// 1) coba cache
	s, err := c.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var out []T
		if jerr := json.Unmarshal([]byte(s), &out); jerr == nil {
			metrics.ReportCache.WithLabelValues("hit").Inc()
			return out, nil
		}
		metrics.ReportCache.WithLabelValues("corrupt").Inc()
	case errors.Is(err, redis.Nil):
		metrics.ReportCache.WithLabelValues("miss").Inc()
	default:
		metrics.ReportCache.WithLabelValues("error").Inc()
		c.Log.Warn("report cache get", zap.String("key", key), zap.Error(err))
	}

	// 2) fallback store
	out, err := load()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return out, nil
	}
	if err := c.Redis.Set(ctx, key, b, c.TTL).Err(); err != nil {
		c.Log.Warn("report cache set", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

// InvalidateReports drops every cached leaderboard.
func InvalidateReports(ctx context.Context, rdb *redis.Client) (int, error) {
	var keys []string
	iter := rdb.Scan(ctx, 0, PatternReports, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, errors.Wrap(err, "scan report keys")
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, errors.Wrap(err, "delete report keys")
	}
	return int(n), nil
}

// EventCache backs the report worker: per-event dedup plus leaderboard invalidation.
type EventCache struct {
	Redis   *redis.Client
	Service string
}

func (e EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	return Exists(ctx, e.Redis, fmt.Sprintf(KeyDedup, e.Service, eventID))
}

func (e EventCache) MarkSeen(ctx context.Context, eventID string) error {
	return e.Redis.Set(ctx, fmt.Sprintf(KeyDedup, e.Service, eventID), "1", TTLDedup).Err()
}

func (e EventCache) InvalidateReports(ctx context.Context) (int, error) {
	return InvalidateReports(ctx, e.Redis)
}
