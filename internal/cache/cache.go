// Package cache provides the redis-backed resolved-URL cache used by
// query-driven retrieval strategies. A cache miss or an unreachable redis is
// never an error; the strategy just resolves the URL again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dkovalenko/brain-scraper/internal/config"
)

type ResolvedURLCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (*ResolvedURLCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &ResolvedURLCache{
		client: client,
		ttl:    cfg.URLTTL,
		logger: logger.With("component", "url_cache"),
	}, nil
}

func (c *ResolvedURLCache) Close() error {
	return c.client.Close()
}

func key(strategy, query string) string {
	return fmt.Sprintf("resolved_url:%s:%s", strategy, query)
}

// GetResolvedURL returns the cached product URL for a query, if present.
func (c *ResolvedURLCache) GetResolvedURL(ctx context.Context, strategy, query string) (string, bool) {
	url, err := c.client.Get(ctx, key(strategy, query)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache lookup failed", "query", query, "error", err)
		}
		return "", false
	}
	return url, url != ""
}

// SetResolvedURL stores a resolved product URL with the configured TTL.
// Failures are logged and swallowed; caching is best effort.
func (c *ResolvedURLCache) SetResolvedURL(ctx context.Context, strategy, query, url string) {
	if err := c.client.Set(ctx, key(strategy, query), url, c.ttl).Err(); err != nil {
		c.logger.Warn("cache store failed", "query", query, "error", err)
	}
}
