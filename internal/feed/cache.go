package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"crewpulse/internal/platform/metrics"
	"crewpulse/internal/platform/redis"
	id "crewpulse/pkg/domain"
)

// PageCache keeps the first feed page per org in Redis. It is best-effort:
// every failure degrades to a store read, and a nil *PageCache is a no-op so
// deployments without Redis need no branching at call sites.
type PageCache struct {
	client  *redis.Client
	ttl     time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPageCache(client *redis.Client, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *PageCache {
	if client == nil {
		return nil
	}
	return &PageCache{client: client, ttl: ttl, logger: logger, metrics: m}
}

func cacheKey(orgID id.OrgID) string {
	return "feed:first:" + orgID.String()
}

func (c *PageCache) Get(ctx context.Context, orgID id.OrgID) (*FeedPage, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(orgID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.miss()
		return nil, false
	}
	if err != nil {
		c.logger.Warn("feed cache get", "error", err)
		c.miss()
		return nil, false
	}

	var page FeedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		c.logger.Warn("feed cache decode", "error", err)
		c.miss()
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.FeedCacheHits.Inc()
	}
	return &page, true
}

func (c *PageCache) Set(ctx context.Context, orgID id.OrgID, page *FeedPage) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		c.logger.Warn("feed cache encode", "error", err)
		return
	}
	if err := c.client.Set(ctx, cacheKey(orgID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("feed cache set", "error", err)
	}
}

func (c *PageCache) Invalidate(ctx context.Context, orgID id.OrgID) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(orgID)).Err(); err != nil {
		c.logger.Warn("feed cache invalidate", "error", err)
	}
}

func (c *PageCache) miss() {
	if c.metrics != nil {
		c.metrics.FeedCacheMisses.Inc()
	}
}
