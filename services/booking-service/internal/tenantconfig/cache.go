package tenantconfig

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// SettingsSource is the authoritative settings store behind the cache.
type SettingsSource interface {
	GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error)
	UpsertSettings(ctx context.Context, in model.TenantSettings) (model.TenantSettings, error)
}

// RedisClient is the subset of go-redis the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type CacheConfig struct {
	Size     int
	TTL      time.Duration
	RedisTTL time.Duration
	Prefix   string
}

// CachedStore fronts a SettingsSource with a per-process LRU and an
// optional shared redis layer. Concurrent misses for one tenant share a
// single source lookup. Missing settings are never cached.
type CachedStore struct {
	src    SettingsSource
	local  *expirable.LRU[string, model.TenantSettings]
	rdb    RedisClient
	cfg    CacheConfig
	group  singleflight.Group
	logger *slog.Logger
}

// NewCachedStore builds the cache. rdb may be nil.
func NewCachedStore(src SettingsSource, rdb RedisClient, logger *slog.Logger, cfg CacheConfig) *CachedStore {
	if cfg.Size <= 0 {
		cfg.Size = 1024
	}
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.RedisTTL <= 0 {
		cfg.RedisTTL = 10 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "tenant-settings"
	}
	return &CachedStore{
		src:    src,
		local:  expirable.NewLRU[string, model.TenantSettings](cfg.Size, nil, cfg.TTL),
		rdb:    rdb,
		cfg:    cfg,
		logger: logger,
	}
}

func (c *CachedStore) key(tenantID string) string {
	return c.cfg.Prefix + ":" + tenantID
}

func (c *CachedStore) GetSettings(ctx context.Context, tenantID string) (model.TenantSettings, error) {
	if s, ok := c.local.Get(tenantID); ok {
		return s, nil
	}

	v, err, _ := c.group.Do(tenantID, func() (any, error) {
		if s, ok := c.fromRedis(ctx, tenantID); ok {
			c.local.Add(tenantID, s)
			return s, nil
		}
		s, err := c.src.GetSettings(ctx, tenantID)
		if err != nil {
			return model.TenantSettings{}, err
		}
		c.local.Add(tenantID, s)
		c.toRedis(ctx, s)
		return s, nil
	})
	if err != nil {
		return model.TenantSettings{}, err
	}
	return v.(model.TenantSettings), nil
}

// UpsertSettings writes through to the source and drops cached copies.
func (c *CachedStore) UpsertSettings(ctx context.Context, in model.TenantSettings) (model.TenantSettings, error) {
	out, err := c.src.UpsertSettings(ctx, in)
	if err != nil {
		return model.TenantSettings{}, err
	}
	c.Invalidate(ctx, in.TenantID)
	return out, nil
}

// Invalidate forgets the tenant in both layers. Redis failures are logged;
// the redis entry expires on its own.
func (c *CachedStore) Invalidate(ctx context.Context, tenantID string) {
	c.local.Remove(tenantID)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(tenantID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "settings cache invalidation failed", "tenant_id", tenantID, "err", err)
	}
}

func (c *CachedStore) fromRedis(ctx context.Context, tenantID string) (model.TenantSettings, bool) {
	if c.rdb == nil {
		return model.TenantSettings{}, false
	}
	raw, err := c.rdb.Get(ctx, c.key(tenantID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "settings cache read failed", "tenant_id", tenantID, "err", err)
		}
		return model.TenantSettings{}, false
	}
	var s model.TenantSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		c.logger.WarnContext(ctx, "settings cache entry unreadable", "tenant_id", tenantID, "err", err)
		return model.TenantSettings{}, false
	}
	return s, true
}

func (c *CachedStore) toRedis(ctx context.Context, s model.TenantSettings) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.key(s.TenantID), raw, c.cfg.RedisTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "settings cache write failed", "tenant_id", s.TenantID, "err", err)
	}
}
