package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellobff/internal/cache"
	"github.com/dropDatabas3/hellobff/internal/metrics"
	"github.com/dropDatabas3/hellobff/internal/observability/logger"
)

// DefaultEntryTTL bounds token-cache entries. Expiry is the only cleanup
// mechanism besides best-effort removal at logout.
const DefaultEntryTTL = 24 * time.Hour

// CacheAdapter is the get/set facade over the shared cache used by the auth
// flow. Backend errors are logged and swallowed: a cache outage degrades to
// "cold cache" (forcing re-authentication or a metadata refetch), never to a
// failed login flow. The empty key is a no-op on every operation.
type CacheAdapter struct {
	client  cache.Client
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewCacheAdapter creates the adapter. defaultTTL <= 0 means DefaultEntryTTL.
// metrics may be nil.
func NewCacheAdapter(client cache.Client, defaultTTL time.Duration, log *zap.Logger, m *metrics.Metrics) *CacheAdapter {
	if defaultTTL <= 0 {
		defaultTTL = DefaultEntryTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CacheAdapter{client: client, ttl: defaultTTL, log: log, metrics: m}
}

// Get returns the stored value, or "" when the key is empty, missing, or the
// backend errored.
func (a *CacheAdapter) Get(ctx context.Context, key string) string {
	if key == "" {
		return ""
	}
	val, err := a.client.Get(ctx, key)
	if err != nil {
		if !cache.IsNotFound(err) {
			a.log.Warn("cache get failed, treating as miss",
				logger.Key(key), logger.Err(err), logger.Component("auth.cache"))
			a.metrics.IncCacheError("get")
		}
		return ""
	}
	return val
}

// Set stores a value best-effort. ttl <= 0 means the adapter default.
func (a *CacheAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if key == "" {
		return
	}
	if ttl <= 0 {
		ttl = a.ttl
	}
	if err := a.client.Set(ctx, key, value, ttl); err != nil {
		a.log.Warn("cache set failed, value dropped",
			logger.Key(key), logger.Err(err), logger.Component("auth.cache"))
		a.metrics.IncCacheError("set")
	}
}

// Delete removes a key best-effort.
func (a *CacheAdapter) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := a.client.Delete(ctx, key); err != nil {
		a.log.Warn("cache delete failed",
			logger.Key(key), logger.Err(err), logger.Component("auth.cache"))
		a.metrics.IncCacheError("delete")
	}
}
