// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
)

// CachingPriceRepository decorates a PriceRepository with Redis caching.
// Reads go through the cache; every successful upsert invalidates the
// cached pages of the affected symbols.
type CachingPriceRepository struct {
	inner     usecase.PriceRepository
	rdb       *redis.Client
	ttl       time.Duration
	expiry    func() time.Duration
	namespace string
}

var _ usecase.PriceRepository = (*CachingPriceRepository)(nil)

// CacheOption configures a CachingPriceRepository.
type CacheOption func(*CachingPriceRepository)

// WithExpiry caps the TTL of each write with the duration returned by fn,
// e.g. the time left until the next scheduled pipeline run.
func WithExpiry(fn func() time.Duration) CacheOption {
	return func(c *CachingPriceRepository) { c.expiry = fn }
}

// NewCachingPriceRepository decorates a PriceRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "prices".
// A nil rdb disables caching.
func NewCachingPriceRepository(rdb *redis.Client, ttl time.Duration, inner usecase.PriceRepository, namespace string, opts ...CacheOption) *CachingPriceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "prices"
	}
	c := &CachingPriceRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpsertBatch upserts records and invalidates related cache entries.
func (c *CachingPriceRepository) UpsertBatch(ctx context.Context, records []entity.PriceRecord) error {
	if err := c.inner.UpsertBatch(ctx, records); err != nil {
		return err
	}
	if c.rdb == nil || len(records) == 0 {
		return nil
	}

	seen := map[string]struct{}{}
	for _, r := range records {
		prefix := c.cacheKeyPrefix(r.Symbol)
		if _, ok := seen[prefix]; ok {
			continue
		}
		seen[prefix] = struct{}{}
		// 失敗してもTTLで失効するため処理は続行する
		if err := c.deleteByPattern(ctx, prefix+"*"); err != nil {
			slog.Warn("failed to invalidate price cache", "symbol", r.Symbol, "error", err)
		}
	}
	return nil
}

// Find retrieves prices, checking cache first then falling back to the database.
func (c *CachingPriceRepository) Find(ctx context.Context, symbol string, limit int) ([]entity.PriceRecord, error) {
	if c.rdb == nil {
		return c.inner.Find(ctx, symbol, limit)
	}

	key := c.cacheKey(symbol, limit)

	// 1) キャッシュを確認
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.PriceRecord
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		// 壊れたエントリは削除
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) DBにフォールバック
	out, err := c.inner.Find(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}

	// 3) キャッシュに保存（ベストエフォート）
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.writeTTL()).Err()
	}

	return out, nil
}

func (c *CachingPriceRepository) writeTTL() time.Duration {
	if c.expiry == nil {
		return c.ttl
	}
	if d := c.expiry(); d > 0 && d < c.ttl {
		return d
	}
	return c.ttl
}

// cacheKey generates a cache key for a specific query.
func (c *CachingPriceRepository) cacheKey(symbol string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", c.namespace, safe(symbol), limit)
}

// cacheKeyPrefix generates a prefix for invalidating a symbol's entries.
func (c *CachingPriceRepository) cacheKeyPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(symbol))
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingPriceRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
