// Package catalog serves product browsing from the storefront API.
// Responses are public and cached in memory with a TTL and LRU eviction.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"storefront/internal/api"
	"storefront/internal/model"
)

// DefaultCacheTTL is how long a catalog response is served without refetching.
const DefaultCacheTTL = 5 * time.Minute

// MaxCacheEntries limits the number of cached responses (LRU eviction).
const MaxCacheEntries = 200

// Config contains configuration for the catalog cache.
type Config struct {
	CacheTTL   time.Duration // 0 = default
	MaxEntries int           // 0 = default
}

// Catalog reads products through the request layer with caching.
type Catalog struct {
	client *api.Client
	logger *slog.Logger
	config Config
	now    func() time.Time

	cacheMu    sync.Mutex
	cache      map[string]*cacheEntry
	accessList []string // LRU tracking: most recent at end
}

type cacheEntry struct {
	value     any
	expiresAt time.Time
}

// New creates a catalog over client.
func New(client *api.Client, config Config, logger *slog.Logger) *Catalog {
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = MaxCacheEntries
	}
	return &Catalog{
		client:     client,
		logger:     logger,
		config:     config,
		now:        time.Now,
		cache:      make(map[string]*cacheEntry),
		accessList: make([]string, 0, config.MaxEntries),
	}
}

// List returns every product.
func (c *Catalog) List(ctx context.Context) ([]model.Product, error) {
	return fetch[[]model.Product](ctx, c, "products/")
}

// ByCategory returns the products in category.
func (c *Catalog) ByCategory(ctx context.Context, category string) ([]model.Product, error) {
	if category == "" {
		return nil, model.NewValidationError("category", "required")
	}
	return fetch[[]model.Product](ctx, c, "products/?category="+url.QueryEscape(category))
}

// Get returns one product.
func (c *Catalog) Get(ctx context.Context, ref model.ProductRef) (model.Product, error) {
	if ref == "" {
		return model.Product{}, model.NewValidationError("product_id", "required")
	}
	return fetch[model.Product](ctx, c, "products/"+url.PathEscape(string(ref))+"/")
}

// BestSellers returns the products flagged as best sellers.
func (c *Catalog) BestSellers(ctx context.Context) ([]model.Product, error) {
	return fetch[[]model.Product](ctx, c, "products/bestsellers/")
}

// fetch returns the cached value for path if fresh, otherwise fetches it.
// When the fetch fails and a stale entry exists, the stale value is served.
func fetch[T any](ctx context.Context, c *Catalog, path string) (T, error) {
	now := c.now()

	c.cacheMu.Lock()
	entry, exists := c.cache[path]
	if exists && entry.expiresAt.After(now) {
		c.recordAccessLocked(path)
		c.cacheMu.Unlock()
		return entry.value.(T), nil
	}
	c.cacheMu.Unlock()

	var out T
	if err := c.client.GetPublic(ctx, path, &out); err != nil {
		if exists && !api.IsCanceled(err) {
			c.logger.Warn("catalog fetch failed, serving stale entry",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return entry.value.(T), nil
		}
		var zero T
		return zero, fmt.Errorf("fetch %s: %w", path, err)
	}

	c.store(path, out)
	return out, nil
}

func (c *Catalog) store(path string, value any) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	if _, ok := c.cache[path]; !ok && len(c.cache) >= c.config.MaxEntries {
		c.evictOldest()
	}
	c.cache[path] = &cacheEntry{value: value, expiresAt: c.now().Add(c.config.CacheTTL)}
	c.recordAccessLocked(path)
}

func (c *Catalog) recordAccessLocked(path string) {
	for i, p := range c.accessList {
		if p == path {
			c.accessList = append(c.accessList[:i], c.accessList[i+1:]...)
			break
		}
	}
	c.accessList = append(c.accessList, path)
}

func (c *Catalog) evictOldest() {
	if len(c.accessList) == 0 {
		return
	}
	oldest := c.accessList[0]
	c.accessList = c.accessList[1:]
	delete(c.cache, oldest)
}

// Invalidate drops every cached response.
func (c *Catalog) Invalidate() {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache = make(map[string]*cacheEntry)
	c.accessList = make([]string, 0, c.config.MaxEntries)
}
