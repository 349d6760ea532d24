package resolve

import (
	"context"
	"time"

	"github.com/karlseguin/ccache/v3"
	"github.com/tkrehbiel/activitysift/server/telemetry"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheSize = 5000
	DefaultCacheTTL  = 24 * time.Hour
)

// CachingResolver remembers resolved URLs in memory and optionally in a Store.
// Concurrent requests for the same URL share one call to the wrapped Resolver.
// Failures are never cached.
type CachingResolver struct {
	// Timeout bounds a shared resolution, which outlives any one caller's context
	Timeout time.Duration

	next   Resolver
	store  Store
	ttl    time.Duration
	cache  *ccache.Cache[string]
	flight singleflight.Group
}

func NewCachingResolver(next Resolver, size int64, ttl time.Duration) *CachingResolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachingResolver{
		Timeout: DefaultTimeout,
		next:    next,
		ttl:     ttl,
		cache:   ccache.New(ccache.Configure[string]().MaxSize(size)),
	}
}

// WithStore adds a persistent second level behind the memory cache
func (c *CachingResolver) WithStore(store Store) *CachingResolver {
	c.store = store
	return c
}

func (c *CachingResolver) Resolve(ctx context.Context, url string) (string, error) {
	if item := c.cache.Get(url); item != nil && !item.Expired() {
		telemetry.Increment("redirect_cache_hits", 1)
		return item.Value(), nil
	}

	ch := c.flight.DoChan(url, func() (interface{}, error) {
		ctx := context.WithoutCancel(ctx)
		if c.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.Timeout)
			defer cancel()
		}
		if c.store != nil {
			final, ok, err := c.store.Lookup(ctx, url)
			if err != nil {
				telemetry.Error(err, "looking up redirect [%s]", url)
			} else if ok {
				telemetry.Increment("redirect_store_hits", 1)
				c.cache.Set(url, final, c.ttl)
				return final, nil
			}
		}

		final, err := c.next.Resolve(ctx, url)
		if err != nil {
			return "", err
		}
		c.cache.Set(url, final, c.ttl)
		if c.store != nil {
			if err := c.store.Save(ctx, url, final); err != nil {
				telemetry.Error(err, "saving redirect [%s]", url)
			}
		}
		return final, nil
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Stop releases the cache's background goroutine
func (c *CachingResolver) Stop() {
	c.cache.Stop()
}
