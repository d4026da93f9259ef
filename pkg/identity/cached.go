package identity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL = 5 * time.Second

	// Expired entries are swept once the cache grows past this size.
	cacheSweepThreshold = 10_000
)

// CachedProvider caches LoadIdentity per visit key for a short TTL and
// collapses concurrent loads of the same key. Login, Logout and successful
// validations drop the cached entry for the visit.
type CachedProvider struct {
	Provider

	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	entries map[string]cacheEntry
	// gen changes on every invalidation so a load that started earlier
	// does not store a stale identity.
	gen uint64
}

type cacheEntry struct {
	id      *Identity
	expires time.Time
}

// NewCachedProvider wraps p. A non-positive ttl means DefaultCacheTTL.
func NewCachedProvider(p Provider, ttl time.Duration) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedProvider{
		Provider: p,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *CachedProvider) LoadIdentity(ctx context.Context, visitKey string) (*Identity, error) {
	if visitKey == "" {
		return c.Provider.LoadIdentity(ctx, visitKey)
	}

	c.mu.Lock()
	if e, ok := c.entries[visitKey]; ok && c.now().Before(e.expires) {
		c.mu.Unlock()
		return e.id, nil
	}
	gen := c.gen
	c.mu.Unlock()

	v, err, _ := c.group.Do(visitKey, func() (any, error) {
		id, err := c.Provider.LoadIdentity(ctx, visitKey)
		if err != nil {
			return nil, err
		}
		c.store(visitKey, id, gen)
		return id, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

func (c *CachedProvider) store(visitKey string, id *Identity, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	now := c.now()
	if len(c.entries) >= cacheSweepThreshold {
		for k, e := range c.entries {
			if !now.Before(e.expires) {
				delete(c.entries, k)
			}
		}
	}
	c.entries[visitKey] = cacheEntry{id: id, expires: now.Add(c.ttl)}
}

// Invalidate drops the cached identity for visitKey.
func (c *CachedProvider) Invalidate(visitKey string) {
	c.mu.Lock()
	delete(c.entries, visitKey)
	c.gen++
	c.mu.Unlock()
	c.group.Forget(visitKey)
}

func (c *CachedProvider) ValidateIdentity(ctx context.Context, userName, password, visitKey string) (*Identity, error) {
	id, err := c.Provider.ValidateIdentity(ctx, userName, password, visitKey)
	if id != nil {
		c.Invalidate(visitKey)
	}
	return id, err
}

func (c *CachedProvider) ValidateForeignUser(ctx context.Context, siteID, foreignID, visitKey string) (*Identity, error) {
	id, err := c.Provider.ValidateForeignUser(ctx, siteID, foreignID, visitKey)
	if id != nil {
		c.Invalidate(visitKey)
	}
	return id, err
}

func (c *CachedProvider) Login(ctx context.Context, id *Identity) error {
	err := c.Provider.Login(ctx, id)
	if id != nil {
		c.Invalidate(id.VisitKey)
	}
	return err
}

func (c *CachedProvider) Logout(ctx context.Context, id *Identity) (*Identity, error) {
	out, err := c.Provider.Logout(ctx, id)
	if id != nil {
		c.Invalidate(id.VisitKey)
	}
	return out, err
}

var _ Provider = (*CachedProvider)(nil)
