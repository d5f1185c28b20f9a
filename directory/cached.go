package directory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Compile-time interface check.
var _ Directory = (*Cached)(nil)

// Cached wraps a Directory with a per-identity LRU cache. Misses
// (ErrNotFound) are not cached so newly provisioned users resolve
// immediately. List always goes to the underlying directory.
type Cached struct {
	next  Directory
	cache *expirable.LRU[string, Identity]
}

// NewCached caches up to size identities for ttl.
func NewCached(next Directory, size int, ttl time.Duration) *Cached {
	if size <= 0 {
		size = 1024
	}
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, Identity](size, nil, ttl),
	}
}

// List delegates to the wrapped directory and refreshes the cache.
func (c *Cached) List(ctx context.Context) ([]Identity, error) {
	list, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, i := range list {
		c.cache.Add(i.ID, i)
	}
	return list, nil
}

// Get serves from cache when possible.
func (c *Cached) Get(ctx context.Context, identityID string) (Identity, error) {
	if i, ok := c.cache.Get(identityID); ok {
		return i, nil
	}
	i, err := c.next.Get(ctx, identityID)
	if err != nil {
		return Identity{}, err
	}
	c.cache.Add(identityID, i)
	return i, nil
}

// Forget drops one identity from the cache.
func (c *Cached) Forget(identityID string) {
	c.cache.Remove(identityID)
}
