// Package price implements the market price lookup pipeline: a
// TTL'd cache over the cache adapter, a fail-soft resolver against the
// albion-online-data API, and the batched enrichment scheduler.
package price

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Kazxye/Loot-Logger-Albion-Online/cache"
)

// DefaultTTL is how long a resolved price stays valid.
const DefaultTTL = 5 * time.Minute

// Cache stores resolved prices keyed by (price server, item id) with a
// TTL. ResetAll bumps a generation counter that namespaces every key,
// so a server switch invalidates the whole cache in O(1) on both the
// local and Redis backends.
type Cache struct {
	kv  cache.Cache
	ttl time.Duration
	gen atomic.Int64
}

// NewCache creates a price Cache over the given KV backend; ttl <= 0
// uses DefaultTTL.
func NewCache(kv cache.Cache, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{kv: kv, ttl: ttl}
}

func (c *Cache) key(server, itemID string) string {
	return fmt.Sprintf("price:g%d:%s:%s", c.gen.Load(), server, itemID)
}

// Get returns the cached price for (server, itemID), or ok=false on a
// miss, an expired entry, or a backend error (treated as a miss).
func (c *Cache) Get(ctx context.Context, server, itemID string) (int64, bool) {
	v, err := c.kv.Get(ctx, c.key(server, itemID))
	if err != nil {
		return 0, false
	}
	p, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

// Put stores a resolved price with the cache TTL. Backend errors are
// dropped: a failed cache write only costs a future lookup.
func (c *Cache) Put(ctx context.Context, server, itemID string, p int64) {
	_ = c.kv.Set(ctx, c.key(server, itemID), strconv.FormatInt(p, 10), c.ttl)
}

// ResetAll invalidates every cached price regardless of age. Invoked
// when the active price server changes, since cross-server prices are
// not comparable.
func (c *Cache) ResetAll() {
	c.gen.Add(1)
}
