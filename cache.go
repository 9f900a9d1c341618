package dnsrelay

import (
	"sync"
	"time"
)

// Default tuning values from spec §4.
const (
	DefaultCacheCapacity = 10000
	DefaultOverrideTTL   = 60
	DefaultSweepInterval = 30 * time.Second
	DefaultMinTTL        uint32 = 1
	DefaultMaxTTL        uint32 = 86400
)

// Cache is a TTL-bounded, LRU-evicting store of resolved answers. A single
// mutex protects the hash index and LRU list together, matching spec §5's
// concurrency policy: "the LRU list and the hash index must be kept
// consistent under concurrent access".
type Cache struct {
	mu        sync.Mutex
	lru       *lruCache
	log       Logger
	stopSweep chan struct{}
}

// NewCache returns a cache with the given capacity (<=0 means unbounded)
// and starts its background sweeper at the given interval (<=0 uses
// DefaultSweepInterval).
func NewCache(capacity int, sweepInterval time.Duration, log Logger) *Cache {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	c := &Cache{
		lru:       newLRUCache(capacity),
		log:       log,
		stopSweep: make(chan struct{}),
	}
	go c.sweepLoop(sweepInterval)
	return c
}

// Get returns the cached answer and response code for key if present and
// unexpired. Expired entries are evicted on lookup. On a hit, the entry's
// answers are returned with each RR's TTL replaced by the remaining time
// to expiry, floored at 1 second.
func (c *Cache) Get(key cacheKey, now time.Time) ([]RR, uint8, bool) {
	c.mu.Lock()
	answer := c.lru.get(key)
	if answer != nil && !now.Before(answer.expiry) {
		c.lru.delete(key)
		answer = nil
	}
	c.mu.Unlock()

	if answer == nil {
		return nil, 0, false
	}

	remaining := answer.expiry.Sub(now)
	ttl := uint32(remaining.Seconds())
	if ttl < 1 {
		ttl = 1
	}
	out := make([]RR, len(answer.answers))
	for i, rr := range answer.answers {
		rr.TTL = ttl
		out[i] = rr
	}
	return out, answer.rcode, true
}

// Put stores answers and a response code under key with the given TTL in
// seconds, evicting the least-recently-used entry if capacity is exceeded.
func (c *Cache) Put(key cacheKey, answers []RR, rcode uint8, ttl uint32, now time.Time) {
	stored := make([]RR, len(answers))
	copy(stored, answers)

	c.mu.Lock()
	c.lru.add(key, &cacheAnswer{
		answers: stored,
		rcode:   rcode,
		expiry:  now.Add(time.Duration(ttl) * time.Second),
	})
	c.mu.Unlock()
}

// Size returns the current number of entries, mostly useful for tests and
// metrics.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.size()
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopSweep:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

// sweep removes every expired entry regardless of whether it has been
// looked up since expiring.
func (c *Cache) sweep(now time.Time) {
	c.mu.Lock()
	removed := c.lru.deleteFunc(func(_ cacheKey, a *cacheAnswer) bool {
		return now.After(a.expiry) || now.Equal(a.expiry)
	})
	total := c.lru.size()
	c.mu.Unlock()

	if c.log != nil && removed > 0 {
		c.log.Debugf("cache sweep: removed %d expired entries, %d remain", removed, total)
	}
}

// Stop terminates the background sweeper. Part of graceful shutdown.
func (c *Cache) Stop() {
	close(c.stopSweep)
}

// ClampTTL enforces the [min, max] TTL bound spec §4.5 requires for
// upstream answers before they enter the cache.
func ClampTTL(ttl, min, max uint32) uint32 {
	if ttl < min {
		return min
	}
	if ttl > max {
		return max
	}
	return ttl
}

// MinTTL returns the lowest TTL among a set of RRs, and whether the set was
// non-empty.
func MinTTL(rrs []RR) (uint32, bool) {
	var min uint32
	found := false
	for _, rr := range rrs {
		if !found || rr.TTL < min {
			min = rr.TTL
			found = true
		}
	}
	return min, found
}
