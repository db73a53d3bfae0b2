package storage

import (
	"sync"
	"time"

	"github.com/dailylens/internal/models"
)

type bundleEntry struct {
	bundle    *models.RankBundle
	expiresAt time.Time
}

// BundleCache holds precomputed rank bundles in process memory. Entries are
// keyed by user ID and carry the state version they were built at, so a
// version bump makes the cached bundle unusable without any eviction sweep.
type BundleCache struct {
	mu      sync.RWMutex
	entries map[string]bundleEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewBundleCache(ttl time.Duration) *BundleCache {
	return &BundleCache{
		entries: make(map[string]bundleEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached bundle for userID if it matches version and has not
// expired. A stale or version-mismatched entry is removed on the way out.
func (c *BundleCache) Get(userID string, version uint64) (*models.RankBundle, bool) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if entry.bundle.Version != version || c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if cur, still := c.entries[userID]; still && cur.bundle == entry.bundle {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.bundle, true
}

func (c *BundleCache) Put(bundle *models.RankBundle) {
	c.mu.Lock()
	c.entries[bundle.UserID] = bundleEntry{
		bundle:    bundle,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// Len reports live entries; expired ones still resident are not counted.
func (c *BundleCache) Len() int {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}

// SetClock replaces the time source for tests.
func (c *BundleCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// TTL returns the configured bundle lifetime.
func (c *BundleCache) TTL() time.Duration {
	return c.ttl
}
