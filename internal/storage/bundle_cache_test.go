package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dailylens/internal/models"
)

func TestBundleCache_HitOnMatchingVersion(t *testing.T) {
	cache := NewBundleCache(30 * time.Second)
	cache.Put(&models.RankBundle{UserID: "u1", Version: 2})

	got, ok := cache.Get("u1", 2)
	assert.True(t, ok)
	assert.Equal(t, uint64(2), got.Version)
}

func TestBundleCache_MissOnVersionMismatch(t *testing.T) {
	cache := NewBundleCache(30 * time.Second)
	cache.Put(&models.RankBundle{UserID: "u1", Version: 2})

	_, ok := cache.Get("u1", 3)
	assert.False(t, ok)

	// The stale entry was dropped on the way out.
	assert.Equal(t, 0, cache.Len())
}

func TestBundleCache_MissAfterTTL(t *testing.T) {
	cache := NewBundleCache(30 * time.Second)
	current := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return current })

	cache.Put(&models.RankBundle{UserID: "u1", Version: 1})

	current = current.Add(31 * time.Second)
	_, ok := cache.Get("u1", 1)
	assert.False(t, ok)
}

func TestBundleCache_LenCountsLiveEntries(t *testing.T) {
	cache := NewBundleCache(30 * time.Second)
	current := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	cache.SetClock(func() time.Time { return current })

	cache.Put(&models.RankBundle{UserID: "u1", Version: 1})
	current = current.Add(20 * time.Second)
	cache.Put(&models.RankBundle{UserID: "u2", Version: 1})

	assert.Equal(t, 2, cache.Len())

	current = current.Add(15 * time.Second)
	assert.Equal(t, 1, cache.Len())
}
