package privacy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func resultExpiringIn(clk *fakeClock, d time.Duration) *AttestationResult {
	return &AttestationResult{Verified: true, MaxTier: CpuTee, ExpiresAtUnix: clk.now.Add(d).Unix()}
}

func TestCacheGetMissAndHit(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	store := NewLRUStore(10, clk)
	key := CacheKey{Tier: CpuTee, PlatformID: "node-a"}

	_, ok := store.Get(key)
	assert.False(t, ok)

	store.Set(key, resultExpiringIn(clk, time.Hour))
	got, ok := store.Get(key)
	require.True(t, ok)
	assert.Equal(t, CpuTee, got.MaxTier)
}

func TestCacheExpiryRemovesOnGet(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	store := NewLRUStore(10, clk)
	key := CacheKey{Tier: AtRest, PlatformID: "p"}
	store.Set(key, resultExpiringIn(clk, time.Second))

	clk.now = clk.now.Add(2 * time.Second)
	_, ok := store.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Stats().Total)
}

func TestCacheLRUEvictsLeastRecentlyAccessed(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	store := NewLRUStore(2, clk)
	a := CacheKey{Tier: CpuTee, PlatformID: "a"}
	b := CacheKey{Tier: CpuTee, PlatformID: "b"}
	c := CacheKey{Tier: CpuTee, PlatformID: "c"}

	store.Set(a, resultExpiringIn(clk, time.Hour))
	clk.now = clk.now.Add(time.Second)
	store.Set(b, resultExpiringIn(clk, time.Hour))

	// Touch a so it becomes more-recently-accessed than b.
	clk.now = clk.now.Add(time.Second)
	store.Get(a)

	clk.now = clk.now.Add(time.Second)
	store.Set(c, resultExpiringIn(clk, time.Hour))

	_, aOK := store.Get(a)
	_, bOK := store.Get(b)
	_, cOK := store.Get(c)
	assert.True(t, aOK, "a was recently accessed, should survive")
	assert.False(t, bOK, "b was least-recently-accessed, should be evicted")
	assert.True(t, cOK)
}

func TestCacheStatsConsistency(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	store := NewLRUStore(10, clk)
	store.Set(CacheKey{Tier: CpuTee, PlatformID: "1"}, resultExpiringIn(clk, time.Hour))
	store.Set(CacheKey{Tier: CpuTee, PlatformID: "2"}, resultExpiringIn(clk, -time.Hour))

	stats := store.Stats()
	assert.Equal(t, stats.Valid+stats.Expired, stats.Total)

	removed := store.Cleanup()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, store.Stats().Expired)
}
