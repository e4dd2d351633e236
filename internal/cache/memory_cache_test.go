package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epeers/vnmarket/internal/models"
)

// fakeClock lets tests march time forward deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(max int, ttl time.Duration) (*MemoryCache, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(max, ttl)
	c.now = clk.now
	return c, clk
}

func TestGetSetRoundTrip(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestEntryExpires(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("k", "v")

	clk.advance(59 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok)

	clk.advance(2 * time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestSetWithTTLOverridesDefault(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.SetWithTTL("k", "v", time.Hour)

	clk.advance(30 * time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestEvictsLeastRecentlyAccessedTenth(t *testing.T) {
	c, clk := newTestCache(20, time.Hour)
	for i := 0; i < 20; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
		clk.advance(time.Second)
	}
	// Touch everything except k0 and k1 so they are the coldest.
	for i := 2; i < 20; i++ {
		_, ok := c.Get(fmt.Sprintf("k%d", i))
		require.True(t, ok)
		clk.advance(time.Second)
	}

	// Inserting one more evicts 10% of 20 = 2 entries: k0 and k1.
	c.Set("k20", 20)

	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k1")
	assert.False(t, ok)
	_, ok = c.Get("k2")
	assert.True(t, ok)
	_, ok = c.Get("k20")
	assert.True(t, ok)

	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestEvictsAtLeastOne(t *testing.T) {
	c, _ := newTestCache(3, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCleanupExpired(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("old", 1)
	clk.advance(2 * time.Minute)
	c.Set("fresh", 2)

	removed := c.CleanupExpired()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}

func TestStatsCounters(t *testing.T) {
	c, _ := newTestCache(10, time.Minute)
	c.Set("k", "v")
	c.Get("k")
	c.Get("k")
	c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 10, stats.MaxEntries)
}

func TestTTLManager(t *testing.T) {
	m := NewTTLManager()
	assert.Equal(t, 24*time.Hour, m.TTL(models.AssetTypeFund))
	assert.Equal(t, time.Hour, m.TTL(models.AssetTypeStock))
	assert.Equal(t, time.Hour, m.TTL(models.AssetTypeIndex))
	assert.Equal(t, time.Hour, m.TTL(models.AssetTypeGold))
	assert.Equal(t, 15*time.Minute, m.TTL("CRYPTO"))
	assert.Equal(t, time.Hour, m.TTL("SOMETHING_ELSE"))
}

func TestQuoteCacheUsesAssetTTL(t *testing.T) {
	ttls := NewTTLManager()
	qc := NewQuoteCache(ttls)
	clk := &fakeClock{t: time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC)}
	qc.cache.now = clk.now

	fund := &models.Quote{Symbol: "VESAF", AssetType: models.AssetTypeFund}
	stock := &models.Quote{Symbol: "FPT", AssetType: models.AssetTypeStock}
	qc.Set("VESAF", models.AssetTypeFund, fund)
	qc.Set("FPT", models.AssetTypeStock, stock)

	// Two hours later the stock quote has expired, the fund quote has not.
	clk.advance(2 * time.Hour)
	_, ok := qc.Get("FPT", models.AssetTypeStock)
	assert.False(t, ok)
	got, ok := qc.Get("VESAF", models.AssetTypeFund)
	require.True(t, ok)
	assert.Equal(t, "VESAF", got.Symbol)
}
