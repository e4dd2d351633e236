package cache

import (
	"time"

	"github.com/epeers/vnmarket/internal/models"
)

// QuoteCache is the L1 quote tier: bounded to 500 symbols, lifetimes resolved
// per asset type.
type QuoteCache struct {
	cache *MemoryCache
	ttls  *TTLManager
}

// NewQuoteCache creates the quote tier over a TTL manager.
func NewQuoteCache(ttls *TTLManager) *QuoteCache {
	return &QuoteCache{
		cache: NewMemoryCache(500, 5*time.Minute),
		ttls:  ttls,
	}
}

func quoteKey(symbol string, at models.AssetType) string {
	return "quote:" + string(at) + ":" + symbol
}

// Get returns a cached quote if fresh.
func (c *QuoteCache) Get(symbol string, at models.AssetType) (*models.Quote, bool) {
	v, ok := c.cache.Get(quoteKey(symbol, at))
	if !ok {
		return nil, false
	}
	q, ok := v.(*models.Quote)
	return q, ok
}

// Set caches a quote for the asset type's lifetime.
func (c *QuoteCache) Set(symbol string, at models.AssetType, q *models.Quote) {
	c.cache.SetWithTTL(quoteKey(symbol, at), q, c.ttls.TTL(at))
}

// CleanupExpired sweeps expired quotes.
func (c *QuoteCache) CleanupExpired() int { return c.cache.CleanupExpired() }

// Stats exposes counters for /cache/stats.
func (c *QuoteCache) Stats() models.CacheStats { return c.cache.Stats() }

// SearchCache is the L1 search-result tier: bounded to 200 queries, 30 min TTL.
type SearchCache struct {
	cache *MemoryCache
}

// NewSearchCache creates the search tier.
func NewSearchCache() *SearchCache {
	return &SearchCache{cache: NewMemoryCache(200, 30*time.Minute)}
}

// Get returns cached search results for a normalized query.
func (c *SearchCache) Get(query string) ([]models.SearchResult, bool) {
	v, ok := c.cache.Get("search:" + query)
	if !ok {
		return nil, false
	}
	results, ok := v.([]models.SearchResult)
	return results, ok
}

// Set caches search results.
func (c *SearchCache) Set(query string, results []models.SearchResult) {
	c.cache.Set("search:"+query, results)
}

// CleanupExpired sweeps expired queries.
func (c *SearchCache) CleanupExpired() int { return c.cache.CleanupExpired() }

// Stats exposes counters for /cache/stats.
func (c *SearchCache) Stats() models.CacheStats { return c.cache.Stats() }

// NewGeneralCache creates the general-purpose tier used for listings and other
// short-lived lookups: bounded to 1000 entries, 10 min TTL.
func NewGeneralCache() *MemoryCache {
	return NewMemoryCache(1000, 10*time.Minute)
}
