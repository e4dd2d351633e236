package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// SearchResponse wraps ranked search results
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// QuoteResponse is the unified quote payload with classification fields
type QuoteResponse struct {
	Quote
	AssetClass    string `json:"asset_class"`
	AssetSubClass string `json:"asset_sub_class"`
	DataSource    string `json:"data_source"`
}

// NewQuoteResponse attaches the fixed classification for the quote's asset type
func NewQuoteResponse(q *Quote) *QuoteResponse {
	cls := ClassificationFor(q.AssetType)
	resp := &QuoteResponse{
		Quote:         *q,
		AssetClass:    cls.AssetClass,
		AssetSubClass: cls.AssetSubClass,
		DataSource:    cls.DataSource,
	}
	if resp.Currency == "" {
		resp.Currency = cls.Currency
	}
	return resp
}

// HistoryResponse wraps a historical range for one symbol
type HistoryResponse struct {
	Symbol        string             `json:"symbol"`
	History       []HistoricalRecord `json:"history"`
	AssetClass    string             `json:"asset_class"`
	AssetSubClass string             `json:"asset_sub_class"`
	Currency      string             `json:"currency"`
	DataSource    string             `json:"data_source"`
}

// NewHistoryResponse builds the response envelope for an asset type
func NewHistoryResponse(symbol string, at AssetType, history []HistoricalRecord) *HistoryResponse {
	cls := ClassificationFor(at)
	if history == nil {
		history = []HistoricalRecord{}
	}
	return &HistoryResponse{
		Symbol:        symbol,
		History:       history,
		AssetClass:    cls.AssetClass,
		AssetSubClass: cls.AssetSubClass,
		Currency:      cls.Currency,
		DataSource:    cls.DataSource,
	}
}

// FundListResponse is returned by GET /funds
type FundListResponse struct {
	Funds []SearchResult `json:"funds"`
	Total int            `json:"total"`
}

// GoldSearchResult extends a search hit with unit information for gold symbols
type GoldSearchResult struct {
	SearchResult
	Provider        string `json:"provider"`
	ProviderName    string `json:"provider_name"`
	Unit            string `json:"unit"`
	UnitDescription string `json:"unit_description"`
}

// CacheStatsResponse reports memory and persistent cache statistics
type CacheStatsResponse struct {
	MemoryCaches map[string]CacheStats `json:"memory_caches"`
	Database     DatabaseStats         `json:"database"`
}

// CacheStats holds counters for a single in-memory cache
type CacheStats struct {
	Entries    int   `json:"entries"`
	MaxEntries int   `json:"max_entries"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// DatabaseStats holds row counts for the persistent store
type DatabaseStats struct {
	Assets            int64 `json:"assets"`
	HistoricalRecords int64 `json:"historical_records"`
	QuoteRows         int64 `json:"quote_rows"`
}

// SeedProgress reports how far asset seeding has come
type SeedProgress struct {
	Seeded int  `json:"seeded"`
	Total  int  `json:"total"`
	Active bool `json:"active"`
}
