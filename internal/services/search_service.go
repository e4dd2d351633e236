package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
)

// searchResultTTL is how long ranked results live in both cache tiers.
const searchResultTTL = 30 * time.Minute

// SearchService answers free-text asset search and single-symbol lookup.
type SearchService struct {
	provider    provider.Provider
	assets      *repository.AssetRepository
	memory      *cache.SearchCache
	persistent  *repository.QuoteCacheRepository
	generalMem  *cache.MemoryCache
	limiter     *ratelimit.Limiter
	searchTypes []models.AssetType
}

// NewSearchService creates a new SearchService.
func NewSearchService(p provider.Provider, assets *repository.AssetRepository, memory *cache.SearchCache, persistent *repository.QuoteCacheRepository, generalMem *cache.MemoryCache, limiter *ratelimit.Limiter) *SearchService {
	return &SearchService{
		provider:    p,
		assets:      assets,
		memory:      memory,
		persistent:  persistent,
		generalMem:  generalMem,
		limiter:     limiter,
		searchTypes: []models.AssetType{models.AssetTypeStock, models.AssetTypeFund, models.AssetTypeIndex, models.AssetTypeGold},
	}
}

// Search returns ranked hits for a free-text query, capped at limit.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	defer TrackTime("Search", time.Now())

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidInput)
	}
	if limit <= 0 {
		limit = 20
	}
	normalized := strings.ToUpper(query)

	if results, ok := s.memory.Get(normalized); ok {
		return capResults(results, limit), nil
	}
	if results, err := s.persistent.GetSearchResults(ctx, normalized, searchResultTTL); err != nil {
		log.Warnf("persistent search read failed for %q: %v", query, err)
	} else if results != nil {
		s.memory.Set(normalized, results)
		return capResults(results, limit), nil
	}

	var mu sync.Mutex
	var all []models.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	for _, at := range s.searchTypes {
		at := at
		g.Go(func() error {
			hits := s.searchType(gctx, normalized, at)
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ranked := rankResults(dedupeResults(all), normalized)

	s.memory.Set(normalized, ranked)
	if err := s.persistent.SetSearchResults(ctx, normalized, ranked); err != nil {
		log.Debugf("persistent search write failed for %q: %v", query, err)
	}
	return capResults(ranked, limit), nil
}

// Lookup resolves one symbol to its asset identity. Precedence when a symbol
// exists under several types: gold, index, fund, stock. The ordering is
// arbitrary but long-established; clients depend on it.
func (s *SearchService) Lookup(ctx context.Context, symbol string) (*models.SearchResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrInvalidInput)
	}

	if _, ok := models.GoldProviders[symbol]; ok {
		r := resultFor(symbol, goldName(symbol), models.AssetTypeGold, "SJC")
		return &r, nil
	}
	if models.IsIndexSymbol(symbol) {
		r := resultFor(symbol, symbol, models.AssetTypeIndex, "HOSE")
		return &r, nil
	}
	for _, at := range []models.AssetType{models.AssetTypeFund, models.AssetTypeStock} {
		if a, err := s.assets.Get(ctx, symbol, at); err == nil {
			r := resultFromAsset(*a)
			return &r, nil
		}
	}

	// Catalog miss: check the provider listings before giving up.
	for _, at := range []models.AssetType{models.AssetTypeFund, models.AssetTypeStock} {
		for _, info := range s.listing(ctx, at) {
			if info.Symbol == symbol {
				r := resultFor(symbol, info.Name, at, info.Exchange)
				return &r, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: symbol %s", ErrNotFound, symbol)
}

// searchType gathers candidate hits for one asset type from the catalog and,
// for stocks and funds, the cached provider listing.
func (s *SearchService) searchType(ctx context.Context, query string, at models.AssetType) []models.SearchResult {
	var hits []models.SearchResult

	switch at {
	case models.AssetTypeGold:
		for symbol := range models.GoldProviders {
			if strings.Contains(symbol, query) || strings.Contains("GOLD VÀNG SJC", query) {
				hits = append(hits, resultFor(symbol, goldName(symbol), at, "SJC"))
			}
		}
		return hits

	case models.AssetTypeIndex:
		for _, symbol := range models.IndexSymbols {
			if strings.Contains(symbol, query) {
				hits = append(hits, resultFor(symbol, symbol, at, "HOSE"))
			}
		}
		return hits
	}

	assets, err := s.assets.SearchLike(ctx, query, 50)
	if err != nil {
		log.Warnf("catalog search failed for %q: %v", query, err)
	}
	for _, a := range assets {
		if a.AssetType == at {
			hits = append(hits, resultFromAsset(a))
		}
	}

	for _, info := range s.listing(ctx, at) {
		if strings.Contains(info.Symbol, query) || strings.Contains(strings.ToUpper(info.Name), query) {
			hits = append(hits, resultFor(info.Symbol, info.Name, at, info.Exchange))
		}
	}
	return hits
}

// listing returns the provider catalog for a type, cached in the general
// memory tier so search does not hammer the provider.
func (s *SearchService) listing(ctx context.Context, at models.AssetType) []provider.AssetInfo {
	key := "listing:" + string(at)
	if v, ok := s.generalMem.Get(key); ok {
		if infos, ok := v.([]provider.AssetInfo); ok {
			return infos
		}
	}

	var infos []provider.AssetInfo
	err := s.limiter.ExecuteWithRetry(func() error {
		var ferr error
		infos, ferr = s.provider.FetchListing(ctx, at)
		return ferr
	}, 1)
	if err != nil {
		log.Warnf("listing fetch failed for %s: %v", at, err)
		return nil
	}
	s.generalMem.Set(key, infos)
	return infos
}

// rankResults orders hits by relevance to the normalized query.
func rankResults(results []models.SearchResult, query string) []models.SearchResult {
	score := func(r models.SearchResult) int {
		symbol := strings.ToUpper(r.Symbol)
		name := strings.ToUpper(r.Name)
		s := 0
		switch {
		case symbol == query:
			s = 100
		case strings.HasPrefix(symbol, query):
			s = 80
		case strings.Contains(symbol, query) || strings.Contains(query, symbol):
			s = 60
		case strings.Contains(name, query):
			s = 40
		case strings.HasPrefix(name, query):
			s = 30
		}
		switch r.AssetType {
		case models.AssetTypeStock:
			s += 10
		case models.AssetTypeFund:
			s += 5
		}
		return s
	}

	sort.SliceStable(results, func(i, j int) bool {
		si, sj := score(results[i]), score(results[j])
		if si != sj {
			return si > sj
		}
		return results[i].Symbol < results[j].Symbol
	})
	return results
}

func dedupeResults(results []models.SearchResult) []models.SearchResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, r := range results {
		key := r.Symbol + "|" + string(r.AssetType)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

func capResults(results []models.SearchResult, limit int) []models.SearchResult {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func resultFor(symbol, name string, at models.AssetType, exchange string) models.SearchResult {
	cls := models.ClassificationFor(at)
	return models.SearchResult{
		Symbol:        symbol,
		Name:          name,
		AssetType:     at,
		AssetClass:    cls.AssetClass,
		AssetSubClass: cls.AssetSubClass,
		Exchange:      exchange,
		Currency:      cls.Currency,
		DataSource:    cls.DataSource,
	}
}

func resultFromAsset(a models.Asset) models.SearchResult {
	return models.SearchResult{
		Symbol:        a.Symbol,
		Name:          a.Name,
		AssetType:     a.AssetType,
		AssetClass:    a.AssetClass,
		AssetSubClass: a.AssetSubClass,
		Exchange:      a.Exchange,
		Currency:      a.Currency,
		DataSource:    a.DataSource,
	}
}

func goldName(symbol string) string {
	if symbol == models.GoldSymbolChi {
		return "SJC Gold (Chỉ)"
	}
	return "SJC Gold (Lượng)"
}
