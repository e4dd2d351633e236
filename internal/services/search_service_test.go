package services

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/repository"
)

type searchFixture struct {
	svc    *SearchService
	prov   *fakeProvider
	assets *repository.AssetRepository
}

func newSearchFixture(t *testing.T) *searchFixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prov := &fakeProvider{}
	assets := repository.NewAssetRepository(db)
	svc := NewSearchService(prov, assets, cache.NewSearchCache(), repository.NewQuoteCacheRepository(db), cache.NewGeneralCache(), testLimiter())
	return &searchFixture{svc: svc, prov: prov, assets: assets}
}

func seedCatalog(t *testing.T, assets *repository.AssetRepository) {
	t.Helper()
	require.NoError(t, assets.UpsertBatch(context.Background(), []models.Asset{
		{Symbol: "FPT", Name: "FPT Corporation", AssetType: models.AssetTypeStock, Exchange: "HOSE", Currency: models.CurrencyVND},
		{Symbol: "VESAF", Name: "VinaCapital Equity Special Access Fund", AssetType: models.AssetTypeFund, Currency: models.CurrencyVND},
		{Symbol: "FPTS", Name: "FPT Securities", AssetType: models.AssetTypeStock, Exchange: "HOSE", Currency: models.CurrencyVND},
	}))
}

func TestSearchRanksExactSymbolFirst(t *testing.T) {
	f := newSearchFixture(t)
	seedCatalog(t, f.assets)

	results, err := f.svc.Search(context.Background(), "fpt", 20)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "FPT", results[0].Symbol)
	assert.Equal(t, models.AssetTypeStock, results[0].AssetType)
}

func TestSearchEmptyQueryRejected(t *testing.T) {
	f := newSearchFixture(t)
	_, err := f.svc.Search(context.Background(), "   ", 20)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSearchSecondCallServedFromCache(t *testing.T) {
	f := newSearchFixture(t)
	seedCatalog(t, f.assets)

	var listingCalls int32
	f.prov.listingFn = func(models.AssetType) ([]provider.AssetInfo, error) {
		atomic.AddInt32(&listingCalls, 1)
		return nil, nil
	}

	_, err := f.svc.Search(context.Background(), "FPT", 20)
	require.NoError(t, err)
	first := atomic.LoadInt32(&listingCalls)

	_, err = f.svc.Search(context.Background(), "FPT", 20)
	require.NoError(t, err)
	assert.Equal(t, first, atomic.LoadInt32(&listingCalls))
}

func TestSearchFindsGoldByName(t *testing.T) {
	f := newSearchFixture(t)

	results, err := f.svc.Search(context.Background(), "gold", 20)
	require.NoError(t, err)

	symbols := make(map[string]bool)
	for _, r := range results {
		symbols[r.Symbol] = true
	}
	assert.True(t, symbols[models.GoldSymbolLuong])
	assert.True(t, symbols[models.GoldSymbolChi])
}

func TestLookupPrecedence(t *testing.T) {
	f := newSearchFixture(t)
	seedCatalog(t, f.assets)

	gold, err := f.svc.Lookup(context.Background(), "vn.gold")
	require.NoError(t, err)
	assert.Equal(t, models.AssetTypeGold, gold.AssetType)

	index, err := f.svc.Lookup(context.Background(), "VNINDEX")
	require.NoError(t, err)
	assert.Equal(t, models.AssetTypeIndex, index.AssetType)

	fund, err := f.svc.Lookup(context.Background(), "VESAF")
	require.NoError(t, err)
	assert.Equal(t, models.AssetTypeFund, fund.AssetType)

	stock, err := f.svc.Lookup(context.Background(), "FPT")
	require.NoError(t, err)
	assert.Equal(t, models.AssetTypeStock, stock.AssetType)

	_, err = f.svc.Lookup(context.Background(), "ZZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLookupFallsBackToProviderListing(t *testing.T) {
	f := newSearchFixture(t)
	f.prov.listingFn = func(at models.AssetType) ([]provider.AssetInfo, error) {
		if at != models.AssetTypeStock {
			return nil, nil
		}
		return []provider.AssetInfo{{Symbol: "HPG", Name: "Hoa Phat Group", Exchange: "HOSE"}}, nil
	}

	result, err := f.svc.Lookup(context.Background(), "HPG")
	require.NoError(t, err)
	assert.Equal(t, "HPG", result.Symbol)
	assert.Equal(t, models.AssetTypeStock, result.AssetType)
	assert.Equal(t, "HOSE", result.Exchange)
}

func TestDedupeAndRank(t *testing.T) {
	results := dedupeResults([]models.SearchResult{
		{Symbol: "FPT", AssetType: models.AssetTypeStock, Name: "FPT Corporation"},
		{Symbol: "FPT", AssetType: models.AssetTypeStock, Name: "FPT Corporation"},
		{Symbol: "FPT", AssetType: models.AssetTypeFund, Name: "FPT Capital Fund"},
	})
	require.Len(t, results, 2)

	ranked := rankResults([]models.SearchResult{
		{Symbol: "VFPT", Name: "Something"},
		{Symbol: "FPT", AssetType: models.AssetTypeStock, Name: "FPT Corporation"},
		{Symbol: "ABC", Name: "The FPT Holding"},
	}, "FPT")
	assert.Equal(t, "FPT", ranked[0].Symbol)
}
