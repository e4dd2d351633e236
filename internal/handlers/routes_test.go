package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/lazyfetch"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/services"
)

// stubProvider answers quotes from a canned map and nothing else.
type stubProvider struct {
	quotes map[string]*provider.Quote
}

func (p *stubProvider) FetchQuote(_ context.Context, symbol string, _ models.AssetType) (*provider.Quote, error) {
	return p.quotes[symbol], nil
}

func (p *stubProvider) FetchHistory(context.Context, string, models.AssetType, string, string) ([]provider.HistoryRow, error) {
	return nil, nil
}

func (p *stubProvider) FetchListing(context.Context, models.AssetType) ([]provider.AssetInfo, error) {
	return nil, nil
}

func (p *stubProvider) FetchGoldSpotByDate(context.Context, string) (*provider.GoldSpot, error) {
	return nil, nil
}

type routerFixture struct {
	router *gin.Engine
	assets *repository.AssetRepository
	quotes *repository.QuoteCacheRepository
}

func newTestRouter(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prov := &stubProvider{quotes: map[string]*provider.Quote{
		"FPT": {Symbol: "FPT", Date: time.Now().Format("2006-01-02"), Open: 97.0, High: 99.0, Low: 96.5, Close: 98.5, Volume: 250000, Raw: `{}`},
	}}
	limiter := ratelimit.NewLimiter(ratelimit.Config{Enabled: false})
	ttls := cache.NewTTLManager()

	assetRepo := repository.NewAssetRepository(db)
	histRepo := repository.NewHistoricalRepository(db)
	logRepo := repository.NewProviderLogRepository(db)
	quoteRepo := repository.NewQuoteCacheRepository(db)
	taskRepo := repository.NewFetchTaskRepository(db)

	lazyMgr := lazyfetch.NewManager(histRepo, logRepo, taskRepo)
	historySvc := services.NewHistoryService(prov, histRepo, logRepo, limiter, lazyMgr)
	lazyMgr.SetFetcher(historySvc)

	quoteCache := cache.NewQuoteCache(ttls)
	searchCache := cache.NewSearchCache()
	generalMem := cache.NewGeneralCache()
	quoteSvc := services.NewQuoteService(prov, quoteCache, quoteRepo, histRepo, historySvc, limiter, ttls)
	searchSvc := services.NewSearchService(prov, assetRepo, searchCache, quoteRepo, generalMem, limiter)
	seeder := services.NewSeeder(prov, assetRepo, limiter)
	goldSeeder := services.NewGoldSeeder(prov, histRepo, logRepo, limiter, "2020-01-01")

	router := gin.New()
	RegisterRoutes(router,
		NewMarketHandler(quoteSvc, historySvc, searchSvc),
		NewAssetHandler(assetRepo, searchSvc),
		NewAdminHandler(db, quoteCache, searchCache, generalMem, quoteRepo, seeder, goldSeeder, lazyMgr, limiter))

	t.Cleanup(lazyMgr.Stop)
	return &routerFixture{router: router, assets: assetRepo, quotes: quoteRepo}
}

func doRequest(router *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "vnmarket", body.Service)
}

func TestSearchRejectsBadLimit(t *testing.T) {
	f := newTestRouter(t)

	for _, limit := range []string{"abc", "0", "-5"} {
		w := doRequest(f.router, http.MethodGet, "/search?query=fpt&limit="+limit)
		require.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)

		var body models.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "invalid_input", body.Error)
	}
}

func TestHistoryRejectsMalformedDates(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/stocks/history/FPT?start_date=not-a-date")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body.Error)
}

func TestHistoryRejectsFutureRange(t *testing.T) {
	f := newTestRouter(t)

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	w := doRequest(f.router, http.MethodGet, "/stocks/history/FPT?end_date="+tomorrow)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTypedQuoteNormalizesProviderPrices(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/stocks/quote/FPT")
	require.Equal(t, http.StatusOK, w.Code)

	var body models.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FPT", body.Quote.Symbol)
	assert.Equal(t, 98500.0, body.Quote.Close)
	assert.Equal(t, models.CurrencyVND, body.Quote.Currency)
}

func TestUnknownSymbolLookupReturns404(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/quote/ZZZZZ")
	require.Equal(t, http.StatusNotFound, w.Code)

	var body models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Error)
}

func TestTypedLookupRejectsWrongAssetType(t *testing.T) {
	f := newTestRouter(t)
	require.NoError(t, f.assets.UpsertBatch(context.Background(), []models.Asset{{
		Symbol:    "VESAF",
		Name:      "VinaCapital Equity Special Access Fund",
		AssetType: models.AssetTypeFund,
		Currency:  models.CurrencyVND,
	}}))

	w := doRequest(f.router, http.MethodGet, "/funds/search/VESAF")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(f.router, http.MethodGet, "/stocks/search/VESAF")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestFundListServesCatalog(t *testing.T) {
	f := newTestRouter(t)
	require.NoError(t, f.assets.UpsertBatch(context.Background(), []models.Asset{
		{Symbol: "VESAF", Name: "VinaCapital Equity Special Access Fund", AssetType: models.AssetTypeFund, Currency: models.CurrencyVND},
		{Symbol: "DCDS", Name: "Dragon Capital Dynamic Securities Fund", AssetType: models.AssetTypeFund, Currency: models.CurrencyVND},
		{Symbol: "FPT", Name: "FPT Corporation", AssetType: models.AssetTypeStock, Currency: models.CurrencyVND},
	}))

	w := doRequest(f.router, http.MethodGet, "/funds")
	require.Equal(t, http.StatusOK, w.Code)

	var body models.FundListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	for _, f := range body.Funds {
		assert.Equal(t, models.AssetTypeFund, f.AssetType)
	}
}

func TestGoldLookupReportsUnit(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/gold/search/VN.GOLD.C")
	require.Equal(t, http.StatusOK, w.Code)

	var body models.GoldSearchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, models.GoldSymbolChi, body.Symbol)
	assert.Equal(t, "chi", body.Unit)

	w = doRequest(f.router, http.MethodGet, "/gold/search/XAU")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCacheCleanupKeepsFreshRows(t *testing.T) {
	f := newTestRouter(t)
	ctx := context.Background()
	require.NoError(t, f.quotes.SetQuote(ctx, &models.Quote{
		Symbol: "VESAF", AssetType: models.AssetTypeFund, Close: 25000, Date: time.Now().Format("2006-01-02"),
	}))

	w := doRequest(f.router, http.MethodPost, "/cache/cleanup")
	require.Equal(t, http.StatusOK, w.Code)

	// A quote written moments ago is inside every TTL and must survive.
	q, err := f.quotes.GetQuote(ctx, "VESAF", models.AssetTypeFund, 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, 25000.0, q.Close)
}

func TestCacheStatsEndpoint(t *testing.T) {
	f := newTestRouter(t)

	w := doRequest(f.router, http.MethodGet, "/cache/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "memory_caches")
	assert.Contains(t, body, "database")
}
