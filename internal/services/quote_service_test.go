package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/repository"
)

type quoteFixture struct {
	svc   *QuoteService
	prov  *fakeProvider
	store *repository.HistoricalRepository
}

func newQuoteFixture(t *testing.T) *quoteFixture {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	prov := &fakeProvider{}
	store := repository.NewHistoricalRepository(db)
	logs := repository.NewProviderLogRepository(db)
	limiter := testLimiter()
	ttls := cache.NewTTLManager()

	history := NewHistoryService(prov, store, logs, limiter, nil)
	history.now = func() time.Time { return fixtureNow }

	svc := NewQuoteService(prov, cache.NewQuoteCache(ttls), repository.NewQuoteCacheRepository(db), store, history, limiter, ttls)
	svc.now = func() time.Time { return fixtureNow }
	return &quoteFixture{svc: svc, prov: prov, store: store}
}

func TestQuoteFromProviderNormalizedAndCached(t *testing.T) {
	f := newQuoteFixture(t)
	f.prov.quoteFn = func(symbol string, _ models.AssetType) (*provider.Quote, error) {
		return &provider.Quote{
			Symbol: symbol,
			Date:   "2025-10-03",
			Open:   97.0, High: 99.0, Low: 96.5, Close: 98.5,
			Volume: 250000,
			Raw:    `{"source":"fake"}`,
		}, nil
	}

	q, err := f.svc.GetQuote(context.Background(), "FPT", models.AssetTypeStock)
	require.NoError(t, err)
	assert.Equal(t, "FPT", q.Symbol)
	assert.Equal(t, 98500.0, q.Close)
	assert.Equal(t, 97000.0, q.Open)
	assert.Equal(t, models.CurrencyVND, q.Currency)
	assert.Equal(t, 1, f.prov.quoteCalls)

	// Second read is answered from memory.
	q2, err := f.svc.GetQuote(context.Background(), "FPT", models.AssetTypeStock)
	require.NoError(t, err)
	assert.Equal(t, q.Close, q2.Close)
	assert.Equal(t, 1, f.prov.quoteCalls)
}

func TestQuoteFallsBackToRecentRecordOnProviderFailure(t *testing.T) {
	f := newQuoteFixture(t)
	f.prov.quoteFn = func(string, models.AssetType) (*provider.Quote, error) {
		return nil, &provider.PermanentError{StatusCode: 502, Message: "upstream down"}
	}

	// A close from two days ago sits well inside the 30-day lookback.
	recent := time.Now().AddDate(0, 0, -2).Format("2006-01-02")
	_, err := f.store.Store(context.Background(), []models.HistoricalRecord{{
		Symbol:    "FPT",
		AssetType: models.AssetTypeStock,
		Date:      recent,
		Close:     models.Float(97000),
		DataJSON:  `{"source":"seed"}`,
	}})
	require.NoError(t, err)

	q, err := f.svc.GetQuote(context.Background(), "FPT", models.AssetTypeStock)
	require.NoError(t, err)
	assert.Equal(t, recent, q.Date)
	assert.Equal(t, 97000.0, q.Close)
	assert.Equal(t, 1, f.prov.quoteCalls)
}

func TestQuoteNotFoundWhenEveryTierEmpty(t *testing.T) {
	f := newQuoteFixture(t)
	f.prov.quoteFn = func(string, models.AssetType) (*provider.Quote, error) {
		return nil, &provider.PermanentError{StatusCode: 404, Message: "unknown symbol"}
	}
	f.prov.historyFn = func(string, models.AssetType, string, string) ([]provider.HistoryRow, error) {
		return nil, &provider.PermanentError{StatusCode: 404, Message: "unknown symbol"}
	}

	_, err := f.svc.GetQuote(context.Background(), "NOPE", models.AssetTypeStock)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGoldQuoteServedFromSameDayRecord(t *testing.T) {
	f := newQuoteFixture(t)
	today := time.Now().Format("2006-01-02")
	_, err := f.store.Store(context.Background(), []models.HistoricalRecord{{
		Symbol:    models.GoldSymbolLuong,
		AssetType: models.AssetTypeGold,
		Date:      today,
		Close:     models.Float(121000000),
		BuyPrice:  models.Float(119000000),
		SellPrice: models.Float(121000000),
		DataJSON:  `{"source":"seed"}`,
	}})
	require.NoError(t, err)

	q, err := f.svc.GetQuote(context.Background(), models.GoldSymbolLuong, models.AssetTypeGold)
	require.NoError(t, err)
	assert.Equal(t, 121000000.0, q.Close)
	assert.Equal(t, 0, f.prov.quoteCalls)

	// The Chỉ symbol reads the same stored row divided by ten.
	chi, err := f.svc.GetQuote(context.Background(), models.GoldSymbolChi, models.AssetTypeGold)
	require.NoError(t, err)
	assert.Equal(t, models.GoldSymbolChi, chi.Symbol)
	assert.Equal(t, 12100000.0, chi.Close)
	require.NotNil(t, chi.SellPrice)
	assert.Equal(t, 12100000.0, *chi.SellPrice)
	assert.Equal(t, 0, f.prov.quoteCalls)
}

func TestFundQuoteCarriesNAV(t *testing.T) {
	f := newQuoteFixture(t)
	nav := 25000.0
	f.prov.quoteFn = func(symbol string, _ models.AssetType) (*provider.Quote, error) {
		return &provider.Quote{Symbol: symbol, Date: "2025-10-02", NAV: &nav, Raw: `{"nav":25000}`}, nil
	}

	q, err := f.svc.GetQuote(context.Background(), "VESAF", models.AssetTypeFund)
	require.NoError(t, err)
	require.NotNil(t, q.NAV)
	assert.Equal(t, nav, *q.NAV)
	assert.Equal(t, nav, q.Close)
}
