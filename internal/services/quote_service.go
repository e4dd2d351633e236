package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/util"
)

// QuoteService resolves latest quotes through the tiered caches, falling back
// to historical data when the provider cannot answer.
type QuoteService struct {
	provider   provider.Provider
	memory     *cache.QuoteCache
	persistent *repository.QuoteCacheRepository
	store      *repository.HistoricalRepository
	history    *HistoryService
	limiter    *ratelimit.Limiter
	ttls       *cache.TTLManager

	now func() time.Time
}

// NewQuoteService creates a new QuoteService.
func NewQuoteService(p provider.Provider, memory *cache.QuoteCache, persistent *repository.QuoteCacheRepository, store *repository.HistoricalRepository, history *HistoryService, limiter *ratelimit.Limiter, ttls *cache.TTLManager) *QuoteService {
	return &QuoteService{
		provider:   p,
		memory:     memory,
		persistent: persistent,
		store:      store,
		history:    history,
		limiter:    limiter,
		ttls:       ttls,
		now:        time.Now,
	}
}

// GetQuote returns the freshest available quote for the symbol. Resolution
// order: memory cache, persistent quote row, today's stored gold record,
// provider, then historical fallbacks. ErrNotFound when every tier is empty.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string, at models.AssetType) (*models.Quote, error) {
	storageSymbol := symbol
	if at == models.AssetTypeGold {
		storageSymbol = goldStorageSymbol(symbol)
	}

	q, err := s.resolve(ctx, storageSymbol, at)
	if err != nil {
		return nil, err
	}

	if at == models.AssetTypeGold && symbol == models.GoldSymbolChi {
		chi := applyChiQuote(*q)
		return &chi, nil
	}
	return q, nil
}

func (s *QuoteService) resolve(ctx context.Context, symbol string, at models.AssetType) (*models.Quote, error) {
	if q, ok := s.memory.Get(symbol, at); ok {
		return q, nil
	}

	ttl := s.ttls.TTL(at)
	if q, err := s.persistent.GetQuote(ctx, symbol, at, ttl); err != nil {
		log.Warnf("persistent quote read failed for %s: %v", symbol, err)
	} else if q != nil {
		s.memory.Set(symbol, at, q)
		return q, nil
	}

	// Gold is written daily by the seeders, so a same-day stored record is
	// as good as a provider call.
	if at == models.AssetTypeGold {
		if rec, err := s.store.MostRecentRecord(ctx, symbol, at, 1); err == nil && rec != nil {
			return s.cacheQuote(ctx, models.QuoteFromRecord(rec), at), nil
		}
	}

	q, provErr := s.fetchQuote(ctx, symbol, at)
	if provErr == nil && q != nil {
		return s.cacheQuote(ctx, q, at), nil
	}
	if provErr != nil {
		log.Warnf("provider quote failed for %s, trying fallbacks: %v", symbol, provErr)
	}

	if rec, err := s.store.MostRecentRecord(ctx, symbol, at, 30); err == nil && rec != nil {
		return s.cacheQuote(ctx, models.QuoteFromRecord(rec), at), nil
	}

	if q := s.historyFallback(ctx, symbol, at); q != nil {
		return s.cacheQuote(ctx, q, at), nil
	}

	if provErr != nil && provider.Classify(provErr) != provider.KindPermanent {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, provErr)
	}
	return nil, fmt.Errorf("%w: no quote for %s", ErrNotFound, symbol)
}

// fetchQuote calls the provider under the rate limiter.
func (s *QuoteService) fetchQuote(ctx context.Context, symbol string, at models.AssetType) (*models.Quote, error) {
	var raw *provider.Quote
	err := s.limiter.ExecuteWithRetry(func() error {
		var ferr error
		raw, ferr = s.provider.FetchQuote(ctx, symbol, at)
		s.history.logCall(ctx, "quote", symbol, ferr)
		return ferr
	}, 2)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	rec := normalizeRow(symbol, at, provider.HistoryRow{
		Date:      raw.Date,
		Open:      raw.Open,
		High:      raw.High,
		Low:       raw.Low,
		Close:     raw.Close,
		AdjClose:  raw.AdjClose,
		Volume:    raw.Volume,
		NAV:       raw.NAV,
		BuyPrice:  raw.BuyPrice,
		SellPrice: raw.SellPrice,
		Raw:       raw.Raw,
	})
	if rec.IsPlaceholder() {
		return nil, nil
	}
	return models.QuoteFromRecord(&rec), nil
}

// historyFallback runs a synchronous last-week history read and takes the
// newest record.
func (s *QuoteService) historyFallback(ctx context.Context, symbol string, at models.AssetType) *models.Quote {
	today := s.now()
	records, err := s.history.GetHistory(ctx, symbol, at,
		util.FormatDate(today.AddDate(0, 0, -7)), util.FormatDate(today))
	if err != nil || len(records) == 0 {
		return nil
	}
	return models.QuoteFromRecord(&records[len(records)-1])
}

// cacheQuote writes a resolved quote into both tiers and returns it.
func (s *QuoteService) cacheQuote(ctx context.Context, q *models.Quote, at models.AssetType) *models.Quote {
	q.AssetType = at
	if q.Currency == "" {
		q.Currency = models.CurrencyVND
	}
	s.memory.Set(q.Symbol, at, q)
	if err := s.persistent.SetQuote(ctx, q); err != nil {
		log.Debugf("persistent quote write failed for %s: %v", q.Symbol, err)
	}
	return q
}
