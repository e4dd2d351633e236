package services

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/planner"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/util"
)

// completenessThreshold is the cached/expected ratio above which lazy-mode
// assets are served from the store without waiting on the provider.
const completenessThreshold = 0.8

// LazyTrigger enqueues a background enrichment task. Implemented by the
// lazyfetch manager; nil disables enrichment (tests, one-shot tools).
type LazyTrigger interface {
	Trigger(symbol string, at models.AssetType, start, end string)
}

// HistoryService is the read-through path for historical ranges: store first,
// provider for the gaps, fallbacks when the provider fails.
type HistoryService struct {
	provider  provider.Provider
	store     *repository.HistoricalRepository
	logs      *repository.ProviderLogRepository
	limiter   *ratelimit.Limiter
	lazy      LazyTrigger
	freshness *FreshnessCoordinator

	now func() time.Time
}

// NewHistoryService creates a new HistoryService. lazy may be nil.
func NewHistoryService(p provider.Provider, store *repository.HistoricalRepository, logs *repository.ProviderLogRepository, limiter *ratelimit.Limiter, lazy LazyTrigger) *HistoryService {
	return &HistoryService{
		provider: p,
		store:    store,
		logs:     logs,
		limiter:  limiter,
		lazy:     lazy,
		now:      time.Now,
	}
}

// SetFreshness attaches the coordinator consulted whenever cached data is
// served. Set after construction; the coordinator depends on this service.
func (s *HistoryService) SetFreshness(f *FreshnessCoordinator) { s.freshness = f }

// SetLazy attaches the background enrichment trigger.
func (s *HistoryService) SetLazy(l LazyTrigger) { s.lazy = l }

// GetHistory returns records for [start, end] ascending. Lazy-mode assets
// (GOLD, FUND) serve from the store when coverage is sufficient; STOCK and
// INDEX fetch missing gaps synchronously.
func (s *HistoryService) GetHistory(ctx context.Context, symbol string, at models.AssetType, start, end string) ([]models.HistoricalRecord, error) {
	defer TrackTime("GetHistory", time.Now())

	startT, endT, err := util.ValidateRange(start, end, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	storageSymbol := symbol
	if at == models.AssetTypeGold {
		storageSymbol = goldStorageSymbol(symbol)
	}

	var records []models.HistoricalRecord
	if at == models.AssetTypeGold || at == models.AssetTypeFund {
		records, err = s.getLazy(ctx, storageSymbol, at, startT, endT, start, end)
	} else {
		records, err = s.getIncremental(ctx, storageSymbol, at, startT, endT, start, end)
	}
	if err != nil {
		return nil, err
	}

	if s.freshness != nil && len(records) > 0 {
		s.freshness.OnServed(storageSymbol, at, records[len(records)-1])
	}

	if at == models.AssetTypeGold && symbol == models.GoldSymbolChi {
		out := make([]models.HistoricalRecord, len(records))
		for i, rec := range records {
			out[i] = applyChiRecord(rec)
		}
		records = out
	}
	return records, nil
}

// getLazy serves from the store when at least 80% of the expected trading
// dates are covered, enqueueing background enrichment for the remainder.
// Funds below the threshold get one synchronous full-range attempt.
func (s *HistoryService) getLazy(ctx context.Context, symbol string, at models.AssetType, startT, endT time.Time, start, end string) ([]models.HistoricalRecord, error) {
	records, err := s.store.CachedRecords(ctx, symbol, at, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached history: %w", err)
	}

	expected := util.ExpectedTradingDates(at, startT, endT, s.now())
	if len(expected) == 0 {
		return records, nil
	}

	coverage := float64(len(records)) / float64(len(expected))
	if coverage >= completenessThreshold {
		if coverage < 1.0 && s.lazy != nil {
			s.lazy.Trigger(symbol, at, start, end)
		}
		return records, nil
	}

	if at == models.AssetTypeFund {
		if fetched, err := s.FetchAndStoreRange(ctx, symbol, at, start, end); err != nil {
			log.Warnf("fund history fetch failed for %s, serving %d cached rows: %v", symbol, len(records), err)
		} else if fetched > 0 {
			records, err = s.store.CachedRecords(ctx, symbol, at, start, end)
			if err != nil {
				return nil, fmt.Errorf("failed to re-read cached history: %w", err)
			}
		}
	}

	if s.lazy != nil {
		s.lazy.Trigger(symbol, at, start, end)
	}
	return records, nil
}

// getIncremental plans the missing gaps and fetches them synchronously, one
// rate-limited provider call per gap. Provider failures degrade to whatever
// is cached.
func (s *HistoryService) getIncremental(ctx context.Context, symbol string, at models.AssetType, startT, endT time.Time, start, end string) ([]models.HistoricalRecord, error) {
	cached, err := s.store.CachedDates(ctx, symbol, at, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached dates: %w", err)
	}

	expected := util.ExpectedTradingDates(at, startT, endT, s.now())
	missing := planner.MissingFromDates(expected, cached)
	if planner.ShouldFetchFullRange(missing, len(util.EnumerateDates(startT, endT))) {
		missing = []planner.DateRange{{Start: start, End: end}}
	}

	for _, gap := range missing {
		if _, err := s.FetchAndStoreRange(ctx, symbol, at, gap.Start, gap.End); err != nil {
			log.Errorf("history fetch failed for %s %s..%s: %v", symbol, gap.Start, gap.End, err)
			continue
		}
		if _, err := s.store.MarkFetched(ctx, symbol, at, gap.Start, gap.End); err != nil {
			log.Warnf("failed to mark %s %s..%s fetched: %v", symbol, gap.Start, gap.End, err)
		}
	}

	records, err := s.store.CachedRecords(ctx, symbol, at, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged history: %w", err)
	}
	return records, nil
}

// FetchAndStoreRange pulls one range from the provider under the rate limiter,
// normalizes, and stores it. Returns rows stored.
func (s *HistoryService) FetchAndStoreRange(ctx context.Context, symbol string, at models.AssetType, start, end string) (int, error) {
	var rows []provider.HistoryRow
	err := s.limiter.ExecuteWithRetry(func() error {
		var ferr error
		rows, ferr = s.provider.FetchHistory(ctx, symbol, at, start, end)
		s.logCall(ctx, "history", symbol, ferr)
		return ferr
	}, 2)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	records := make([]models.HistoricalRecord, 0, len(rows))
	for _, row := range rows {
		rec := normalizeRow(symbol, at, row)
		if rec.IsPlaceholder() {
			continue
		}
		records = append(records, rec)
	}
	return s.store.Store(ctx, records)
}

// FetchAndStore fetches a single date and persists it; the freshness
// coordinator's top-up path.
func (s *HistoryService) FetchAndStore(ctx context.Context, symbol string, at models.AssetType, date string) error {
	if at == models.AssetTypeGold {
		var spot *provider.GoldSpot
		err := s.limiter.ExecuteWithRetry(func() error {
			var ferr error
			spot, ferr = s.provider.FetchGoldSpotByDate(ctx, date)
			s.logCall(ctx, "gold_spot", symbol, ferr)
			return ferr
		}, 1)
		if err != nil {
			return err
		}
		if spot == nil {
			return nil
		}
		_, err = s.store.Store(ctx, []models.HistoricalRecord{normalizeGoldSpot(*spot)})
		return err
	}

	_, err := s.FetchAndStoreRange(ctx, symbol, at, date, date)
	return err
}

func (s *HistoryService) logCall(ctx context.Context, endpoint, symbol string, callErr error) {
	if s.logs == nil {
		return
	}
	status := "ok"
	detail := ""
	if callErr != nil {
		detail = callErr.Error()
		switch provider.Classify(callErr) {
		case provider.KindRateLimited:
			status = "rate_limited"
		case provider.KindPermanent:
			status = "rejected"
		default:
			status = "error"
		}
	}
	if err := s.logs.Log(ctx, endpoint, symbol, status, detail); err != nil {
		log.Debugf("provider log write failed: %v", err)
	}
}
