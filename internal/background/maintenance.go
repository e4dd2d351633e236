// Package background runs the scheduled maintenance jobs: cache sweeps,
// catalog refresh, and popular-quote warming.
package background

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/services"
)

// popularStocks are pre-warmed hourly so the most-requested quotes never miss
// both cache tiers.
var popularStocks = []string{"VNM", "FPT", "MWG", "VCB", "HDB", "ACB", "CTG", "BID", "TCB", "VPB"}

// Maintenance owns the cron scheduler.
type Maintenance struct {
	cron *cron.Cron

	quoteCache  *cache.QuoteCache
	searchCache *cache.SearchCache
	generalMem  *cache.MemoryCache
	quoteRepo   *repository.QuoteCacheRepository
	logRepo     *repository.ProviderLogRepository
	quotes      *services.QuoteService
	seeder      *services.Seeder
}

// NewMaintenance wires the jobs; nothing runs until Start.
func NewMaintenance(quoteCache *cache.QuoteCache, searchCache *cache.SearchCache, generalMem *cache.MemoryCache, quoteRepo *repository.QuoteCacheRepository, logRepo *repository.ProviderLogRepository, quotes *services.QuoteService, seeder *services.Seeder) *Maintenance {
	return &Maintenance{
		cron:        cron.New(),
		quoteCache:  quoteCache,
		searchCache: searchCache,
		generalMem:  generalMem,
		quoteRepo:   quoteRepo,
		logRepo:     logRepo,
		quotes:      quotes,
		seeder:      seeder,
	}
}

// Start registers and launches the schedule: sweeps every 30 minutes, catalog
// and popular-quote refresh hourly.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc("*/30 * * * *", m.sweep); err != nil {
		return err
	}
	if _, err := m.cron.AddFunc("0 * * * *", m.refresh); err != nil {
		return err
	}
	m.cron.Start()
	log.Info("background maintenance started")
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (m *Maintenance) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Info("background maintenance stopped")
}

// sweep drops expired entries from every cache tier.
func (m *Maintenance) sweep() {
	removed := m.quoteCache.CleanupExpired() + m.searchCache.CleanupExpired() + m.generalMem.CleanupExpired()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	rows, err := m.quoteRepo.CleanupExpired(ctx, 24*time.Hour, 24*time.Hour)
	if err != nil {
		log.Warnf("persistent cache sweep failed: %v", err)
	}
	if _, err := m.logRepo.Prune(ctx, 7*24*time.Hour); err != nil {
		log.Warnf("provider log prune failed: %v", err)
	}
	log.Debugf("cache sweep: %d memory entries, %d rows removed", removed, rows)
}

// refresh re-seeds the catalog from fresh listings and warms popular quotes.
func (m *Maintenance) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := m.seeder.SeedAll(ctx, true); err != nil {
		log.Warnf("catalog refresh failed: %v", err)
	}

	warm := func(symbol string, at models.AssetType) {
		if _, err := m.quotes.GetQuote(ctx, symbol, at); err != nil {
			log.Debugf("quote warm failed for %s: %v", symbol, err)
		}
	}
	for _, s := range popularStocks {
		warm(s, models.AssetTypeStock)
	}
	for _, s := range models.IndexSymbols {
		warm(s, models.AssetTypeIndex)
	}
	warm(models.GoldSymbolLuong, models.AssetTypeGold)
}
