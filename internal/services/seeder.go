package services

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
)

// seededCatalogFloor: a catalog bigger than this is considered already seeded
// and SeedAll becomes a no-op unless forced.
const seededCatalogFloor = 100

// seedBatchSize bounds each catalog write transaction.
const seedBatchSize = 100

// Seeder populates the asset catalog from provider listings plus the curated
// index and gold symbols.
type Seeder struct {
	provider provider.Provider
	assets   *repository.AssetRepository
	limiter  *ratelimit.Limiter

	mu     sync.Mutex
	seeded int
	total  int
	active bool
}

// NewSeeder creates a new Seeder.
func NewSeeder(p provider.Provider, assets *repository.AssetRepository, limiter *ratelimit.Limiter) *Seeder {
	return &Seeder{provider: p, assets: assets, limiter: limiter}
}

// SeedAll fills the catalog. Skipped when it already holds more than 100 rows
// unless forceRefresh. Categories seed in parallel; a failing category logs
// and does not abort the others.
func (s *Seeder) SeedAll(ctx context.Context, forceRefresh bool) error {
	if !forceRefresh {
		count, err := s.assets.Count(ctx)
		if err != nil {
			return err
		}
		if count > seededCatalogFloor {
			log.Infof("catalog already holds %d assets, skipping seed", count)
			return nil
		}
	}

	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return nil
	}
	s.active = true
	s.seeded = 0
	s.total = 0
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active = false
		s.mu.Unlock()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.seedListing(gctx, models.AssetTypeStock) })
	g.Go(func() error { return s.seedListing(gctx, models.AssetTypeFund) })
	g.Go(func() error { return s.seedCurated(gctx, s.indexAssets()) })
	g.Go(func() error { return s.seedCurated(gctx, s.goldAssets()) })
	return g.Wait()
}

// seedListing pulls one provider listing and upserts it in batches.
func (s *Seeder) seedListing(ctx context.Context, at models.AssetType) error {
	var infos []provider.AssetInfo
	err := s.limiter.ExecuteWithRetry(func() error {
		var ferr error
		infos, ferr = s.provider.FetchListing(ctx, at)
		return ferr
	}, 2)
	if err != nil {
		log.Errorf("listing fetch failed while seeding %s: %v", at, err)
		return nil // isolated: other categories keep going
	}

	assets := make([]models.Asset, 0, len(infos))
	for _, info := range infos {
		assets = append(assets, assetFor(info.Symbol, info.Name, at, info.Exchange))
	}
	return s.seedCurated(ctx, assets)
}

func (s *Seeder) seedCurated(ctx context.Context, assets []models.Asset) error {
	s.mu.Lock()
	s.total += len(assets)
	s.mu.Unlock()

	for start := 0; start < len(assets); start += seedBatchSize {
		end := start + seedBatchSize
		if end > len(assets) {
			end = len(assets)
		}
		if err := s.assets.UpsertBatch(ctx, assets[start:end]); err != nil {
			log.Errorf("catalog batch upsert failed: %v", err)
			continue
		}
		s.mu.Lock()
		s.seeded += end - start
		s.mu.Unlock()
	}
	return nil
}

func (s *Seeder) indexAssets() []models.Asset {
	assets := make([]models.Asset, 0, len(models.IndexSymbols))
	for _, symbol := range models.IndexSymbols {
		assets = append(assets, assetFor(symbol, symbol, models.AssetTypeIndex, "HOSE"))
	}
	return assets
}

func (s *Seeder) goldAssets() []models.Asset {
	assets := make([]models.Asset, 0, len(models.GoldProviders))
	for symbol := range models.GoldProviders {
		assets = append(assets, assetFor(symbol, goldName(symbol), models.AssetTypeGold, "SJC"))
	}
	return assets
}

// Progress reports seeding counters for the admin endpoint.
func (s *Seeder) Progress() models.SeedProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.SeedProgress{Seeded: s.seeded, Total: s.total, Active: s.active}
}

func assetFor(symbol, name string, at models.AssetType, exchange string) models.Asset {
	cls := models.ClassificationFor(at)
	return models.Asset{
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
