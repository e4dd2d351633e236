package services

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/util"
)

// defaultGoldSeedStart is where the historical walk begins when the store is
// empty; SJC publishes daily prices back well past this.
const defaultGoldSeedStart = "2020-01-01"

// GoldSeeder backfills the gold price history one weekday at a time. It is a
// one-shot worker: kick it off, it walks from the last stored date to today,
// pacing itself against the provider.
type GoldSeeder struct {
	provider provider.Provider
	store    *repository.HistoricalRepository
	logs     *repository.ProviderLogRepository
	limiter  *ratelimit.Limiter

	startDate string

	mu      sync.Mutex
	running bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewGoldSeeder creates a new GoldSeeder starting from startDate (empty means
// the default 2020-01-01).
func NewGoldSeeder(p provider.Provider, store *repository.HistoricalRepository, logs *repository.ProviderLogRepository, limiter *ratelimit.Limiter, startDate string) *GoldSeeder {
	if startDate == "" {
		startDate = defaultGoldSeedStart
	}
	return &GoldSeeder{
		provider:  p,
		store:     store,
		logs:      logs,
		limiter:   limiter,
		startDate: startDate,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// Start launches the walk in the background. Returns false when a walk is
// already running.
func (g *GoldSeeder) Start(ctx context.Context) bool {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return false
	}
	g.running = true
	g.mu.Unlock()

	go func() {
		defer func() {
			g.mu.Lock()
			g.running = false
			g.mu.Unlock()
		}()
		if err := g.run(ctx); err != nil {
			log.Errorf("gold seed walk stopped: %v", err)
		}
	}()
	return true
}

// Running reports whether a walk is in progress.
func (g *GoldSeeder) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// run walks weekdays from the resume point to today, fetching and storing
// one spot per day.
func (g *GoldSeeder) run(ctx context.Context) error {
	start, err := g.resumePoint(ctx)
	if err != nil {
		return err
	}
	today := util.Truncate(g.now())

	fetched := 0
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		if !util.IsWeekday(d) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		date := util.FormatDate(d)
		if err := g.fetchDay(ctx, date); err != nil {
			var rl *provider.RateLimitError
			if errors.As(err, &rl) {
				log.Warnf("gold seed rate limited at %s, sleeping %s", date, rl.RetryAfter)
				g.sleep(rl.RetryAfter + time.Second)
				d = d.AddDate(0, 0, -1) // retry the same day
				continue
			}
			log.Warnf("gold seed skipping %s: %v", date, err)
			continue
		}
		fetched++
		g.sleep(g.delay(ctx))
	}
	log.Infof("gold seed walk finished, %d days fetched", fetched)
	return nil
}

// resumePoint picks up after the newest stored gold date, or the configured
// start when the store is empty.
func (g *GoldSeeder) resumePoint(ctx context.Context) (time.Time, error) {
	latest, err := g.store.LatestDate(ctx, models.GoldSymbolLuong, models.AssetTypeGold)
	if err != nil {
		return time.Time{}, err
	}
	if latest == "" {
		return util.ParseDate(g.startDate)
	}
	t, err := util.ParseDate(latest)
	if err != nil {
		return util.ParseDate(g.startDate)
	}
	return t.AddDate(0, 0, 1), nil
}

func (g *GoldSeeder) fetchDay(ctx context.Context, date string) error {
	if !g.limiter.WaitForSlot(90 * time.Second) {
		return ratelimit.ErrSlotTimeout
	}
	g.limiter.RecordCall()

	spot, err := g.provider.FetchGoldSpotByDate(ctx, date)
	if g.logs != nil {
		status := "ok"
		detail := ""
		if err != nil {
			status = "error"
			detail = err.Error()
		}
		_ = g.logs.Log(ctx, "gold_spot", models.GoldSymbolLuong, status, detail)
	}
	if err != nil {
		return err
	}
	if spot == nil {
		// No price published that day; store a placeholder so the walk does
		// not revisit it.
		_, err = g.store.Store(ctx, []models.HistoricalRecord{{
			Symbol:    models.GoldSymbolLuong,
			AssetType: models.AssetTypeGold,
			Date:      date,
		}})
		return err
	}
	_, err = g.store.Store(ctx, []models.HistoricalRecord{normalizeGoldSpot(*spot)})
	return err
}

// delay adapts pacing to recent provider load, same tiers as the lazy-fetch
// workers.
func (g *GoldSeeder) delay(ctx context.Context) time.Duration {
	if g.logs == nil {
		return 2 * time.Second
	}
	calls, err := g.logs.CallsSince(ctx, g.now().Add(-time.Minute))
	if err != nil {
		return 2 * time.Second
	}
	switch {
	case calls > 40:
		return 5 * time.Second
	case calls > 25:
		return 3 * time.Second
	case calls > 15:
		return 2 * time.Second
	default:
		return 2 * time.Second // background floor
	}
}
