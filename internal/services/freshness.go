package services

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/util"
)

// staleAfter is how old today's record may get on a weekday before a
// background top-up is scheduled.
const staleAfter = 30 * time.Minute

// TopUpFetcher fetches and persists a single date for a symbol. The
// coordinator depends only on this so it can be tested without the full
// read-through stack.
type TopUpFetcher interface {
	FetchAndStore(ctx context.Context, symbol string, at models.AssetType, date string) error
}

// FreshnessCoordinator watches what gets served from cache and schedules
// background top-ups when the latest record looks stale. It never blocks the
// serving request.
type FreshnessCoordinator struct {
	fetcher TopUpFetcher

	mu       sync.Mutex
	inflight map[string]bool
	lastRun  map[string]time.Time

	now func() time.Time
}

// NewFreshnessCoordinator creates a coordinator over a top-up fetcher.
func NewFreshnessCoordinator(fetcher TopUpFetcher) *FreshnessCoordinator {
	return &FreshnessCoordinator{
		fetcher:  fetcher,
		inflight: make(map[string]bool),
		lastRun:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// OnServed is called after cached data is returned to a client with the
// newest record that was served.
func (c *FreshnessCoordinator) OnServed(symbol string, at models.AssetType, latest models.HistoricalRecord) {
	target, ok := c.targetDate(latest)
	if !ok {
		return
	}
	c.schedule(symbol, at, target)
}

// targetDate decides whether a top-up is due and for which date. Weekdays:
// today, when the latest record was written more than 30 minutes ago.
// Weekends: the most recent Friday, when the served data ends earlier.
func (c *FreshnessCoordinator) targetDate(latest models.HistoricalRecord) (string, bool) {
	now := c.now()

	if util.IsWeekday(now) {
		if now.Sub(latest.UpdatedAt) <= staleAfter {
			return "", false
		}
		return util.FormatDate(now), true
	}

	friday := util.FormatDate(util.LatestFriday(now))
	if latest.Date >= friday {
		return "", false
	}
	return friday, true
}

func (c *FreshnessCoordinator) schedule(symbol string, at models.AssetType, date string) {
	key := symbol + "_" + string(at) + "_" + date

	c.mu.Lock()
	if c.inflight[key] {
		c.mu.Unlock()
		return
	}
	if last, ok := c.lastRun[key]; ok && c.now().Sub(last) < staleAfter {
		c.mu.Unlock()
		return
	}
	c.inflight[key] = true
	c.mu.Unlock()

	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.inflight, key)
			c.lastRun[key] = c.now()
			c.mu.Unlock()
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := c.fetcher.FetchAndStore(ctx, symbol, at, date); err != nil {
			log.Debugf("freshness top-up failed for %s %s: %v", symbol, date, err)
		}
	}()
}
