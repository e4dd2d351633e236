// Package lazyfetch runs the background enrichment workers that fill
// historical gaps after a request was already answered from cache.
package lazyfetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/planner"
	"github.com/epeers/vnmarket/internal/provider"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/util"
)

// Chunk sizes per asset type: gold spots are fetched nearly day-by-day
// upstream so chunks stay small.
const (
	goldChunkDays    = 3
	defaultChunkDays = 14
)

// maxAdaptiveDelay caps the between-chunk pause however throttled upstream is.
const maxAdaptiveDelay = 10 * time.Second

// RangeFetcher fetches, normalizes, and persists one date range. Satisfied by
// the history service.
type RangeFetcher interface {
	FetchAndStoreRange(ctx context.Context, symbol string, at models.AssetType, start, end string) (int, error)
}

// Manager dedupes and runs enrichment tasks. Each accepted trigger becomes a
// detached worker; duplicate triggers for an active key are dropped.
type Manager struct {
	fetcher RangeFetcher
	store   *repository.HistoricalRepository
	logs    *repository.ProviderLogRepository
	tasks   *repository.FetchTaskRepository

	mu      sync.Mutex
	active  map[string]bool
	stopped bool
	wg      sync.WaitGroup

	now   func() time.Time
	sleep func(time.Duration)
}

// NewManager creates a manager; SetFetcher must be called before Trigger.
func NewManager(store *repository.HistoricalRepository, logs *repository.ProviderLogRepository, tasks *repository.FetchTaskRepository) *Manager {
	return &Manager{
		store:  store,
		logs:   logs,
		tasks:  tasks,
		active: make(map[string]bool),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// SetFetcher attaches the range fetcher. Set after construction; the history
// service and this manager reference each other.
func (m *Manager) SetFetcher(f RangeFetcher) { m.fetcher = f }

// Trigger enqueues enrichment of [start, end] for a symbol. Duplicate
// triggers while the same key is active are silently dropped.
func (m *Manager) Trigger(symbol string, at models.AssetType, start, end string) {
	key := fmt.Sprintf("%s_%s_%s", symbol, start, end)

	m.mu.Lock()
	if m.stopped || m.fetcher == nil || m.active[key] {
		m.mu.Unlock()
		return
	}
	m.active[key] = true
	m.wg.Add(1)
	m.mu.Unlock()

	ctx := context.Background()
	task := &repository.FetchTask{Key: key, Symbol: symbol, AssetType: at, StartDate: start, EndDate: end}
	if ok, err := m.tasks.TryInsert(ctx, task); err != nil {
		log.Warnf("fetch task claim failed for %s: %v", key, err)
	} else if !ok {
		m.release(key)
		return
	}

	go m.run(key, symbol, at, start, end)
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	delete(m.active, key)
	m.mu.Unlock()
	m.wg.Done()
}

// run recomputes the real gaps, chunks them, and fetches chunk by chunk with
// adaptive pacing. The stop flag is checked between chunks.
func (m *Manager) run(key, symbol string, at models.AssetType, start, end string) {
	defer m.release(key)
	ctx := context.Background()

	m.setState(ctx, key, repository.TaskRunning, "")

	chunks, err := m.planChunks(ctx, symbol, at, start, end)
	if err != nil {
		log.Errorf("lazy fetch planning failed for %s: %v", key, err)
		m.setState(ctx, key, repository.TaskFailed, err.Error())
		return
	}
	if len(chunks) == 0 {
		m.setState(ctx, key, repository.TaskCompleted, "")
		return
	}

	log.Infof("lazy fetch %s: %d chunk(s)", key, len(chunks))
	m.setProgress(ctx, key, 0, len(chunks))

	rateLimitStreak := 0
	completed := 0
	var lastErr error
	for _, chunk := range chunks {
		if m.isStopped() {
			m.setState(ctx, key, repository.TaskFailed, "shutdown before completion")
			return
		}

		if _, err := m.fetcher.FetchAndStoreRange(ctx, symbol, at, chunk.Start, chunk.End); err != nil {
			lastErr = err
			if provider.Classify(err) == provider.KindRateLimited {
				rateLimitStreak++
			}
			log.Warnf("lazy fetch chunk %s..%s failed for %s: %v", chunk.Start, chunk.End, symbol, err)
		} else {
			rateLimitStreak = 0
			completed++
			m.setProgress(ctx, key, completed, len(chunks))
		}

		m.sleep(m.delay(ctx, rateLimitStreak))
	}

	if lastErr != nil {
		m.setState(ctx, key, repository.TaskFailed, lastErr.Error())
		return
	}
	m.setState(ctx, key, repository.TaskCompleted, "")
}

// planChunks recomputes missing expected trading dates against the store;
// what arrived since the trigger does not get refetched.
func (m *Manager) planChunks(ctx context.Context, symbol string, at models.AssetType, start, end string) ([]planner.DateRange, error) {
	startT, err := util.ParseDate(start)
	if err != nil {
		return nil, err
	}
	endT, err := util.ParseDate(end)
	if err != nil {
		return nil, err
	}

	cached, err := m.store.CachedDates(ctx, symbol, at, start, end)
	if err != nil {
		return nil, err
	}
	expected := util.ExpectedTradingDates(at, startT, endT, m.now())
	missing := planner.MissingFromDates(expected, cached)

	chunkDays := defaultChunkDaysFor(at)
	return planner.Chunks(missing, chunkDays), nil
}

func defaultChunkDaysFor(at models.AssetType) int {
	if at == models.AssetTypeGold {
		return goldChunkDays
	}
	return defaultChunkDays
}

// delay picks the between-chunk pause from the provider-log call rate, with a
// 2s background floor, extended while the provider keeps throttling.
func (m *Manager) delay(ctx context.Context, rateLimitStreak int) time.Duration {
	d := 2 * time.Second
	if m.logs != nil {
		if calls, err := m.logs.CallsSince(ctx, m.now().Add(-time.Minute)); err == nil {
			switch {
			case calls > 40:
				d = 5 * time.Second
			case calls > 25:
				d = 3 * time.Second
			case calls > 15:
				d = 2 * time.Second
			}
		}
	}
	for i := 0; i < rateLimitStreak; i++ {
		d *= 2
		if d >= maxAdaptiveDelay {
			return maxAdaptiveDelay
		}
	}
	return d
}

// Status returns the persisted tasks for a symbol, or the most recent tasks
// overall when symbol is empty.
func (m *Manager) Status(ctx context.Context, symbol string) ([]repository.FetchTask, error) {
	if symbol == "" {
		return m.tasks.All(ctx, 50)
	}
	return m.tasks.BySymbol(ctx, symbol)
}

// ActiveCount reports how many workers are in flight.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Stop flags shutdown and waits for in-flight workers to notice.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Manager) setProgress(ctx context.Context, key string, completed, total int) {
	if err := m.tasks.SetProgress(ctx, key, completed, total); err != nil {
		log.Debugf("fetch task progress update failed for %s: %v", key, err)
	}
}

func (m *Manager) setState(ctx context.Context, key, state, errMsg string) {
	if err := m.tasks.SetState(ctx, key, state, errMsg); err != nil {
		log.Debugf("fetch task state update failed for %s: %v", key, err)
	}
}
