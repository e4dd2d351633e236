package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/lazyfetch"
	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/services"
)

// AdminHandler handles the cache administration endpoints.
type AdminHandler struct {
	db          *database.DB
	quoteCache  *cache.QuoteCache
	searchCache *cache.SearchCache
	generalMem  *cache.MemoryCache
	quoteRepo   *repository.QuoteCacheRepository
	seeder      *services.Seeder
	goldSeeder  *services.GoldSeeder
	lazy        *lazyfetch.Manager
	limiter     *ratelimit.Limiter
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *database.DB, quoteCache *cache.QuoteCache, searchCache *cache.SearchCache, generalMem *cache.MemoryCache, quoteRepo *repository.QuoteCacheRepository, seeder *services.Seeder, goldSeeder *services.GoldSeeder, lazy *lazyfetch.Manager, limiter *ratelimit.Limiter) *AdminHandler {
	return &AdminHandler{
		db:          db,
		quoteCache:  quoteCache,
		searchCache: searchCache,
		generalMem:  generalMem,
		quoteRepo:   quoteRepo,
		seeder:      seeder,
		goldSeeder:  goldSeeder,
		lazy:        lazy,
		limiter:     limiter,
	}
}

// CacheStats handles GET /cache/stats
// @Summary Cache and store statistics
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/stats [get]
func (h *AdminHandler) CacheStats(c *gin.Context) {
	assets, historical, quotes, err := h.db.Stats()
	if err != nil {
		log.Errorf("database stats failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error", Detail: "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"memory_caches": map[string]models.CacheStats{
			"quotes":  h.quoteCache.Stats(),
			"search":  h.searchCache.Stats(),
			"general": h.generalMem.Stats(),
		},
		"database": models.DatabaseStats{
			Assets:            assets,
			HistoricalRecords: historical,
			QuoteRows:         quotes,
		},
		"rate_limiter": h.limiter.Stats(),
	})
}

// CacheCleanup handles POST /cache/cleanup
// @Summary Sweep expired entries from every cache tier
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/cleanup [post]
func (h *AdminHandler) CacheCleanup(c *gin.Context) {
	memory := h.quoteCache.CleanupExpired() + h.searchCache.CleanupExpired() + h.generalMem.CleanupExpired()
	// Same horizons as the scheduled sweep: the longest quote TTL is 24h, so
	// anything older is expired for every asset type.
	rows, err := h.quoteRepo.CleanupExpired(c.Request.Context(), 24*time.Hour, 24*time.Hour)
	if err != nil {
		log.Errorf("persistent cleanup failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error", Detail: "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"memory_entries_removed": memory, "rows_removed": rows})
}

// Seed handles POST /cache/seed
// @Summary Seed the asset catalog from provider listings
// @Tags admin
// @Param force_refresh query bool false "re-seed even when the catalog is populated"
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Router /cache/seed [post]
func (h *AdminHandler) Seed(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("force_refresh", "false"))

	// Detached: the request context dies with the response.
	go func() {
		if err := h.seeder.SeedAll(context.Background(), force); err != nil {
			log.Errorf("catalog seed failed: %v", err)
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "seeding", "force_refresh": force})
}

// SeedProgress handles GET /cache/seed/progress
// @Summary Catalog seeding progress
// @Tags admin
// @Produce json
// @Success 200 {object} models.SeedProgress
// @Router /cache/seed/progress [get]
func (h *AdminHandler) SeedProgress(c *gin.Context) {
	c.JSON(http.StatusOK, h.seeder.Progress())
}

// LazyFetchStatus handles GET /cache/lazy-fetch/status
// @Summary Background enrichment task status
// @Tags admin
// @Param symbol query string false "filter by symbol"
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /cache/lazy-fetch/status [get]
func (h *AdminHandler) LazyFetchStatus(c *gin.Context) {
	tasks, err := h.lazy.Status(c.Request.Context(), c.Query("symbol"))
	if err != nil {
		log.Errorf("lazy fetch status failed: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error", Detail: "internal error"})
		return
	}
	if tasks == nil {
		tasks = []repository.FetchTask{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "active_workers": h.lazy.ActiveCount()})
}

// GoldSeed handles POST /gold/seed
// @Summary Start the historical gold backfill walk
// @Tags admin
// @Produce json
// @Success 202 {object} map[string]interface{}
// @Router /gold/seed [post]
func (h *AdminHandler) GoldSeed(c *gin.Context) {
	started := h.goldSeeder.Start(context.Background())
	if !started {
		c.JSON(http.StatusConflict, gin.H{"status": "already_running"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
