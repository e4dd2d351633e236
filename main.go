package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/epeers/vnmarket/config"
	"github.com/epeers/vnmarket/internal/background"
	"github.com/epeers/vnmarket/internal/cache"
	"github.com/epeers/vnmarket/internal/database"
	"github.com/epeers/vnmarket/internal/handlers"
	"github.com/epeers/vnmarket/internal/lazyfetch"
	"github.com/epeers/vnmarket/internal/middleware"
	"github.com/epeers/vnmarket/internal/provider/vnmarket"
	"github.com/epeers/vnmarket/internal/ratelimit"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/services"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Open the store; migrations run here
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Provider client
	client := vnmarket.NewClient()
	if cfg.ProviderBaseURL != "" {
		client = vnmarket.NewClientWithBaseURL(cfg.ProviderBaseURL)
	}

	// Rate limiting: one global limiter protecting the provider, one per-IP
	// registry protecting us
	limiterCfg := ratelimit.Config{
		MaxPerMinute: cfg.ProviderMaxPerMinute,
		MaxPerHour:   cfg.ProviderMaxPerHour,
		MinInterval:  cfg.ProviderMinInterval,
		Enabled:      true,
	}
	limiter := ratelimit.NewLimiter(limiterCfg)
	ipLimiter := ratelimit.NewIPLimiter(ratelimit.Config{
		MaxPerMinute: cfg.IPMaxPerMinute,
		Enabled:      cfg.IPRateLimitEnabled,
	})

	// Caches
	ttls := cache.NewTTLManager()
	quoteCache := cache.NewQuoteCache(ttls)
	searchCache := cache.NewSearchCache()
	generalMem := cache.NewGeneralCache()

	// Repositories
	assetRepo := repository.NewAssetRepository(db)
	histRepo := repository.NewHistoricalRepository(db)
	quoteRepo := repository.NewQuoteCacheRepository(db)
	logRepo := repository.NewProviderLogRepository(db)
	taskRepo := repository.NewFetchTaskRepository(db)

	// Services; the lazy-fetch manager and history service reference each
	// other, so wire them in two steps
	lazyMgr := lazyfetch.NewManager(histRepo, logRepo, taskRepo)
	historySvc := services.NewHistoryService(client, histRepo, logRepo, limiter, lazyMgr)
	lazyMgr.SetFetcher(historySvc)
	historySvc.SetFreshness(services.NewFreshnessCoordinator(historySvc))

	quoteSvc := services.NewQuoteService(client, quoteCache, quoteRepo, histRepo, historySvc, limiter, ttls)
	searchSvc := services.NewSearchService(client, assetRepo, searchCache, quoteRepo, generalMem, limiter)
	seeder := services.NewSeeder(client, assetRepo, limiter)
	goldSeeder := services.NewGoldSeeder(client, histRepo, logRepo, limiter, cfg.GoldSeedStart)

	// Seed the catalog on startup without delaying readiness
	go func() {
		if err := seeder.SeedAll(context.Background(), false); err != nil {
			log.Errorf("Startup seed failed: %v", err)
		}
	}()

	// Scheduled maintenance
	maintenance := background.NewMaintenance(quoteCache, searchCache, generalMem, quoteRepo, logRepo, quoteSvc, seeder)
	if err := maintenance.Start(); err != nil {
		log.Fatalf("Failed to start maintenance jobs: %v", err)
	}

	// Handlers
	marketHandler := handlers.NewMarketHandler(quoteSvc, historySvc, searchSvc)
	assetHandler := handlers.NewAssetHandler(assetRepo, searchSvc)
	adminHandler := handlers.NewAdminHandler(db, quoteCache, searchCache, generalMem, quoteRepo, seeder, goldSeeder, lazyMgr, limiter)

	// Setup Gin router
	router := gin.Default()
	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsCfg))
	router.Use(middleware.RateLimitByIP(ipLimiter))

	handlers.RegisterRoutes(router, marketHandler, assetHandler, adminHandler)

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting server on %s", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Background work stops before the listener so nothing writes into a
	// closing store
	maintenance.Stop()
	lazyMgr.Stop()

	// Give outstanding requests 5 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
