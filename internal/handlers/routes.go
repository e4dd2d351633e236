package handlers

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/epeers/vnmarket/internal/models"
)

// RegisterRoutes wires every endpoint onto the router.
func RegisterRoutes(router *gin.Engine, market *MarketHandler, assets *AssetHandler, admin *AdminHandler) {
	router.GET("/health", market.Health)

	router.GET("/search", market.Search)
	router.GET("/search/:symbol", market.Lookup)
	router.GET("/quote/:symbol", market.Quote)
	router.GET("/history/:symbol", market.History)

	funds := router.Group("/funds")
	{
		funds.GET("", assets.list(models.AssetTypeFund))
		funds.GET("/search/:symbol", assets.typedLookup(models.AssetTypeFund))
		funds.GET("/quote/:symbol", market.typedQuote(models.AssetTypeFund))
		funds.GET("/history/:symbol", market.typedHistory(models.AssetTypeFund))
	}

	stocks := router.Group("/stocks")
	{
		stocks.GET("", assets.list(models.AssetTypeStock))
		stocks.GET("/search/:symbol", assets.typedLookup(models.AssetTypeStock))
		stocks.GET("/quote/:symbol", market.typedQuote(models.AssetTypeStock))
		stocks.GET("/history/:symbol", market.typedHistory(models.AssetTypeStock))
	}

	indices := router.Group("/indices")
	{
		indices.GET("", assets.list(models.AssetTypeIndex))
		indices.GET("/search/:symbol", assets.typedLookup(models.AssetTypeIndex))
		indices.GET("/quote/:symbol", market.typedQuote(models.AssetTypeIndex))
		indices.GET("/history/:symbol", market.typedHistory(models.AssetTypeIndex))
	}

	gold := router.Group("/gold")
	{
		gold.GET("", assets.list(models.AssetTypeGold))
		gold.GET("/search/:symbol", assets.GoldLookup)
		gold.GET("/quote/:symbol", market.typedQuote(models.AssetTypeGold))
		gold.GET("/history/:symbol", market.typedHistory(models.AssetTypeGold))
		gold.POST("/seed", admin.GoldSeed)
	}

	cacheGroup := router.Group("/cache")
	{
		cacheGroup.GET("/stats", admin.CacheStats)
		cacheGroup.POST("/cleanup", admin.CacheCleanup)
		cacheGroup.POST("/seed", admin.Seed)
		cacheGroup.GET("/seed/progress", admin.SeedProgress)
		cacheGroup.GET("/lazy-fetch/status", admin.LazyFetchStatus)
	}

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
