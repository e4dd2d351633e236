package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/repository"
	"github.com/epeers/vnmarket/internal/services"
)

// AssetHandler handles the per-type listing and search endpoints.
type AssetHandler struct {
	assets *repository.AssetRepository
	search *services.SearchService
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(assets *repository.AssetRepository, search *services.SearchService) *AssetHandler {
	return &AssetHandler{assets: assets, search: search}
}

// list returns the catalog slice for one asset type.
func (h *AssetHandler) list(at models.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		assets, err := h.assets.ListByType(c.Request.Context(), at)
		if err != nil {
			respondError(c, err)
			return
		}
		results := make([]models.SearchResult, 0, len(assets))
		for _, a := range assets {
			results = append(results, models.SearchResult{
				Symbol:        a.Symbol,
				Name:          a.Name,
				AssetType:     a.AssetType,
				AssetClass:    a.AssetClass,
				AssetSubClass: a.AssetSubClass,
				Exchange:      a.Exchange,
				Currency:      a.Currency,
				DataSource:    a.DataSource,
			})
		}
		c.JSON(http.StatusOK, models.FundListResponse{Funds: results, Total: len(results)})
	}
}

// typedLookup resolves a symbol within one asset type.
func (h *AssetHandler) typedLookup(at models.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.search.Lookup(c.Request.Context(), c.Param("symbol"))
		if err != nil {
			respondError(c, err)
			return
		}
		if result.AssetType != at {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:  "not_found",
				Detail: "symbol exists but is not a " + strings.ToLower(string(at)),
			})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// GoldLookup handles GET /gold/search/:symbol
// @Summary Resolve a gold symbol, including its pricing unit
// @Param symbol path string true "VN.GOLD or VN.GOLD.C"
// @Produce json
// @Success 200 {object} models.GoldSearchResult
// @Router /gold/search/{symbol} [get]
func (h *AssetHandler) GoldLookup(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	providerCode, ok := models.GoldProviders[symbol]
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Detail: "unknown gold symbol"})
		return
	}

	result, err := h.search.Lookup(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}

	unit := "luong"
	unitDesc := "Lượng (37.5 g)"
	if symbol == models.GoldSymbolChi {
		unit = "chi"
		unitDesc = "Chỉ (3.75 g, 1/10 Lượng)"
	}
	c.JSON(http.StatusOK, models.GoldSearchResult{
		SearchResult:    *result,
		Provider:        providerCode,
		ProviderName:    "Saigon Jewelry Company",
		Unit:            unit,
		UnitDescription: unitDesc,
	})
}
