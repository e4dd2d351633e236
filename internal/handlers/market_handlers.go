package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/epeers/vnmarket/internal/models"
	"github.com/epeers/vnmarket/internal/services"
	"github.com/epeers/vnmarket/internal/util"
)

// ServiceVersion is reported by /health.
const ServiceVersion = "1.0.0"

// MarketHandler handles the quote, history, search, and listing endpoints.
type MarketHandler struct {
	quotes  *services.QuoteService
	history *services.HistoryService
	search  *services.SearchService
	now     func() time.Time
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(quotes *services.QuoteService, history *services.HistoryService, search *services.SearchService) *MarketHandler {
	return &MarketHandler{
		quotes:  quotes,
		history: history,
		search:  search,
		now:     time.Now,
	}
}

// respondError maps service sentinels to the HTTP error surface. Throttling
// and upstream failures both surface as 503: the client should retry later
// either way.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_input", Detail: err.Error()})
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "not_found", Detail: err.Error()})
	case errors.Is(err, services.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "unavailable", Detail: "data source temporarily unavailable, please retry later"})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal_error", Detail: "internal error"})
	}
}

// Health handles GET /health
// @Summary Service health check
// @Produce json
// @Success 200 {object} models.HealthResponse
// @Router /health [get]
func (h *MarketHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{
		Status:  "ok",
		Service: "vnmarket",
		Version: ServiceVersion,
	})
}

// Search handles GET /search
// @Summary Free-text asset search across all types
// @Param query query string true "search text"
// @Param limit query int false "max results" default(20)
// @Produce json
// @Success 200 {object} models.SearchResponse
// @Router /search [get]
func (h *MarketHandler) Search(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid_input", Detail: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	results, err := h.search.Search(c.Request.Context(), c.Query("query"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.SearchResponse{Results: results, Total: len(results)})
}

// Lookup handles GET /search/:symbol
// @Summary Resolve a single symbol to its asset identity
// @Param symbol path string true "symbol"
// @Produce json
// @Success 200 {object} models.SearchResult
// @Router /search/{symbol} [get]
func (h *MarketHandler) Lookup(c *gin.Context) {
	result, err := h.search.Lookup(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Quote handles GET /quote/:symbol
// @Summary Latest quote for any asset type
// @Param symbol path string true "symbol"
// @Produce json
// @Success 200 {object} models.QuoteResponse
// @Router /quote/{symbol} [get]
func (h *MarketHandler) Quote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	result, err := h.search.Lookup(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	h.serveQuote(c, symbol, result.AssetType)
}

// History handles GET /history/:symbol
// @Summary Daily history for any asset type
// @Param symbol path string true "symbol"
// @Param start_date query string false "YYYY-MM-DD, default one year ago"
// @Param end_date query string false "YYYY-MM-DD, default today"
// @Produce json
// @Success 200 {object} models.HistoryResponse
// @Router /history/{symbol} [get]
func (h *MarketHandler) History(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	result, err := h.search.Lookup(c.Request.Context(), symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	h.serveHistory(c, symbol, result.AssetType)
}

// serveQuote resolves and writes a quote for a known type.
func (h *MarketHandler) serveQuote(c *gin.Context, symbol string, at models.AssetType) {
	q, err := h.quotes.GetQuote(c.Request.Context(), symbol, at)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewQuoteResponse(q))
}

// serveHistory parses the range parameters and writes a history envelope.
func (h *MarketHandler) serveHistory(c *gin.Context, symbol string, at models.AssetType) {
	today := h.now()
	start := c.DefaultQuery("start_date", util.FormatDate(today.AddDate(0, 0, -365)))
	end := c.DefaultQuery("end_date", util.FormatDate(today))

	records, err := h.history.GetHistory(c.Request.Context(), symbol, at, start, end)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.NewHistoryResponse(symbol, at, records))
}

// typed returns a handler bound to one asset type for the per-type routes.
func (h *MarketHandler) typedQuote(at models.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.serveQuote(c, strings.ToUpper(c.Param("symbol")), at)
	}
}

func (h *MarketHandler) typedHistory(at models.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.serveHistory(c, strings.ToUpper(c.Param("symbol")), at)
	}
}
