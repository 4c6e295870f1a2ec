package gateway

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/mirror"
	"github.com/jaeyoon-dev/stockfeed/internal/registry"
	"github.com/jaeyoon-dev/stockfeed/internal/store"
)

// Historian is the slice of the persistence store the REST surface reads.
type Historian interface {
	GetHistory(symbol string, since time.Time) ([]store.QuoteRow, error)
	GetLatest(symbol string, limit int) ([]store.QuoteRow, error)
	GetStatistics(symbol string) (*store.Statistics, error)
	GetAllSymbols() ([]string, error)
}

// Handler holds the dependencies for HTTP handlers. The mirror and the
// historian may be nil when the gateway runs without Redis or Postgres.
type Handler struct {
	cache    *cache.Cache
	registry *registry.Registry
	history  Historian
	mirror   *mirror.Mirror
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(c *cache.Cache, reg *registry.Registry, history Historian, m *mirror.Mirror) *Handler {
	return &Handler{
		cache:    c,
		registry: reg,
		history:  history,
		mirror:   m,
	}
}

// GetQuote handles GET /quote/:symbol.
// Serves the cached quote with its age; a symbol never fetched before is
// registered for refresh and reported as not yet available. The handler
// never blocks on network I/O.
func (h *Handler) GetQuote(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	if strings.Contains(symbol, ":") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "exchange-prefixed instruments are not served by the polling path",
			"symbol": symbol,
		})
		return
	}

	if e, ok := h.cache.Get(symbol); ok {
		h.registry.Touch(symbol)
		c.JSON(http.StatusOK, broadcast.FrameFromEntry(symbol, e))
		return
	}

	// Cross-process fallback: the collector may have mirrored the quote.
	if h.mirror != nil {
		if f, err := h.mirror.GetFrame(c.Request.Context(), symbol); err == nil && f != nil {
			c.JSON(http.StatusOK, f)
			return
		}
	}

	h.registry.Register(symbol)
	c.JSON(http.StatusAccepted, gin.H{
		"status":  "pending",
		"symbol":  symbol,
		"message": "quote not yet available, refresh scheduled",
	})
}

// GetHistory handles GET /history/:symbol?hours=24.
func (h *Handler) GetHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))

	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours"})
			return
		}
		hours = n
	}

	rows, err := h.history.GetHistory(symbol, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		slog.Error("History lookup failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"hours":  hours,
		"quotes": rows,
		"count":  len(rows),
	})
}

// GetLatest handles GET /latest/:symbol?limit=30, the chart feed: the most
// recent rows in chronological order.
func (h *Handler) GetLatest(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))

	limit := 30
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	rows, err := h.history.GetLatest(symbol, limit)
	if err != nil {
		slog.Error("Latest lookup failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol": symbol,
		"quotes": rows,
		"count":  len(rows),
	})
}

// GetStatistics handles GET /stats/:symbol.
func (h *Handler) GetStatistics(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}
	symbol := strings.ToUpper(c.Param("symbol"))

	stats, err := h.history.GetStatistics(symbol)
	if err != nil {
		slog.Error("Statistics lookup failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data for symbol", "symbol": symbol})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetSymbols handles GET /symbols: every symbol with persisted history.
func (h *Handler) GetSymbols(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history store not configured"})
		return
	}

	symbols, err := h.history.GetAllSymbols()
	if err != nil {
		slog.Error("Symbol list lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "gateway",
	})
}
