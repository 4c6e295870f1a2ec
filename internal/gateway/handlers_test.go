package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
	"github.com/jaeyoon-dev/stockfeed/internal/registry"
)

type stubFetcher struct{}

func (stubFetcher) FetchQuote(ctx context.Context, symbol string) (quote.Quote, error) {
	return quote.Quote{Symbol: symbol, Price: 1, Timestamp: time.Now().UnixMilli()}, nil
}

type noSubs struct{}

func (noSubs) Subscribers(string) int { return 0 }

func newTestRouter(t *testing.T, qc *cache.Cache) (*gin.Engine, *registry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := registry.New(qc, stubFetcher{}, nil, nil, noSubs{}, time.Hour)
	t.Cleanup(reg.Stop)

	h := NewHandler(qc, reg, nil, nil)
	router := gin.New()
	router.GET("/quote/:symbol", h.GetQuote)
	router.GET("/health", h.HealthCheck)
	return router, reg
}

func TestGetQuoteFromCache(t *testing.T) {
	qc := cache.New(time.Minute)
	qc.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 227.52, Timestamp: 1000}, quote.SourceAPI)
	router, _ := newTestRouter(t, qc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/quote/aapl", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var f quote.Frame
	if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.Symbol != "AAPL" || f.Price != 227.52 {
		t.Errorf("unexpected frame: %+v", f)
	}
	if f.DataSource != "api" {
		t.Errorf("expected api data source, got %s", f.DataSource)
	}
}

func TestGetQuoteUnknownSymbolRegistersAndReturnsPending(t *testing.T) {
	qc := cache.New(time.Minute)
	router, reg := newTestRouter(t, qc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/quote/TSLA", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202 for never-fetched symbol, got %d", w.Code)
	}
	if !reg.IsRegistered("TSLA") {
		t.Error("unknown symbol must be registered for refresh")
	}
}

func TestGetQuoteRejectsExchangePrefixed(t *testing.T) {
	router, reg := newTestRouter(t, cache.New(time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/quote/BINANCE:BTCUSDT", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for exchange-prefixed symbol, got %d", w.Code)
	}
	if reg.IsRegistered("BINANCE:BTCUSDT") {
		t.Error("unsupported instrument must not be registered")
	}
}

func TestGetQuoteServesStaleWithLabel(t *testing.T) {
	qc := cache.New(time.Minute)
	qc.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 150, Timestamp: 1000}, quote.SourceStaleFallback)
	router, _ := newTestRouter(t, qc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/quote/AAPL", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("stale data must still be served, got %d", w.Code)
	}
	var f quote.Frame
	if err := json.Unmarshal(w.Body.Bytes(), &f); err != nil {
		t.Fatal(err)
	}
	if f.DataSource != "cache" {
		t.Errorf("stale entry must be labeled cache, got %s", f.DataSource)
	}
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, cache.New(time.Minute))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
