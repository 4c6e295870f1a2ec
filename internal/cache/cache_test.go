package cache

import (
	"testing"
	"time"

	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

func TestPutAndGet(t *testing.T) {
	c := New(60 * time.Second)

	q := quote.Quote{Symbol: "AAPL", Price: 227.52, Timestamp: 1000}
	if !c.Put("AAPL", q, quote.SourceAPI) {
		t.Fatal("expected first Put to succeed")
	}

	e, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("expected entry for AAPL")
	}
	if e.Quote.Price != 227.52 {
		t.Errorf("expected price 227.52, got %v", e.Quote.Price)
	}
	if e.Source != quote.SourceAPI {
		t.Errorf("expected source api, got %v", e.Source)
	}
}

func TestPutDropsOlderTimestamp(t *testing.T) {
	c := New(60 * time.Second)

	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 100, Timestamp: 2000}, quote.SourceAPI)

	// A late-arriving response carrying an older provider timestamp must
	// never overwrite the newer entry.
	if c.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 99, Timestamp: 1000}, quote.SourceAPI) {
		t.Error("expected Put with older timestamp to be dropped")
	}

	e, _ := c.Get("AAPL")
	if e.Quote.Price != 100 {
		t.Errorf("expected price 100 to survive, got %v", e.Quote.Price)
	}
}

func TestPutEqualTimestampReplaces(t *testing.T) {
	c := New(60 * time.Second)

	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 100, Timestamp: 2000}, quote.SourceAPI)
	if !c.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 101, Timestamp: 2000}, quote.SourceAPI) {
		t.Error("expected Put with equal timestamp to be accepted")
	}
}

func TestCachedAtMonotonic(t *testing.T) {
	c := New(60 * time.Second)

	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Timestamp: 1000}, quote.SourceAPI)
	first, _ := c.Get("AAPL")

	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Timestamp: 2000}, quote.SourceAPI)
	second, _ := c.Get("AAPL")

	if second.CachedAt.Before(first.CachedAt) {
		t.Error("CachedAt went backwards")
	}
}

func TestStaleServe(t *testing.T) {
	c := New(60 * time.Second)

	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Price: 150, Timestamp: 1000}, quote.SourceAPI)

	// Simulate a 90s-old entry whose refresh just failed.
	c.mu.Lock()
	e := c.entries["AAPL"]
	e.CachedAt = time.Now().Add(-90 * time.Second)
	c.entries["AAPL"] = e
	c.mu.Unlock()

	c.MarkStale("AAPL")

	got, ok := c.Get("AAPL")
	if !ok {
		t.Fatal("stale entry must still be served")
	}
	if got.Quote.Price != 150 {
		t.Errorf("expected stale price 150, got %v", got.Quote.Price)
	}
	if got.Source != quote.SourceStaleFallback {
		t.Errorf("expected stale_fallback source, got %v", got.Source)
	}
	if c.Fresh("AAPL") {
		t.Error("90s-old entry must not report fresh at a 60s threshold")
	}
}

func TestAgeUnknownSymbol(t *testing.T) {
	c := New(60 * time.Second)
	if age := c.Age("NOPE"); age >= 0 {
		t.Errorf("expected negative age for unknown symbol, got %v", age)
	}
	if c.Fresh("NOPE") {
		t.Error("unknown symbol must not be fresh")
	}
}

func TestEvict(t *testing.T) {
	c := New(60 * time.Second)
	c.Put("AAPL", quote.Quote{Symbol: "AAPL", Timestamp: 1}, quote.SourceAPI)
	c.Evict("AAPL")
	if _, ok := c.Get("AAPL"); ok {
		t.Error("expected entry to be gone after Evict")
	}
}
