package broadcast

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

type fakeConn struct {
	id      string
	failing bool

	mu     sync.Mutex
	frames []quote.Frame
	closed bool
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(fr quote.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing {
		return errors.New("send failed")
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) received() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func entry(symbol string, price float64) cache.Entry {
	return cache.Entry{
		Quote:    quote.Quote{Symbol: symbol, Price: price, Timestamp: time.Now().UnixMilli()},
		CachedAt: time.Now(),
		Source:   quote.SourceAPI,
	}
}

func TestExactFanOut(t *testing.T) {
	h := NewHub()
	a := &fakeConn{id: "a"}
	b := &fakeConn{id: "b"}

	h.Subscribe(a, "AAPL")
	h.Subscribe(b, "MSFT")

	h.OnQuote("AAPL", entry("AAPL", 227.52))

	if got := a.received(); got != 1 {
		t.Errorf("subscriber of AAPL should receive 1 frame, got %d", got)
	}
	if got := b.received(); got != 0 {
		t.Errorf("subscriber of MSFT must receive nothing for AAPL, got %d", got)
	}
}

func TestFailedDeliveryUnsubscribes(t *testing.T) {
	h := NewHub()
	good := &fakeConn{id: "good"}
	bad := &fakeConn{id: "bad", failing: true}

	h.Subscribe(good, "AAPL")
	h.Subscribe(bad, "AAPL")

	h.OnQuote("AAPL", entry("AAPL", 100))

	if h.Subscribers("AAPL") != 1 {
		t.Errorf("failing conn should be dropped, got %d subscribers", h.Subscribers("AAPL"))
	}
	bad.mu.Lock()
	closed := bad.closed
	bad.mu.Unlock()
	if !closed {
		t.Error("failing conn should be closed")
	}

	// The survivor keeps receiving.
	h.OnQuote("AAPL", entry("AAPL", 101))
	if got := good.received(); got != 2 {
		t.Errorf("good conn should have 2 frames, got %d", got)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	h := NewHub()
	c := &fakeConn{id: "c"}

	h.Subscribe(c, "AAPL")
	h.Subscribe(c, "MSFT")
	h.Subscribe(c, "AAPL") // dup, no-op

	h.Unsubscribe(c)
	h.Unsubscribe(c) // second call must be safe

	if h.Subscribers("AAPL") != 0 || h.Subscribers("MSFT") != 0 {
		t.Error("expected no subscribers after Unsubscribe")
	}
}

func TestOnQuoteNoSubscribers(t *testing.T) {
	h := NewHub()
	// Must not panic or block with an empty subscriber set.
	h.OnQuote("AAPL", entry("AAPL", 1))
}

func TestFrameFromEntry(t *testing.T) {
	e := cache.Entry{
		Quote: quote.Quote{
			Symbol: "AAPL", Price: 227.52, Change: 1.13, ChangePercent: 0.5,
			High: 229.87, Low: 225.77, Open: 226.51, PreviousClose: 226.39,
			Timestamp: 1724968800000,
		},
		CachedAt: time.Now().Add(-90 * time.Second),
		Source:   quote.SourceStaleFallback,
	}

	f := FrameFromEntry("AAPL", e)
	if f.Type != "quote" {
		t.Errorf("expected type quote, got %s", f.Type)
	}
	if f.DataSource != "cache" {
		t.Errorf("stale fallback entry must be labeled cache, got %s", f.DataSource)
	}
	if f.CacheAgeSec < 89 {
		t.Errorf("expected cacheAge around 90s, got %v", f.CacheAgeSec)
	}

	e.Source = quote.SourceAPI
	if f := FrameFromEntry("AAPL", e); f.DataSource != "api" {
		t.Errorf("api entry must be labeled api, got %s", f.DataSource)
	}
}
