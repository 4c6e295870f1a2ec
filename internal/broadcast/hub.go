package broadcast

import (
	"log/slog"
	"sync"

	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

// Conn is the transport side of one subscriber. The gateway's WebSocket
// client implements it; tests use a fake.
type Conn interface {
	ID() string
	Send(f quote.Frame) error
	Close()
}

// Hub routes each quote update to exactly the connections subscribed to
// that symbol. The subscriber multimap is guarded by a single mutex; the
// delivery pass copies the set under the lock and sends after releasing it,
// so a slow or failing send never blocks new subscriptions.
type Hub struct {
	mu       sync.RWMutex
	bySymbol map[string]map[Conn]struct{}
	byConn   map[Conn]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		bySymbol: make(map[string]map[Conn]struct{}),
		byConn:   make(map[Conn]map[string]struct{}),
	}
}

// Subscribe adds conn to the subscriber set of symbol. A connection holds at
// most one subscription per symbol; duplicates are no-ops.
func (h *Hub) Subscribe(c Conn, symbol string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.bySymbol[symbol] == nil {
		h.bySymbol[symbol] = make(map[Conn]struct{})
	}
	h.bySymbol[symbol][c] = struct{}{}

	if h.byConn[c] == nil {
		h.byConn[c] = make(map[string]struct{})
	}
	h.byConn[c][symbol] = struct{}{}
}

// Unsubscribe removes every subscription held by conn. It is idempotent and
// safe to call from both the transport's disconnect path and failed-delivery
// cleanup.
func (h *Hub) Unsubscribe(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

func (h *Hub) dropLocked(c Conn) {
	symbols, ok := h.byConn[c]
	if !ok {
		return
	}
	for sym := range symbols {
		delete(h.bySymbol[sym], c)
		if len(h.bySymbol[sym]) == 0 {
			delete(h.bySymbol, sym)
		}
	}
	delete(h.byConn, c)
}

// Subscribers returns the number of connections currently subscribed to
// symbol. The registry's idle eviction consults this.
func (h *Hub) Subscribers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.bySymbol[symbol])
}

// OnQuote delivers the entry to every subscriber of symbol. A failed send is
// treated as an implicit disconnect: the connection is unsubscribed and
// closed, never retried.
func (h *Hub) OnQuote(symbol string, e cache.Entry) {
	h.mu.RLock()
	set, ok := h.bySymbol[symbol]
	if !ok || len(set) == 0 {
		h.mu.RUnlock()
		return
	}
	targets := make([]Conn, 0, len(set))
	for c := range set {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	frame := FrameFromEntry(symbol, e)

	var failed []Conn
	for _, c := range targets {
		if err := c.Send(frame); err != nil {
			slog.Warn("Dropping subscriber after failed delivery",
				"conn", c.ID(), "symbol", symbol, "error", err)
			failed = append(failed, c)
		}
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, c := range failed {
			h.dropLocked(c)
		}
		h.mu.Unlock()
		for _, c := range failed {
			c.Close()
		}
	}
}

// FrameFromEntry formats a cache entry as the outbound frame. dataSource is
// "api" for an entry written by a successful fetch and "cache" for a stale
// fallback, with the entry age attached so consumers can judge staleness.
func FrameFromEntry(symbol string, e cache.Entry) quote.Frame {
	src := "cache"
	if e.Source == quote.SourceAPI {
		src = "api"
	}
	return quote.Frame{
		Type:          "quote",
		Symbol:        symbol,
		Price:         e.Quote.Price,
		Change:        e.Quote.Change,
		ChangePercent: e.Quote.ChangePercent,
		High:          e.Quote.High,
		Low:           e.Quote.Low,
		Open:          e.Quote.Open,
		PreviousClose: e.Quote.PreviousClose,
		Timestamp:     e.Quote.Timestamp,
		DataSource:    src,
		CacheAgeSec:   e.Age().Seconds(),
	}
}
