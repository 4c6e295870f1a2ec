package cache

import (
	"sync"
	"time"

	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

// Entry is the cached state for one symbol.
type Entry struct {
	Quote    quote.Quote
	CachedAt time.Time
	Source   quote.Source
}

// Age returns how long ago the entry was written.
func (e Entry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// Cache holds the latest quote per symbol behind a single mutex. Writers are
// the registry refresh loops and the bulk collector; readers are the REST
// handlers and the broadcaster. A Put is atomic with respect to concurrent
// Gets, and never replaces a newer quote with an older one.
type Cache struct {
	freshness time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
}

// New creates a cache with the given freshness threshold. Entries younger
// than the threshold are "fresh" and reused without a new fetch; at or past
// it they are "stale" but still served.
func New(freshness time.Duration) *Cache {
	if freshness <= 0 {
		freshness = 60 * time.Second
	}
	return &Cache{
		freshness: freshness,
		entries:   make(map[string]Entry),
	}
}

// Freshness returns the configured threshold. The registry uses it as the
// refresh tick so a symbol is fetched at most once per threshold window.
func (c *Cache) Freshness() time.Duration {
	return c.freshness
}

// Get returns the current entry for symbol, stale or not. The caller decides
// what staleness means; the cache never blocks on network I/O.
func (c *Cache) Get(symbol string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	return e, ok
}

// Put stores a freshly fetched quote. A quote whose provider timestamp is
// older than the stored entry's is a late-arriving response and is dropped;
// Put reports whether the entry was written.
func (c *Cache) Put(symbol string, q quote.Quote, src quote.Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[symbol]; ok && q.Timestamp < cur.Quote.Timestamp {
		return false
	}
	c.entries[symbol] = Entry{Quote: q, CachedAt: time.Now(), Source: src}
	return true
}

// MarkStale relabels the entry's source after a failed refresh so consumers
// see the provider outage as labeled staleness. The quote itself and its
// CachedAt are left untouched.
func (c *Cache) MarkStale(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[symbol]; ok {
		e.Source = quote.SourceStaleFallback
		c.entries[symbol] = e
	}
}

// Age returns now minus CachedAt, or a negative duration when the symbol has
// never been cached.
func (c *Cache) Age(symbol string) time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		return -1
	}
	return time.Since(e.CachedAt)
}

// Fresh reports whether the symbol has an entry younger than the threshold.
func (c *Cache) Fresh(symbol string) bool {
	age := c.Age(symbol)
	return age >= 0 && age < c.freshness
}

// Evict removes the entry for symbol, if any.
func (c *Cache) Evict(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, symbol)
}

// Symbols returns a snapshot of all cached symbols.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.entries))
	for s := range c.entries {
		out = append(out, s)
	}
	return out
}
