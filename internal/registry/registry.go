package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
	"github.com/jaeyoon-dev/stockfeed/internal/ratelimit"
)

// Fetcher is the upstream quote client as the registry sees it.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (quote.Quote, error)
}

// SubscriberCounter reports how many live consumers a symbol has; the hub
// provides it. Used by idle eviction only.
type SubscriberCounter interface {
	Subscribers(symbol string) int
}

// Registry tracks which symbols have at least one interested consumer and
// runs exactly one refresh loop per registered symbol. Each loop fetches at
// the cache's freshness interval, so a symbol is refreshed at most once per
// threshold window no matter how many readers it has.
type Registry struct {
	cache   *cache.Cache
	client  Fetcher
	limiter *ratelimit.Limiter
	sink    broadcast.Sink
	subs    SubscriberCounter

	idleWindow time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	loops   map[string]context.CancelFunc
	touched map[string]time.Time
}

// New creates a registry. idleWindow is how long an untouched, unsubscribed
// symbol survives before its loop is stopped and its cache entry evicted.
func New(c *cache.Cache, client Fetcher, limiter *ratelimit.Limiter, sink broadcast.Sink, subs SubscriberCounter, idleWindow time.Duration) *Registry {
	if idleWindow <= 0 {
		idleWindow = 12 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		cache:      c,
		client:     client,
		limiter:    limiter,
		sink:       sink,
		subs:       subs,
		idleWindow: idleWindow,
		ctx:        ctx,
		cancel:     cancel,
		loops:      make(map[string]context.CancelFunc),
		touched:    make(map[string]time.Time),
	}
}

// Register ensures a refresh loop is running for symbol. Idempotent: a
// second call for the same symbol only touches its idle timer.
func (r *Registry) Register(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.touched[symbol] = time.Now()
	if _, ok := r.loops[symbol]; ok {
		return
	}

	ctx, cancel := context.WithCancel(r.ctx)
	r.loops[symbol] = cancel

	r.wg.Add(1)
	go r.refreshLoop(ctx, symbol)

	slog.Info("Symbol registered", "symbol", symbol, "active_loops", len(r.loops))
}

// IsRegistered reports whether a refresh loop exists for symbol.
func (r *Registry) IsRegistered(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.loops[symbol]
	return ok
}

// Touch refreshes the idle timer for symbol without starting a loop.
func (r *Registry) Touch(symbol string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loops[symbol]; ok {
		r.touched[symbol] = time.Now()
	}
}

// ActiveSymbols returns a snapshot of symbols with a running loop.
func (r *Registry) ActiveSymbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.loops))
	for s := range r.loops {
		out = append(out, s)
	}
	return out
}

// UnregisterIfIdle stops the loop and evicts the cache entry for symbol once
// it has no subscribers and its idle window has passed. Reports whether the
// symbol was removed.
func (r *Registry) UnregisterIfIdle(symbol string) bool {
	if r.subs != nil && r.subs.Subscribers(symbol) > 0 {
		return false
	}

	r.mu.Lock()
	cancel, ok := r.loops[symbol]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if time.Since(r.touched[symbol]) < r.idleWindow {
		r.mu.Unlock()
		return false
	}
	delete(r.loops, symbol)
	delete(r.touched, symbol)
	r.mu.Unlock()

	cancel()
	r.cache.Evict(symbol)
	slog.Info("Idle symbol evicted", "symbol", symbol)
	return true
}

// RunJanitor sweeps all registered symbols on the given interval until ctx
// is canceled, removing the idle ones.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, sym := range r.ActiveSymbols() {
				r.UnregisterIfIdle(sym)
			}
		}
	}
}

// Stop cancels every refresh loop and waits for in-flight fetches to finish
// or time out.
func (r *Registry) Stop() {
	r.cancel()
	r.wg.Wait()
}

// refreshLoop fetches symbol once immediately and then at the freshness
// interval. On failure the existing cache entry is left untouched; a stale
// entry is relabeled so the outage is visible as staleness, never disguised
// as a real quote.
func (r *Registry) refreshLoop(ctx context.Context, symbol string) {
	defer r.wg.Done()

	r.refreshOnce(ctx, symbol)

	ticker := time.NewTicker(r.cache.Freshness())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx, symbol)
		}
	}
}

func (r *Registry) refreshOnce(ctx context.Context, symbol string) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return
		}
	}

	q, err := r.client.FetchQuote(ctx, symbol)
	if err != nil {
		slog.Warn("Refresh failed", "symbol", symbol, "error", err)
		if age := r.cache.Age(symbol); age >= r.cache.Freshness() {
			r.cache.MarkStale(symbol)
		}
		return
	}

	if !r.cache.Put(symbol, q, quote.SourceAPI) {
		slog.Debug("Dropped late quote", "symbol", symbol, "timestamp", q.Timestamp)
		return
	}

	// An idle eviction can land between this loop's fetch and the Put
	// above; the symbol is already gone from the loop map by then, so a
	// Put on its behalf would leave an entry nothing ever evicts.
	if !r.IsRegistered(symbol) {
		r.cache.Evict(symbol)
		return
	}

	if r.sink != nil {
		if e, ok := r.cache.Get(symbol); ok {
			r.sink.OnQuote(symbol, e)
		}
	}
}
