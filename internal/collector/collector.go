package collector

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

// DefaultWatchList is the fixed universe the collector polls every cycle
// regardless of subscriber demand: the most actively traded US equities.
var DefaultWatchList = []string{
	"NVDA", "TSLA", "PLTR", "INTC", "AAPL", "BAC", "AMZN", "AMD", "GOOG", "MSFT",
	"META", "AVGO", "NFLX", "COST", "UNH", "MSTR", "LLY", "CRM", "V", "REGN",
	"APP", "WMT", "XOM", "MRVL", "ORCL", "JPM", "TXN", "ZS", "NOW", "MA",
	"IBM", "UBER", "JNJ", "AMAT", "HOOD", "ADI", "GE", "MU", "PANW", "INTU",
	"ABBV", "PG", "DELL", "CRWD", "SPOT", "LIN", "KO", "TMUS", "QCOM", "F",
}

// State is the collector's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateSleeping
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateSleeping:
		return "sleeping"
	case StateStopping:
		return "stopping"
	}
	return "unknown"
}

// Fetcher is the upstream quote client as the collector sees it.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string) (quote.Quote, error)
}

// Appender is the slice of the persistence store the collector uses.
type Appender interface {
	SaveQuote(q quote.Quote) error
	CleanupOldData(olderThan time.Time) (int64, error)
}

// CycleStats summarizes one pass over the watch-list. Created per cycle,
// logged, then discarded.
type CycleStats struct {
	StartedAt    time.Time
	SuccessCount int
	ErrorCount   int
	Elapsed      time.Duration
}

// Collector iterates a fixed watch-list on a fixed period, refreshing the
// cache and persisting every success, so REST reads and the broadcaster see
// fresh data even with no subscribers. One long-running loop: cycles never
// overlap.
type Collector struct {
	watchList []string
	client    Fetcher
	cache     *cache.Cache
	store     Appender
	sink      broadcast.Sink
	limiter   *ratelimit.Limiter

	period    time.Duration
	retention time.Duration

	mu    sync.Mutex
	state State
}

// Options configures a Collector. Zero values fall back to defaults.
type Options struct {
	WatchList []string
	Period    time.Duration // target cycle period, default 60s
	Retention time.Duration // delete rows older than this, 0 disables
}

// New creates a collector. store and sink may be nil (cache-only operation);
// limiter must be the process-wide bucket so the bulk pass and the registry
// loops draw from the same provider budget.
func New(client Fetcher, c *cache.Cache, store Appender, sink broadcast.Sink, limiter *ratelimit.Limiter, opts Options) *Collector {
	watch := opts.WatchList
	if len(watch) == 0 {
		watch = DefaultWatchList
	}
	period := opts.Period
	if period <= 0 {
		period = 60 * time.Second
	}
	return &Collector{
		watchList: watch,
		client:    client,
		cache:     c,
		store:     store,
		sink:      sink,
		limiter:   limiter,
		period:    period,
		retention: opts.Retention,
	}
}

// State returns the current lifecycle phase.
func (c *Collector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Collector) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// WatchList returns the configured symbol universe.
func (c *Collector) WatchList() []string {
	return append([]string(nil), c.watchList...)
}

// Run executes collection cycles until ctx is canceled. The stop flag is
// observed once per symbol and once per sleep, so shutdown latency is
// bounded by one in-flight fetch plus one sleep slice.
func (c *Collector) Run(ctx context.Context) {
	slog.Info("Collector starting",
		"symbols", len(c.watchList), "period", c.period)

	cycles := 0
	for {
		if ctx.Err() != nil {
			break
		}
		c.setState(StateRunning)
		stats := c.runCycle(ctx)

		slog.Info("Collection cycle finished",
			"success", stats.SuccessCount,
			"errors", stats.ErrorCount,
			"elapsed", stats.Elapsed.Round(time.Millisecond))

		cycles++
		if c.retention > 0 && c.store != nil && cycles%60 == 0 {
			c.sweepRetention()
		}

		remaining := c.period - stats.Elapsed
		if remaining <= 0 {
			slog.Warn("Cycle overran target period",
				"elapsed", stats.Elapsed.Round(time.Millisecond), "period", c.period)
			continue
		}

		c.setState(StateSleeping)
		select {
		case <-ctx.Done():
		case <-time.After(remaining):
		}
	}

	c.setState(StateStopping)
	slog.Info("Collector stopped")
	c.setState(StateIdle)
}

// runCycle makes one sequential pass over the watch-list. A single symbol's
// failure never aborts the cycle.
func (c *Collector) runCycle(ctx context.Context) CycleStats {
	stats := CycleStats{StartedAt: time.Now()}

	for _, symbol := range c.watchList {
		if ctx.Err() != nil {
			break
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				break
			}
		}

		q, err := c.client.FetchQuote(ctx, symbol)
		if err != nil {
			stats.ErrorCount++
			slog.Warn("Collect failed", "symbol", symbol, "error", err)
			continue
		}

		if c.cache.Put(symbol, q, quote.SourceAPI) {
			if c.sink != nil {
				if e, ok := c.cache.Get(symbol); ok {
					c.sink.OnQuote(symbol, e)
				}
			}
		}

		if c.store != nil {
			if err := c.store.SaveQuote(q); err != nil {
				// Best-effort: the cache already has the quote.
				slog.Error("Persist failed", "symbol", symbol, "error", err)
			}
		}
		stats.SuccessCount++
	}

	stats.Elapsed = time.Since(stats.StartedAt)
	return stats
}

func (c *Collector) sweepRetention() {
	cutoff := time.Now().Add(-c.retention)
	deleted, err := c.store.CleanupOldData(cutoff)
	if err != nil {
		slog.Error("Retention sweep failed", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention sweep done", "deleted", deleted, "cutoff", cutoff)
	}
}
