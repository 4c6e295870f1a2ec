package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

// Mirror keeps the latest quote per symbol in Redis so other processes (the
// gateway when it runs separately from the collector) can read prices
// without touching Postgres or the provider. Writes are best-effort; a Redis
// outage is logged and ignored.
type Mirror struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and verifies the connection.
func New(addr string, ttl time.Duration) (*Mirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Mirror{client: client, ttl: ttl}, nil
}

func key(symbol string) string {
	return fmt.Sprintf("quote:%s", symbol)
}

// OnQuote writes the frame for symbol. Implements broadcast.Sink.
func (m *Mirror) OnQuote(symbol string, e cache.Entry) {
	frame := broadcast.FrameFromEntry(symbol, e)
	b, err := json.Marshal(frame)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := m.client.Set(ctx, key(symbol), b, m.ttl).Err(); err != nil {
		slog.Warn("Redis mirror write failed", "symbol", symbol, "error", err)
	}
}

// GetFrame reads the latest mirrored frame for symbol. Returns nil when the
// symbol is not mirrored.
func (m *Mirror) GetFrame(ctx context.Context, symbol string) (*quote.Frame, error) {
	raw, err := m.client.Get(ctx, key(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mirror for %s: %w", symbol, err)
	}

	var f quote.Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("invalid mirror payload for %s: %w", symbol, err)
	}
	return &f, nil
}

// Close closes the Redis connection.
func (m *Mirror) Close() error {
	return m.client.Close()
}
