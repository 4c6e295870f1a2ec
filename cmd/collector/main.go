package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/collector"
	"github.com/jaeyoon-dev/stockfeed/internal/config"
	"github.com/jaeyoon-dev/stockfeed/internal/finnhub"
	"github.com/jaeyoon-dev/stockfeed/internal/mirror"
	"github.com/jaeyoon-dev/stockfeed/internal/publish"
	"github.com/jaeyoon-dev/stockfeed/internal/ratelimit"
	"github.com/jaeyoon-dev/stockfeed/internal/store"
	"github.com/jaeyoon-dev/stockfeed/pkg/logger"
)

func main() {
	logger.Init()

	if err := godotenv.Load(".env"); err != nil {
		slog.Info("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	client := finnhub.NewClient(cfg.FinnhubAPIKey, cfg.FetchTimeout)
	if cfg.FinnhubBaseURL != "" {
		client.SetBaseURL(cfg.FinnhubBaseURL)
	}
	limiter := ratelimit.PerMinute(cfg.RatePerMinute, cfg.RateBurst)
	qc := cache.New(cfg.Freshness)

	// Persistence: required for the collector, it exists to build history.
	slog.Info("Connecting to database...")
	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.AutoMigrate(); err != nil {
		slog.Error("Failed to auto-migrate schema", "error", err)
		os.Exit(1)
	}
	slog.Info("Schema migrated")

	// Optional sinks: Redis mirror and Kafka publisher.
	var sinks broadcast.Multi
	if m, err := mirror.New(cfg.RedisAddr, 2*cfg.Freshness); err != nil {
		slog.Warn("Redis mirror unavailable, continuing without it", "error", err)
	} else {
		defer m.Close()
		sinks = append(sinks, m)
		slog.Info("Redis mirror connected", "addr", cfg.RedisAddr)
	}
	if len(cfg.KafkaBrokers) > 0 {
		if p, err := publish.New(cfg.KafkaBrokers, cfg.KafkaTopic); err != nil {
			slog.Warn("Kafka publisher unavailable, continuing without it", "error", err)
		} else {
			defer p.Close()
			sinks = append(sinks, p)
			slog.Info("Kafka publisher connected", "topic", cfg.KafkaTopic)
		}
	}

	col := collector.New(client, qc, st, sinks, limiter, collector.Options{
		WatchList: cfg.WatchList,
		Period:    cfg.CyclePeriod,
		Retention: cfg.Retention,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		col.Run(ctx)
		close(done)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	slog.Info("Shutdown signal received", "signal", sig.String())

	cancel()
	<-done
	slog.Info("Collector shutdown complete")
}
