package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/jaeyoon-dev/stockfeed/internal/broadcast"
	"github.com/jaeyoon-dev/stockfeed/internal/cache"
	"github.com/jaeyoon-dev/stockfeed/internal/config"
	"github.com/jaeyoon-dev/stockfeed/internal/finnhub"
	"github.com/jaeyoon-dev/stockfeed/internal/gateway"
	"github.com/jaeyoon-dev/stockfeed/internal/mirror"
	"github.com/jaeyoon-dev/stockfeed/internal/ratelimit"
	"github.com/jaeyoon-dev/stockfeed/internal/registry"
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

	// Upstream client and the process-wide rate budget.
	client := finnhub.NewClient(cfg.FinnhubAPIKey, cfg.FetchTimeout)
	if cfg.FinnhubBaseURL != "" {
		client.SetBaseURL(cfg.FinnhubBaseURL)
	}
	limiter := ratelimit.PerMinute(cfg.RatePerMinute, cfg.RateBurst)

	qc := cache.New(cfg.Freshness)
	hub := broadcast.NewHub()

	// Best-effort collaborators.
	var historian gateway.Historian
	st, err := store.New(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("History store unavailable, /history and /stats disabled", "error", err)
	} else {
		defer st.Close()
		historian = st
	}

	var mir *mirror.Mirror
	if m, err := mirror.New(cfg.RedisAddr, 2*cfg.Freshness); err != nil {
		slog.Warn("Redis mirror unavailable, cross-process reads disabled", "error", err)
	} else {
		mir = m
		defer mir.Close()
	}

	reg := registry.New(qc, client, limiter, hub, hub, cfg.IdleWindow)
	defer reg.Stop()

	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	defer cancelJanitor()
	go reg.RunJanitor(janitorCtx, 10*time.Minute)

	// HTTP routes.
	router := gin.Default()
	handler := gateway.NewHandler(qc, reg, historian, mir)
	ws := gateway.NewWSServer(hub, reg, qc)

	router.GET("/health", handler.HealthCheck)
	router.GET("/quote/:symbol", handler.GetQuote)
	router.GET("/history/:symbol", handler.GetHistory)
	router.GET("/latest/:symbol", handler.GetLatest)
	router.GET("/stats/:symbol", handler.GetStatistics)
	router.GET("/symbols", handler.GetSymbols)
	router.GET("/ws/quotes", ws.ServeQuotes)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("Gateway listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	slog.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	slog.Info("Gateway stopped")
}
