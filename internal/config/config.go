package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything both binaries read from the environment. Only the
// provider credential is mandatory; everything else has a sensible default.
type Config struct {
	FinnhubAPIKey  string
	FinnhubBaseURL string
	FetchTimeout   time.Duration

	Port string

	DatabaseURL string
	RedisAddr   string

	KafkaBrokers []string
	KafkaTopic   string

	Freshness     time.Duration // cache freshness threshold and registry tick
	IdleWindow    time.Duration // registry idle eviction window
	CyclePeriod   time.Duration // collector target cycle period
	Retention     time.Duration // persisted row retention
	RatePerMinute int           // provider requests-per-minute ceiling
	RateBurst     int

	WatchList []string // empty means the built-in default universe
}

// Load reads configuration from the environment. A missing FINNHUB_API_KEY
// is the one fatal condition: the engine cannot degrade gracefully without
// provider credentials.
func Load() (Config, error) {
	cfg := Config{
		FinnhubAPIKey:  os.Getenv("FINNHUB_API_KEY"),
		FinnhubBaseURL: os.Getenv("FINNHUB_BASE_URL"),
		FetchTimeout:   envDuration("FETCH_TIMEOUT_SEC", 10*time.Second),
		Port:           envString("PORT", "8080"),
		DatabaseURL:    envString("DATABASE_URL", "host=127.0.0.1 port=5432 user=user password=password dbname=stockfeed sslmode=disable"),
		RedisAddr:      envString("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:   splitHosts(envString("KAFKA_BROKERS", "")),
		KafkaTopic:     envString("KAFKA_TOPIC", "market_quotes"),
		Freshness:      envDuration("FRESHNESS_SEC", 60*time.Second),
		IdleWindow:     envHours("IDLE_EVICT_HOURS", 12*time.Hour),
		CyclePeriod:    envDuration("CYCLE_SEC", 60*time.Second),
		Retention:      envHours("RETENTION_HOURS", 7*24*time.Hour),
		RatePerMinute:  envInt("RATE_PER_MINUTE", 50),
		RateBurst:      envInt("RATE_BURST", 2),
		WatchList:      splitCSV(os.Getenv("WATCHLIST")),
	}

	if cfg.FinnhubAPIKey == "" {
		return cfg, errors.New("FINNHUB_API_KEY environment variable is not set")
	}
	return cfg, nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return def
}

func envHours(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Hour
		}
	}
	return def
}

// splitHosts splits a comma-separated address list, preserving case.
func splitHosts(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitCSV splits a comma-separated symbol list, normalizing to upper case.
func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}
