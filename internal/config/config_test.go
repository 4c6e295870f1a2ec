package config

import (
	"testing"
	"time"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error without FINNHUB_API_KEY")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Freshness != 60*time.Second {
		t.Errorf("expected 60s freshness default, got %v", cfg.Freshness)
	}
	if cfg.IdleWindow != 12*time.Hour {
		t.Errorf("expected 12h idle window default, got %v", cfg.IdleWindow)
	}
	if cfg.RatePerMinute != 50 {
		t.Errorf("expected 50 rpm default, got %d", cfg.RatePerMinute)
	}
	if cfg.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Port)
	}
	if len(cfg.WatchList) != 0 {
		t.Errorf("expected empty watch-list override, got %v", cfg.WatchList)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "k")
	t.Setenv("FRESHNESS_SEC", "30")
	t.Setenv("WATCHLIST", "aapl, msft ,NVDA")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Freshness != 30*time.Second {
		t.Errorf("expected 30s freshness, got %v", cfg.Freshness)
	}
	want := []string{"AAPL", "MSFT", "NVDA"}
	if len(cfg.WatchList) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.WatchList)
	}
	for i := range want {
		if cfg.WatchList[i] != want[i] {
			t.Errorf("watch-list[%d]: expected %s, got %s", i, want[i], cfg.WatchList[i])
		}
	}
}

func TestLoadBrokersKeepHostCase(t *testing.T) {
	t.Setenv("FINNHUB_API_KEY", "k")
	t.Setenv("KAFKA_BROKERS", "kafka-1.local:9092, Kafka-2.local:9093 ")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"kafka-1.local:9092", "Kafka-2.local:9093"}
	if len(cfg.KafkaBrokers) != len(want) {
		t.Fatalf("expected %v, got %v", want, cfg.KafkaBrokers)
	}
	for i := range want {
		if cfg.KafkaBrokers[i] != want[i] {
			t.Errorf("brokers[%d]: expected %s, got %s", i, want[i], cfg.KafkaBrokers[i])
		}
	}
}
