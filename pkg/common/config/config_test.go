package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.StateBackend != BackendFile {
		t.Fatalf("expected file backend by default, got %s", cfg.StateBackend)
	}
	if cfg.CallerHeader != "X-Account" {
		t.Fatalf("unexpected caller header %s", cfg.CallerHeader)
	}
	if cfg.TrainerOnlySubmissions {
		t.Fatal("trainer-only submissions must be off by default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STATE_BACKEND", "Postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SNAPSHOT_INTERVAL", "250ms")
	t.Setenv("TRAINER_ONLY_SUBMISSIONS", "true")
	t.Setenv("ACTIVITY_FEED_LIMIT", "not-a-number")

	cfg := Load()
	if cfg.StateBackend != BackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.StateBackend)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.SnapshotInterval != 250*time.Millisecond {
		t.Fatalf("unexpected interval %s", cfg.SnapshotInterval)
	}
	if !cfg.TrainerOnlySubmissions {
		t.Fatal("expected trainer-only submissions")
	}
	if cfg.ActivityFeedLimit != 200 {
		t.Fatalf("expected fallback feed limit, got %d", cfg.ActivityFeedLimit)
	}
}
