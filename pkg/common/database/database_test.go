package database

import (
	"strings"
	"testing"
	"time"

	"github.com/neuralforge/platform/pkg/common/config"
)

func TestRedisOptionsFromConfig(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_POOL_SIZE", "40")
	t.Setenv("REDIS_READ_TIMEOUT", "750ms")

	opts := RedisOptions(config.Load())
	if opts.Addr != "cache:6380" || opts.DB != 3 {
		t.Fatalf("unexpected address %s db %d", opts.Addr, opts.DB)
	}
	if opts.PoolSize != 40 || opts.MinIdleConns != 10 {
		t.Fatalf("unexpected pool %d/%d", opts.PoolSize, opts.MinIdleConns)
	}
	if opts.ReadTimeout != 750*time.Millisecond || opts.DialTimeout != 5*time.Second {
		t.Fatalf("unexpected timeouts read=%s dial=%s", opts.ReadTimeout, opts.DialTimeout)
	}
}

func TestPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_SSLMODE", "require")

	dsn := PostgresDSN(config.Load())
	for _, want := range []string{"host=db", "sslmode=require", "dbname=neuralforge"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("dsn %q lacks %q", dsn, want)
		}
	}
}
