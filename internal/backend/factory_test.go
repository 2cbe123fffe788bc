package backend

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"atelier/internal/config"
	"atelier/internal/log"
	"atelier/internal/store/memory"
	"atelier/internal/store/sqlite"
)

func testFactory() Factory {
	return NewFactory(log.New(log.Config{Output: io.Discard}))
}

func TestCreateMemoryBackend(t *testing.T) {
	res, err := testFactory().CreateBackend(context.Background(), Config{
		Type: MemoryBackend, Cache: MemoryCache, CacheSize: 8, CacheTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()

	if _, ok := res.Store.(*memory.Store); !ok {
		t.Fatalf("store = %T", res.Store)
	}
	if res.Publisher != nil {
		t.Fatal("publisher without AMQP URL")
	}
	if got := len(res.Options()); got != 1 {
		t.Fatalf("options = %d, want cache only", got)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	res, err := testFactory().CreateBackend(context.Background(), Config{
		Type: SQLiteBackend, SQLiteDBPath: path, Cache: MemoryCache, CacheSize: 8, CacheTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Store.Close()
	defer res.Close()
	if _, ok := res.Store.(*sqlite.Repository); !ok {
		t.Fatalf("store = %T", res.Store)
	}
	if err := res.Store.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestRedisFallsBackToLRU(t *testing.T) {
	res, err := testFactory().CreateBackend(context.Background(), Config{
		Type: MemoryBackend, Cache: RedisCache, RedisAddr: "127.0.0.1:1", CacheSize: 8, CacheTTL: time.Minute,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer res.Close()
	ctx := context.Background()
	res.Cache.Set(ctx, "k", nil)
	if _, ok := res.Cache.Get(ctx, "k"); !ok {
		t.Fatal("fallback cache does not store values")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Type: MemoryBackend, Cache: MemoryCache}, true},
		{"bad type", Config{Type: "sheets", Cache: MemoryCache}, false},
		{"sqlite without path", Config{Type: SQLiteBackend, Cache: MemoryCache}, false},
		{"redis without addr", Config{Type: MemoryBackend, Cache: RedisCache}, false},
		{"amqp without queue", Config{Type: MemoryBackend, Cache: MemoryCache, AMQPURL: "amqp://x", AMQPExchange: "e"}, false},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); (err == nil) != tc.ok {
			t.Errorf("%s: err = %v", tc.name, err)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	app := config.Load()
	app.DataBackend = "memory"
	app.CacheBackend = "memory"
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("from app config: %v", err)
	}
	if cfg.Type != MemoryBackend || cfg.AMQPQueue != app.AMQPQueue {
		t.Fatalf("cfg = %+v", cfg)
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config accepted")
	}
}
