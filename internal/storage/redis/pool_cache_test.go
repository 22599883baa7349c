package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func unreachableClient() *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestPoolCacheDefaults(t *testing.T) {
	cache := NewPoolCacheWithClient(unreachableClient(), "", 0)
	defer cache.Close()

	if cache.TTL() != time.Minute {
		t.Fatalf("unexpected default ttl: %s", cache.TTL())
	}
	if got := cache.Key("  Paseo "); got != "dotpilot:pools:paseo" {
		t.Fatalf("unexpected key: %s", got)
	}

	custom := NewPoolCacheWithClient(unreachableClient(), "test:", 5*time.Second)
	defer custom.Close()
	if custom.Key("west") != "test:west" || custom.TTL() != 5*time.Second {
		t.Fatalf("custom prefix or ttl ignored")
	}
}

func TestPoolCacheSurfacesConnectionErrors(t *testing.T) {
	cache := NewPoolCacheWithClient(unreachableClient(), "", 0)
	defer cache.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if _, ok, err := cache.Get(ctx, "paseo"); err == nil || ok {
		t.Fatalf("expected connection error, got ok=%v err=%v", ok, err)
	}
	if err := cache.Set(ctx, "paseo", []byte("[]")); err == nil {
		t.Fatalf("expected connection error on set")
	}
	if err := cache.Delete(ctx, "paseo"); err == nil {
		t.Fatalf("expected connection error on delete")
	}
}

func TestNewPoolCacheRequiresAddress(t *testing.T) {
	if _, err := NewPoolCache(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty address")
	}
}
