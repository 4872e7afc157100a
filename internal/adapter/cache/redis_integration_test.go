//go:build integration

package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"
)

// newTestRedisURL connects to REDIS_URL when set (CI), otherwise starts a
// disposable redis container for the duration of the test.
func newTestRedisURL(t *testing.T) string {
	t.Helper()

	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}
	return url
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	url := newTestRedisURL(t)
	c, err := NewRedisCache(url, zap.NewNop())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := "fleet:test:key"
	want := "fleet-value"

	if err := c.Set(ctx, key, want, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := c.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(ctx, key); err == nil {
		t.Fatal("expected an error reading a deleted key")
	}
}

func TestRedisCache_Expiration(t *testing.T) {
	url := newTestRedisURL(t)
	c, err := NewRedisCache(url, zap.NewNop())
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	defer c.Close()

	ctx := context.Background()
	key := "fleet:test:expiring"
	if err := c.Set(ctx, key, "short-lived", 50*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(200 * time.Millisecond)

	if _, err := c.Get(ctx, key); err == nil {
		t.Fatal("expected the key to have expired")
	} else if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected context error: %v", err)
	}
}
