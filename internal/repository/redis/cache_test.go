package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/user-directory/internal/core/port"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestCacheStore_SetGetWithTTL(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	if err := store.Set(ctx, "user:42", []byte(`{"id":"42"}`), 30*time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}

	raw, err := store.Get(ctx, "user:42")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if string(raw) != `{"id":"42"}` {
		t.Fatalf("unexpected payload %s", raw)
	}

	if ttl := server.TTL("user:42"); ttl != 30*time.Minute {
		t.Fatalf("expected ttl 30m, got %v", ttl)
	}

	server.FastForward(31 * time.Minute)
	if _, err := store.Get(ctx, "user:42"); !errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestCacheStore_GetMiss(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewCacheStore(client)

	if _, err := store.Get(context.Background(), "users:all"); !errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
}

func TestCacheStore_DeleteAndExists(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewCacheStore(client)
	ctx := context.Background()

	if err := store.Delete(ctx, "absent"); err != nil {
		t.Fatalf("Delete on absent key returned error: %v", err)
	}
	if err := store.Set(ctx, "users:all", []byte(`[]`), time.Minute); err != nil {
		t.Fatalf("Set returned error: %v", err)
	}
	if ok, err := store.Exists(ctx, "users:all"); err != nil || !ok {
		t.Fatalf("expected key to exist, ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, "users:all"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if ok, err := store.Exists(ctx, "users:all"); err != nil || ok {
		t.Fatalf("expected key to be gone, ok=%v err=%v", ok, err)
	}
}

func TestCacheStore_RejectsNonPositiveTTL(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewCacheStore(client)

	if err := store.Set(context.Background(), "k", []byte("v"), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestCacheStore_OutageSurfacesError(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewCacheStore(client)
	server.Close()

	_, err := store.Get(context.Background(), "user:1")
	if err == nil || errors.Is(err, port.ErrCacheMiss) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if err := store.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}
