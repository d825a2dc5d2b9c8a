package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/user-directory/internal/infra/config"
)

func TestNewClientPingsServer(t *testing.T) {
	srv := miniredis.RunT(t)

	cfg := config.RedisSettings{Host: srv.Host(), Port: mustPort(t, srv.Port())}
	client, err := NewClient(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("expected healthy client, got %v", err)
	}

	srv.Close()
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check failure after server shutdown")
	}
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	port := mustPort(t, srv.Port())
	host := srv.Host()
	srv.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected error dialing a stopped server")
	}
}

func mustPort(t *testing.T, raw string) int {
	t.Helper()
	port, err := strconv.Atoi(raw)
	if err != nil {
		t.Fatalf("unexpected port %q: %v", raw, err)
	}
	return port
}
